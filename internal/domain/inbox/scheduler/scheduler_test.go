package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSyncer struct {
	mu     sync.Mutex
	synced []string
	errFor map[string]error
}

func (f *fakeSyncer) SyncConversations(ctx context.Context, accountID, apiToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errFor[accountID]; ok {
		return err
	}
	f.synced = append(f.synced, accountID)
	return nil
}

type fakeAccounts struct {
	ids     []string
	listErr error
}

func (f *fakeAccounts) GetAPIToken(ctx context.Context, accountID string) (string, error) {
	return "token-" + accountID, nil
}

func (f *fakeAccounts) ListAccountIDs(ctx context.Context) ([]string, error) {
	return f.ids, f.listErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcess_SyncsEveryAccount(t *testing.T) {
	syncer := &fakeSyncer{}
	s := New(syncer, &fakeAccounts{ids: []string{"a", "b", "c"}}, time.Minute, discardLogger())

	s.process(context.Background())

	assert.Equal(t, []string{"a", "b", "c"}, syncer.synced)
}

func TestProcess_AccountErrorDoesNotStopOthers(t *testing.T) {
	syncer := &fakeSyncer{errFor: map[string]error{"b": errors.New("boom")}}
	s := New(syncer, &fakeAccounts{ids: []string{"a", "b", "c"}}, time.Minute, discardLogger())

	s.process(context.Background())

	assert.Equal(t, []string{"a", "c"}, syncer.synced)
}

func TestProcess_ListError(t *testing.T) {
	syncer := &fakeSyncer{}
	s := New(syncer, &fakeAccounts{listErr: errors.New("down")}, time.Minute, discardLogger())

	s.process(context.Background())

	assert.Empty(t, syncer.synced)
}

func TestProcess_CancelledContext(t *testing.T) {
	syncer := &fakeSyncer{}
	s := New(syncer, &fakeAccounts{ids: []string{"a", "b"}}, time.Minute, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.process(ctx)

	assert.Empty(t, syncer.synced)
}

func TestStartStop(t *testing.T) {
	s := New(&fakeSyncer{}, &fakeAccounts{}, time.Minute, discardLogger())

	s.Start(context.Background())
	// Second start is a no-op
	s.Start(context.Background())

	s.Stop()
	// Second stop is a no-op
	s.Stop()
}
