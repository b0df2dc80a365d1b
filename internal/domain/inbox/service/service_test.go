package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadim/lead-metric/internal/domain/inbox/entity"
	"github.com/vadim/lead-metric/internal/domain/inbox/trend"
)

// --- fakes ---

type fakeCRM struct {
	payload any
	err     error
	calls   int
}

func (f *fakeCRM) FetchConversations(ctx context.Context, accountID, apiToken string) (any, error) {
	f.calls++
	return f.payload, f.err
}

type fakeThreadRepo struct {
	upserted []entity.Thread
	threads  []entity.Thread
	total    int64
	err      error
}

func (f *fakeThreadRepo) UpsertBatch(ctx context.Context, threads []entity.Thread) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, threads...)
	return nil
}

func (f *fakeThreadRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]entity.Thread, error) {
	return f.threads, f.err
}

func (f *fakeThreadRepo) ListByAccountBetween(ctx context.Context, accountID string, from, to time.Time) ([]entity.Thread, error) {
	return f.threads, f.err
}

func (f *fakeThreadRepo) Count(ctx context.Context, accountID string) (int64, error) {
	return f.total, nil
}

type fakeMessageRepo struct {
	upserted map[string][]entity.Message
	byThread map[string][]entity.Message
}

func (f *fakeMessageRepo) UpsertBatch(ctx context.Context, threadID string, msgs []entity.Message) error {
	if f.upserted == nil {
		f.upserted = map[string][]entity.Message{}
	}
	f.upserted[threadID] = msgs
	return nil
}

func (f *fakeMessageRepo) ListByThreadIDs(ctx context.Context, threadIDs []string) (map[string][]entity.Message, error) {
	return f.byThread, nil
}

type fakeReportStore struct {
	filename    string
	contentType string
	body        []byte
	err         error
}

func (f *fakeReportStore) Put(ctx context.Context, filename, contentType string, body []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.filename = filename
	f.contentType = contentType
	f.body = body
	return "https://reports.example.com/" + filename, nil
}

func rawPayload(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

// --- sync ---

func TestSyncConversations(t *testing.T) {
	crm := &fakeCRM{payload: rawPayload(t, `[
		{"thread": {"id": "t1", "status": "active"}, "messages": [{"sender": "lead", "body": "hi"}]},
		{"thread": {"id": "t2", "status": "closed-won"}},
		"garbage"
	]`)}
	threads := &fakeThreadRepo{}
	msgs := &fakeMessageRepo{}

	svc := NewWithRepo(crm, trend.New(), threads, msgs, nil)
	require.NoError(t, svc.SyncConversations(context.Background(), "acc-1", "token"))

	require.Len(t, threads.upserted, 2)
	assert.Equal(t, "t1", threads.upserted[0].ID)
	assert.Equal(t, "acc-1", threads.upserted[0].AccountID)
	assert.Equal(t, "acc-1", threads.upserted[1].AccountID)

	require.Contains(t, msgs.upserted, "t1")
	assert.Len(t, msgs.upserted["t1"], 1)
	assert.Equal(t, "hi", msgs.upserted["t1"][0].Text)
}

func TestSyncConversations_RequiresRepository(t *testing.T) {
	svc := New(&fakeCRM{}, trend.New())
	err := svc.SyncConversations(context.Background(), "acc-1", "token")
	assert.Error(t, err)
}

func TestSyncConversations_CRMError(t *testing.T) {
	crm := &fakeCRM{err: errors.New("upstream down")}
	svc := NewWithRepo(crm, trend.New(), &fakeThreadRepo{}, &fakeMessageRepo{}, nil)

	err := svc.SyncConversations(context.Background(), "acc-1", "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestSyncConversations_EmptyPayload(t *testing.T) {
	crm := &fakeCRM{payload: rawPayload(t, `[]`)}
	threads := &fakeThreadRepo{}

	svc := NewWithRepo(crm, trend.New(), threads, &fakeMessageRepo{}, nil)
	require.NoError(t, svc.SyncConversations(context.Background(), "acc-1", "token"))
	assert.Empty(t, threads.upserted)
}

// --- listing ---

func TestListConversations_FromRepository(t *testing.T) {
	threads := &fakeThreadRepo{
		threads: []entity.Thread{{ID: "t1"}, {ID: "t2"}},
		total:   5,
	}
	msgs := &fakeMessageRepo{byThread: map[string][]entity.Message{
		"t1": {{Sender: entity.SenderRoleLead, Text: "hello"}},
	}}

	svc := NewWithRepo(&fakeCRM{}, trend.New(), threads, msgs, nil)
	out, err := svc.ListConversations(context.Background(), ListConversationsInput{
		AccountID: "acc-1",
		Limit:     2,
	})
	require.NoError(t, err)

	require.Len(t, out.Conversations, 2)
	assert.Equal(t, int64(5), out.Total)
	assert.True(t, out.HasMore)
	assert.Len(t, out.Conversations[0].Messages, 1)
	assert.Empty(t, out.Conversations[1].Messages)
}

func TestListConversations_FallsBackToCRM(t *testing.T) {
	crm := &fakeCRM{payload: rawPayload(t, `[{"thread": {"id": "t1"}}]`)}

	svc := New(crm, trend.New())
	out, err := svc.ListConversations(context.Background(), ListConversationsInput{
		AccountID: "acc-1",
		APIToken:  "token",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, crm.calls)
	require.Len(t, out.Conversations, 1)
	assert.Equal(t, "acc-1", out.Conversations[0].Thread.AccountID)
	assert.Equal(t, int64(1), out.Total)
	assert.False(t, out.HasMore)
}

// --- trends ---

func TestComputeTrends(t *testing.T) {
	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	activity := day.Add(12 * time.Hour)
	threads := &fakeThreadRepo{threads: []entity.Thread{
		{ID: "t1", Status: entity.ThreadStatusActive, CreatedAt: &activity, LastActivityAt: &activity},
		{ID: "t2", Status: entity.ThreadStatusClosedWon, CreatedAt: &activity, LastActivityAt: &activity},
	}}

	svc := NewWithRepo(&fakeCRM{}, trend.New(), threads, &fakeMessageRepo{}, nil)
	out, err := svc.ComputeTrends(context.Background(), ComputeTrendsInput{
		AccountID: "acc-1",
		Range:     entity.DayRange(day, day),
	})
	require.NoError(t, err)

	require.Len(t, out.Trends, 5)
	assert.Equal(t, 2.0, out.Trends[entity.MetricTotalConversations].Current.Value)
	assert.Equal(t, 50.0, out.Trends[entity.MetricConversionRate].Current.Value)
}

func TestComputeTrends_WithoutRepositoryUsesCRM(t *testing.T) {
	crm := &fakeCRM{payload: rawPayload(t, `[]`)}

	svc := New(crm, trend.New())
	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	out, err := svc.ComputeTrends(context.Background(), ComputeTrendsInput{
		AccountID: "acc-1",
		APIToken:  "token",
		Range:     entity.DayRange(day, day),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, crm.calls)
	assert.Len(t, out.Trends, 5)
}

// --- report export ---

func TestExportTrendReport(t *testing.T) {
	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	activity := day.Add(9 * time.Hour)
	threads := &fakeThreadRepo{threads: []entity.Thread{
		{ID: "t1", Status: entity.ThreadStatusActive, CreatedAt: &activity, LastActivityAt: &activity},
	}}
	store := &fakeReportStore{}

	svc := NewWithRepo(&fakeCRM{}, trend.New(), threads, &fakeMessageRepo{}, store)
	out, err := svc.ExportTrendReport(context.Background(), ExportTrendReportInput{
		AccountID: "acc-1",
		Range:     entity.DayRange(day, day),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, out.ReportID)
	assert.Equal(t, "https://reports.example.com/"+out.ReportID+".json", out.URL)
	assert.Equal(t, "application/json", store.contentType)

	var report TrendReport
	require.NoError(t, json.Unmarshal(store.body, &report))
	assert.Equal(t, out.ReportID, report.ReportID)
	assert.Equal(t, "acc-1", report.AccountID)
	assert.Len(t, report.Trends, 5)
}

func TestExportTrendReport_StorageDisabled(t *testing.T) {
	svc := NewWithRepo(&fakeCRM{}, trend.New(), &fakeThreadRepo{}, &fakeMessageRepo{}, nil)

	_, err := svc.ExportTrendReport(context.Background(), ExportTrendReportInput{AccountID: "acc-1"})
	assert.ErrorIs(t, err, entity.ErrReportStorageDisabled)
}

func TestExportTrendReport_UploadError(t *testing.T) {
	store := &fakeReportStore{err: errors.New("bucket missing")}
	svc := NewWithRepo(&fakeCRM{}, trend.New(), &fakeThreadRepo{}, &fakeMessageRepo{}, store)

	_, err := svc.ExportTrendReport(context.Background(), ExportTrendReportInput{AccountID: "acc-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket missing")
}
