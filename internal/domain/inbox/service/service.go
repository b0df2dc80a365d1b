package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vadim/lead-metric/internal/domain/inbox/entity"
	"github.com/vadim/lead-metric/internal/domain/inbox/normalize"
	"github.com/vadim/lead-metric/internal/domain/inbox/trend"
)

// CRMClient defines the interface for the upstream CRM conversations API.
// The payload shape is untrusted; it goes through the normalizer.
type CRMClient interface {
	FetchConversations(ctx context.Context, accountID, apiToken string) (any, error)
}

// ThreadRepository defines the interface for thread storage
type ThreadRepository interface {
	UpsertBatch(ctx context.Context, threads []entity.Thread) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]entity.Thread, error)
	ListByAccountBetween(ctx context.Context, accountID string, from, to time.Time) ([]entity.Thread, error)
	Count(ctx context.Context, accountID string) (int64, error)
}

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	UpsertBatch(ctx context.Context, threadID string, msgs []entity.Message) error
	ListByThreadIDs(ctx context.Context, threadIDs []string) (map[string][]entity.Message, error)
}

// ReportStore persists exported trend reports and returns a public URL
type ReportStore interface {
	Put(ctx context.Context, filename, contentType string, body []byte) (string, error)
}

// Service handles inbox business logic
type Service struct {
	crm     CRMClient
	engine  *trend.Engine
	threads ThreadRepository
	msgs    MessageRepository
	reports ReportStore
}

// New creates an inbox service without local storage: reads go straight
// to the CRM on every call
func New(crm CRMClient, engine *trend.Engine) *Service {
	return &Service{crm: crm, engine: engine}
}

// NewWithRepo creates an inbox service backed by local storage
func NewWithRepo(
	crm CRMClient,
	engine *trend.Engine,
	threads ThreadRepository,
	msgs MessageRepository,
	reports ReportStore,
) *Service {
	return &Service{
		crm:     crm,
		engine:  engine,
		threads: threads,
		msgs:    msgs,
		reports: reports,
	}
}

// SyncConversations fetches the raw conversation payload for an account,
// normalizes it, and upserts the result into local storage
func (s *Service) SyncConversations(ctx context.Context, accountID, apiToken string) error {
	if s.threads == nil {
		return fmt.Errorf("repository required for sync")
	}

	convs, err := s.fetchNormalized(ctx, accountID, apiToken)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		return nil
	}

	threads := make([]entity.Thread, len(convs))
	for i, c := range convs {
		threads[i] = c.Thread
	}
	if err := s.threads.UpsertBatch(ctx, threads); err != nil {
		return fmt.Errorf("saving threads: %w", err)
	}

	if s.msgs != nil {
		for _, c := range convs {
			if err := s.msgs.UpsertBatch(ctx, c.Thread.ID, c.Messages); err != nil {
				return fmt.Errorf("saving messages: %w", err)
			}
		}
	}
	return nil
}

// ListConversationsInput represents input for listing conversations
type ListConversationsInput struct {
	AccountID string
	APIToken  string
	Limit     int
	Offset    int
}

// ListConversationsOutput represents output from listing conversations
type ListConversationsOutput struct {
	Conversations []entity.Conversation
	Total         int64
	HasMore       bool
}

// ListConversations retrieves conversations for an account, preferring
// the local copy and falling back to a direct CRM fetch
func (s *Service) ListConversations(ctx context.Context, in ListConversationsInput) (*ListConversationsOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}

	if s.threads != nil {
		threads, err := s.threads.ListByAccount(ctx, in.AccountID, limit, in.Offset)
		if err != nil {
			return nil, fmt.Errorf("listing threads: %w", err)
		}

		convs, err := s.attachMessages(ctx, threads)
		if err != nil {
			return nil, err
		}

		total, _ := s.threads.Count(ctx, in.AccountID)

		return &ListConversationsOutput{
			Conversations: convs,
			Total:         total,
			HasMore:       int64(in.Offset+len(convs)) < total,
		}, nil
	}

	// Fallback to direct CRM call
	convs, err := s.fetchNormalized(ctx, in.AccountID, in.APIToken)
	if err != nil {
		return nil, err
	}

	return &ListConversationsOutput{
		Conversations: convs,
		Total:         int64(len(convs)),
	}, nil
}

// ComputeTrendsInput represents input for computing trends
type ComputeTrendsInput struct {
	AccountID string
	APIToken  string
	Range     entity.DateRange
}

// ComputeTrendsOutput represents output from computing trends
type ComputeTrendsOutput struct {
	Range  entity.DateRange
	Trends map[entity.MetricName]entity.TrendResult
}

// ComputeTrends aggregates every tracked metric over the reporting range
// and its immediately preceding comparison window
func (s *Service) ComputeTrends(ctx context.Context, in ComputeTrendsInput) (*ComputeTrendsOutput, error) {
	convs, err := s.conversationsForRange(ctx, in)
	if err != nil {
		return nil, err
	}

	return &ComputeTrendsOutput{
		Range:  in.Range,
		Trends: s.engine.Compute(convs, in.Range),
	}, nil
}

// TrendReport is the serialized form of an exported trend snapshot
type TrendReport struct {
	ReportID    string                                   `json:"report_id"`
	AccountID   string                                   `json:"account_id"`
	Range       entity.DateRange                         `json:"range"`
	GeneratedAt time.Time                                `json:"generated_at"`
	Trends      map[entity.MetricName]entity.TrendResult `json:"trends"`
}

// ExportTrendReportInput represents input for exporting a trend report
type ExportTrendReportInput struct {
	AccountID string
	APIToken  string
	Range     entity.DateRange
}

// ExportTrendReportOutput represents output from exporting a trend report
type ExportTrendReportOutput struct {
	ReportID    string
	URL         string
	GeneratedAt time.Time
}

// ExportTrendReport computes trends for the range and uploads a JSON
// snapshot to report storage
func (s *Service) ExportTrendReport(ctx context.Context, in ExportTrendReportInput) (*ExportTrendReportOutput, error) {
	if s.reports == nil {
		return nil, entity.ErrReportStorageDisabled
	}

	convs, err := s.conversationsForRange(ctx, ComputeTrendsInput(in))
	if err != nil {
		return nil, err
	}

	report := TrendReport{
		ReportID:    uuid.New().String(),
		AccountID:   in.AccountID,
		Range:       in.Range,
		GeneratedAt: time.Now().UTC(),
		Trends:      s.engine.Compute(convs, in.Range),
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}

	url, err := s.reports.Put(ctx, report.ReportID+".json", "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("uploading report: %w", err)
	}

	return &ExportTrendReportOutput{
		ReportID:    report.ReportID,
		URL:         url,
		GeneratedAt: report.GeneratedAt,
	}, nil
}

// conversationsForRange loads the conversations needed to compare the
// reporting range against its preceding window: both windows together
// span [From - (To-From), To].
func (s *Service) conversationsForRange(ctx context.Context, in ComputeTrendsInput) ([]entity.Conversation, error) {
	if s.threads == nil {
		return s.fetchNormalized(ctx, in.AccountID, in.APIToken)
	}

	length := in.Range.Duration()
	if length < 0 {
		length = 0
	}
	loadFrom := in.Range.From.Add(-length)

	threads, err := s.threads.ListByAccountBetween(ctx, in.AccountID, loadFrom, in.Range.To)
	if err != nil {
		return nil, fmt.Errorf("listing threads by range: %w", err)
	}
	return s.attachMessages(ctx, threads)
}

// attachMessages assembles conversations from threads and their stored
// messages
func (s *Service) attachMessages(ctx context.Context, threads []entity.Thread) ([]entity.Conversation, error) {
	convs := make([]entity.Conversation, len(threads))
	for i, th := range threads {
		convs[i] = entity.Conversation{Thread: th, Messages: []entity.Message{}}
	}
	if s.msgs == nil || len(threads) == 0 {
		return convs, nil
	}

	ids := make([]string, len(threads))
	for i, th := range threads {
		ids[i] = th.ID
	}

	byThread, err := s.msgs.ListByThreadIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	for i := range convs {
		if msgs, ok := byThread[convs[i].Thread.ID]; ok {
			convs[i].Messages = msgs
		}
	}
	return convs, nil
}

// fetchNormalized pulls the raw payload from the CRM and runs it through
// the normalizer, stamping the owning account on each thread
func (s *Service) fetchNormalized(ctx context.Context, accountID, apiToken string) ([]entity.Conversation, error) {
	raw, err := s.crm.FetchConversations(ctx, accountID, apiToken)
	if err != nil {
		return nil, fmt.Errorf("fetching conversations from CRM: %w", err)
	}

	convs := normalize.Normalize(raw)
	for i := range convs {
		convs[i].Thread.AccountID = accountID
	}
	return convs, nil
}
