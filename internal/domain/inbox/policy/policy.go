package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/vadim/lead-metric/internal/domain/inbox/entity"
	"github.com/vadim/lead-metric/internal/domain/inbox/service"
)

// AccountProvider resolves credentials for dashboard accounts
type AccountProvider interface {
	GetAPIToken(ctx context.Context, accountID string) (string, error)
	ListAccountIDs(ctx context.Context) ([]string, error)
}

// InboxService defines the interface for the inbox service
type InboxService interface {
	SyncConversations(ctx context.Context, accountID, apiToken string) error
	ListConversations(ctx context.Context, in service.ListConversationsInput) (*service.ListConversationsOutput, error)
	ComputeTrends(ctx context.Context, in service.ComputeTrendsInput) (*service.ComputeTrendsOutput, error)
	ExportTrendReport(ctx context.Context, in service.ExportTrendReportInput) (*service.ExportTrendReportOutput, error)
}

// Policy handles inbox operations with account authorization
type Policy struct {
	svc      InboxService
	accounts AccountProvider
}

// New creates a new inbox policy
func New(svc InboxService, accounts AccountProvider) *Policy {
	return &Policy{svc: svc, accounts: accounts}
}

// SyncConversationsInput represents input for syncing conversations
type SyncConversationsInput struct {
	AccountID string
}

// SyncConversations triggers a sync of an account's conversations
func (p *Policy) SyncConversations(ctx context.Context, in SyncConversationsInput) error {
	token, err := p.accounts.GetAPIToken(ctx, in.AccountID)
	if err != nil {
		return fmt.Errorf("getting API token: %w", err)
	}
	return p.svc.SyncConversations(ctx, in.AccountID, token)
}

// ListConversationsInput represents input for listing conversations
type ListConversationsInput struct {
	AccountID string
	Limit     int
	Offset    int
}

// ListConversationsOutput represents output from listing conversations
type ListConversationsOutput struct {
	Conversations []entity.Conversation
	Total         int64
	HasMore       bool
}

// ListConversations retrieves conversations for an account
func (p *Policy) ListConversations(ctx context.Context, in ListConversationsInput) (*ListConversationsOutput, error) {
	token, err := p.accounts.GetAPIToken(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("getting API token: %w", err)
	}

	result, err := p.svc.ListConversations(ctx, service.ListConversationsInput{
		AccountID: in.AccountID,
		APIToken:  token,
		Limit:     in.Limit,
		Offset:    in.Offset,
	})
	if err != nil {
		return nil, err
	}

	return &ListConversationsOutput{
		Conversations: result.Conversations,
		Total:         result.Total,
		HasMore:       result.HasMore,
	}, nil
}

// GetTrendsInput represents input for computing trends
type GetTrendsInput struct {
	AccountID string
	Range     entity.DateRange
}

// GetTrendsOutput represents output from computing trends
type GetTrendsOutput struct {
	Range  entity.DateRange
	Trends map[entity.MetricName]entity.TrendResult
}

// GetTrends computes trend indicators for an account over a date range
func (p *Policy) GetTrends(ctx context.Context, in GetTrendsInput) (*GetTrendsOutput, error) {
	token, err := p.accounts.GetAPIToken(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("getting API token: %w", err)
	}

	result, err := p.svc.ComputeTrends(ctx, service.ComputeTrendsInput{
		AccountID: in.AccountID,
		APIToken:  token,
		Range:     in.Range,
	})
	if err != nil {
		return nil, err
	}

	return &GetTrendsOutput{Range: result.Range, Trends: result.Trends}, nil
}

// ExportReportInput represents input for exporting a trend report
type ExportReportInput struct {
	AccountID string
	Range     entity.DateRange
}

// ExportReportOutput represents output from exporting a trend report
type ExportReportOutput struct {
	ReportID    string
	URL         string
	GeneratedAt string
}

// ExportReport computes trends for the range and uploads a report snapshot
func (p *Policy) ExportReport(ctx context.Context, in ExportReportInput) (*ExportReportOutput, error) {
	token, err := p.accounts.GetAPIToken(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("getting API token: %w", err)
	}

	result, err := p.svc.ExportTrendReport(ctx, service.ExportTrendReportInput{
		AccountID: in.AccountID,
		APIToken:  token,
		Range:     in.Range,
	})
	if err != nil {
		return nil, err
	}

	return &ExportReportOutput{
		ReportID:    result.ReportID,
		URL:         result.URL,
		GeneratedAt: result.GeneratedAt.Format(time.RFC3339),
	}, nil
}
