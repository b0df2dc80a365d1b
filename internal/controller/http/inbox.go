package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/lead-metric/internal/domain/inbox/entity"
	"github.com/vadim/lead-metric/internal/domain/inbox/policy"
	"github.com/vadim/lead-metric/internal/httpx/response"
)

// InboxPolicy defines the interface for inbox operations
type InboxPolicy interface {
	SyncConversations(ctx context.Context, in policy.SyncConversationsInput) error
	ListConversations(ctx context.Context, in policy.ListConversationsInput) (*policy.ListConversationsOutput, error)
	GetTrends(ctx context.Context, in policy.GetTrendsInput) (*policy.GetTrendsOutput, error)
	ExportReport(ctx context.Context, in policy.ExportReportInput) (*policy.ExportReportOutput, error)
}

// InboxHandler handles HTTP requests for the conversation inbox
type InboxHandler struct {
	policy InboxPolicy
}

// NewInboxHandler creates a new inbox handler
func NewInboxHandler(p InboxPolicy) *InboxHandler {
	return &InboxHandler{policy: p}
}

// RegisterRoutes registers inbox routes
func (h *InboxHandler) RegisterRoutes(r chi.Router) {
	r.Route("/inbox", func(r chi.Router) {
		// List conversations
		r.Get("/conversations", h.ListConversations())

		// Trigger a sync from the CRM
		r.Post("/sync", h.SyncConversations())

		// Trend indicators for a date range
		r.Get("/trends", h.GetTrends())

		// Export a trend report snapshot
		r.Post("/reports", h.ExportReport())
	})
}

// ListConversationsResponse represents the response for listing conversations
type ListConversationsResponse struct {
	Conversations []entity.Conversation `json:"conversations"`
	Total         int64                 `json:"total"`
	HasMore       bool                  `json:"has_more"`
}

// ListConversations handles GET /inbox/conversations
func (h *InboxHandler) ListConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			response.BadRequest(w, "account_id is required")
			return
		}

		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
				limit = parsed
				if limit > 100 {
					limit = 100
				}
			}
		}

		offset := 0
		if o := r.URL.Query().Get("offset"); o != "" {
			if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
				offset = parsed
			}
		}

		result, err := h.policy.ListConversations(r.Context(), policy.ListConversationsInput{
			AccountID: accountID,
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			handleInboxError(w, err)
			return
		}

		response.OK(w, ListConversationsResponse{
			Conversations: result.Conversations,
			Total:         result.Total,
			HasMore:       result.HasMore,
		})
	}
}

// SyncRequest represents the request body for triggering a sync
type SyncRequest struct {
	AccountID string `json:"account_id"`
}

// SyncConversations handles POST /inbox/sync
func (h *InboxHandler) SyncConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}
		if req.AccountID == "" {
			response.BadRequest(w, "account_id is required")
			return
		}

		if err := h.policy.SyncConversations(r.Context(), policy.SyncConversationsInput{
			AccountID: req.AccountID,
		}); err != nil {
			handleInboxError(w, err)
			return
		}

		response.Accepted(w, map[string]string{"status": "synced"})
	}
}

// TrendsResponse represents the response for trend indicators
type TrendsResponse struct {
	Range  entity.DateRange                         `json:"range"`
	Trends map[entity.MetricName]entity.TrendResult `json:"trends"`
}

// GetTrends handles GET /inbox/trends
func (h *InboxHandler) GetTrends() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			response.BadRequest(w, "account_id is required")
			return
		}

		result, err := h.policy.GetTrends(r.Context(), policy.GetTrendsInput{
			AccountID: accountID,
			Range:     dateRangeFromQuery(r),
		})
		if err != nil {
			handleInboxError(w, err)
			return
		}

		response.OK(w, TrendsResponse{Range: result.Range, Trends: result.Trends})
	}
}

// ExportReportRequest represents the request body for exporting a report
type ExportReportRequest struct {
	AccountID string `json:"account_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// ExportReportResponse represents the response for exporting a report
type ExportReportResponse struct {
	ReportID    string `json:"report_id"`
	URL         string `json:"url"`
	GeneratedAt string `json:"generated_at"`
}

// ExportReport handles POST /inbox/reports
func (h *InboxHandler) ExportReport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}
		if req.AccountID == "" {
			response.BadRequest(w, "account_id is required")
			return
		}

		dateRange := defaultDateRange()
		from, fromErr := time.Parse("2006-01-02", req.StartDate)
		to, toErr := time.Parse("2006-01-02", req.EndDate)
		if fromErr == nil && toErr == nil {
			dateRange = entity.DayRange(from, to)
		}

		result, err := h.policy.ExportReport(r.Context(), policy.ExportReportInput{
			AccountID: req.AccountID,
			Range:     dateRange,
		})
		if err != nil {
			handleInboxError(w, err)
			return
		}

		response.Created(w, ExportReportResponse{
			ReportID:    result.ReportID,
			URL:         result.URL,
			GeneratedAt: result.GeneratedAt,
		})
	}
}

// dateRangeFromQuery parses start_date/end_date query parameters
// (YYYY-MM-DD), defaulting to the last 30 days. The end date expands to
// end of day so the reporting window covers it fully.
func dateRangeFromQuery(r *http.Request) entity.DateRange {
	dateRange := defaultDateRange()

	if s := r.URL.Query().Get("start_date"); s != "" {
		if parsed, err := time.Parse("2006-01-02", s); err == nil {
			dateRange.From = parsed
		}
	}
	if e := r.URL.Query().Get("end_date"); e != "" {
		if parsed, err := time.Parse("2006-01-02", e); err == nil {
			dateRange.To = parsed.Add(24*time.Hour - time.Second) // End of day
		}
	}
	return dateRange
}

func defaultDateRange() entity.DateRange {
	now := time.Now()
	return entity.DateRange{From: now.AddDate(0, 0, -30), To: now}
}

func handleInboxError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrUnknownAccount):
		response.NotFound(w, entity.ErrUnknownAccount.Error())
	case errors.Is(err, entity.ErrConversationNotFound):
		response.NotFound(w, entity.ErrConversationNotFound.Error())
	case errors.Is(err, entity.ErrReportStorageDisabled):
		response.ServiceUnavailable(w, entity.ErrReportStorageDisabled.Error())
	default:
		response.InternalError(w, "internal server error")
	}
}
