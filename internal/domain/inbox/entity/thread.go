package entity

import "time"

// ThreadStatus represents the lifecycle status of a conversation thread
type ThreadStatus string

const (
	ThreadStatusActive    ThreadStatus = "active"
	ThreadStatusPending   ThreadStatus = "pending"
	ThreadStatusClosed    ThreadStatus = "closed"
	ThreadStatusClosedWon ThreadStatus = "closed-won"
)

// Thread represents identifying metadata for one lead conversation.
// Timestamps are pointers: an unparseable value from the CRM is kept as
// nil rather than as a zero time.
type Thread struct {
	ID             string       `json:"id"`
	AccountID      string       `json:"account_id,omitempty"`
	LeadName       string       `json:"lead_name,omitempty"`
	Status         ThreadStatus `json:"status"`
	CreatedAt      *time.Time   `json:"created_at,omitempty"`
	LastActivityAt *time.Time   `json:"last_activity_at,omitempty"`
}

// Converted reports whether the thread reached the terminal won status
func (t Thread) Converted() bool {
	return t.Status == ThreadStatusClosedWon
}
