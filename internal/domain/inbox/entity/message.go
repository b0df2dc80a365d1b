package entity

import "time"

// SenderRole identifies who authored a message within a thread
type SenderRole string

const (
	SenderRoleLead  SenderRole = "lead"
	SenderRoleAgent SenderRole = "agent"
)

// Message represents one entry within a thread. LocalTime is a derived
// display value; Timestamp stays in the zone the CRM reported.
type Message struct {
	Sender    SenderRole `json:"sender"`
	Text      string     `json:"text,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	LocalTime string     `json:"local_time,omitempty"`
}
