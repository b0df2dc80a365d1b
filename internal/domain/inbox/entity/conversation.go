package entity

import "time"

// Conversation owns exactly one Thread and its ordered message list.
// It is built once by the normalizer and not mutated afterwards.
type Conversation struct {
	Thread   Thread    `json:"thread"`
	Messages []Message `json:"messages"`
}

// ActivityAt returns the thread's last-activity timestamp, falling back
// to the creation timestamp. Nil when neither is known.
func (c Conversation) ActivityAt() *time.Time {
	if c.Thread.LastActivityAt != nil {
		return c.Thread.LastActivityAt
	}
	return c.Thread.CreatedAt
}
