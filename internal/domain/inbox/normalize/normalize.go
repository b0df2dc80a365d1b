// Package normalize converts raw, untrusted conversation payloads from the
// CRM backend into validated entity.Conversation values. The CRM does not
// guarantee the payload shape, so every field is extracted best-effort:
// records without the minimum identifying shape (a thread object with a
// non-empty id) are skipped, everything else coerces to safe defaults.
// The package never panics and never mutates its input.
package normalize

import (
	"time"

	"github.com/vadim/lead-metric/internal/domain/inbox/entity"
)

// localTimeLayout is the display format for the derived local-time field
const localTimeLayout = "2006-01-02 15:04"

// timestampLayouts are tried in order when parsing CRM timestamp strings
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts an arbitrary decoded JSON value into a slice of
// conversations. Input that is not an array yields an empty result.
// Duplicate thread IDs are preserved as separate entries; de-duplication
// is a collaborator's responsibility.
func Normalize(raw any) []entity.Conversation {
	records, ok := raw.([]any)
	if !ok {
		return []entity.Conversation{}
	}

	out := make([]entity.Conversation, 0, len(records))
	for _, rec := range records {
		conv, ok := normalizeRecord(rec)
		if !ok {
			continue
		}
		out = append(out, conv)
	}
	return out
}

// normalizeRecord extracts one conversation from a raw record. The second
// return value is false when the record lacks the minimum required shape.
func normalizeRecord(rec any) (entity.Conversation, bool) {
	m, ok := rec.(map[string]any)
	if !ok {
		return entity.Conversation{}, false
	}

	tm, ok := m["thread"].(map[string]any)
	if !ok {
		return entity.Conversation{}, false
	}

	id := stringField(tm, "id")
	if id == "" {
		return entity.Conversation{}, false
	}

	thread := entity.Thread{
		ID:             id,
		LeadName:       stringField(tm, "lead_name", "leadName"),
		Status:         entity.ThreadStatus(stringField(tm, "status")),
		CreatedAt:      timeField(tm, "created_at", "createdAt"),
		LastActivityAt: timeField(tm, "last_activity_at", "lastActivityAt"),
	}

	return entity.Conversation{
		Thread:   thread,
		Messages: normalizeMessages(m["messages"]),
	}, true
}

// normalizeMessages extracts the message list, defaulting to an empty
// sequence when the value is absent or not list-shaped.
func normalizeMessages(raw any) []entity.Message {
	items, ok := raw.([]any)
	if !ok {
		return []entity.Message{}
	}

	msgs := make([]entity.Message, 0, len(items))
	for _, item := range items {
		mm, ok := item.(map[string]any)
		if !ok {
			continue
		}

		msg := entity.Message{
			Sender: entity.SenderRole(stringField(mm, "sender", "role")),
			Text:   stringField(mm, "body", "text"),
		}

		// An unparseable timestamp is kept as nil, not treated as an error
		if ts := timeField(mm, "timestamp", "sent_at"); ts != nil {
			msg.Timestamp = ts
			msg.LocalTime = ts.Local().Format(localTimeLayout)
		}

		msgs = append(msgs, msg)
	}
	return msgs
}

// stringField returns the first non-empty string value among keys
func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// timeField returns the first parseable timestamp among keys. Accepts
// RFC3339-style strings and numeric epochs (seconds or milliseconds).
func timeField(m map[string]any, keys ...string) *time.Time {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		if t := parseTimestamp(v); t != nil {
			return t
		}
	}
	return nil
}

func parseTimestamp(v any) *time.Time {
	switch val := v.(type) {
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return &t
			}
		}
	case float64:
		if val <= 0 {
			return nil
		}
		sec := int64(val)
		// Values past the year ~33658 in seconds are epoch milliseconds
		if sec > 1e12 {
			t := time.UnixMilli(sec).UTC()
			return &t
		}
		t := time.Unix(sec, 0).UTC()
		return &t
	}
	return nil
}
