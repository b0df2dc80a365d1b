// Package trend derives period-over-period indicators for the dashboard.
// Given a set of normalized conversations and a reporting range, it splits
// time into the current window and an immediately preceding window of the
// same length, aggregates each tracked metric in both, and reports the
// change, its magnitude, whether it is significant, and its direction.
//
// The engine is pure: it holds no mutable state after construction and is
// safe to call concurrently.
package trend

import (
	"math"
	"time"

	"github.com/vadim/lead-metric/internal/domain/inbox/entity"
)

// DefaultSignificanceThreshold is the materiality gate in percent: changes
// at or below it are not flagged as significant.
const DefaultSignificanceThreshold = 5.0

// Engine computes trend results under a fixed comparison policy
type Engine struct {
	threshold        float64
	prevEndInclusive bool
}

// Option configures the Engine
type Option func(*Engine)

// WithSignificanceThreshold overrides the materiality threshold (percent)
func WithSignificanceThreshold(pct float64) Option {
	return func(e *Engine) {
		e.threshold = pct
	}
}

// WithInclusivePreviousEnd makes the previous window include its upper
// boundary instant. The default excludes it so the instant at the window
// split is never counted twice.
func WithInclusivePreviousEnd() Option {
	return func(e *Engine) {
		e.prevEndInclusive = true
	}
}

// New creates a trend engine
func New(opts ...Option) *Engine {
	e := &Engine{threshold: DefaultSignificanceThreshold}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// window is a time interval used to partition conversations
type window struct {
	from, to     time.Time
	endExclusive bool
}

func (w window) contains(t *time.Time) bool {
	if t == nil {
		return false
	}
	if t.Before(w.from) {
		return false
	}
	if w.endExclusive {
		return t.Before(w.to)
	}
	return !t.After(w.to)
}

// metricSpec declares one tracked metric: which thread timestamp assigns a
// conversation to a window, how the window aggregates, and the metric's
// polarity. Direction derivation stays declarative this way.
type metricSpec struct {
	name     entity.MetricName
	polarity entity.Polarity
	at       func(entity.Conversation) *time.Time
	agg      func([]entity.Conversation) float64
}

func activityTime(c entity.Conversation) *time.Time { return c.ActivityAt() }
func createdTime(c entity.Conversation) *time.Time  { return c.Thread.CreatedAt }

var metrics = []metricSpec{
	{entity.MetricTotalConversations, entity.PolarityHigherIsBetter, activityTime, countAll},
	{entity.MetricActiveConversations, entity.PolarityHigherIsBetter, activityTime, countStatus(entity.ThreadStatusActive)},
	{entity.MetricConversionRate, entity.PolarityHigherIsBetter, activityTime, conversionRate},
	{entity.MetricAverageResponseTime, entity.PolarityLowerIsBetter, activityTime, averageResponseMinutes},
	{entity.MetricNewConversations, entity.PolarityHigherIsBetter, createdTime, countAll},
}

// Compute returns a TrendResult for every tracked metric. It never fails:
// an inverted or zero-length range degenerates to all-stable zero results.
func (e *Engine) Compute(convs []entity.Conversation, r entity.DateRange) map[entity.MetricName]entity.TrendResult {
	out := make(map[entity.MetricName]entity.TrendResult, len(metrics))

	length := r.Duration()
	if length <= 0 {
		for _, m := range metrics {
			out[m.name] = flatResult(m.name)
		}
		return out
	}

	current := window{from: r.From, to: r.To}
	previous := window{
		from:         r.From.Add(-length),
		to:           r.From,
		endExclusive: !e.prevEndInclusive,
	}

	for _, m := range metrics {
		cur := m.agg(partition(convs, m.at, current))
		prev := m.agg(partition(convs, m.at, previous))
		out[m.name] = e.derive(m, cur, prev)
	}
	return out
}

// partition returns the conversations whose relevant timestamp falls in w.
// A nil timestamp excludes the conversation from both windows.
func partition(convs []entity.Conversation, at func(entity.Conversation) *time.Time, w window) []entity.Conversation {
	var in []entity.Conversation
	for _, c := range convs {
		if w.contains(at(c)) {
			in = append(in, c)
		}
	}
	return in
}

func (e *Engine) derive(m metricSpec, cur, prev float64) entity.TrendResult {
	change := cur - prev

	var pct float64
	switch {
	case prev == 0 && cur == 0:
		pct = 0
	case prev == 0:
		pct = 100
	default:
		pct = change / prev * 100
	}

	// The both-zero case is never significant; a jump from a zero baseline
	// is reported as a capped 100% change.
	significant := math.Abs(pct) > e.threshold && !(prev == 0 && cur == 0)

	effect := change
	if m.polarity == entity.PolarityLowerIsBetter {
		effect = -change
	}
	direction := entity.DirectionStable
	switch {
	case effect > 0:
		direction = entity.DirectionUp
	case effect < 0:
		direction = entity.DirectionDown
	}

	return entity.TrendResult{
		Current:        entity.MetricSample{Name: m.name, Value: cur},
		Previous:       entity.MetricSample{Name: m.name, Value: prev},
		AbsoluteChange: change,
		PercentChange:  pct,
		Significant:    significant,
		Direction:      direction,
	}
}

func flatResult(name entity.MetricName) entity.TrendResult {
	return entity.TrendResult{
		Current:   entity.MetricSample{Name: name},
		Previous:  entity.MetricSample{Name: name},
		Direction: entity.DirectionStable,
	}
}

func countAll(convs []entity.Conversation) float64 {
	return float64(len(convs))
}

func countStatus(status entity.ThreadStatus) func([]entity.Conversation) float64 {
	return func(convs []entity.Conversation) float64 {
		n := 0
		for _, c := range convs {
			if c.Thread.Status == status {
				n++
			}
		}
		return float64(n)
	}
}

// conversionRate is the share of conversations that reached the terminal
// won status, in percent. Zero for an empty window.
func conversionRate(convs []entity.Conversation) float64 {
	if len(convs) == 0 {
		return 0
	}
	won := 0
	for _, c := range convs {
		if c.Thread.Converted() {
			won++
		}
	}
	return float64(won) / float64(len(convs)) * 100
}

// averageResponseMinutes is the mean elapsed time, in minutes, between the
// earliest unanswered lead message and the next agent reply, over all
// qualifying pairs in the window's conversations. Zero when no pair has
// two valid timestamps.
func averageResponseMinutes(convs []entity.Conversation) float64 {
	var total float64
	pairs := 0

	for _, c := range convs {
		var pending *time.Time
		for _, msg := range c.Messages {
			if msg.Timestamp == nil {
				continue
			}
			switch msg.Sender {
			case entity.SenderRoleLead:
				if pending == nil {
					pending = msg.Timestamp
				}
			case entity.SenderRoleAgent:
				if pending != nil {
					if delta := msg.Timestamp.Sub(*pending); delta >= 0 {
						total += delta.Minutes()
						pairs++
					}
					pending = nil
				}
			}
		}
	}

	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}
