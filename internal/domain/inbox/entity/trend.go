package entity

import "time"

// MetricName identifies one tracked dashboard metric
type MetricName string

const (
	MetricTotalConversations  MetricName = "totalConversations"
	MetricActiveConversations MetricName = "activeConversations"
	MetricConversionRate      MetricName = "conversionRate"
	MetricAverageResponseTime MetricName = "averageResponseTime"
	MetricNewConversations    MetricName = "newConversations"
)

// Direction is the qualitative movement of a metric between windows
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// Polarity declares whether an increase in a metric is an improvement.
// It is an explicit per-metric property, never inferred from the name.
type Polarity string

const (
	PolarityHigherIsBetter Polarity = "higher_is_better"
	PolarityLowerIsBetter  Polarity = "lower_is_better"
)

// MetricSample is a named numeric aggregate over one reporting window
type MetricSample struct {
	Name  MetricName `json:"name"`
	Value float64    `json:"value"`
}

// TrendResult compares one metric across the current window and the
// immediately preceding window of equal length. Recomputed on every
// call, never persisted.
type TrendResult struct {
	Current        MetricSample `json:"current"`
	Previous       MetricSample `json:"previous"`
	AbsoluteChange float64      `json:"absolute_change"`
	PercentChange  float64      `json:"percent_change"`
	Significant    bool         `json:"significant"`
	Direction      Direction    `json:"direction"`
}

// DateRange is an inclusive [From, To] reporting window
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Duration returns the window length. Negative when the range is inverted.
func (r DateRange) Duration() time.Duration {
	return r.To.Sub(r.From)
}

// DayRange expands two calendar dates to a full-day inclusive range:
// midnight of from through 23:59:59 of to.
func DayRange(from, to time.Time) DateRange {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location()).
		Add(24*time.Hour - time.Second)
	return DateRange{From: f, To: t}
}
