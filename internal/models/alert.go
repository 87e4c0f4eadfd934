package models

import (
	"time"
)

// Comparison operators supported by alert rules. Anything else never matches.
const (
	OpGreater      = ">"
	OpLess         = "<"
	OpGreaterEqual = ">="
	OpLessEqual    = "<="
	OpEqual        = "=="
)

// AlertRule is a threshold rule against one sensor parameter (corresponds to
// the alert_rules table). Rules are managed elsewhere; the core only reads
// active ones.
type AlertRule struct {
	ID        int64   `json:"id" db:"id"`
	Parameter string  `json:"parameter" db:"parameter"`
	Threshold float64 `json:"threshold" db:"threshold"`
	Operator  string  `json:"operator" db:"operator"`
	Active    bool    `json:"active" db:"active"`
}

// Matches applies the rule's operator to value. Unsupported operators
// never match.
func (a *AlertRule) Matches(value float64) bool {
	switch a.Operator {
	case OpGreater:
		return value > a.Threshold
	case OpLess:
		return value < a.Threshold
	case OpGreaterEqual:
		return value >= a.Threshold
	case OpLessEqual:
		return value <= a.Threshold
	case OpEqual:
		return value == a.Threshold
	default:
		return false
	}
}

// AlertEvent is one recorded rule trigger (corresponds to the alert_events
// table). The table doubles as the cooldown ledger: before notifying, the
// evaluator checks the most recent event for the same (rule, owner) pair.
type AlertEvent struct {
	EventID      string    `json:"event_id" db:"event_id"`
	RuleID       int64     `json:"rule_id" db:"rule_id"`
	OwnerID      int64     `json:"owner_id" db:"owner_id"`
	AgronomistID *int64    `json:"agronomist_id,omitempty" db:"agronomist_id"`
	PlotID       string    `json:"plot_id" db:"plot_id"`
	SensorValue  float64   `json:"sensor_value" db:"sensor_value"`
	TriggeredAt  time.Time `json:"triggered_at" db:"triggered_at"`
}

// StatSnapshot summarizes the recent history of one parameter for a plot.
// It is recomputed on demand from stored readings and never persisted.
// Pointer fields are nil when there is no data at all.
type StatSnapshot struct {
	PlotID    string   `json:"plot_id"`
	Parameter string   `json:"parameter"`
	Last      *float64 `json:"last"`
	Max       *float64 `json:"max"`
	Min       *float64 `json:"min"`
	Mean      *float64 `json:"mean"`
	StdDev    *float64 `json:"std_dev"`
	Anomaly   int      `json:"anomaly"`
}
