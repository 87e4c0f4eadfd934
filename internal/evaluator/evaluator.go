package evaluator

import (
	"context"
	"time"

	"ecosmart-monitor/internal/metrics"
	"ecosmart-monitor/internal/models"
	"ecosmart-monitor/internal/notifier"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlotGetter resolves plot stakeholders (implemented by
// repository.PlotRepository).
type PlotGetter interface {
	GetPlot(ctx context.Context, plotID string) (*models.Plot, error)
}

// RuleLister loads active alert rules (implemented by
// repository.RuleRepository).
type RuleLister interface {
	ListActive(ctx context.Context) ([]models.AlertRule, error)
}

// EventLedger records alert events and answers cooldown lookups
// (implemented by repository.AlertEventRepository).
type EventLedger interface {
	Create(ctx context.Context, event *models.AlertEvent) error
	LastTriggeredAt(ctx context.Context, ruleID, ownerID int64) (*time.Time, error)
}

// AddressBook resolves notification addresses (implemented by
// repository.UserRepository).
type AddressBook interface {
	GetNotificationAddress(ctx context.Context, userID int64) (string, error)
}

// AlertPublisher pushes events to a broadcast channel (implemented by
// notifier.AlertPublisher). Optional.
type AlertPublisher interface {
	PublishAlert(event *models.AlertEvent) error
}

// Evaluator checks one fresh reading against all active rules, enforces the
// per-(rule, owner) cooldown window and dispatches notifications. Failures
// are scoped to a single rule or a single delivery attempt and never abort
// the rest of the evaluation.
type Evaluator struct {
	plots      PlotGetter
	rules      RuleLister
	events     EventLedger
	addresses  AddressBook
	dispatcher notifier.Dispatcher
	publisher  AlertPublisher // may be nil
	logger     *zap.Logger
	cooldown   time.Duration
}

// New creates an evaluator. publisher may be nil when no MQTT broker is
// configured.
func New(
	plots PlotGetter,
	rules RuleLister,
	events EventLedger,
	addresses AddressBook,
	dispatcher notifier.Dispatcher,
	publisher AlertPublisher,
	logger *zap.Logger,
	cooldown time.Duration,
) *Evaluator {
	return &Evaluator{
		plots:      plots,
		rules:      rules,
		events:     events,
		addresses:  addresses,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		cooldown:   cooldown,
	}
}

// Evaluate reports whether any active rule fired for the reading. Unknown
// plots fail closed: nothing fires, a warning is logged.
func (e *Evaluator) Evaluate(ctx context.Context, plotID string, reading *models.SensorReading) bool {
	plot, err := e.plots.GetPlot(ctx, plotID)
	if err != nil {
		e.logger.Warn("Skipping alert evaluation, plot lookup failed",
			zap.String("plot_id", plotID),
			zap.Error(err),
		)
		return false
	}

	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		e.logger.Error("Failed to load active rules",
			zap.String("plot_id", plotID),
			zap.Error(err),
		)
		return false
	}

	triggered := false
	for i := range rules {
		if e.evaluateRule(ctx, plot, &rules[i], reading) {
			triggered = true
		}
	}

	return triggered
}

// evaluateRule handles one rule; a true return means an event was recorded.
func (e *Evaluator) evaluateRule(ctx context.Context, plot *models.Plot, rule *models.AlertRule, reading *models.SensorReading) bool {
	value, ok := reading.Value(rule.Parameter)
	if !ok {
		e.logger.Debug("Rule parameter not present in reading, skipping",
			zap.Int64("rule_id", rule.ID),
			zap.String("parameter", rule.Parameter),
		)
		return false
	}

	if !rule.Matches(value) {
		return false
	}

	last, err := e.events.LastTriggeredAt(ctx, rule.ID, plot.OwnerID)
	if err != nil {
		e.logger.Error("Cooldown lookup failed, skipping rule",
			zap.Int64("rule_id", rule.ID),
			zap.Error(err),
		)
		return false
	}
	if last != nil && time.Since(*last) < e.cooldown {
		e.logger.Debug("Rule already triggered recently, suppressing",
			zap.Int64("rule_id", rule.ID),
			zap.Time("last_triggered_at", *last),
		)
		metrics.AlertsSuppressedTotal.Inc()
		return false
	}

	now := time.Now()
	event := &models.AlertEvent{
		EventID:      uuid.New().String(),
		RuleID:       rule.ID,
		OwnerID:      plot.OwnerID,
		AgronomistID: plot.AgronomistID,
		PlotID:       plot.PlotID,
		SensorValue:  value,
		TriggeredAt:  now,
	}

	// No rollback on failure: the event ledger is best-effort bookkeeping
	// and a write error must not swallow the notification.
	if err := e.events.Create(ctx, event); err != nil {
		e.logger.Error("Failed to record alert event",
			zap.Int64("rule_id", rule.ID),
			zap.String("plot_id", plot.PlotID),
			zap.Error(err),
		)
	}

	metrics.AlertsTriggeredTotal.WithLabelValues(rule.Parameter).Inc()
	e.logger.Info("Alert triggered",
		zap.Int64("rule_id", rule.ID),
		zap.String("plot_id", plot.PlotID),
		zap.String("parameter", rule.Parameter),
		zap.Float64("value", value),
	)

	subject, body := notifier.RenderAlertMessage(plot.PlotID, rule, value, now)
	e.notify(ctx, plot.OwnerID, subject, body)
	if plot.AgronomistID != nil {
		e.notify(ctx, *plot.AgronomistID, subject, "Alert for your assigned plot.\n\n"+body)
	}

	if e.publisher != nil {
		if err := e.publisher.PublishAlert(event); err != nil {
			e.logger.Warn("Failed to publish alert event",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
		}
	}

	return true
}

// notify attempts one delivery; a missing address or transport failure is
// logged and does not affect the rest of the pipeline.
func (e *Evaluator) notify(ctx context.Context, userID int64, subject, body string) {
	address, err := e.addresses.GetNotificationAddress(ctx, userID)
	if err != nil {
		e.logger.Warn("Address lookup failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return
	}
	if address == "" {
		e.logger.Warn("No notification address on file, skipping delivery",
			zap.Int64("user_id", userID),
		)
		return
	}

	if err := e.dispatcher.Send(ctx, address, subject, body); err != nil {
		e.logger.Warn("Alert delivery failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}
}
