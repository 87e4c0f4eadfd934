package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"ecosmart-monitor/internal/config"
	"ecosmart-monitor/internal/metrics"
	"ecosmart-monitor/internal/models"

	"go.uber.org/zap"
)

// Dispatcher delivers one alert message to one address. Implementations are
// best-effort: the evaluator logs a failed delivery and moves on.
type Dispatcher interface {
	Send(ctx context.Context, address, subject, body string) error
}

// SMTPDispatcher sends alert emails through a plain SMTP relay.
type SMTPDispatcher struct {
	cfg    *config.SMTPConfig
	logger *zap.Logger
}

// NewSMTPDispatcher creates an SMTP dispatcher.
func NewSMTPDispatcher(cfg *config.SMTPConfig, logger *zap.Logger) *SMTPDispatcher {
	return &SMTPDispatcher{
		cfg:    cfg,
		logger: logger,
	}
}

// Send delivers one email. Returns an error on transport failure; the
// caller decides whether to absorb it.
func (d *SMTPDispatcher) Send(ctx context.Context, address, subject, body string) error {
	if d.cfg.Host == "" || d.cfg.From == "" {
		return fmt.Errorf("smtp is not configured")
	}

	msg := strings.Join([]string{
		"From: " + d.cfg.From,
		"To: " + address,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	auth := smtp.PlainAuth("", d.cfg.From, d.cfg.Password, d.cfg.Host)

	if err := smtp.SendMail(addr, auth, d.cfg.From, []string{address}, []byte(msg)); err != nil {
		metrics.NotificationsFailedTotal.WithLabelValues("email").Inc()
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	metrics.NotificationsSentTotal.WithLabelValues("email").Inc()
	d.logger.Info("Alert email sent",
		zap.String("to", address),
		zap.String("subject", subject),
	)
	return nil
}

// RenderAlertMessage builds the notification subject and body for a
// triggered rule. The body mirrors the format farmers already receive from
// the legacy system.
func RenderAlertMessage(plotID string, rule *models.AlertRule, value float64, ts time.Time) (subject, body string) {
	subject = fmt.Sprintf("EcoSmart alert - plot %s", plotID)
	body = fmt.Sprintf(
		"An unusual condition was detected on plot %s.\n\n"+
			"Alert type: %s\n"+
			"Condition: %g %s %g\n"+
			"Date and time: %s\n\n"+
			"Please review the EcoSmart dashboard.",
		plotID,
		strings.ReplaceAll(rule.Parameter, "_", " "),
		value,
		rule.Operator,
		rule.Threshold,
		ts.Format("2006-01-02 15:04:05"),
	)
	return subject, body
}
