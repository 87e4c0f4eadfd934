package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"ecosmart-monitor/internal/config"
	"ecosmart-monitor/internal/models"
)

func TestSend_NotConfigured(t *testing.T) {
	d := NewSMTPDispatcher(&config.SMTPConfig{}, zap.NewNop())

	err := d.Send(context.Background(), "farmer@example.com", "subject", "body")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestRenderAlertMessage(t *testing.T) {
	rule := &models.AlertRule{
		ID:        3,
		Parameter: models.ParamTemperature,
		Threshold: 25,
		Operator:  ">",
		Active:    true,
	}
	ts := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)

	subject, body := RenderAlertMessage("AGRO-9-2", rule, 26, ts)

	assert.Equal(t, "EcoSmart alert - plot AGRO-9-2", subject)
	assert.Contains(t, body, "plot AGRO-9-2")
	assert.Contains(t, body, "temperatura ambiente")
	assert.Contains(t, body, "26 > 25")
	assert.Contains(t, body, "2025-06-01 14:30:00")
}

func TestNewAlertPublisher_NoBroker(t *testing.T) {
	_, err := NewAlertPublisher(&config.MQTTConfig{}, zap.NewNop())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "broker not configured")
}
