package notifier

import (
	"encoding/json"
	"fmt"

	"ecosmart-monitor/internal/config"
	"ecosmart-monitor/internal/metrics"
	"ecosmart-monitor/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// AlertPublisher pushes triggered alert events to an MQTT topic so
// dashboards can subscribe instead of polling the HTTP API. The channel is
// optional: without a configured broker the evaluator simply runs without
// one.
type AlertPublisher struct {
	client mqtt.Client
	cfg    *config.MQTTConfig
	logger *zap.Logger
}

// NewAlertPublisher connects to the configured broker.
func NewAlertPublisher(cfg *config.MQTTConfig, logger *zap.Logger) (*AlertPublisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker not configured")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &AlertPublisher{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// PublishAlert publishes the event to <alert_topic><plot_id>.
func (p *AlertPublisher) PublishAlert(event *models.AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	topic := p.cfg.AlertTopic + event.PlotID
	token := p.client.Publish(topic, p.cfg.QoS, false, payload)
	token.Wait()

	if token.Error() != nil {
		metrics.NotificationsFailedTotal.WithLabelValues("mqtt").Inc()
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	metrics.NotificationsSentTotal.WithLabelValues("mqtt").Inc()
	p.logger.Debug("Alert published",
		zap.String("topic", topic),
		zap.String("event_id", event.EventID),
	)
	return nil
}

// Close disconnects from the broker.
func (p *AlertPublisher) Close() {
	p.client.Disconnect(250)
}
