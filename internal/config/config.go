package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQTTConfig MQTT broker settings for alert publishing. Disabled when
// Broker is empty.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	QoS        byte   `yaml:"qos"`
	AlertTopic string `yaml:"alert_topic"` // plot id is appended
}

// SMTPConfig outgoing mail settings for alert notifications. Disabled when
// Host is empty.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Password string `yaml:"password"`
}

// WeatherConfig OpenWeatherMap settings. Without an API key the generator
// always falls back to synthetic values.
type WeatherConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// MonitorConfig policy knobs of the monitoring core. The defaults reproduce
// the legacy system's behavior; they are configuration rather than hard
// constants because the original values look like tuning placeholders.
type MonitorConfig struct {
	// Generation
	GenerationInterval time.Duration `yaml:"generation_interval"` // delay between worker cycles

	// Statistics / anomaly detection
	StatsWindow       int     `yaml:"stats_window"`        // readings per snapshot
	AnomalyMinSamples int     `yaml:"anomaly_min_samples"` // baseline readings required
	AnomalyThreshold  float64 `yaml:"anomaly_threshold"`   // standard deviations

	// Alerting
	AlertCooldown time.Duration `yaml:"alert_cooldown"` // per (rule, owner) dedup window

	// Realtime cache
	Cache struct {
		KeyPrefix string `yaml:"key_prefix"`
		Suffix    string `yaml:"suffix"`
		TTL       int    `yaml:"ttl"` // seconds
	} `yaml:"cache"`
}

// Config service configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Weather  WeatherConfig  `yaml:"weather"`
	Monitor  MonitorConfig  `yaml:"monitor"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load builds the configuration from defaults, an optional YAML file
// (CONFIG_FILE) and environment variable overrides, in that order.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "ecosmart"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Password = ""
	cfg.Redis.DB = 0

	cfg.MQTT.ClientID = "ecosmart-monitor"
	cfg.MQTT.QoS = 1
	cfg.MQTT.AlertTopic = "ecosmart/alerts/"

	cfg.SMTP.Port = 587

	cfg.Weather.BaseURL = "https://api.openweathermap.org/data/2.5/weather"
	cfg.Weather.Timeout = 10 * time.Second

	cfg.Monitor.GenerationInterval = 30 * time.Second
	cfg.Monitor.StatsWindow = 30
	cfg.Monitor.AnomalyMinSamples = 5
	cfg.Monitor.AnomalyThreshold = 2.0
	cfg.Monitor.AlertCooldown = 15 * time.Minute
	cfg.Monitor.Cache.KeyPrefix = "ecosmart:plot:"
	cfg.Monitor.Cache.Suffix = ":latest"
	cfg.Monitor.Cache.TTL = 120

	cfg.HTTP.Addr = ":8080"

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	return cfg
}

func applyEnv(cfg *Config) {
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	if port := os.Getenv("DB_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &cfg.Database.Port)
	}
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", cfg.MQTT.Password)

	cfg.SMTP.Host = getEnv("SMTP_HOST", cfg.SMTP.Host)
	if port := os.Getenv("SMTP_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &cfg.SMTP.Port)
	}
	cfg.SMTP.From = getEnv("SMTP_FROM", cfg.SMTP.From)
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", cfg.SMTP.Password)

	cfg.Weather.APIKey = getEnv("OPENWEATHER_API_KEY", cfg.Weather.APIKey)
	cfg.Weather.BaseURL = getEnv("OPENWEATHER_BASE_URL", cfg.Weather.BaseURL)

	if interval := os.Getenv("GENERATION_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Monitor.GenerationInterval = d
		}
	}
	if cooldown := os.Getenv("ALERT_COOLDOWN"); cooldown != "" {
		if d, err := time.ParseDuration(cooldown); err == nil {
			cfg.Monitor.AlertCooldown = d
		}
	}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
