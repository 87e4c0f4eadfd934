package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"ecosmart-monitor/internal/config"

	"go.uber.org/zap"
)

// Conditions are the current conditions at a location. Rainfall is the
// precipitation of the last hour in millimeters (0 when the provider omits
// it).
type Conditions struct {
	Temperature float64 // degrees Celsius
	Humidity    float64 // percent
	Rainfall    float64 // mm in the last hour
}

// Client queries the OpenWeatherMap current-weather endpoint.
type Client struct {
	cfg        *config.WeatherConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a weather client with a bounded request timeout.
func NewClient(cfg *config.WeatherConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// owm response subset; rain.1h is frequently absent.
type owmResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
}

// FetchCurrentConditions returns the current conditions at (lat, lon). Any
// transport, status or parse failure is returned as an error; the caller
// falls back to synthetic values.
func (c *Client) FetchCurrentConditions(ctx context.Context, lat, lon float64) (*Conditions, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("weather api key not configured")
	}

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("appid", c.cfg.APIKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build weather request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather provider returned status %d", resp.StatusCode)
	}

	var body owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}

	return &Conditions{
		Temperature: body.Main.Temp,
		Humidity:    body.Main.Humidity,
		Rainfall:    body.Rain.OneHour,
	}, nil
}
