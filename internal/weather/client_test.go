package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecosmart-monitor/internal/config"
)

func newTestClient(serverURL string) *Client {
	cfg := &config.WeatherConfig{
		APIKey:  "test-key",
		BaseURL: serverURL,
		Timeout: 2 * time.Second,
	}
	return NewClient(cfg, zap.NewNop())
}

func TestFetchCurrentConditions_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		w.Write([]byte(`{"main":{"temp":21.4,"humidity":63},"rain":{"1h":2.5}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	cond, err := client.FetchCurrentConditions(context.Background(), -33.45, -70.67)

	require.NoError(t, err)
	assert.Equal(t, 21.4, cond.Temperature)
	assert.Equal(t, 63.0, cond.Humidity)
	assert.Equal(t, 2.5, cond.Rainfall)
}

func TestFetchCurrentConditions_NoRainField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"main":{"temp":28.0,"humidity":40}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	cond, err := client.FetchCurrentConditions(context.Background(), -33.45, -70.67)

	require.NoError(t, err)
	assert.Equal(t, 0.0, cond.Rainfall)
}

func TestFetchCurrentConditions_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchCurrentConditions(context.Background(), -33.45, -70.67)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestFetchCurrentConditions_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchCurrentConditions(context.Background(), -33.45, -70.67)

	assert.Error(t, err)
}

func TestFetchCurrentConditions_MissingAPIKey(t *testing.T) {
	cfg := &config.WeatherConfig{BaseURL: "http://localhost", Timeout: time.Second}
	client := NewClient(cfg, zap.NewNop())

	_, err := client.FetchCurrentConditions(context.Background(), 0, 0)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}
