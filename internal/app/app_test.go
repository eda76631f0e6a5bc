package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingapi/internal/config"
	"tradingapi/internal/security"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:     config.EnvDev,
		LogLevel:        config.LogLevelInfo,
		InvokeTimeout:   2 * time.Second,
		OutboundTimeout: time.Second,
		BodyParsing:     "json",
		MaxBodyBytes:    1 << 20,
		DefaultHeaders:  map[string]string{"content-type": "application/json"},
		StageName:       "prod",
		ListenAddress:   ":0",
		APIKey:          "local-key",
	}
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewGatewayServesTradingRoutes(t *testing.T) {
	cfg := testConfig()
	require.False(t, NeedsAWS(cfg))

	gw, err := NewGateway(context.Background(), cfg, Clients{}, quietLogger())
	require.NoError(t, err)

	srv := httptest.NewServer(gw)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/prod/healthcheck", nil)
	req.Header.Set("apikey", "local-key")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "Ready to Trade", body["message"])

	tick := `{"Positions":[{"ticker":"AAPL","quantity":2,"purchaseprice":10}],"MarketSummary":[{"ticker":"AAPL","currentprice":12}]}`
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/prod/tick/t-1?apikey=local-key", strings.NewReader(tick))
	res2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusOK, res2.StatusCode)

	var out struct {
		Summary struct {
			UnrealizedPnL float64 `json:"unrealized_pnl"`
		} `json:"summary"`
		Decisions []any `json:"decisions"`
	}
	require.NoError(t, json.NewDecoder(res2.Body).Decode(&out))
	assert.Equal(t, 4.0, out.Summary.UnrealizedPnL)
	assert.NotNil(t, out.Decisions)

	res3, err := http.Get(srv.URL + "/prod/api/summary")
	require.NoError(t, err)
	defer res3.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res3.StatusCode)
}

func TestNewGatewayRequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""

	_, err := NewGateway(context.Background(), cfg, Clients{}, quietLogger())
	assert.ErrorIs(t, err, security.ErrNoAPIKey)
}

func TestNewExporterRequiresTable(t *testing.T) {
	_, err := NewExporter(testConfig(), Clients{}, quietLogger())
	assert.Error(t, err)
}
