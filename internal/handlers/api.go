// Package handlers implements the trading routes served behind the catch-all
// proxy resource.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"tradingapi/internal/router"
	"tradingapi/internal/security"
	"tradingapi/internal/trading"
)

type TickAnalyzer interface {
	Analyze(ctx context.Context, tickID string, tick trading.Tick) (trading.TickResult, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, positions []trading.Position, log []trading.LogEntry) (string, error)
}

type Deps struct {
	APIKey    string
	Analyzer  TickAnalyzer
	Positions trading.PositionStore
	Log       trading.TradeLog
	// Summarizer is optional; without it /api/summary answers 503.
	Summarizer Summarizer
	Logger     *slog.Logger
}

type API struct {
	d Deps
}

func NewAPI(d Deps) *API {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &API{d: d}
}

// Mount registers the routes on r.
func (a *API) Mount(r *router.Router) {
	r.Handle(http.MethodGet, "/healthcheck", a.Healthcheck)
	r.Handle(http.MethodPost, "/tick/{tickID}", a.Tick)
	r.Handle(http.MethodGet, "/api/summary", a.Summary)
	r.Handle(http.MethodGet, "/dashboard", a.Dashboard)
}

// authenticate accepts the key from the apikey header or, for browsers, the
// apikey query parameter.
func (a *API) authenticate(req *router.Request) bool {
	key := req.Header("apikey")
	if key == "" {
		key = req.Query("apikey")
	}
	return security.MatchAPIKey(a.d.APIKey, key)
}
