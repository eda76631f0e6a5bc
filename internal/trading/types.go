// Package trading holds the tick processing logic behind the trading routes.
package trading

import (
	"context"
	"time"
)

type Position struct {
	Ticker        string   `json:"ticker"`
	Quantity      float64  `json:"quantity"`
	PurchasePrice float64  `json:"purchase_price"`
	CurrentPrice  *float64 `json:"current_price,omitempty"`
	UnrealizedPnL *float64 `json:"unrealized_pnl,omitempty"`
}

type Quote struct {
	Ticker       string  `json:"ticker"`
	CurrentPrice float64 `json:"current_price"`
}

// Tick is a validated tick payload.
type Tick struct {
	Positions     []Position
	MarketSummary []Quote
	MarketHistory []any
}

// Prices indexes the market summary by ticker.
func (t Tick) Prices() map[string]float64 {
	out := make(map[string]float64, len(t.MarketSummary))
	for _, q := range t.MarketSummary {
		out[q.Ticker] = q.CurrentPrice
	}
	return out
}

const (
	ActionBuy        = "BUY"
	ActionSell       = "SELL"
	ActionStay       = "STAY"
	ActionTickUpdate = "TICK_UPDATE"
)

type Decision struct {
	Action   string  `json:"action"`
	Ticker   string  `json:"ticker"`
	Quantity float64 `json:"quantity"`
}

// LogEntry is one line of the trading log. Price is nil when no market price was known.
type LogEntry struct {
	Date       string    `json:"date"`
	Ticker     string    `json:"ticker"`
	Action     string    `json:"action"`
	Quantity   float64   `json:"quantity"`
	Price      *float64  `json:"price"`
	Note       string    `json:"note"`
	RecordedAt time.Time `json:"recorded_at"`
}

type TickSummary struct {
	PositionsEvaluated int     `json:"positions_evaluated"`
	UnrealizedPnL      float64 `json:"unrealized_pnl"`
}

type TickResult struct {
	Result    string      `json:"result"`
	Summary   TickSummary `json:"summary"`
	Decisions []Decision  `json:"decisions"`
}

type PositionStore interface {
	LoadPositions(ctx context.Context) ([]Position, error)
	SavePositions(ctx context.Context, positions []Position) error
}

type TradeLog interface {
	Append(ctx context.Context, entries ...LogEntry) error
	// Recent returns up to limit of the newest entries, oldest first.
	Recent(ctx context.Context, limit int) ([]LogEntry, error)
}

type Advisor interface {
	Recommend(ctx context.Context, tick Tick) ([]Decision, error)
}

// TradeExecutor submits decisions downstream. ok reports whether the downstream
// service returned an updated position list.
type TradeExecutor interface {
	SubmitTrades(ctx context.Context, tickID string, trades []Decision) (positions []Position, ok bool, err error)
}

type Notifier interface {
	NotifyDecisions(ctx context.Context, tickID string, decisions []Decision) error
}
