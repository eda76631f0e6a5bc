package trading

import (
	"context"
	"log/slog"
	"math"
	"time"
)

type AnalyzerDeps struct {
	Positions PositionStore
	Log       TradeLog
	// Advisor, Trades and Notifier are optional; nil disables the step.
	Advisor  Advisor
	Trades   TradeExecutor
	Notifier Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// Analyzer evaluates ticks. It keeps no per-tick state, so one instance serves
// concurrent invocations.
type Analyzer struct {
	d AnalyzerDeps
}

func NewAnalyzer(d AnalyzerDeps) *Analyzer {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Analyzer{d: d}
}

// Analyze computes unrealized PnL for the tick, records it in the trading log,
// asks the advisor for decisions and forwards them downstream.
//
// Storage, advisor and downstream failures are logged and do not fail the tick;
// only a cancelled or expired context does.
func (a *Analyzer) Analyze(ctx context.Context, tickID string, tick Tick) (TickResult, error) {
	log := a.d.Logger.With(slog.String("tick_id", tickID))
	prices := tick.Prices()

	var pnl float64
	evaluated := 0
	updated := make([]Position, 0, len(tick.Positions))
	for _, p := range tick.Positions {
		price, ok := prices[p.Ticker]
		if !ok {
			continue
		}
		gain := (price - p.PurchasePrice) * p.Quantity
		pnl += gain
		evaluated++

		cp, rounded := price, round2(gain)
		updated = append(updated, Position{
			Ticker:        p.Ticker,
			Quantity:      p.Quantity,
			PurchasePrice: p.PurchasePrice,
			CurrentPrice:  &cp,
			UnrealizedPnL: &rounded,
		})
	}

	if len(updated) > 0 {
		if err := a.d.Positions.SavePositions(ctx, updated); err != nil {
			log.WarnContext(ctx, "save positions failed", slog.String("error", err.Error()))
		}
	}

	now := a.d.Now().UTC()
	entries := make([]LogEntry, 0, len(tick.Positions))
	for _, p := range tick.Positions {
		entries = append(entries, LogEntry{
			Date:       now.Format("2006-01-02"),
			Ticker:     p.Ticker,
			Action:     ActionTickUpdate,
			Quantity:   p.Quantity,
			Price:      priceFor(prices, p.Ticker),
			Note:       "Tick received",
			RecordedAt: now,
		})
	}
	a.appendLog(ctx, log, entries)

	decisions := a.decide(ctx, log, tickID, tick, prices, now)

	if err := ctx.Err(); err != nil {
		return TickResult{}, err
	}

	return TickResult{
		Result: "success",
		Summary: TickSummary{
			PositionsEvaluated: evaluated,
			UnrealizedPnL:      round2(pnl),
		},
		Decisions: decisions,
	}, nil
}

func (a *Analyzer) decide(ctx context.Context, log *slog.Logger, tickID string, tick Tick, prices map[string]float64, now time.Time) []Decision {
	decisions := []Decision{}
	if a.d.Advisor == nil {
		return decisions
	}

	recs, err := a.d.Advisor.Recommend(ctx, tick)
	if err != nil {
		log.ErrorContext(ctx, "advisor failed", slog.String("error", err.Error()))
		return decisions
	}
	decisions = append(decisions, recs...)

	entries := make([]LogEntry, 0, len(recs))
	for _, d := range recs {
		entries = append(entries, LogEntry{
			Date:       now.Format("2006-01-02"),
			Ticker:     d.Ticker,
			Action:     d.Action,
			Quantity:   d.Quantity,
			Price:      priceFor(prices, d.Ticker),
			Note:       "AI recommendation",
			RecordedAt: now,
		})
	}
	a.appendLog(ctx, log, entries)

	if len(recs) == 0 {
		return decisions
	}

	if a.d.Notifier != nil {
		if err := a.d.Notifier.NotifyDecisions(ctx, tickID, recs); err != nil {
			log.WarnContext(ctx, "notify decisions failed", slog.String("error", err.Error()))
		}
	}

	if a.d.Trades != nil {
		positions, ok, err := a.d.Trades.SubmitTrades(ctx, tickID, recs)
		switch {
		case err != nil:
			log.ErrorContext(ctx, "submit trades failed", slog.String("error", err.Error()))
		case ok:
			if err := a.d.Positions.SavePositions(ctx, positions); err != nil {
				log.WarnContext(ctx, "save returned positions failed", slog.String("error", err.Error()))
			}
		}
	}

	return decisions
}

func (a *Analyzer) appendLog(ctx context.Context, log *slog.Logger, entries []LogEntry) {
	if len(entries) == 0 {
		return
	}
	if err := a.d.Log.Append(ctx, entries...); err != nil {
		log.WarnContext(ctx, "append trading log failed", slog.String("error", err.Error()))
	}
}

func priceFor(prices map[string]float64, ticker string) *float64 {
	p, ok := prices[ticker]
	if !ok {
		return nil
	}
	return &p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
