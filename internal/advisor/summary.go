package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradingapi/internal/trading"
)

const (
	summarySystem   = "You are a world-class financial risk analyst who provides professional, concise summaries."
	summaryAttempts = 3
	// SummaryLogEntries is how many of the newest trading log entries go into the prompt.
	SummaryLogEntries = 5
)

func BuildSummaryPrompt(positions []trading.Position, log []trading.LogEntry) string {
	if len(log) > SummaryLogEntries {
		log = log[len(log)-SummaryLogEntries:]
	}
	if positions == nil {
		positions = []trading.Position{}
	}
	if log == nil {
		log = []trading.LogEntry{}
	}
	return fmt.Sprintf(`
Analyze the following portfolio data and provide a concise, professional summary for an executive audience.

Current Portfolio Positions:
%s

Recent Trading Log (last %d entries):
%s

Task:
1. Provide a single paragraph Executive Summary (100 words max) focusing on overall performance and strategy evident in the recent trades.
2. Provide a single paragraph Risk Assessment (100 words max) on current diversification (or lack thereof) and potential market exposure.

Format your response as two plain-text paragraphs separated by a newline. Do not use markdown.
`, indentJSON(positions), SummaryLogEntries, indentJSON(log))
}

// Summarize returns a two paragraph summary of the portfolio. Model calls are
// retried up to three times, waiting 1s then 2s between attempts.
func (a *Advisor) Summarize(ctx context.Context, positions []trading.Position, log []trading.LogEntry) (string, error) {
	prompt := BuildSummaryPrompt(positions, log)

	if c := a.opts.Cache; c != nil {
		text, ok, err := c.Get(ctx, prompt)
		if err != nil {
			a.opts.Logger.WarnContext(ctx, "summary cache read failed", slog.String("error", err.Error()))
		}
		if ok {
			return text, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt < summaryAttempts; attempt++ {
		text, err := a.invoke(ctx, summarySystem, prompt, 0.5)
		if err == nil {
			if text == "" {
				return "", errors.New("model returned an empty summary")
			}
			a.remember(ctx, prompt, text)
			return text, nil
		}
		lastErr = err
		a.opts.Logger.WarnContext(ctx, "summary attempt failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)

		if attempt < summaryAttempts-1 {
			if err := a.sleep(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("summary failed after %d attempts: %w", summaryAttempts, lastErr)
}

func (a *Advisor) remember(ctx context.Context, prompt, text string) {
	if a.opts.Cache == nil {
		return
	}
	if err := a.opts.Cache.Put(ctx, prompt, text); err != nil {
		a.opts.Logger.WarnContext(ctx, "summary cache write failed", slog.String("error", err.Error()))
	}
}
