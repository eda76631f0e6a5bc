package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"tradingapi/internal/proxy"
	"tradingapi/internal/router"
)

// summaryWindow is how many recent log entries are handed to the summarizer.
const summaryWindow = 5

// Summary serves the portfolio summary the dashboard fetches. It is not behind
// the API key.
func (a *API) Summary(ctx context.Context, req *router.Request) (proxy.Result, error) {
	if a.d.Summarizer == nil {
		return failResp(http.StatusServiceUnavailable, "Summary unavailable")
	}

	positions, err := a.d.Positions.LoadPositions(ctx)
	if err != nil {
		a.d.Logger.ErrorContext(ctx, "load positions failed", slog.String("error", err.Error()))
		return failResp(http.StatusInternalServerError, "Summary generation failed")
	}
	entries, err := a.d.Log.Recent(ctx, summaryWindow)
	if err != nil {
		a.d.Logger.ErrorContext(ctx, "load trading log failed", slog.String("error", err.Error()))
		return failResp(http.StatusInternalServerError, "Summary generation failed")
	}

	text, err := a.d.Summarizer.Summarize(ctx, positions, entries)
	if err != nil {
		if ctx.Err() != nil {
			return proxy.Result{}, err
		}
		a.d.Logger.ErrorContext(ctx, "summary generation failed", slog.String("error", err.Error()))
		return failResp(http.StatusInternalServerError, "Summary generation failed")
	}

	return jsonResp(http.StatusOK, map[string]any{
		"result":  "success",
		"summary": text,
	})
}
