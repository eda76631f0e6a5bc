package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tradingapi/internal/proxy"
	"tradingapi/internal/router"
	"tradingapi/internal/trading"
)

func (a *API) Tick(ctx context.Context, req *router.Request) (proxy.Result, error) {
	if !a.authenticate(req) {
		return unauthorized()
	}

	tickID := strings.TrimSpace(req.Param("tickID"))
	log := a.d.Logger.With(slog.String("tick_id", tickID))

	data, ok := decodeJSON(req)
	if !ok {
		return failResp(http.StatusBadRequest, "Invalid JSON")
	}

	tick, err := trading.ParseTick(data)
	if err != nil {
		msg := "Invalid payload"
		var verr *trading.ValidationError
		if errors.As(err, &verr) {
			msg = verr.Message
		}
		log.InfoContext(ctx, "tick rejected", slog.String("reason", msg))
		return failResp(http.StatusBadRequest, msg)
	}

	res, err := a.d.Analyzer.Analyze(ctx, tickID, tick)
	if err != nil {
		// deadline and cancellation belong to the invoker
		if ctx.Err() != nil {
			return proxy.Result{}, err
		}
		log.ErrorContext(ctx, "tick processing failed", slog.String("error", err.Error()))
		return failResp(http.StatusInternalServerError, "Processing error")
	}
	return jsonResp(http.StatusOK, res)
}

// decodeJSON returns the request body as decoded JSON, whatever body parsing
// mode produced the record.
func decodeJSON(req *router.Request) (any, bool) {
	switch b := req.Body().(type) {
	case map[string]any, []any:
		return b, true
	}
	var data any
	if err := json.Unmarshal(req.RawBody(), &data); err != nil {
		return nil, false
	}
	return data, true
}
