package handlers

import (
	"context"
	"net/http"

	"tradingapi/internal/proxy"
	"tradingapi/internal/router"
)

func (a *API) Healthcheck(ctx context.Context, req *router.Request) (proxy.Result, error) {
	if !a.authenticate(req) {
		return unauthorized()
	}
	return jsonResp(http.StatusOK, map[string]any{
		"result":  "success",
		"message": "Ready to Trade",
	})
}
