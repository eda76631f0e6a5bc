package handlers

import (
	"net/http"
	"strconv"

	"tradingapi/internal/proxy"
)

func jsonResp(status int, v any) (proxy.Result, error) {
	return proxy.Result{
		StatusCode: status,
		Headers: map[string]string{
			"content-type":                "application/json",
			"access-control-allow-origin": "*",
		},
		Body: v,
	}, nil
}

func failResp(status int, msg string) (proxy.Result, error) {
	return jsonResp(status, map[string]any{
		"result":  "failure",
		"message": msg,
	})
}

func htmlResp(status int, body []byte) (proxy.Result, error) {
	return proxy.Result{
		StatusCode: status,
		Headers: map[string]string{
			"content-type": "text/html; charset=utf-8",
		},
		Body: body,
	}, nil
}

func textResp(status int, msg string) (proxy.Result, error) {
	return proxy.Result{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "text/plain; charset=utf-8"},
		Body:       msg,
	}, nil
}

func unauthorized() (proxy.Result, error) {
	return failResp(http.StatusUnauthorized, "Unauthorized")
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
