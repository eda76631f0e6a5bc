package handlers

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"log/slog"
	"net/http"
	"slices"

	"tradingapi/internal/proxy"
	"tradingapi/internal/router"
	"tradingapi/internal/trading"
)

const dashboardLogLimit = 100

//go:embed templates/dashboard.html
var dashboardHTML string

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"money": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return formatMoney(*v)
	},
}).Parse(dashboardHTML))

type dashboardView struct {
	Positions []trading.Position
	// Log is newest first.
	Log []trading.LogEntry
}

func (a *API) Dashboard(ctx context.Context, req *router.Request) (proxy.Result, error) {
	positions, err := a.d.Positions.LoadPositions(ctx)
	if err != nil {
		a.d.Logger.ErrorContext(ctx, "load positions failed", slog.String("error", err.Error()))
		return textResp(http.StatusInternalServerError, "Error loading dashboard")
	}
	entries, err := a.d.Log.Recent(ctx, dashboardLogLimit)
	if err != nil {
		a.d.Logger.ErrorContext(ctx, "load trading log failed", slog.String("error", err.Error()))
		return textResp(http.StatusInternalServerError, "Error loading dashboard")
	}
	slices.Reverse(entries)

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, dashboardView{Positions: positions, Log: entries}); err != nil {
		a.d.Logger.ErrorContext(ctx, "render dashboard failed", slog.String("error", err.Error()))
		return textResp(http.StatusInternalServerError, "Error loading dashboard")
	}
	return htmlResp(http.StatusOK, buf.Bytes())
}
