package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"tradingapi/internal/trading"
)

const recommendSystem = "You are a professional trading advisor. Respond ONLY with valid JSON in the specified format. No additional text."

var _ trading.Advisor = &Advisor{}

type recommendation struct {
	Action   string  `json:"action"`
	Ticker   string  `json:"ticker"`
	Quantity float64 `json:"quantity"`
}

type recommendReply struct {
	Recommendations []recommendation `json:"recommendations"`
	Reasoning       string           `json:"reasoning"`
}

func BuildRecommendPrompt(tick trading.Tick) string {
	history := tick.MarketHistory
	if history == nil {
		history = []any{}
	}
	return fmt.Sprintf(`
You are a professional trading advisor AI. Analyze the portfolio positions, current market prices, and recent market history.

CURRENT POSITIONS:
%s

MARKET SUMMARY:
%s

MARKET HISTORY:
%s

Provide your trading recommendations ONLY in the following JSON format (no other text):
{
  "recommendations": [
    {"action": "BUY", "ticker": "SYMBOL", "quantity": 1},
    {"action": "SELL", "ticker": "SYMBOL", "quantity": 1},
    {"action": "STAY", "ticker": "SYMBOL", "quantity": 0}
  ],
  "reasoning": "Brief reasoning for your choices"
}
`, indentJSON(tick.Positions), indentJSON(tick.MarketSummary), indentJSON(history))
}

// Recommend returns the model's decisions for the tick. When the model answers
// with no usable recommendation every held ticker gets STAY.
func (a *Advisor) Recommend(ctx context.Context, tick trading.Tick) ([]trading.Decision, error) {
	text, err := a.invoke(ctx, recommendSystem, BuildRecommendPrompt(tick), 1.0)
	if err != nil {
		return nil, err
	}

	reply, err := parseRecommendReply(text)
	if err != nil {
		return nil, err
	}
	a.opts.Logger.DebugContext(ctx, "advisor reasoning", slog.String("reasoning", reply.Reasoning))

	decisions := make([]trading.Decision, 0, len(reply.Recommendations))
	for _, r := range reply.Recommendations {
		action := strings.ToUpper(strings.TrimSpace(r.Action))
		switch action {
		case trading.ActionBuy, trading.ActionSell, trading.ActionStay:
		default:
			continue
		}
		if strings.TrimSpace(r.Ticker) == "" {
			continue
		}
		decisions = append(decisions, trading.Decision{Action: action, Ticker: r.Ticker, Quantity: r.Quantity})
	}

	if len(decisions) == 0 {
		for _, p := range tick.Positions {
			decisions = append(decisions, trading.Decision{Action: trading.ActionStay, Ticker: p.Ticker})
		}
	}
	return decisions, nil
}

func parseRecommendReply(text string) (recommendReply, error) {
	var reply recommendReply
	if err := json.Unmarshal([]byte(text), &reply); err == nil {
		return reply, nil
	}

	jsonStr := extractFirstJSONObject(text)
	if jsonStr == "" {
		return recommendReply{}, fmt.Errorf("model did not return JSON object: %s", truncate(text, 200))
	}
	if err := json.Unmarshal([]byte(jsonStr), &reply); err != nil {
		return recommendReply{}, fmt.Errorf("recommendation JSON parse failed: %w; raw=%s", err, truncate(jsonStr, 800))
	}
	return reply, nil
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}
