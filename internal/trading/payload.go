package trading

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidationError carries the caller-facing reason a tick payload was rejected.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

var (
	positionKeys      = []string{"Positions", "positions"}
	marketSummaryKeys = []string{"MarketSummary", "Market_Summary", "marketSummary"}
	purchasePriceKeys = []string{"purchaseprice", "purchase_price"}
	currentPriceKeys  = []string{"currentprice", "current_price"}
)

// ParseTick validates a decoded JSON body and returns the typed tick.
// Field names are accepted in the spellings the upstream feed uses.
func ParseTick(body any) (Tick, error) {
	data, ok := body.(map[string]any)
	if !ok {
		return Tick{}, invalid("Payload must be a JSON object")
	}

	rawPositions, ok := pick(data, positionKeys...)
	if !ok {
		return Tick{}, invalid("Missing required field: Positions")
	}
	rawMarket, ok := pick(data, marketSummaryKeys...)
	if !ok {
		return Tick{}, invalid("Missing required field: MarketSummary")
	}

	positionList, ok := rawPositions.([]any)
	if !ok {
		return Tick{}, invalid("Positions must be a list")
	}
	if err := validation.Validate(positionList, validation.Required); err != nil {
		return Tick{}, invalid("Positions must be a non-empty list")
	}

	tick := Tick{}
	for _, raw := range positionList {
		p, err := parsePosition(raw)
		if err != nil {
			return Tick{}, err
		}
		tick.Positions = append(tick.Positions, p)
	}

	marketList, ok := rawMarket.([]any)
	if !ok {
		return Tick{}, invalid("Market Summary must be a list")
	}
	if err := validation.Validate(marketList, validation.Required); err != nil {
		return Tick{}, invalid("Market Summary must be a non-empty list")
	}
	for _, raw := range marketList {
		q, err := parseQuote(raw)
		if err != nil {
			return Tick{}, err
		}
		tick.MarketSummary = append(tick.MarketSummary, q)
	}

	if history, ok := data["market_history"].([]any); ok {
		tick.MarketHistory = history
	}
	return tick, nil
}

func parsePosition(raw any) (Position, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Position{}, invalid("Each position must be an object")
	}

	err := validation.Validate(m,
		validation.Map(
			validation.Key("ticker", validation.Required, validation.By(isString)),
			validation.Key("quantity"),
		).AllowExtraKeys(),
		validation.By(hasAnyKey(purchasePriceKeys...)),
	)
	if err != nil {
		return Position{}, invalid("Position missing required fields (ticker, quantity, purchaseprice)")
	}

	price, _ := pick(m, purchasePriceKeys...)
	err = validation.Validate([]any{m["quantity"], price}, validation.Each(validation.By(isNumeric)))
	if err != nil {
		return Position{}, invalid("Position quantity and purchaseprice must be numeric")
	}

	qty, _ := toFloat(m["quantity"])
	pp, _ := toFloat(price)
	return Position{Ticker: m["ticker"].(string), Quantity: qty, PurchasePrice: pp}, nil
}

func parseQuote(raw any) (Quote, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Quote{}, invalid("Each market summary entry must be an object")
	}

	err := validation.Validate(m,
		validation.Map(
			validation.Key("ticker", validation.Required, validation.By(isString)),
		).AllowExtraKeys(),
		validation.By(hasAnyKey(currentPriceKeys...)),
	)
	if err != nil {
		return Quote{}, invalid("Market summary missing required fields (ticker, currentprice)")
	}

	price, _ := pick(m, currentPriceKeys...)
	if err := validation.Validate(price, validation.By(isNumeric)); err != nil {
		return Quote{}, invalid("Market summary currentprice must be numeric")
	}

	cp, _ := toFloat(price)
	return Quote{Ticker: m["ticker"].(string), CurrentPrice: cp}, nil
}

// PositionsFromAny leniently converts a decoded JSON list into positions,
// skipping entries without a ticker.
func PositionsFromAny(v any) []Position {
	list, _ := v.([]any)
	out := make([]Position, 0, len(list))
	for _, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		ticker, _ := m["ticker"].(string)
		if strings.TrimSpace(ticker) == "" {
			continue
		}
		p := Position{Ticker: ticker}
		p.Quantity, _ = toFloat(m["quantity"])
		if v, ok := pick(m, purchasePriceKeys...); ok {
			p.PurchasePrice, _ = toFloat(v)
		}
		if v, ok := pick(m, currentPriceKeys...); ok {
			if f, ok := toFloat(v); ok {
				p.CurrentPrice = &f
			}
		}
		if f, ok := toFloat(m["unrealized_pnl"]); ok {
			p.UnrealizedPnL = &f
		}
		out = append(out, p)
	}
	return out
}

func pick(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func hasAnyKey(keys ...string) validation.RuleFunc {
	return func(value any) error {
		m, _ := value.(map[string]any)
		if _, ok := pick(m, keys...); !ok {
			return errors.New("missing key")
		}
		return nil
	}
}

func isString(value any) error {
	if _, ok := value.(string); !ok {
		return errors.New("must be a string")
	}
	return nil
}

func isNumeric(value any) error {
	if _, ok := toFloat(value); !ok {
		return errors.New("must be numeric")
	}
	return nil
}

// toFloat accepts JSON numbers and numeric strings.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
