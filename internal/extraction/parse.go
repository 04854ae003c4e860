package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// parseResult parses the JSON payload from a model response
func parseResult(text string) (*Result, error) {
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.Trim(text, "`")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	start := strings.Index(text, "{")
	if start == -1 {
		return nil, fmt.Errorf("%w: no JSON object found in response", ErrParse)
	}

	end := strings.LastIndex(text, "}")
	if end == -1 || end < start {
		return nil, fmt.Errorf("%w: invalid JSON object in response", ErrParse)
	}

	// Extract just the JSON part
	text = text[start : end+1]

	// Decode into a generic map first: the model routinely gets individual
	// field types wrong, and one bad field must not sink the others.
	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	res := &Result{
		Vendor:      stringField(raw, "vendor"),
		Description: stringField(raw, "description"),
		Category:    stringField(raw, "category"),
		Date:        stringField(raw, "date"),
	}
	if amount, ok := amountField(raw, "amount"); ok {
		res.Amount = decimal.NullDecimal{Decimal: amount, Valid: true}
	}

	return res, nil
}

func stringField(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// amountField accepts a JSON number or a numeric string, with or without a
// leading currency symbol.
func amountField(raw map[string]any, key string) (decimal.Decimal, bool) {
	switch v := raw[key].(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case string:
		s := strings.TrimSpace(v)
		s = strings.TrimLeft(s, "$€£")
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}
