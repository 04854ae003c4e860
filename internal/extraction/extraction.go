package extraction

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Result contains the expense fields extracted from a receipt email. Any
// field may be absent or empty; all business defaulting is owned by the
// expense normalizer, not by this package.
type Result struct {
	Amount      decimal.NullDecimal
	Vendor      string
	Description string
	Category    string
	Date        string // ISO 8601 calendar date (YYYY-MM-DD)
}

var (
	// ErrUnavailable means the model could not be reached or returned no answer.
	ErrUnavailable = errors.New("extraction model unavailable")

	// ErrParse means the model answered but no well-formed payload was found.
	ErrParse = errors.New("unparseable model output")
)

// Extractor defines the interface for receipt extraction backends
type Extractor interface {
	// ExtractReceipt analyzes raw email body text and extracts expense fields
	ExtractReceipt(ctx context.Context, text string) (*Result, error)
	// Close closes the extractor and releases resources
	Close() error
}

// receiptPrompt is the shared prompt used by all LLM providers for receipt
// emails. The category list must stay in sync with the expense package.
const receiptPrompt = `Analyze this receipt email and extract the following information in JSON format:
- amount: the total amount as a number (without currency symbols)
- description: a brief description of the purchase
- vendor: the merchant/vendor name
- category: one of these categories: "Food & Dining", "Shopping", "Transportation", "Entertainment", "Health & Medical", "Bills & Utilities", "Travel", "Business", "Education", "Other"
- date: the transaction date in YYYY-MM-DD format (if not found, use today's date)

Email content:
%s

Return only valid JSON without any markdown formatting or additional text.`
