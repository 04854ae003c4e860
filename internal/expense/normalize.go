package expense

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgr/ledgr/internal/extraction"
)

const (
	// UnknownVendor is the vendor used when extraction found none.
	UnknownVendor = "Unknown Vendor"

	// DefaultDescription is the description used when extraction found none.
	DefaultDescription = "Email receipt processing"

	// FailureDescription marks expenses created after extraction itself failed.
	FailureDescription = "Failed to process receipt automatically"

	fallbackCategory = "Other"
)

var categorySet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Categories))
	for _, name := range Categories {
		set[name] = struct{}{}
	}
	return set
}()

// dateLayouts are the calendar-date formats the model has been seen to emit
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
}

// Normalize turns a best-effort extraction result into a draft that is always
// safe to persist. Each field defaults independently and the function never
// fails. Category labels match case-sensitively against the closed set.
func Normalize(res *extraction.Result, fallbackDate time.Time) Draft {
	if res == nil {
		return FailureDraft(fallbackDate)
	}

	draft := Draft{
		Amount:      decimal.Zero,
		Vendor:      strings.TrimSpace(res.Vendor),
		Description: strings.TrimSpace(res.Description),
		Category:    fallbackCategory,
		Date:        dateOnly(fallbackDate),
	}

	if res.Amount.Valid && !res.Amount.Decimal.IsNegative() {
		draft.Amount = res.Amount.Decimal
	}
	if draft.Vendor == "" {
		draft.Vendor = UnknownVendor
	}
	if draft.Description == "" {
		draft.Description = DefaultDescription
	}
	if _, ok := categorySet[res.Category]; ok {
		draft.Category = res.Category
	}
	if date, ok := parseDate(res.Date); ok {
		draft.Date = date
	}

	return draft
}

// FailureDraft is the all-defaults draft used when the extraction step failed
// entirely. Ingestion still records something auditable.
func FailureDraft(fallbackDate time.Time) Draft {
	return Draft{
		Amount:      decimal.Zero,
		Vendor:      UnknownVendor,
		Description: FailureDescription,
		Category:    fallbackCategory,
		Date:        dateOnly(fallbackDate),
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
