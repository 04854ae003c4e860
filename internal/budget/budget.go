package budget

import (
	"github.com/shopspring/decimal"
)

// Period is a budget alert accounting period
type Period string

const (
	// PeriodWeekly is a rolling seven-day window
	PeriodWeekly Period = "weekly"
	// PeriodMonthly starts on the first calendar day of the month
	PeriodMonthly Period = "monthly"
	// PeriodYearly starts on the first calendar day of the year
	PeriodYearly Period = "yearly"
)

// Alert is a user-defined spending threshold. Its lifecycle is owned by the
// authoring UI; the engine only reads active alerts.
type Alert struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	AmountLimit decimal.Decimal `json:"amount_limit"`
	Period      Period          `json:"period"`
	CategoryID  string          `json:"category_id,omitempty"` // empty means all categories
	IsActive    bool            `json:"is_active"`
}

// Notification describes one threshold crossing. It is ephemeral: produced
// by evaluation, dispatched immediately, never persisted.
type Notification struct {
	UserID     string          `json:"user_id"`
	Email      string          `json:"email,omitempty"`
	Category   string          `json:"category"`
	Spent      decimal.Decimal `json:"spent"`
	Limit      decimal.Decimal `json:"limit"`
	Percentage decimal.Decimal `json:"percentage"`
	Period     Period          `json:"period"`
}

// EmailResult records one dispatch attempt
type EmailResult struct {
	Email     string `json:"email"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report aggregates one evaluation run
type Report struct {
	AlertsChecked      int            `json:"alerts_checked"`
	NotificationsFound int            `json:"notifications_found"`
	EmailsSent         int            `json:"emails_sent"`
	EmailFailures      int            `json:"email_failures"`
	Notifications      []Notification `json:"notifications"`
	EmailResults       []EmailResult  `json:"email_results"`
}
