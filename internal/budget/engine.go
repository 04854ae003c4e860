package budget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgr/ledgr/internal/expense"
	"github.com/ledgr/ledgr/internal/mail"
)

// crossingThreshold is the early-warning trigger: alerts fire at 80% of the
// limit, not only once the limit is exceeded.
var crossingThreshold = decimal.NewFromInt(80)

var oneHundred = decimal.NewFromInt(100)

// Store is the read boundary the evaluation engine needs. Lookups return
// (nil, nil) when no row matches; a non-nil error always means the store
// itself failed.
type Store interface {
	// ListActiveAlerts returns every active alert, or only one user's when
	// userID is non-empty
	ListActiveAlerts(userID string) ([]*Alert, error)

	// SumExpenses totals expense amounts for a user dated at or after since,
	// scoped to one category when categoryID is non-empty
	SumExpenses(userID, categoryID string, since time.Time) (decimal.Decimal, error)

	// GetCategory retrieves a category by ID
	GetCategory(id string) (*expense.Category, error)

	// GetUserProfile retrieves a user profile by user ID
	GetUserProfile(userID string) (*expense.UserProfile, error)

	// WasNotified reports whether a sent marker exists for this alert and window
	WasNotified(alertID string, windowStart time.Time) (bool, error)

	// MarkNotified records a sent marker for this alert and window
	MarkNotified(alertID string, windowStart time.Time) error
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type systemClock struct{}

func (c *systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Engine evaluates budget alerts and dispatches crossing notifications
// in-process through a Mailer.
type Engine struct {
	db              Store
	mailer          mail.Mailer
	fromEmail       string
	suppressRepeats bool
	timeSource      TimeSource
}

// NewEngine creates a new Engine. When suppressRepeats is true, at most one
// email is sent per alert per accounting window.
func NewEngine(db Store, mailer mail.Mailer, fromEmail string, suppressRepeats bool) *Engine {
	return NewEngineWithClock(db, mailer, fromEmail, suppressRepeats, &systemClock{})
}

// NewEngineWithClock creates a new Engine with a custom time source for testing
func NewEngineWithClock(db Store, mailer mail.Mailer, fromEmail string, suppressRepeats bool, timeSrc TimeSource) *Engine {
	return &Engine{
		db:              db,
		mailer:          mailer,
		fromEmail:       fromEmail,
		suppressRepeats: suppressRepeats,
		timeSource:      timeSrc,
	}
}

// CheckAlerts evaluates every active alert, or only one user's when userID
// is non-empty, and sends one email per crossing. One failed send never
// stops the rest of the run; every attempt is accounted for in the report.
func (e *Engine) CheckAlerts(ctx context.Context, userID string) (*Report, error) {
	alerts, err := e.db.ListActiveAlerts(userID)
	if err != nil {
		return nil, fmt.Errorf("listing active alerts: %w", err)
	}

	now := e.timeSource.Now()
	report := &Report{
		AlertsChecked: len(alerts),
		Notifications: []Notification{},
		EmailResults:  []EmailResult{},
	}

	for _, alert := range alerts {
		windowStart, err := WindowStart(alert.Period, now)
		if err != nil {
			slog.Warn("Skipping alert with unrecognized period",
				"alert_id", alert.ID, "period", alert.Period)
			continue
		}

		if e.suppressRepeats {
			sent, err := e.db.WasNotified(alert.ID, windowStart)
			if err != nil {
				slog.Error("Notification log lookup failed", "alert_id", alert.ID, "error", err)
			} else if sent {
				continue
			}
		}

		if !alert.AmountLimit.IsPositive() {
			// amount_limit > 0 is enforced at authoring time; a zero limit
			// here is an anomaly, not something to divide by.
			slog.Warn("Skipping alert with non-positive limit",
				"alert_id", alert.ID, "limit", alert.AmountLimit)
			continue
		}

		spent, err := e.db.SumExpenses(alert.UserID, alert.CategoryID, windowStart)
		if err != nil {
			slog.Error("Failed to total expenses for alert", "alert_id", alert.ID, "error", err)
			continue
		}

		percentage := spent.Div(alert.AmountLimit).Mul(oneHundred)
		if percentage.LessThan(crossingThreshold) {
			continue
		}

		notification := Notification{
			UserID:     alert.UserID,
			Email:      e.recipientFor(alert.UserID),
			Category:   e.categoryLabelFor(alert.CategoryID),
			Spent:      spent,
			Limit:      alert.AmountLimit,
			Percentage: percentage,
			Period:     alert.Period,
		}
		report.Notifications = append(report.Notifications, notification)
		report.NotificationsFound++

		// A user without a resolvable email still counts as a found
		// notification but gets no dispatch attempt.
		if notification.Email == "" {
			continue
		}

		result := e.dispatch(ctx, notification)
		report.EmailResults = append(report.EmailResults, result)
		if result.Success {
			report.EmailsSent++
			if e.suppressRepeats {
				if err := e.db.MarkNotified(alert.ID, windowStart); err != nil {
					slog.Error("Failed to record notification marker",
						"alert_id", alert.ID, "error", err)
				}
			}
		} else {
			report.EmailFailures++
		}
	}

	slog.Info("Budget alert run finished",
		"alerts_checked", report.AlertsChecked,
		"notifications_found", report.NotificationsFound,
		"emails_sent", report.EmailsSent,
		"email_failures", report.EmailFailures,
	)

	return report, nil
}

// dispatch validates the recipient and sends one crossing email
func (e *Engine) dispatch(ctx context.Context, n Notification) EmailResult {
	if err := mail.ValidateAddress(n.Email); err != nil {
		return EmailResult{Email: n.Email, Error: err.Error()}
	}

	msg := mail.BudgetAlertMessage(e.fromEmail, n.Email, string(n.Period), n.Spent, n.Limit)
	messageID, err := e.mailer.Send(ctx, msg)
	if err != nil {
		slog.Error("Failed to send budget alert email", "to", n.Email, "error", err)
		return EmailResult{Email: n.Email, Error: err.Error()}
	}

	slog.Info("Sent budget alert email", "to", n.Email, "message_id", messageID)
	return EmailResult{Email: n.Email, Success: true, MessageID: messageID}
}

func (e *Engine) categoryLabelFor(categoryID string) string {
	if categoryID == "" {
		return "All categories"
	}
	category, err := e.db.GetCategory(categoryID)
	if err != nil {
		slog.Warn("Category lookup failed", "category_id", categoryID, "error", err)
		return "All categories"
	}
	if category == nil {
		return "All categories"
	}
	return category.Name
}

func (e *Engine) recipientFor(userID string) string {
	profile, err := e.db.GetUserProfile(userID)
	if err != nil {
		slog.Warn("User profile lookup failed", "user_id", userID, "error", err)
		return ""
	}
	if profile == nil {
		return ""
	}
	return profile.Email
}
