package mail

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// ErrInvalidAddress is returned when a recipient fails the shape check
var ErrInvalidAddress = errors.New("invalid email address")

// addressPattern is a basic local@domain shape check applied before any
// delivery attempt reaches the transport.
var addressPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateAddress rejects addresses that do not look like local@domain
func ValidateAddress(addr string) error {
	if !addressPattern.MatchString(addr) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return nil
}

// Message is one outbound transactional email
type Message struct {
	From     string
	To       string
	Subject  string
	HtmlBody string
	TextBody string
}

// Mailer defines the interface for transactional email delivery
type Mailer interface {
	// Send delivers one message and returns the provider message ID
	Send(ctx context.Context, msg Message) (string, error)
}

// BudgetAlertMessage renders the threshold-crossing notification email.
// Overage is spent minus limit and is displayed as computed, so it can be
// negative while the alert is between 80% and 100% of the limit.
func BudgetAlertMessage(from, to, period string, spent, limit decimal.Decimal) Message {
	overage := spent.Sub(limit)

	html := fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #d97706;">Budget Alert</h2>
  <p>Hello,</p>
  <p>Your %s spending has exceeded your budget limit:</p>
  <div style="background: #fef3c7; padding: 16px; border-radius: 8px; margin: 16px 0;">
    <p><strong>Amount Spent:</strong> $%s</p>
    <p><strong>Budget Limit:</strong> $%s</p>
    <p><strong>Overage:</strong> $%s</p>
  </div>
  <p>Consider reviewing your expenses to stay within your budget.</p>
  <p>Best regards,<br>LEDGR Team</p>
</div>`, period, spent.StringFixed(2), limit.StringFixed(2), overage.StringFixed(2))

	text := fmt.Sprintf(
		"Budget Alert: Your %s spending of $%s has exceeded your limit of $%s by $%s.",
		period, spent.StringFixed(2), limit.StringFixed(2), overage.StringFixed(2),
	)

	return Message{
		From:     from,
		To:       to,
		Subject:  "Budget Alert - Spending Limit Exceeded",
		HtmlBody: html,
		TextBody: text,
	}
}
