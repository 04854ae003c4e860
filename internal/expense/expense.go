package expense

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Categories is the closed set of category labels the extraction model is
// asked to choose from. Any other label normalizes to "Other".
var Categories = []string{
	"Food & Dining",
	"Shopping",
	"Transportation",
	"Entertainment",
	"Health & Medical",
	"Bills & Utilities",
	"Travel",
	"Business",
	"Education",
	"Other",
}

// InboundEmail is the inbound webhook payload from the mail provider. The
// pipeline only reads From, TextBody and HtmlBody; the rest is carried for
// the audit copy stored with the expense.
type InboundEmail struct {
	From        string       `json:"From"`
	To          string       `json:"To,omitempty"`
	Subject     string       `json:"Subject,omitempty"`
	TextBody    string       `json:"TextBody,omitempty"`
	HtmlBody    string       `json:"HtmlBody,omitempty"`
	Attachments []Attachment `json:"Attachments,omitempty"`
	MessageID   string       `json:"MessageID,omitempty"`
	Date        string       `json:"Date,omitempty"`
}

// Attachment is attachment metadata from the mail provider. Attachment
// contents are never processed.
type Attachment struct {
	Name          string `json:"Name"`
	ContentType   string `json:"ContentType"`
	ContentLength int    `json:"ContentLength"`
}

// Draft is a fully-defaulted expense candidate: every field is present and
// valid, regardless of what extraction produced.
type Draft struct {
	Amount      decimal.Decimal `json:"amount"`
	Vendor      string          `json:"vendor"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        time.Time       `json:"date"`
}

// Expense is the persisted expense record
type Expense struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Vendor       string          `json:"vendor"`
	CategoryID   string          `json:"category_id,omitempty"` // empty means uncategorized
	Date         time.Time       `json:"date"`
	ReceiptEmail string          `json:"receipt_email,omitempty"`
	RawEmailData json.RawMessage `json:"raw_email_data,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Category is a row in the category lookup table
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserProfile maps a user identity to the notification email address
type UserProfile struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
}
