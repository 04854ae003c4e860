package expense

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgr/ledgr/internal/extraction"
)

// Outcome is the terminal state of one ingestion run. Outcomes other than
// OutcomeCreated are handled results, not errors: the upstream webhook
// sender must not retry them.
type Outcome int

const (
	// OutcomeCreated means an expense record was written
	OutcomeCreated Outcome = iota
	// OutcomeNoContent means the email had no usable body
	OutcomeNoContent
	// OutcomeNoUser means no account matches the sender address
	OutcomeNoUser
)

// IngestResult reports how one inbound email ended up
type IngestResult struct {
	Outcome Outcome
	Draft   Draft
	Expense *Expense
}

// Store is the persistence boundary the ingestion pipeline needs. Lookups
// return (nil, nil) when no row matches; a non-nil error always means the
// store itself failed.
type Store interface {
	// FindUserByEmail resolves a sender address to a user profile using
	// exact, case-sensitive string equality
	FindUserByEmail(email string) (*UserProfile, error)

	// FindCategoryByName looks up a category by exact display name
	FindCategoryByName(name string) (*Category, error)

	// SaveExpense persists a new expense record
	SaveExpense(expense *Expense) error
}

// IDGenerator generates unique IDs for expenses
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (c *systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Service runs the receipt ingestion pipeline
type Service struct {
	db          Store
	extractor   extraction.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db Store, extractor extraction.Extractor) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		idGenerator: &uuidGenerator{},
		timeSource:  &systemClock{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db Store, extractor extraction.Extractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// ProcessInboundEmail drives one email through extraction, normalization,
// identity resolution and persistence. A non-nil error always means the
// expense could not be written and the caller may retry; every other ending
// is reported through IngestResult.Outcome.
func (s *Service) ProcessInboundEmail(ctx context.Context, email *InboundEmail) (*IngestResult, error) {
	// Prefer the plain-text body, fall back to HTML
	content := email.TextBody
	if content == "" {
		content = email.HtmlBody
	}
	if content == "" {
		slog.Info("Inbound email has no content", "from", email.From, "message_id", email.MessageID)
		return &IngestResult{Outcome: OutcomeNoContent}, nil
	}

	now := s.timeSource.Now()

	var draft Draft
	result, err := s.extractor.ExtractReceipt(ctx, content)
	if err != nil {
		// Extraction failure is absorbed: the expense is still created with
		// defaults so the receipt leaves an auditable trace.
		slog.Error("Failed to extract receipt fields",
			"from", email.From,
			"message_id", email.MessageID,
			"error", err,
		)
		draft = FailureDraft(now)
	} else {
		draft = Normalize(result, now)
	}

	profile, err := s.db.FindUserByEmail(email.From)
	if err != nil {
		return nil, fmt.Errorf("looking up user for %s: %w", email.From, err)
	}
	if profile == nil {
		slog.Info("No user account for sender", "from", email.From)
		return &IngestResult{Outcome: OutcomeNoUser, Draft: draft}, nil
	}

	// Best-effort category resolution: a missing row leaves the expense
	// uncategorized rather than failing ingestion.
	var categoryID string
	category, err := s.db.FindCategoryByName(draft.Category)
	if err != nil {
		slog.Warn("Category lookup failed, storing expense uncategorized",
			"category", draft.Category, "error", err)
	} else if category != nil {
		categoryID = category.ID
	}

	raw, _ := json.Marshal(email)

	exp := &Expense{
		ID:           s.idGenerator.Generate(),
		UserID:       profile.UserID,
		Amount:       draft.Amount,
		Description:  draft.Description,
		Vendor:       draft.Vendor,
		CategoryID:   categoryID,
		Date:         draft.Date,
		ReceiptEmail: email.From,
		RawEmailData: raw,
		CreatedAt:    now,
	}

	if err := s.db.SaveExpense(exp); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}

	slog.Info("Created expense from receipt email",
		"expense_id", exp.ID,
		"user_id", exp.UserID,
		"amount", exp.Amount,
		"vendor", exp.Vendor,
	)

	return &IngestResult{Outcome: OutcomeCreated, Draft: draft, Expense: exp}, nil
}
