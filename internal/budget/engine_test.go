package budget_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/ledgr/ledgr/internal/budget"
	"github.com/ledgr/ledgr/internal/expense"
	"github.com/ledgr/ledgr/internal/mail"
)

// mockStore is a mock implementation of Store
type mockStore struct {
	alerts     []*budget.Alert
	spending   map[string]decimal.Decimal // keyed by userID|categoryID
	categories map[string]*expense.Category
	profiles   map[string]*expense.UserProfile
	notified   map[string]bool

	listErr error
	sumErr  error
}

func newMockStore() *mockStore {
	return &mockStore{
		spending:   make(map[string]decimal.Decimal),
		categories: make(map[string]*expense.Category),
		profiles:   make(map[string]*expense.UserProfile),
		notified:   make(map[string]bool),
	}
}

func (m *mockStore) ListActiveAlerts(userID string) ([]*budget.Alert, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	alerts := make([]*budget.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if !a.IsActive {
			continue
		}
		if userID != "" && a.UserID != userID {
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (m *mockStore) SumExpenses(userID, categoryID string, since time.Time) (decimal.Decimal, error) {
	if m.sumErr != nil {
		return decimal.Zero, m.sumErr
	}
	if total, ok := m.spending[userID+"|"+categoryID]; ok {
		return total, nil
	}
	return decimal.Zero, nil
}

func (m *mockStore) GetCategory(id string) (*expense.Category, error) {
	return m.categories[id], nil
}

func (m *mockStore) GetUserProfile(userID string) (*expense.UserProfile, error) {
	return m.profiles[userID], nil
}

func (m *mockStore) WasNotified(alertID string, windowStart time.Time) (bool, error) {
	return m.notified[alertID+"|"+windowStart.Format("2006-01-02")], nil
}

func (m *mockStore) MarkNotified(alertID string, windowStart time.Time) error {
	m.notified[alertID+"|"+windowStart.Format("2006-01-02")] = true
	return nil
}

// mockMailer is a mock implementation of mail.Mailer
type mockMailer struct {
	sent    []mail.Message
	failFor map[string]error // keyed by recipient
}

func newMockMailer() *mockMailer {
	return &mockMailer{failFor: make(map[string]error)}
}

func (m *mockMailer) Send(ctx context.Context, msg mail.Message) (string, error) {
	if err := m.failFor[msg.To]; err != nil {
		return "", err
	}
	m.sent = append(m.sent, msg)
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

type fixedTimeSource struct {
	now time.Time
}

func (t *fixedTimeSource) Now() time.Time {
	return t.now
}

var _ = Describe("Engine", func() {
	var (
		db       *mockStore
		mailer   *mockMailer
		engine   *budget.Engine
		suppress bool
		now      time.Time
		report   *budget.Report
		err      error
	)

	BeforeEach(func() {
		now = time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC)
		db = newMockStore()
		mailer = newMockMailer()
		suppress = false

		db.profiles["user-1"] = &expense.UserProfile{UserID: "user-1", Email: "user1@example.com"}
		db.alerts = []*budget.Alert{
			{
				ID:          "alert-1",
				UserID:      "user-1",
				AmountLimit: decimal.NewFromInt(100),
				Period:      budget.PeriodMonthly,
				IsActive:    true,
			},
		}
	})

	JustBeforeEach(func() {
		engine = budget.NewEngineWithClock(db, mailer, "alerts@ledgr.app", suppress, &fixedTimeSource{now: now})
		report, err = engine.CheckAlerts(context.Background(), "")
	})

	When("spending is exactly 80% of the limit", func() {
		BeforeEach(func() {
			db.spending["user-1|"] = decimal.NewFromInt(80)
		})

		It("should produce one notification", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(report.NotificationsFound).To(Equal(1))
		})

		It("should compute the percentage exactly", func() {
			Expect(report.Notifications[0].Percentage.Equal(decimal.NewFromInt(80))).To(BeTrue())
		})

		It("should label the category as all categories", func() {
			Expect(report.Notifications[0].Category).To(Equal("All categories"))
		})

		It("should send one email", func() {
			Expect(report.EmailsSent).To(Equal(1))
			Expect(report.EmailFailures).To(BeZero())
			Expect(mailer.sent).To(HaveLen(1))
			Expect(mailer.sent[0].To).To(Equal("user1@example.com"))
		})
	})

	When("spending is just below the threshold", func() {
		BeforeEach(func() {
			db.spending["user-1|"] = decimal.NewFromInt(79)
		})

		It("should produce no notifications", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(report.AlertsChecked).To(Equal(1))
			Expect(report.NotificationsFound).To(BeZero())
			Expect(mailer.sent).To(BeEmpty())
		})
	})

	When("the alert is scoped to a category", func() {
		BeforeEach(func() {
			db.categories["cat-shopping"] = &expense.Category{ID: "cat-shopping", Name: "Shopping"}
			db.alerts[0].CategoryID = "cat-shopping"
			db.spending["user-1|cat-shopping"] = decimal.NewFromInt(95)
			db.spending["user-1|"] = decimal.NewFromInt(500)
		})

		It("should aggregate only that category", func() {
			Expect(report.NotificationsFound).To(Equal(1))
			Expect(report.Notifications[0].Spent.Equal(decimal.NewFromInt(95))).To(BeTrue())
		})

		It("should carry the category label", func() {
			Expect(report.Notifications[0].Category).To(Equal("Shopping"))
		})
	})

	When("the alert period is unrecognized", func() {
		BeforeEach(func() {
			db.alerts[0].Period = budget.Period("fortnightly")
			db.spending["user-1|"] = decimal.NewFromInt(500)
		})

		It("should skip the alert without failing the run", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(report.AlertsChecked).To(Equal(1))
			Expect(report.NotificationsFound).To(BeZero())
		})
	})

	When("the user has no resolvable email", func() {
		BeforeEach(func() {
			delete(db.profiles, "user-1")
			db.spending["user-1|"] = decimal.NewFromInt(90)
		})

		It("should count the notification but attempt no dispatch", func() {
			Expect(report.NotificationsFound).To(Equal(1))
			Expect(report.EmailsSent).To(BeZero())
			Expect(report.EmailFailures).To(BeZero())
			Expect(report.EmailResults).To(BeEmpty())
		})
	})

	When("the recipient address is malformed", func() {
		BeforeEach(func() {
			db.profiles["user-1"].Email = "not-an-address"
			db.spending["user-1|"] = decimal.NewFromInt(90)
		})

		It("should record a failure without calling the transport", func() {
			Expect(report.NotificationsFound).To(Equal(1))
			Expect(report.EmailFailures).To(Equal(1))
			Expect(mailer.sent).To(BeEmpty())
		})
	})

	When("one dispatch fails among several alerts", func() {
		BeforeEach(func() {
			db.profiles["user-2"] = &expense.UserProfile{UserID: "user-2", Email: "user2@example.com"}
			db.profiles["user-3"] = &expense.UserProfile{UserID: "user-3", Email: "user3@example.com"}
			db.alerts = append(db.alerts,
				&budget.Alert{ID: "alert-2", UserID: "user-2", AmountLimit: decimal.NewFromInt(100), Period: budget.PeriodMonthly, IsActive: true},
				&budget.Alert{ID: "alert-3", UserID: "user-3", AmountLimit: decimal.NewFromInt(100), Period: budget.PeriodMonthly, IsActive: true},
			)
			db.spending["user-1|"] = decimal.NewFromInt(90)
			db.spending["user-2|"] = decimal.NewFromInt(90)
			db.spending["user-3|"] = decimal.NewFromInt(90)
			mailer.failFor["user2@example.com"] = errors.New("mailbox unavailable")
		})

		It("should keep dispatching after the failure", func() {
			Expect(report.NotificationsFound).To(Equal(3))
			Expect(report.EmailsSent).To(Equal(2))
			Expect(report.EmailFailures).To(Equal(1))
		})

		It("should account for every attempt", func() {
			Expect(report.EmailsSent + report.EmailFailures).To(Equal(len(report.EmailResults)))
		})
	})

	When("an inactive alert exists", func() {
		BeforeEach(func() {
			db.alerts[0].IsActive = false
			db.spending["user-1|"] = decimal.NewFromInt(500)
		})

		It("should not evaluate it", func() {
			Expect(report.AlertsChecked).To(BeZero())
			Expect(report.NotificationsFound).To(BeZero())
		})
	})

	When("the alert limit is not positive", func() {
		BeforeEach(func() {
			db.alerts[0].AmountLimit = decimal.Zero
			db.spending["user-1|"] = decimal.NewFromInt(500)
		})

		It("should skip the alert", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(report.NotificationsFound).To(BeZero())
		})
	})

	When("listing alerts fails", func() {
		BeforeEach(func() {
			db.listErr = errors.New("storage offline")
		})

		It("should surface the error", func() {
			Expect(err).To(HaveOccurred())
			Expect(report).To(BeNil())
		})
	})

	When("repeat suppression is enabled", func() {
		BeforeEach(func() {
			suppress = true
			db.spending["user-1|"] = decimal.NewFromInt(90)
		})

		It("should record a marker after the first send", func() {
			Expect(report.EmailsSent).To(Equal(1))
			Expect(db.notified).To(HaveLen(1))
		})

		It("should not re-notify within the same window", func() {
			second, err := engine.CheckAlerts(context.Background(), "")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.AlertsChecked).To(Equal(1))
			Expect(second.NotificationsFound).To(BeZero())
			Expect(mailer.sent).To(HaveLen(1))
		})

		It("should notify again in the next window", func() {
			engine = budget.NewEngineWithClock(db, mailer, "alerts@ledgr.app", suppress,
				&fixedTimeSource{now: time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC)})
			second, err := engine.CheckAlerts(context.Background(), "")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.EmailsSent).To(Equal(1))
			Expect(mailer.sent).To(HaveLen(2))
		})
	})

	When("repeat suppression is disabled", func() {
		BeforeEach(func() {
			db.spending["user-1|"] = decimal.NewFromInt(90)
		})

		It("should re-notify on every run", func() {
			second, err := engine.CheckAlerts(context.Background(), "")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.EmailsSent).To(Equal(1))
			Expect(mailer.sent).To(HaveLen(2))
		})
	})

	Describe("user scoping", func() {
		BeforeEach(func() {
			db.profiles["user-2"] = &expense.UserProfile{UserID: "user-2", Email: "user2@example.com"}
			db.alerts = append(db.alerts,
				&budget.Alert{ID: "alert-2", UserID: "user-2", AmountLimit: decimal.NewFromInt(100), Period: budget.PeriodMonthly, IsActive: true},
			)
			db.spending["user-1|"] = decimal.NewFromInt(90)
			db.spending["user-2|"] = decimal.NewFromInt(90)
		})

		It("should only evaluate the requested user's alerts", func() {
			scoped, err := engine.CheckAlerts(context.Background(), "user-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(scoped.AlertsChecked).To(Equal(1))
			Expect(scoped.Notifications[0].UserID).To(Equal("user-2"))
		})
	})
})
