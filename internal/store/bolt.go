package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"

	"github.com/ledgr/ledgr/internal/budget"
	"github.com/ledgr/ledgr/internal/expense"
)

const (
	expenseBucket      = "expenses"
	alertBucket        = "budget_alerts"
	categoryBucket     = "categories"
	profileBucket      = "user_profiles"
	notificationBucket = "notification_log"
)

var buckets = []string{
	expenseBucket,
	alertBucket,
	categoryBucket,
	profileBucket,
	notificationBucket,
}

// BoltDB persists expenses, budget alerts, categories and user profiles in a
// single bbolt file. It satisfies both expense.Store and budget.Store.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveExpense persists an expense record
func (b *BoltDB) SaveExpense(exp *expense.Expense) error {
	return b.put(expenseBucket, exp.ID, exp)
}

// GetExpense retrieves an expense by ID, or nil when none matches
func (b *BoltDB) GetExpense(id string) (*expense.Expense, error) {
	var exp *expense.Expense
	err := b.get(expenseBucket, id, &exp)
	return exp, err
}

// SumExpenses totals expense amounts for a user dated at or after since,
// scoped to one category when categoryID is non-empty
func (b *BoltDB) SumExpenses(userID, categoryID string, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(expenseBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var exp expense.Expense
			if err := json.Unmarshal(v, &exp); err != nil {
				return fmt.Errorf("unmarshaling expense: %w", err)
			}
			if exp.UserID != userID {
				return nil
			}
			if categoryID != "" && exp.CategoryID != categoryID {
				return nil
			}
			if exp.Date.Before(since) {
				return nil
			}
			total = total.Add(exp.Amount)
			return nil
		})
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// SaveUserProfile persists a user profile keyed by user ID
func (b *BoltDB) SaveUserProfile(profile *expense.UserProfile) error {
	return b.put(profileBucket, profile.UserID, profile)
}

// GetUserProfile retrieves a user profile by user ID, or nil when none matches
func (b *BoltDB) GetUserProfile(userID string) (*expense.UserProfile, error) {
	var profile *expense.UserProfile
	err := b.get(profileBucket, userID, &profile)
	return profile, err
}

// FindUserByEmail resolves a sender address to a user profile by exact,
// case-sensitive string equality. Returns nil when no profile matches.
func (b *BoltDB) FindUserByEmail(email string) (*expense.UserProfile, error) {
	var found *expense.UserProfile
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(profileBucket))
		return bucket.ForEach(func(k, v []byte) error {
			if found != nil {
				return nil
			}
			var profile expense.UserProfile
			if err := json.Unmarshal(v, &profile); err != nil {
				return fmt.Errorf("unmarshaling user profile: %w", err)
			}
			if profile.Email == email {
				found = &profile
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// SaveCategory persists a category
func (b *BoltDB) SaveCategory(category *expense.Category) error {
	return b.put(categoryBucket, category.ID, category)
}

// GetCategory retrieves a category by ID, or nil when none matches
func (b *BoltDB) GetCategory(id string) (*expense.Category, error) {
	var category *expense.Category
	err := b.get(categoryBucket, id, &category)
	return category, err
}

// FindCategoryByName looks up a category by exact display name. Returns nil
// when no category matches.
func (b *BoltDB) FindCategoryByName(name string) (*expense.Category, error) {
	var found *expense.Category
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(categoryBucket))
		return bucket.ForEach(func(k, v []byte) error {
			if found != nil {
				return nil
			}
			var category expense.Category
			if err := json.Unmarshal(v, &category); err != nil {
				return fmt.Errorf("unmarshaling category: %w", err)
			}
			if category.Name == name {
				found = &category
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// SeedCategories inserts any of the given category names that do not exist yet
func (b *BoltDB) SeedCategories(names []string) error {
	for _, name := range names {
		existing, err := b.FindCategoryByName(name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := b.SaveCategory(&expense.Category{ID: uuid.NewString(), Name: name}); err != nil {
			return err
		}
	}
	return nil
}

// SaveAlert persists a budget alert
func (b *BoltDB) SaveAlert(alert *budget.Alert) error {
	return b.put(alertBucket, alert.ID, alert)
}

// ListActiveAlerts returns every active alert, or only one user's when
// userID is non-empty
func (b *BoltDB) ListActiveAlerts(userID string) ([]*budget.Alert, error) {
	alerts := make([]*budget.Alert, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(alertBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var alert budget.Alert
			if err := json.Unmarshal(v, &alert); err != nil {
				return fmt.Errorf("unmarshaling budget alert: %w", err)
			}
			if !alert.IsActive {
				return nil
			}
			if userID != "" && alert.UserID != userID {
				return nil
			}
			alerts = append(alerts, &alert)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// notificationKey identifies one alert's sent marker within one window
func notificationKey(alertID string, windowStart time.Time) []byte {
	return []byte(fmt.Sprintf("%s|%s", alertID, windowStart.Format("2006-01-02")))
}

// WasNotified reports whether a sent marker exists for this alert and window
func (b *BoltDB) WasNotified(alertID string, windowStart time.Time) (bool, error) {
	var sent bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(notificationBucket))
		sent = bucket.Get(notificationKey(alertID, windowStart)) != nil
		return nil
	})
	return sent, err
}

// MarkNotified records a sent marker for this alert and window
func (b *BoltDB) MarkNotified(alertID string, windowStart time.Time) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(notificationBucket))
		stamp, err := json.Marshal(time.Now().UTC())
		if err != nil {
			return err
		}
		return bucket.Put(notificationKey(alertID, windowStart), stamp)
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func (b *BoltDB) put(bucketName, key string, value any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshaling %s record: %w", bucketName, err)
		}
		return bucket.Put([]byte(key), data)
	})
}

// get unmarshals the record at key into out, leaving out nil when the key
// does not exist
func (b *BoltDB) get(bucketName, key string, out any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(key))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, out)
	})
}
