package accounts

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memBackend keeps a deep copy of the last saved mapping.
type memBackend struct {
	saved    map[string]*models.Account
	saves    int
	failSave bool
	loadErr  error
}

func (m *memBackend) Load() (map[string]*models.Account, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.saved == nil {
		return nil, ErrNoState
	}
	return copyAccounts(m.saved), nil
}

func (m *memBackend) Save(accounts map[string]*models.Account) error {
	if m.failSave {
		return errors.New("disk full")
	}
	m.saves++
	m.saved = copyAccounts(accounts)
	return nil
}

func copyAccounts(in map[string]*models.Account) map[string]*models.Account {
	out := make(map[string]*models.Account, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	s := NewStore(backend, WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, s.Load())
	return s
}

func TestLoadWithoutStateSeedsAdmin(t *testing.T) {
	s := newTestStore(t, NewFileBackend(filepath.Join(t.TempDir(), "users.json")))
	require.False(t, s.Degraded())

	admin, err := s.Authenticate("admin", "password")
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", admin.Email)
	require.True(t, IsHashed(admin.Credential))
}

func TestLoadCorruptFileFallsBackToAdmin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"admin": {"password": `), 0o600))

	s := newTestStore(t, NewFileBackend(path))
	require.True(t, s.Degraded())

	_, err := s.Authenticate("admin", "password")
	require.NoError(t, err)

	// a JSON array is readable but not an account mapping
	require.NoError(t, os.WriteFile(path, []byte(`[1, 2]`), 0o600))
	s = newTestStore(t, NewFileBackend(path))
	require.True(t, s.Degraded())
}

func TestSignUpAndAuthenticate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	s := newTestStore(t, NewFileBackend(path))

	account, err := s.SignUp("jane", "s3cret!", "jane@example.com")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret!", account.Credential)
	require.Empty(t, account.Wishlist)
	require.Empty(t, account.Orders)

	// persisted immediately: a fresh store over the same file sees the account
	reloaded := newTestStore(t, NewFileBackend(path))
	got, err := reloaded.Authenticate("jane", "s3cret!")
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", got.Email)

	_, err = reloaded.Authenticate("jane", "s3cret")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = reloaded.Authenticate("nobody", "s3cret!")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestSignUpValidation(t *testing.T) {
	s := newTestStore(t, &memBackend{})

	_, err := s.SignUp("", "pw", "a@b.co")
	require.ErrorIs(t, err, models.ErrMissingField)
	_, err = s.SignUp("bob", "", "a@b.co")
	require.ErrorIs(t, err, models.ErrMissingField)
	_, err = s.SignUp("bob", "pw", "  ")
	require.ErrorIs(t, err, models.ErrMissingField)

	_, err = s.SignUp("bob", "pw", "bob-at-example.com")
	require.ErrorIs(t, err, models.ErrInvalidEmail)

	_, err = s.SignUp("admin", "pw", "other@example.com")
	require.ErrorIs(t, err, models.ErrDuplicateUsername)
}

func TestSignUpRollsBackOnSaveFailure(t *testing.T) {
	backend := &memBackend{}
	s := newTestStore(t, backend)
	backend.failSave = true

	_, err := s.SignUp("bob", "pw", "bob@example.com")
	require.ErrorIs(t, err, models.ErrPersistenceUnavailable)

	_, err = s.Get("bob")
	require.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestLegacyPlaintextCredentialIsMigrated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	legacy := `{"bob": {"password": "hunter2", "email": "bob@example.com", "wishlist": ["Arrow Polo"], "orders": []}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	s := newTestStore(t, NewFileBackend(path))

	_, err := s.Authenticate("bob", "hunter3")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)

	account, err := s.Authenticate("bob", "hunter2")
	require.NoError(t, err)
	require.True(t, IsHashed(account.Credential))
	require.Equal(t, []string{"Arrow Polo"}, account.Wishlist)

	reloaded := newTestStore(t, NewFileBackend(path))
	stored, err := reloaded.Get("bob")
	require.NoError(t, err)
	require.True(t, IsHashed(stored.Credential))
	require.NotEqual(t, "hunter2", stored.Credential)

	_, err = reloaded.Authenticate("bob", "hunter2")
	require.NoError(t, err)
}

func TestEmptyCredentialNeverAuthenticates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	legacy := `{"bob": {"email": "bob@example.com", "wishlist": [], "orders": []}, "carol": {"password": "", "email": "carol@example.com"}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	s := newTestStore(t, NewFileBackend(path))

	_, err := s.Authenticate("bob", "")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = s.Authenticate("carol", "")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = s.Authenticate("carol", "anything")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)

	// nothing was migrated or written
	bob, err := s.Get("bob")
	require.NoError(t, err)
	require.Empty(t, bob.Credential)

	_, err = s.Authenticate("admin", "")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestLoadEmptyFileSeedsAdmin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	s := newTestStore(t, NewFileBackend(path))
	require.False(t, s.Degraded())

	_, err := s.Authenticate("admin", "password")
	require.NoError(t, err)
}

func TestWishlistIsIdempotent(t *testing.T) {
	backend := &memBackend{}
	s := newTestStore(t, backend)

	require.NoError(t, s.AddToWishlist("admin", "Arrow Polo"))
	require.NoError(t, s.AddToWishlist("admin", "Pepe Jeans"))
	saves := backend.saves

	require.NoError(t, s.AddToWishlist("admin", "Arrow Polo"))
	require.NoError(t, s.RemoveFromWishlist("admin", "Levis Pants"))
	require.Equal(t, saves, backend.saves)

	account, err := s.Get("admin")
	require.NoError(t, err)
	require.Equal(t, []string{"Arrow Polo", "Pepe Jeans"}, account.Wishlist)

	require.NoError(t, s.RemoveFromWishlist("admin", "Arrow Polo"))
	account, err = s.Get("admin")
	require.NoError(t, err)
	require.Equal(t, []string{"Pepe Jeans"}, account.Wishlist)

	require.ErrorIs(t, s.AddToWishlist("ghost", "Arrow Polo"), models.ErrAccountNotFound)
}

func TestAppendOrder(t *testing.T) {
	backend := &memBackend{}
	s := newTestStore(t, backend)

	first := models.Order{ID: "ORD-1", CreatedAt: time.Now(), Items: map[string]int{"Levis Pants": 1}, Total: decimal.NewFromInt(39)}
	second := models.Order{ID: "ORD-2", CreatedAt: time.Now(), Items: map[string]int{"Pepe Jeans": 2}, Total: decimal.NewFromInt(158)}
	require.NoError(t, s.AppendOrder("admin", first))
	require.NoError(t, s.AppendOrder("admin", second))

	backend.failSave = true
	err := s.AppendOrder("admin", models.Order{ID: "ORD-3", Items: map[string]int{}})
	require.ErrorIs(t, err, models.ErrPersistenceUnavailable)

	account, err := s.Get("admin")
	require.NoError(t, err)
	require.Len(t, account.Orders, 2)
	require.Equal(t, "ORD-1", account.Orders[0].ID)
	require.Equal(t, "ORD-2", account.Orders[1].ID)

	summary, err := s.Summary("admin")
	require.NoError(t, err)
	require.Equal(t, 2, summary.OrderCount)
	require.True(t, decimal.NewFromInt(197).Equal(summary.TotalSpent))
}

func TestReviews(t *testing.T) {
	backend := &memBackend{}
	s := newTestStore(t, backend)
	_, err := s.SignUp("jane", "s3cret!", "jane@example.com")
	require.NoError(t, err)

	day := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.AddReview("jane", models.Review{Product: "Arrow Polo", Text: "Runs small.", CreatedAt: day}))
	require.NoError(t, s.AddReview("admin", models.Review{Product: "Arrow Polo", Text: "Great colour.", CreatedAt: day.Add(time.Hour)}))
	require.NoError(t, s.AddReview("admin", models.Review{Product: "Pepe Jeans", Text: "Comfy.", CreatedAt: day}))

	reviews := s.ProductReviews("Arrow Polo")
	require.Len(t, reviews, 2)
	require.Equal(t, "jane", reviews[0].Username)
	require.Equal(t, "admin", reviews[1].Username)

	// a second review of the same product replaces the first
	require.NoError(t, s.AddReview("jane", models.Review{Product: "Arrow Polo", Text: "Actually fine.", CreatedAt: day.Add(2 * time.Hour)}))
	reviews = s.ProductReviews("Arrow Polo")
	require.Len(t, reviews, 2)
	require.Equal(t, "admin", reviews[0].Username)
	require.Equal(t, "Actually fine.", reviews[1].Text)

	backend.failSave = true
	err = s.AddReview("jane", models.Review{Product: "Arrow Polo", Text: "Lost.", CreatedAt: day})
	require.ErrorIs(t, err, models.ErrPersistenceUnavailable)
	jane, err := s.Get("jane")
	require.NoError(t, err)
	require.Len(t, jane.Reviews, 1)
	require.Equal(t, "Actually fine.", jane.Reviews[0].Text)

	require.ErrorIs(t, s.AddReview("ghost", models.Review{Product: "Arrow Polo", Text: "x"}), models.ErrAccountNotFound)
	require.Empty(t, s.ProductReviews("Levis Pants"))
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	backend := NewFileBackend(path)
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

	in := map[string]*models.Account{
		"jane": {
			Username:   "jane",
			Credential: "$2a$04$abcdefghijklmnopqrstuv",
			Email:      "jane@example.com",
			Wishlist:   []string{"Arrow Polo"},
			Orders: []models.Order{{
				ID:        "ORD-1",
				CreatedAt: created,
				Items:     map[string]int{"Levis Pants": 1, "Pepe Jeans": 2},
				Total:     decimal.RequireFromString("157.60"),
				Payment:   models.PaymentUPI,
			}},
			Reviews: []models.Review{{
				Username:  "jane",
				Product:   "Arrow Polo",
				Text:      "Runs small.",
				CreatedAt: created,
			}},
		},
	}
	require.NoError(t, backend.Save(in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"date": "2026-03-14 09:26:53"`)
	require.Contains(t, string(raw), `"total": 157.6`)
	require.Contains(t, string(raw), `"payment_method": "UPI"`)

	out, err := backend.Load()
	require.NoError(t, err)
	jane := out["jane"]
	require.Equal(t, "jane", jane.Username)
	require.Equal(t, in["jane"].Credential, jane.Credential)
	require.Equal(t, []string{"Arrow Polo"}, jane.Wishlist)
	require.Len(t, jane.Orders, 1)
	require.Equal(t, "ORD-1", jane.Orders[0].ID)
	require.True(t, created.Equal(jane.Orders[0].CreatedAt))
	require.Equal(t, map[string]int{"Levis Pants": 1, "Pepe Jeans": 2}, jane.Orders[0].Items)
	require.True(t, decimal.RequireFromString("157.6").Equal(jane.Orders[0].Total))
	require.Equal(t, models.PaymentUPI, jane.Orders[0].Payment)
	require.Len(t, jane.Reviews, 1)
	require.Equal(t, "jane", jane.Reviews[0].Username)
	require.Equal(t, "Runs small.", jane.Reviews[0].Text)
	require.True(t, created.Equal(jane.Reviews[0].CreatedAt))
}

func TestMain(m *testing.M) {
	logger.SetDefault(logger.New(io.Discard, logger.ERROR, false))
	os.Exit(m.Run())
}
