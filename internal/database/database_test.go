package database

import (
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"storefront/internal/accounts"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Initialize(filepath.Join(t.TempDir(), "storefront.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(db))
	return db
}

func TestMigrateIsRepeatable(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, Migrate(db))
}

func TestLoadEmptyDatabase(t *testing.T) {
	db := setupTestDB(t)

	_, err := LoadAccounts(db)
	require.ErrorIs(t, err, accounts.ErrNoState)
}

func TestSaveAndLoadAccounts(t *testing.T) {
	db := setupTestDB(t)
	placed := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)

	in := map[string]*models.Account{
		"jane": {
			Username:   "jane",
			Credential: "$2a$04$hash",
			Email:      "jane@example.com",
			Wishlist:   []string{"Pepe Jeans", "Arrow Polo"},
			Orders: []models.Order{
				{
					ID:        "ORD-a",
					CreatedAt: placed,
					Items:     map[string]int{"Levis Pants": 1, "Pepe Jeans": 2},
					Total:     decimal.RequireFromString("157.60"),
				},
				{
					ID:        "ORD-b",
					CreatedAt: placed.Add(time.Hour),
					Items:     map[string]int{"Arrow Polo": 1},
					Total:     decimal.NewFromInt(59),
					Payment:   models.PaymentCard,
				},
			},
			Reviews: []models.Review{
				{Username: "jane", Product: "Levis Pants", Text: "Sturdy.", CreatedAt: placed},
				{Username: "jane", Product: "Arrow Polo", Text: "Soft fabric.", CreatedAt: placed.Add(time.Minute)},
			},
		},
		"admin": {
			Username:   "admin",
			Credential: "$2a$04$other",
			Email:      "admin@example.com",
			Wishlist:   []string{},
			Orders:     []models.Order{},
		},
	}
	require.NoError(t, SaveAccounts(db, in))

	out, err := LoadAccounts(db)
	require.NoError(t, err)
	require.Len(t, out, 2)

	jane := out["jane"]
	require.Equal(t, "jane@example.com", jane.Email)
	require.Equal(t, "$2a$04$hash", jane.Credential)
	require.Equal(t, []string{"Pepe Jeans", "Arrow Polo"}, jane.Wishlist)
	require.Len(t, jane.Orders, 2)
	require.Equal(t, "ORD-a", jane.Orders[0].ID)
	require.Equal(t, "ORD-b", jane.Orders[1].ID)
	require.True(t, placed.Equal(jane.Orders[0].CreatedAt))
	require.Equal(t, map[string]int{"Levis Pants": 1, "Pepe Jeans": 2}, jane.Orders[0].Items)
	require.True(t, decimal.RequireFromString("157.6").Equal(jane.Orders[0].Total))
	require.Empty(t, jane.Orders[0].Payment)
	require.Equal(t, models.PaymentCard, jane.Orders[1].Payment)

	require.Len(t, jane.Reviews, 2)
	require.Equal(t, "Levis Pants", jane.Reviews[0].Product)
	require.Equal(t, "Soft fabric.", jane.Reviews[1].Text)
	require.Equal(t, "jane", jane.Reviews[1].Username)
	require.True(t, placed.Add(time.Minute).Equal(jane.Reviews[1].CreatedAt))

	require.Empty(t, out["admin"].Wishlist)
	require.Empty(t, out["admin"].Orders)
	require.Empty(t, out["admin"].Reviews)
}

// A second save replaces the mapping rather than merging into it.
func TestSaveReplacesPreviousState(t *testing.T) {
	db := setupTestDB(t)

	first := map[string]*models.Account{
		"jane": {Username: "jane", Credential: "x", Email: "jane@example.com", Wishlist: []string{"Arrow Polo"}},
	}
	require.NoError(t, SaveAccounts(db, first))

	second := map[string]*models.Account{
		"jane": {Username: "jane", Credential: "y", Email: "jane@example.com", Wishlist: []string{}},
	}
	require.NoError(t, SaveAccounts(db, second))

	out, err := LoadAccounts(db)
	require.NoError(t, err)
	require.Equal(t, "y", out["jane"].Credential)
	require.Empty(t, out["jane"].Wishlist)
}

// A failing save leaves the previous state intact.
func TestSaveIsTransactional(t *testing.T) {
	db := setupTestDB(t)

	good := map[string]*models.Account{
		"jane": {Username: "jane", Credential: "x", Email: "jane@example.com"},
	}
	require.NoError(t, SaveAccounts(db, good))

	bad := map[string]*models.Account{
		"jane": {
			Username: "jane", Credential: "x", Email: "jane@example.com",
			Orders: []models.Order{{ID: "ORD-1", Items: map[string]int{"Levis Pants": 0}, Total: decimal.Zero}},
		},
	}
	require.Error(t, SaveAccounts(db, bad))

	out, err := LoadAccounts(db)
	require.NoError(t, err)
	require.Empty(t, out["jane"].Orders)
}

func TestStoreOverSQLite(t *testing.T) {
	db := setupTestDB(t)
	store := accounts.NewStore(NewBackend(db), accounts.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, store.Load())

	_, err := store.SignUp("jane", "s3cret!", "jane@example.com")
	require.NoError(t, err)
	require.NoError(t, store.AddToWishlist("jane", "Arrow Polo"))

	reloaded := accounts.NewStore(NewBackend(db), accounts.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, reloaded.Load())
	require.False(t, reloaded.Degraded())

	jane, err := reloaded.Authenticate("jane", "s3cret!")
	require.NoError(t, err)
	require.Equal(t, []string{"Arrow Polo"}, jane.Wishlist)

	_, err = reloaded.Authenticate("admin", "password")
	require.NoError(t, err)
}

func TestMain(m *testing.M) {
	logger.SetDefault(logger.New(io.Discard, logger.ERROR, false))
	code := m.Run()
	os.Exit(code)
}
