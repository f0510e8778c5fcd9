// Package accounts owns the durable username -> account mapping: sign-up, login,
// wishlists and order history, persisted through a pluggable Backend.
package accounts

import (
	"cmp"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"strings"

	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoState is returned by a Backend that has never persisted anything.
var ErrNoState = errors.New("no persisted account state")

// Backend reads and writes the full account mapping.
type Backend interface {
	Load() (map[string]*models.Account, error)
	Save(accounts map[string]*models.Account) error
}

type AdminSeed struct {
	Username string
	Password string
	Email    string
}

type Option func(*Store)

func WithBcryptCost(cost int) Option {
	return func(s *Store) { s.cost = cost }
}

func WithDefaultAdmin(seed AdminSeed) Option {
	return func(s *Store) { s.admin = seed }
}

// Store is the in-memory view of all accounts. It is not safe for concurrent use.
type Store struct {
	backend   Backend
	accounts  map[string]*models.Account
	cost      int
	admin     AdminSeed
	degraded  bool
	dummyHash []byte
}

func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		accounts: make(map[string]*models.Account),
		cost:     bcrypt.DefaultCost,
		admin: AdminSeed{
			Username: "admin",
			Password: "password",
			Email:    "admin@example.com",
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory accounts with the persisted ones. Missing or unreadable
// data falls back to a single default admin account; only a hashing failure is returned.
func (s *Store) Load() error {
	accounts, err := s.backend.Load()
	switch {
	case err == nil:
		s.accounts = accounts
		s.degraded = false
		logger.Info("Account data loaded", "accounts", len(accounts))
		return nil
	case errors.Is(err, ErrNoState):
		logger.Info("No account data found, initializing with default admin")
		s.degraded = false
	default:
		logger.Error("Failed to load account data, initializing with default admin", "error", err)
		s.degraded = true
	}

	admin, err := s.newAccount(s.admin.Username, s.admin.Password, s.admin.Email)
	if err != nil {
		return err
	}
	s.accounts = map[string]*models.Account{admin.Username: admin}
	return nil
}

// Degraded reports whether the last Load fell back to defaults because the
// persisted data could not be read.
func (s *Store) Degraded() bool {
	return s.degraded
}

// Save writes every account through the backend.
func (s *Store) Save() error {
	if err := s.backend.Save(s.accounts); err != nil {
		logger.Error("Failed to save account data", "error", err)
		return fmt.Errorf("failed to save accounts: %w: %w", models.ErrPersistenceUnavailable, err)
	}
	s.degraded = false
	logger.Debug("Account data saved", "accounts", len(s.accounts))
	return nil
}

func (s *Store) SignUp(username, password, email string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" || password == "" || email == "" {
		logger.Warn("Sign-up failed: missing field")
		return nil, models.ErrMissingField
	}
	if !models.ValidEmail(email) {
		logger.Warn("Sign-up failed: invalid email", "username", username, "email", email)
		return nil, models.ErrInvalidEmail
	}
	if _, exists := s.accounts[username]; exists {
		logger.Warn("Sign-up failed: username taken", "username", username)
		return nil, models.ErrDuplicateUsername
	}

	account, err := s.newAccount(username, password, email)
	if err != nil {
		return nil, err
	}

	s.accounts[username] = account
	if err := s.Save(); err != nil {
		delete(s.accounts, username)
		return nil, err
	}

	logger.Info("New user signed up", "username", username, "email", email)
	return account.Clone(), nil
}

// Authenticate checks a password. Unknown usernames, wrong passwords and empty
// passwords on either side return ErrInvalidCredentials. A legacy plaintext credential is replaced by a hash on the
// first successful login.
func (s *Store) Authenticate(username, password string) (*models.Account, error) {
	account, ok := s.accounts[username]
	if !ok {
		// keep the timing of an unknown user close to a wrong password
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		logger.Warn("Failed login attempt: unknown username", "username", username)
		return nil, models.ErrInvalidCredentials
	}

	if password == "" || account.Credential == "" {
		logger.Warn("Failed login attempt: empty credential", "username", username)
		return nil, models.ErrInvalidCredentials
	}

	if IsHashed(account.Credential) {
		if err := bcrypt.CompareHashAndPassword([]byte(account.Credential), []byte(password)); err != nil {
			logger.Warn("Failed login attempt: wrong password", "username", username)
			return nil, models.ErrInvalidCredentials
		}
		logger.Info("User logged in", "username", username)
		return account.Clone(), nil
	}

	if subtle.ConstantTimeCompare([]byte(account.Credential), []byte(password)) != 1 {
		logger.Warn("Failed login attempt: wrong password", "username", username)
		return nil, models.ErrInvalidCredentials
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	account.Credential = hash
	if err := s.Save(); err != nil {
		logger.Warn("Migrated credential kept in memory only", "username", username)
	} else {
		logger.Info("User logged in with legacy credential, credential hashed and saved", "username", username)
	}
	return account.Clone(), nil
}

func (s *Store) Get(username string) (*models.Account, error) {
	account, ok := s.accounts[username]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// AddToWishlist is a no-op when the product is already listed.
func (s *Store) AddToWishlist(username, productName string) error {
	account, ok := s.accounts[username]
	if !ok {
		return models.ErrAccountNotFound
	}
	if lo.Contains(account.Wishlist, productName) {
		logger.Debug("Wishlist already contains product", "username", username, "product", productName)
		return nil
	}

	account.Wishlist = append(account.Wishlist, productName)
	if err := s.Save(); err != nil {
		account.Wishlist = account.Wishlist[:len(account.Wishlist)-1]
		return err
	}
	logger.Info("Added product to wishlist", "username", username, "product", productName)
	return nil
}

// RemoveFromWishlist is a no-op when the product is not listed.
func (s *Store) RemoveFromWishlist(username, productName string) error {
	account, ok := s.accounts[username]
	if !ok {
		return models.ErrAccountNotFound
	}
	idx := lo.IndexOf(account.Wishlist, productName)
	if idx < 0 {
		logger.Debug("Wishlist does not contain product", "username", username, "product", productName)
		return nil
	}

	previous := account.Wishlist
	account.Wishlist = append(append([]string(nil), previous[:idx]...), previous[idx+1:]...)
	if err := s.Save(); err != nil {
		account.Wishlist = previous
		return err
	}
	logger.Info("Removed product from wishlist", "username", username, "product", productName)
	return nil
}

// AppendOrder records a completed order. On a persistence failure the order is
// dropped again so the history matches what is on disk.
func (s *Store) AppendOrder(username string, order models.Order) error {
	account, ok := s.accounts[username]
	if !ok {
		return models.ErrAccountNotFound
	}

	account.Orders = append(account.Orders, order.Clone())
	if err := s.Save(); err != nil {
		account.Orders = account.Orders[:len(account.Orders)-1]
		return err
	}
	return nil
}

// AddReview stores review under username, replacing that account's earlier review
// of the same product.
func (s *Store) AddReview(username string, review models.Review) error {
	account, ok := s.accounts[username]
	if !ok {
		return models.ErrAccountNotFound
	}
	review.Username = username

	previous := account.Reviews
	account.Reviews = append(lo.Reject(previous, func(r models.Review, _ int) bool {
		return r.Product == review.Product
	}), review)
	if err := s.Save(); err != nil {
		account.Reviews = previous
		return err
	}
	logger.Info("Review saved", "username", username, "product", review.Product)
	return nil
}

// ProductReviews returns every account's review of productName, oldest first.
func (s *Store) ProductReviews(productName string) []models.Review {
	reviews := lo.FlatMap(lo.Values(s.accounts), func(a *models.Account, _ int) []models.Review {
		return lo.Filter(a.Reviews, func(r models.Review, _ int) bool { return r.Product == productName })
	})
	slices.SortFunc(reviews, func(a, b models.Review) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	return reviews
}

func (s *Store) Summary(username string) (models.AccountSummary, error) {
	account, ok := s.accounts[username]
	if !ok {
		return models.AccountSummary{}, models.ErrAccountNotFound
	}
	spent := decimal.Zero
	for _, o := range account.Orders {
		spent = spent.Add(o.Total)
	}
	return models.AccountSummary{
		Username:     account.Username,
		Email:        account.Email,
		OrderCount:   len(account.Orders),
		TotalSpent:   spent,
		WishlistSize: len(account.Wishlist),
	}, nil
}

func (s *Store) newAccount(username, password, email string) (*models.Account, error) {
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	return &models.Account{
		Username:   username,
		Credential: hash,
		Email:      email,
		Wishlist:   []string{},
		Orders:     []models.Order{},
		Reviews:    []models.Review{},
	}, nil
}

func (s *Store) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *Store) dummy() []byte {
	if s.dummyHash == nil {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storefront"), s.cost)
	}
	return s.dummyHash
}

// IsHashed reports whether a stored credential is a bcrypt hash rather than a
// legacy plaintext password.
func IsHashed(credential string) bool {
	_, err := bcrypt.Cost([]byte(credential))
	return err == nil
}
