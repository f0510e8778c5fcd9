// Package cart prices a Session's cart against the catalog, applies coupons and turns
// a cart into an order on the signed-in account.
package cart

import (
	"fmt"
	"math"
	"strings"
	"time"

	"storefront/internal/catalog"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

var coupons = map[string]decimal.Decimal{
	"DISCOUNT20": decimal.RequireFromString("0.80"),
}

// AccountStore is the part of the account store the engine drives.
type AccountStore interface {
	SignUp(username, password, email string) (*models.Account, error)
	Authenticate(username, password string) (*models.Account, error)
	Get(username string) (*models.Account, error)
	Summary(username string) (models.AccountSummary, error)
	AddToWishlist(username, productName string) error
	RemoveFromWishlist(username, productName string) error
	AppendOrder(username string, order models.Order) error
	AddReview(username string, review models.Review) error
	ProductReviews(productName string) []models.Review
}

type Option func(*Engine)

// WithLoginLimit allows n login attempts per minute; 0 disables the limit.
func WithLoginLimit(n int) Option {
	return func(e *Engine) {
		if n <= 0 {
			e.limiter = nil
			return
		}
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithOrderIDs(newID func() (string, error)) Option {
	return func(e *Engine) { e.newID = newID }
}

type Engine struct {
	catalog *catalog.Catalog
	store   AccountStore
	limiter *rate.Limiter
	now     func() time.Time
	newID   func() (string, error)
}

func NewEngine(c *catalog.Catalog, store AccountStore, opts ...Option) *Engine {
	e := &Engine{
		catalog: c,
		store:   store,
		now:     time.Now,
		newID:   newOrderID,
	}
	WithLoginLimit(5)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// newOrderID returns a time-ordered id so later orders sort after earlier ones.
func newOrderID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate order id: %w", err)
	}
	return "ORD-" + id.String(), nil
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// SignUp creates an account without signing it in.
func (e *Engine) SignUp(username, password, email string) (*models.Account, error) {
	return e.store.SignUp(username, password, email)
}

// Login authenticates and makes the account active. Signing in as a different
// user drops the previous user's cart and discount.
func (e *Engine) Login(s *Session, username, password string) (*models.Account, error) {
	if e.limiter != nil && !e.limiter.Allow() {
		logger.Warn("Login rate limit exceeded", "username", username)
		return nil, models.ErrTooManyAttempts
	}

	account, err := e.store.Authenticate(username, password)
	if err != nil {
		return nil, err
	}

	if current, ok := s.Username(); ok && current != account.Username {
		s.clear()
	}
	s.account = mo.Some(account.Username)
	return account, nil
}

// Logout returns the session to anonymous and always clears cart and discount.
func (e *Engine) Logout(s *Session) {
	if username, ok := s.Username(); ok {
		logger.Info("User logged out", "username", username)
	}
	s.account = mo.None[string]()
	s.clear()
}

func (e *Engine) AddItem(s *Session, productName string) error {
	username, err := e.requireAuth(s)
	if err != nil {
		return err
	}
	if _, ok := e.catalog.Lookup(productName); !ok {
		return models.ErrUnknownProduct
	}
	if s.Quantity(productName) == math.MaxInt {
		return models.ErrQuantityTooLarge
	}

	s.increment(productName, 1)
	logger.Info("Added product to cart", "username", username, "product", productName, "quantity", s.Quantity(productName))
	return nil
}

// ChangeQuantity applies delta to a product already in the cart and removes the
// entry once the quantity drops to zero or below. Products not in the cart are left
// alone, and an increase that would overflow is rejected.
func (e *Engine) ChangeQuantity(s *Session, productName string, delta int) error {
	username, err := e.requireAuth(s)
	if err != nil {
		return err
	}
	if _, ok := e.catalog.Lookup(productName); !ok {
		return models.ErrUnknownProduct
	}

	qty, ok := s.items[productName]
	if !ok || delta == 0 {
		return nil
	}
	if delta > 0 && qty > math.MaxInt-delta {
		return models.ErrQuantityTooLarge
	}

	s.set(productName, qty+delta)
	if remaining := s.Quantity(productName); remaining > 0 {
		logger.Info("Changed cart quantity", "username", username, "product", productName, "quantity", remaining)
	} else {
		logger.Info("Removed product from cart", "username", username, "product", productName)
	}
	return nil
}

func (e *Engine) RemoveItem(s *Session, productName string) error {
	if _, err := e.requireAuth(s); err != nil {
		return err
	}
	if _, ok := e.catalog.Lookup(productName); !ok {
		return models.ErrUnknownProduct
	}
	s.set(productName, 0)
	return nil
}

// ApplyCoupon matches code case-insensitively. An unknown code resets the discount.
func (e *Engine) ApplyCoupon(s *Session, code string) error {
	username, _ := s.Username()
	normalized := strings.ToUpper(strings.TrimSpace(code))

	multiplier, ok := coupons[normalized]
	if !ok {
		s.multiplier = decimal.NewFromInt(1)
		logger.Warn("Invalid coupon", "username", username, "coupon", code)
		return models.ErrInvalidCoupon
	}

	s.multiplier = multiplier
	logger.Info("Coupon applied", "username", username, "coupon", normalized)
	return nil
}

// SelectPaymentMethod records how the next checkout will be paid. The choice is
// kept with the order; no payment is taken.
func (e *Engine) SelectPaymentMethod(s *Session, name string) error {
	username, err := e.requireAuth(s)
	if err != nil {
		return err
	}
	method, err := models.ParsePaymentMethod(name)
	if err != nil {
		logger.Warn("Invalid payment method", "username", username, "method", name)
		return err
	}
	s.payment = mo.Some(method)
	logger.Info("Payment method selected", "username", username, "method", string(method))
	return nil
}

// Lines lists the cart in the order products were first added.
func (e *Engine) Lines(s *Session) []models.CartLine {
	lines := make([]models.CartLine, 0, len(s.order))
	for _, name := range s.order {
		p, ok := e.catalog.Lookup(name)
		if !ok {
			continue
		}
		qty := s.items[name]
		lines = append(lines, models.CartLine{
			Product:   p,
			Quantity:  qty,
			LineTotal: p.Price.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	return lines
}

// ComputeTotals prices the cart. Total is rounded to cents and Discount is the
// difference to the subtotal.
func (e *Engine) ComputeTotals(s *Session) models.Totals {
	subtotal := decimal.Zero
	for _, line := range e.Lines(s) {
		subtotal = subtotal.Add(line.LineTotal)
	}
	total := subtotal.Mul(s.multiplier).Round(2)
	return models.Totals{
		Subtotal:   subtotal,
		Discount:   subtotal.Sub(total),
		Total:      total,
		Multiplier: s.multiplier,
	}
}

// Checkout records the cart as an order on the signed-in account, then empties the
// cart and resets the discount. If recording fails the session is left untouched.
func (e *Engine) Checkout(s *Session) (models.Order, error) {
	username, err := e.requireAuth(s)
	if err != nil {
		return models.Order{}, err
	}
	if s.Len() == 0 {
		return models.Order{}, models.ErrEmptyCart
	}

	id, err := e.newID()
	if err != nil {
		return models.Order{}, err
	}

	order := models.Order{
		ID:        id,
		CreatedAt: e.now(),
		Items:     s.snapshot(),
		Total:     e.ComputeTotals(s).Total,
		Payment:   s.payment.OrEmpty(),
	}
	if err := e.store.AppendOrder(username, order); err != nil {
		logger.Error("Checkout failed", "username", username, "order_id", order.ID, "error", err)
		return models.Order{}, err
	}

	s.clear()
	logger.Info("Order placed", "username", username, "order_id", order.ID, "total", order.Total.StringFixed(2))
	return order, nil
}

func (e *Engine) AddToWishlist(s *Session, productName string) error {
	username, err := e.requireAuth(s)
	if err != nil {
		return err
	}
	if _, ok := e.catalog.Lookup(productName); !ok {
		return models.ErrUnknownProduct
	}
	return e.store.AddToWishlist(username, productName)
}

// RemoveFromWishlist accepts names no longer in the catalog so stale entries can be cleared.
func (e *Engine) RemoveFromWishlist(s *Session, productName string) error {
	username, err := e.requireAuth(s)
	if err != nil {
		return err
	}
	return e.store.RemoveFromWishlist(username, productName)
}

// WriteReview stores the signed-in user's review of a catalog product, replacing any
// earlier review they wrote for it.
func (e *Engine) WriteReview(s *Session, productName, text string) (models.Review, error) {
	username, err := e.requireAuth(s)
	if err != nil {
		return models.Review{}, err
	}
	if _, ok := e.catalog.Lookup(productName); !ok {
		return models.Review{}, models.ErrUnknownProduct
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Review{}, models.ErrMissingField
	}

	review := models.Review{
		Username:  username,
		Product:   productName,
		Text:      text,
		CreatedAt: e.now(),
	}
	if err := e.store.AddReview(username, review); err != nil {
		return models.Review{}, err
	}
	return review, nil
}

// Reviews lists every review of a catalog product, oldest first. No login is needed.
func (e *Engine) Reviews(productName string) ([]models.Review, error) {
	if _, ok := e.catalog.Lookup(productName); !ok {
		return nil, models.ErrUnknownProduct
	}
	return e.store.ProductReviews(productName), nil
}

// Profile returns a copy of the signed-in account with its summary.
func (e *Engine) Profile(s *Session) (*models.Account, models.AccountSummary, error) {
	username, err := e.requireAuth(s)
	if err != nil {
		return nil, models.AccountSummary{}, err
	}
	account, err := e.store.Get(username)
	if err != nil {
		return nil, models.AccountSummary{}, err
	}
	summary, err := e.store.Summary(username)
	if err != nil {
		return nil, models.AccountSummary{}, err
	}
	return account, summary, nil
}

func (e *Engine) requireAuth(s *Session) (string, error) {
	username, ok := s.Username()
	if !ok {
		logger.Debug("Rejected action without login")
		return "", models.ErrNotAuthenticated
	}
	return username, nil
}
