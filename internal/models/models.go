package models

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether email passes the basic syntactic check used at sign-up.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

type Product struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Style       string          `json:"style"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
}

type Account struct {
	Username   string   `json:"username"`
	Credential string   `json:"-"`
	Email      string   `json:"email"`
	Wishlist   []string `json:"wishlist"`
	Orders     []Order  `json:"orders"`
	Reviews    []Review `json:"reviews"`
}

// Clone returns a deep copy so callers cannot reach the store's records.
func (a *Account) Clone() *Account {
	c := *a
	c.Wishlist = slices.Clone(a.Wishlist)
	c.Orders = make([]Order, len(a.Orders))
	for i, o := range a.Orders {
		c.Orders[i] = o.Clone()
	}
	c.Reviews = slices.Clone(a.Reviews)
	return &c
}

type Order struct {
	ID        string          `json:"order_id"`
	CreatedAt time.Time       `json:"created_at"`
	Items     map[string]int  `json:"items"`
	Total     decimal.Decimal `json:"total"`
	// Payment is empty when no method was chosen before checkout.
	Payment PaymentMethod `json:"payment_method,omitempty"`
}

func (o Order) Clone() Order {
	items := make(map[string]int, len(o.Items))
	for name, qty := range o.Items {
		items[name] = qty
	}
	o.Items = items
	return o
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "Cash"
	PaymentCard PaymentMethod = "Card"
	PaymentUPI  PaymentMethod = "UPI"
)

var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentUPI}

// ParsePaymentMethod matches name case-insensitively against PaymentMethods.
func ParsePaymentMethod(name string) (PaymentMethod, error) {
	name = strings.TrimSpace(name)
	m, ok := lo.Find(PaymentMethods, func(m PaymentMethod) bool {
		return strings.EqualFold(string(m), name)
	})
	if !ok {
		return "", ErrInvalidPaymentMethod
	}
	return m, nil
}

// Review is an account's free-text opinion of a catalog product. An account keeps
// at most one review per product.
type Review struct {
	Username  string    `json:"username"`
	Product   string    `json:"product"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLine is one cart entry priced against the catalog.
type CartLine struct {
	Product   Product
	Quantity  int
	LineTotal decimal.Decimal
}

type Totals struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	Multiplier decimal.Decimal
}

type AccountSummary struct {
	Username     string
	Email        string
	OrderCount   int
	TotalSpent   decimal.Decimal
	WishlistSize int
}
