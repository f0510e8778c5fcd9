package cart

import (
	"storefront/internal/models"

	"github.com/samber/mo"
	"github.com/shopspring/decimal"
)

// Session is the transient state of the one interactive user: who is signed in,
// what is in the cart, which discount applies and how the user intends to pay.
// Only Engine mutates it.
type Session struct {
	account    mo.Option[string]
	items      map[string]int
	order      []string
	multiplier decimal.Decimal
	payment    mo.Option[models.PaymentMethod]
}

func NewSession() *Session {
	return &Session{
		account:    mo.None[string](),
		items:      make(map[string]int),
		multiplier: decimal.NewFromInt(1),
		payment:    mo.None[models.PaymentMethod](),
	}
}

// Username returns the signed-in account, if any.
func (s *Session) Username() (string, bool) {
	return s.account.Get()
}

func (s *Session) Authenticated() bool {
	return s.account.IsPresent()
}

// Quantity returns 0 for products not in the cart.
func (s *Session) Quantity(productName string) int {
	return s.items[productName]
}

// Len is the number of distinct products in the cart.
func (s *Session) Len() int {
	return len(s.items)
}

func (s *Session) Multiplier() decimal.Decimal {
	return s.multiplier
}

// PaymentMethod returns the method chosen for the next checkout, if any.
func (s *Session) PaymentMethod() (models.PaymentMethod, bool) {
	return s.payment.Get()
}

func (s *Session) snapshot() map[string]int {
	items := make(map[string]int, len(s.items))
	for name, qty := range s.items {
		items[name] = qty
	}
	return items
}

func (s *Session) increment(productName string, delta int) {
	qty, ok := s.items[productName]
	if !ok {
		s.order = append(s.order, productName)
	}
	s.set(productName, qty+delta)
}

// set stores a quantity, dropping the entry when it is not positive.
func (s *Session) set(productName string, qty int) {
	if qty > 0 {
		s.items[productName] = qty
		return
	}
	delete(s.items, productName)
	for i, name := range s.order {
		if name == productName {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Session) clear() {
	s.items = make(map[string]int)
	s.order = nil
	s.multiplier = decimal.NewFromInt(1)
	s.payment = mo.None[models.PaymentMethod]()
}
