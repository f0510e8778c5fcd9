package models

import "errors"

var (
	// sign-up
	ErrDuplicateUsername = errors.New("username already exists")
	ErrInvalidEmail      = errors.New("invalid email format")
	ErrMissingField      = errors.New("all fields must be filled")

	// login
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTooManyAttempts    = errors.New("too many login attempts, try again later")
	ErrNotAuthenticated   = errors.New("not logged in")

	// cart
	ErrUnknownProduct       = errors.New("unknown product")
	ErrInvalidCoupon        = errors.New("invalid coupon code")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrQuantityTooLarge     = errors.New("quantity too large")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	ErrAccountNotFound        = errors.New("account not found")
	ErrPersistenceUnavailable = errors.New("account data unavailable")
)
