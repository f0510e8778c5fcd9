package database

import (
	"database/sql"
	"fmt"
	"slices"
	"time"

	"storefront/internal/accounts"
	"storefront/internal/models"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Backend persists accounts in SQLite. Each Save replaces the stored mapping inside
// a single transaction.
type Backend struct {
	db *sql.DB
}

func NewBackend(db *sql.DB) *Backend {
	return &Backend{db: db}
}

func (b *Backend) Load() (map[string]*models.Account, error) {
	return LoadAccounts(b.db)
}

func (b *Backend) Save(accts map[string]*models.Account) error {
	return SaveAccounts(b.db, accts)
}

func LoadAccounts(db *sql.DB) (map[string]*models.Account, error) {
	rows, err := db.Query(`SELECT username, email, password_hash FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*models.Account)
	for rows.Next() {
		a := &models.Account{Wishlist: []string{}, Orders: []models.Order{}, Reviews: []models.Review{}}
		if err := rows.Scan(&a.Username, &a.Email, &a.Credential); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		result[a.Username] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	if len(result) == 0 {
		return nil, accounts.ErrNoState
	}

	if err := loadWishlists(db, result); err != nil {
		return nil, err
	}
	if err := loadOrders(db, result); err != nil {
		return nil, err
	}
	if err := loadReviews(db, result); err != nil {
		return nil, err
	}

	return result, nil
}

func loadWishlists(db *sql.DB, result map[string]*models.Account) error {
	rows, err := db.Query(`SELECT username, product_name FROM wishlist_items ORDER BY username, position`)
	if err != nil {
		return fmt.Errorf("failed to query wishlists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var username, product string
		if err := rows.Scan(&username, &product); err != nil {
			return fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		if a, ok := result[username]; ok {
			a.Wishlist = append(a.Wishlist, product)
		}
	}
	return rows.Err()
}

func loadOrders(db *sql.DB, result map[string]*models.Account) error {
	items := make(map[string]map[string]int)
	itemRows, err := db.Query(`SELECT order_id, product_name, quantity FROM order_items`)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID, product string
		var quantity int
		if err := itemRows.Scan(&orderID, &product, &quantity); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if items[orderID] == nil {
			items[orderID] = make(map[string]int)
		}
		items[orderID][product] = quantity
	}
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate order items: %w", err)
	}

	rows, err := db.Query(`SELECT id, username, placed_at, total, payment_method FROM orders ORDER BY username, seq`)
	if err != nil {
		return fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Order
		var username, placedAt, payment string
		var total decimal.Decimal
		if err := rows.Scan(&o.ID, &username, &placedAt, &total, &payment); err != nil {
			return fmt.Errorf("failed to scan order: %w", err)
		}
		o.CreatedAt, err = time.Parse(time.RFC3339Nano, placedAt)
		if err != nil {
			return fmt.Errorf("failed to parse order %s timestamp: %w", o.ID, err)
		}
		o.Total = total
		o.Payment = models.PaymentMethod(payment)
		o.Items = items[o.ID]
		if o.Items == nil {
			o.Items = map[string]int{}
		}
		if a, ok := result[username]; ok {
			a.Orders = append(a.Orders, o)
		}
	}
	return rows.Err()
}

func loadReviews(db *sql.DB, result map[string]*models.Account) error {
	rows, err := db.Query(`SELECT username, product_name, body, created_at FROM reviews ORDER BY username, position`)
	if err != nil {
		return fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.Review
		var createdAt string
		if err := rows.Scan(&r.Username, &r.Product, &r.Text, &createdAt); err != nil {
			return fmt.Errorf("failed to scan review: %w", err)
		}
		r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return fmt.Errorf("failed to parse review timestamp: %w", err)
		}
		if a, ok := result[r.Username]; ok {
			a.Reviews = append(a.Reviews, r)
		}
	}
	return rows.Err()
}

func SaveAccounts(db *sql.DB, accts map[string]*models.Account) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"reviews", "order_items", "orders", "wishlist_items", "users"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	usernames := lo.Keys(accts)
	slices.Sort(usernames)

	for _, username := range usernames {
		a := accts[username]
		_, err := tx.Exec(
			`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
			username, a.Email, a.Credential,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user %s: %w", username, err)
		}

		for i, product := range a.Wishlist {
			_, err := tx.Exec(
				`INSERT INTO wishlist_items (username, product_name, position) VALUES (?, ?, ?)`,
				username, product, i,
			)
			if err != nil {
				return fmt.Errorf("failed to insert wishlist item: %w", err)
			}
		}

		for seq, o := range a.Orders {
			_, err := tx.Exec(
				`INSERT INTO orders (id, username, seq, placed_at, total, payment_method) VALUES (?, ?, ?, ?, ?, ?)`,
				o.ID, username, seq, o.CreatedAt.Format(time.RFC3339Nano), o.Total.String(), string(o.Payment),
			)
			if err != nil {
				return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
			}
			for product, quantity := range o.Items {
				_, err := tx.Exec(
					`INSERT INTO order_items (order_id, product_name, quantity) VALUES (?, ?, ?)`,
					o.ID, product, quantity,
				)
				if err != nil {
					return fmt.Errorf("failed to insert order item: %w", err)
				}
			}
		}

		for i, r := range a.Reviews {
			_, err := tx.Exec(
				`INSERT INTO reviews (username, product_name, body, position, created_at) VALUES (?, ?, ?, ?, ?)`,
				username, r.Product, r.Text, i, r.CreatedAt.Format(time.RFC3339Nano),
			)
			if err != nil {
				return fmt.Errorf("failed to insert review: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accounts: %w", err)
	}

	return nil
}
