package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

func Initialize(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func Migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS wishlist_items (
			username TEXT NOT NULL,
			product_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			FOREIGN KEY (username) REFERENCES users(username) ON DELETE CASCADE,
			PRIMARY KEY (username, product_name)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			seq INTEGER NOT NULL,
			placed_at TEXT NOT NULL,
			total TEXT NOT NULL,
			payment_method TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (username) REFERENCES users(username) ON DELETE CASCADE,
			UNIQUE(username, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			order_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
			PRIMARY KEY (order_id, product_name)
		)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			username TEXT NOT NULL,
			product_name TEXT NOT NULL,
			body TEXT NOT NULL,
			position INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (username) REFERENCES users(username) ON DELETE CASCADE,
			PRIMARY KEY (username, product_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_username ON orders(username)`,
		`CREATE INDEX IF NOT EXISTS idx_wishlist_items_username ON wishlist_items(username)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_product ON reviews(product_name)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
