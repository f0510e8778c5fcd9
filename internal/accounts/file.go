package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const dateLayout = "2006-01-02 15:04:05"

// FileBackend keeps accounts in a single JSON document keyed by username.
// Writes replace the file in place.
type FileBackend struct {
	path string
}

type accountRecord struct {
	Password string         `json:"password"`
	Email    string         `json:"email"`
	Wishlist []string       `json:"wishlist"`
	Orders   []orderRecord  `json:"orders"`
	Reviews  []reviewRecord `json:"reviews,omitempty"`
}

type orderRecord struct {
	OrderID       string         `json:"order_id"`
	Date          string         `json:"date"`
	Items         map[string]int `json:"items"`
	Total         float64        `json:"total"`
	PaymentMethod string         `json:"payment_method,omitempty"`
}

type reviewRecord struct {
	Product string `json:"product"`
	Text    string `json:"text"`
	Date    string `json:"date"`
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Load() (map[string]*models.Account, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoState, b.path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}

	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("%s does not hold a JSON object", b.path)
	}

	var records map[string]accountRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", b.path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoState, b.path)
	}

	accounts := make(map[string]*models.Account, len(records))
	for username, r := range records {
		accounts[username] = toAccount(username, r)
	}
	return accounts, nil
}

func (b *FileBackend) Save(accounts map[string]*models.Account) error {
	records := make(map[string]accountRecord, len(accounts))
	for username, a := range accounts {
		records[username] = toRecord(a)
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", b.path, err)
	}
	return nil
}

func toAccount(username string, r accountRecord) *models.Account {
	a := &models.Account{
		Username:   username,
		Credential: r.Password,
		Email:      r.Email,
		Wishlist:   append([]string{}, r.Wishlist...),
		Orders:     make([]models.Order, 0, len(r.Orders)),
		Reviews:    make([]models.Review, 0, len(r.Reviews)),
	}
	for _, o := range r.Orders {
		// an unparseable date keeps the order with a zero timestamp
		created, _ := time.ParseInLocation(dateLayout, o.Date, time.Local)
		items := o.Items
		if items == nil {
			items = map[string]int{}
		}
		a.Orders = append(a.Orders, models.Order{
			ID:        o.OrderID,
			CreatedAt: created,
			Items:     items,
			Total:     decimal.NewFromFloat(o.Total).Round(2),
			Payment:   models.PaymentMethod(o.PaymentMethod),
		})
	}
	for _, rv := range r.Reviews {
		created, _ := time.ParseInLocation(dateLayout, rv.Date, time.Local)
		a.Reviews = append(a.Reviews, models.Review{
			Username:  username,
			Product:   rv.Product,
			Text:      rv.Text,
			CreatedAt: created,
		})
	}
	return a
}

func toRecord(a *models.Account) accountRecord {
	r := accountRecord{
		Password: a.Credential,
		Email:    a.Email,
		Wishlist: append([]string{}, a.Wishlist...),
		Orders:   make([]orderRecord, 0, len(a.Orders)),
	}
	for _, o := range a.Orders {
		r.Orders = append(r.Orders, orderRecord{
			OrderID:       o.ID,
			Date:          o.CreatedAt.Local().Format(dateLayout),
			Items:         o.Items,
			Total:         o.Total.Round(2).InexactFloat64(),
			PaymentMethod: string(o.Payment),
		})
	}
	for _, rv := range a.Reviews {
		r.Reviews = append(r.Reviews, reviewRecord{
			Product: rv.Product,
			Text:    rv.Text,
			Date:    rv.CreatedAt.Local().Format(dateLayout),
		})
	}
	return r
}
