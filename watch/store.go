// Package watch implements the watchlist: markets the deployment keeps
// an eye on, and the poller work unit that refreshes them.
package watch

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/oddsmith/arbiter/errors"
)

// Item is one watched market.
type Item struct {
	ID            string     `json:"id"`
	Market        string     `json:"market"`
	AddedAt       time.Time  `json:"added_at"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	LastPrice     *float64   `json:"last_price,omitempty"`
}

// Store handles persistence of watched items.
type Store struct {
	db *sql.DB
}

// NewStore creates a watchlist store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Add inserts a watched market. Duplicate markets conflict.
func (s *Store) Add(market string) (*Item, error) {
	if market == "" {
		return nil, errors.Mark(errors.New("market cannot be empty"), errors.ErrInvalidRequest)
	}

	item := &Item{
		ID:      "wch_" + uuid.NewString(),
		Market:  market,
		AddedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO watched_items (id, market, added_at) VALUES (?, ?, ?)`,
		item.ID, item.Market, item.AddedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Mark(errors.Newf("market %s is already watched", market), errors.ErrConflict)
		}
		return nil, errors.Wrapf(err, "failed to add watched market %s", market)
	}
	return item, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// List returns all watched items, least recently checked first, so the
// poller refreshes the stalest markets ahead of the rest.
func (s *Store) List() ([]*Item, error) {
	rows, err := s.db.Query(
		`SELECT id, market, added_at, last_checked_at, last_price
		 FROM watched_items
		 ORDER BY last_checked_at ASC NULLS FIRST, added_at ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list watched items")
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var item Item
		var checkedAt sql.NullTime
		var price sql.NullFloat64
		if err := rows.Scan(&item.ID, &item.Market, &item.AddedAt, &checkedAt, &price); err != nil {
			return nil, errors.Wrap(err, "failed to scan watched item")
		}
		if checkedAt.Valid {
			item.LastCheckedAt = &checkedAt.Time
		}
		if price.Valid {
			item.LastPrice = &price.Float64
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating watched items")
	}
	return items, nil
}

// Touch records a completed check and its observed price.
func (s *Store) Touch(id string, price float64) error {
	_, err := s.db.Exec(
		`UPDATE watched_items SET last_checked_at = ?, last_price = ? WHERE id = ?`,
		time.Now().UTC(), price, id,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to touch watched item %s", id)
	}
	return nil
}

// Count returns the number of watched items.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM watched_items`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count watched items")
	}
	return n, nil
}

// DeleteAll is the administrative purge of the watchlist. It removes
// watched items only; job records are never purged here.
func (s *Store) DeleteAll() (int, error) {
	result, err := s.db.Exec(`DELETE FROM watched_items`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge watched items")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(rows), nil
}
