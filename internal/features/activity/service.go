// Package activity exposes the append-only activity log.
package activity

import (
	"context"
	"fmt"
	"time"

	"stakehub/internal/ledger"
)

type Entry struct {
	ID          int64     `json:"id"`
	UserID      *int64    `json:"user_id,omitempty"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	IPAddress   string    `json:"ip_address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Service struct {
	store ledger.Store
}

// NewService creates the activity reader.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// List returns newest entries first.
func (s *Service) List(ctx context.Context, f ledger.ListFilter) ([]Entry, error) {
	var out []Entry
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		rows, err := tx.ListActivity(ctx, f)
		if err != nil {
			return err
		}
		out = make([]Entry, 0, len(rows))
		for _, a := range rows {
			out = append(out, Entry{
				ID:          a.ID,
				UserID:      a.UserID,
				Action:      a.Action,
				Description: a.Description,
				IPAddress:   a.IPAddress,
				CreatedAt:   a.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return out, nil
}
