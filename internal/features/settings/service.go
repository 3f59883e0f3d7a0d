package settings

import (
	"context"
	"fmt"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"stakehub/internal/common"
	"stakehub/internal/ledger"
)

// Service caches the typed settings and persists admin updates.
type Service struct {
	store ledger.Store
	clock common.Clock

	mu  sync.RWMutex
	cur Settings
}

// NewService starts from Defaults; call Load to read the table.
func NewService(store ledger.Store, clock common.Clock) *Service {
	return &Service{store: store, clock: clock, cur: Defaults()}
}

// Load rebuilds the cache from the settings table. Unknown keys are logged
// and skipped; a malformed value of a known key fails the load.
func (s *Service) Load(ctx context.Context) error {
	var rows []*ledger.PlatformSetting
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		var err error
		rows, err = tx.ListSettings(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	next := Defaults()
	for _, r := range rows {
		if _, ok := fields[r.Key]; !ok {
			log.WithField("key", r.Key).Warn("Unknown platform setting ignored")
			continue
		}
		if err := next.Apply(r.Key, r.Value); err != nil {
			return fmt.Errorf("setting %s=%q: %w", r.Key, r.Value, err)
		}
	}

	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()
	return nil
}

// Get returns a snapshot of the current settings.
func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.cur
	out.AllowedNetworks = slices.Clone(s.cur.AllowedNetworks)
	return out
}

// List returns every known key with its effective value.
func (s *Service) List() []Entry {
	cur := s.Get()
	out := make([]Entry, 0, len(Keys))
	for _, k := range Keys {
		v, _ := cur.Value(k)
		out = append(out, Entry{Key: k, Value: v, Description: Description(k)})
	}
	return out
}

// Update validates and stores one setting, then refreshes the cache.
func (s *Service) Update(ctx context.Context, adminID int64, key, value string) (Entry, error) {
	next := s.Get()
	if err := next.Apply(key, value); err != nil {
		return Entry{}, err
	}
	stored, _ := next.Value(key)

	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.UpsertSetting(ctx, &ledger.PlatformSetting{
			Key:         key,
			Value:       stored,
			Description: Description(key),
			UpdatedAt:   now,
		}); err != nil {
			return err
		}
		return ledger.Log(ctx, tx, adminID, ledger.ActionSettingUpdated,
			fmt.Sprintf("%s set to %q", key, stored), now)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("update setting: %w", err)
	}

	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"admin_id": adminID,
		"key":      key,
		"value":    stored,
	}).Info("Platform setting updated")

	return Entry{Key: key, Value: stored, Description: Description(key)}, nil
}

// Public returns the user-visible subset.
func (s *Service) Public() PublicView {
	cur := s.Get()
	v := PublicView{
		MinDeposit:      cur.MinDeposit,
		MinWithdrawal:   cur.MinWithdrawal,
		MaxWithdrawal:   cur.MaxWithdrawal,
		DailyLimit:      cur.DailyLimit,
		WithdrawalFee:   cur.WithdrawalFee,
		AllowedNetworks: cur.AllowedNetworks,
		MaintenanceMode: cur.MaintenanceMode,
	}
	if cur.MaintenanceMode {
		v.MaintenanceMessage = cur.MaintenanceMessage
	}
	return v
}

// Fixed serves a constant Settings value. Used where no table backs the
// settings, such as tests and one-off tools.
type Fixed Settings

// Get returns the fixed value.
func (f Fixed) Get() Settings { return Settings(f) }
