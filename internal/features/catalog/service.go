package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"stakehub/internal/chain"
	"stakehub/internal/common"
	"stakehub/internal/features/referral"
	"stakehub/internal/ledger"
)

type Service struct {
	store    ledger.Store
	settings referral.SettingsSource
	clock    common.Clock
}

// NewService creates the catalog service. Settings supply the default minimum deposit.
func NewService(store ledger.Store, settings referral.SettingsSource, clock common.Clock) *Service {
	return &Service{store: store, settings: settings, clock: clock}
}

// Coins lists coins with their plans. Users only see active ones.
func (s *Service) Coins(ctx context.Context, activeOnly bool) ([]CoinView, error) {
	var out []CoinView
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		coins, err := tx.ListCoins(ctx, activeOnly)
		if err != nil {
			return err
		}
		out = make([]CoinView, 0, len(coins))
		for _, c := range coins {
			v := toCoinView(c)
			plans, err := tx.ListPlans(ctx, c.ID, activeOnly)
			if err != nil {
				return err
			}
			for _, p := range plans {
				v.Plans = append(v.Plans, toPlanView(p))
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list coins: %w", err)
	}
	return out, nil
}

// Plans lists the plans of a coin. An inactive coin has no plans for users.
func (s *Service) Plans(ctx context.Context, coinID int64, activeOnly bool) ([]PlanView, error) {
	var out []PlanView
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		c, err := tx.GetCoin(ctx, coinID)
		if err != nil {
			return err
		}
		if activeOnly && !c.Active {
			return ledger.ErrNotFound
		}
		plans, err := tx.ListPlans(ctx, coinID, activeOnly)
		if err != nil {
			return err
		}
		out = make([]PlanView, 0, len(plans))
		for _, p := range plans {
			out = append(out, toPlanView(p))
		}
		return nil
	})
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return out, nil
}

func validateCoin(req CoinRequest) error {
	if !req.MinStake.IsPositive() {
		return common.Validation("min_stake must be positive")
	}
	if req.DailyReturnRate.IsNegative() {
		return common.Validation("daily_return_rate must not be negative")
	}
	return nil
}

// CreateCoin adds a coin with an upper-case unique symbol.
func (s *Service) CreateCoin(ctx context.Context, adminID int64, req CoinRequest) (*CoinView, error) {
	if err := validateCoin(req); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	c := &ledger.Coin{
		Symbol:          strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Name:            strings.TrimSpace(req.Name),
		MinStake:        req.MinStake,
		DailyReturnRate: req.DailyReturnRate,
		Active:          boolOr(req.Active, true),
		CreatedAt:       now,
	}
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.CreateCoin(ctx, c); err != nil {
			return err
		}
		return ledger.Log(ctx, tx, adminID, ledger.ActionCatalogUpdated, "Coin created: "+c.Symbol, now)
	})
	if errors.Is(err, ledger.ErrUniqueViolation) {
		return nil, common.ErrDuplicateCoin
	}
	if err != nil {
		return nil, fmt.Errorf("create coin: %w", err)
	}
	log.WithFields(log.Fields{"coin_id": c.ID, "symbol": c.Symbol, "admin_id": adminID}).Info("Coin created")
	v := toCoinView(c)
	return &v, nil
}

// UpdateCoin replaces the editable fields of a coin.
func (s *Service) UpdateCoin(ctx context.Context, adminID, id int64, req CoinRequest) (*CoinView, error) {
	if err := validateCoin(req); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	var c *ledger.Coin
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		var err error
		if c, err = tx.GetCoin(ctx, id); err != nil {
			return err
		}
		c.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
		c.Name = strings.TrimSpace(req.Name)
		c.MinStake = req.MinStake
		c.DailyReturnRate = req.DailyReturnRate
		c.Active = boolOr(req.Active, c.Active)
		if err := tx.UpdateCoin(ctx, c); err != nil {
			return err
		}
		return ledger.Log(ctx, tx, adminID, ledger.ActionCatalogUpdated, "Coin updated: "+c.Symbol, now)
	})
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return nil, common.ErrNotFound
	case errors.Is(err, ledger.ErrUniqueViolation):
		return nil, common.ErrDuplicateCoin
	case err != nil:
		return nil, fmt.Errorf("update coin: %w", err)
	}
	v := toCoinView(c)
	return &v, nil
}

func validatePlan(req PlanRequest) error {
	if req.DurationDays <= 0 {
		return common.Validation("duration_days must be positive")
	}
	if req.InterestRate.IsNegative() {
		return common.Validation("interest_rate must not be negative")
	}
	return nil
}

// CreatePlan adds a plan to an existing coin.
func (s *Service) CreatePlan(ctx context.Context, adminID int64, req PlanRequest) (*PlanView, error) {
	if err := validatePlan(req); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	p := &ledger.StakingPlan{
		CoinID:       req.CoinID,
		DurationDays: req.DurationDays,
		InterestRate: req.InterestRate,
		Active:       boolOr(req.Active, true),
		CreatedAt:    now,
	}
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.GetCoin(ctx, req.CoinID); err != nil {
			return err
		}
		if err := tx.CreatePlan(ctx, p); err != nil {
			return err
		}
		return ledger.Log(ctx, tx, adminID, ledger.ActionCatalogUpdated,
			fmt.Sprintf("Plan created: coin #%d, %d days at %s%%", p.CoinID, p.DurationDays, p.InterestRate), now)
	})
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	v := toPlanView(p)
	return &v, nil
}

// UpdatePlan changes a plan. Open stakes keep the rate and duration they
// were opened with.
func (s *Service) UpdatePlan(ctx context.Context, adminID, id int64, req PlanRequest) (*PlanView, error) {
	if err := validatePlan(req); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	var p *ledger.StakingPlan
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		var err error
		if p, err = tx.GetPlan(ctx, id); err != nil {
			return err
		}
		if req.CoinID != p.CoinID {
			return common.ErrPlanCoinMismatch
		}
		p.DurationDays = req.DurationDays
		p.InterestRate = req.InterestRate
		p.Active = boolOr(req.Active, p.Active)
		if err := tx.UpdatePlan(ctx, p); err != nil {
			return err
		}
		return ledger.Log(ctx, tx, adminID, ledger.ActionCatalogUpdated, fmt.Sprintf("Plan #%d updated", p.ID), now)
	})
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return nil, common.ErrNotFound
	case common.KindOf(err) != common.KindInternal:
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("update plan: %w", err)
	}
	v := toPlanView(p)
	return &v, nil
}

// SetPaymentAddress upserts the deposit address of a network. Activating it
// deactivates every other address of the network in the same transaction.
func (s *Service) SetPaymentAddress(ctx context.Context, adminID int64, req AddressRequest) (*AddressView, error) {
	n, ok := chain.ParseNetwork(strings.ToUpper(strings.TrimSpace(req.Network)))
	if !ok {
		return nil, common.ErrInvalidNetwork
	}
	addr := strings.TrimSpace(req.Address)
	if len(addr) < chain.MinAddressLength {
		return nil, common.ErrInvalidAddress
	}
	if req.MinDeposit.IsNegative() {
		return nil, common.Validation("min_deposit must not be negative")
	}
	minDeposit := req.MinDeposit
	if minDeposit.IsZero() {
		minDeposit = s.settings.Get().MinDeposit
	}

	now := s.clock.Now()
	a := &ledger.PaymentAddress{
		Network:    string(n),
		Address:    addr,
		MinDeposit: minDeposit,
		IsActive:   boolOr(req.Active, true),
		CreatedAt:  now,
	}
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.UpsertPaymentAddress(ctx, a); err != nil {
			return err
		}
		if a.IsActive {
			if err := tx.DeactivatePaymentAddresses(ctx, a.Network, a.ID); err != nil {
				return err
			}
		}
		return ledger.Log(ctx, tx, adminID, ledger.ActionCatalogUpdated,
			fmt.Sprintf("%s deposit address set to %s", a.Network, a.Address), now)
	})
	if err != nil {
		return nil, fmt.Errorf("set payment address: %w", err)
	}
	log.WithFields(log.Fields{
		"network":  a.Network,
		"address":  a.Address,
		"active":   a.IsActive,
		"admin_id": adminID,
	}).Info("Payment address saved")
	v := toAddressView(a)
	return &v, nil
}

// DepositAddress returns the active deposit address of a network.
func (s *Service) DepositAddress(ctx context.Context, network string) (*AddressView, error) {
	n, ok := chain.ParseNetwork(strings.ToUpper(strings.TrimSpace(network)))
	if !ok {
		return nil, common.ErrInvalidNetwork
	}
	var v AddressView
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		a, err := tx.GetActivePaymentAddress(ctx, string(n))
		if err != nil {
			return err
		}
		v = toAddressView(a)
		return nil
	})
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, common.ErrNetworkUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("deposit address: %w", err)
	}
	return &v, nil
}

// Addresses lists every payment address, active or not.
func (s *Service) Addresses(ctx context.Context) ([]AddressView, error) {
	var out []AddressView
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		rows, err := tx.ListPaymentAddresses(ctx)
		if err != nil {
			return err
		}
		out = make([]AddressView, 0, len(rows))
		for _, a := range rows {
			out = append(out, toAddressView(a))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list payment addresses: %w", err)
	}
	return out, nil
}
