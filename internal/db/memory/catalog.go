package memory

import (
	"context"
	"sort"
	"strings"

	"stakehub/internal/ledger"
)

// CreateCoin inserts a coin and sets its ID.
func (t *tx) CreateCoin(_ context.Context, c *ledger.Coin) error {
	for _, o := range t.s.coins {
		if strings.EqualFold(o.Symbol, c.Symbol) {
			return &ledger.UniqueError{Constraint: ledger.ConstraintCoinSymbol}
		}
	}
	c.ID = t.s.nextID()
	cp := *c
	t.s.coins[c.ID] = &cp
	return nil
}

// UpdateCoin overwrites the editable coin fields.
func (t *tx) UpdateCoin(_ context.Context, c *ledger.Coin) error {
	cur, ok := t.s.coins[c.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	for _, o := range t.s.coins {
		if o.ID != c.ID && strings.EqualFold(o.Symbol, c.Symbol) {
			return &ledger.UniqueError{Constraint: ledger.ConstraintCoinSymbol}
		}
	}
	created := cur.CreatedAt
	*cur = *c
	cur.CreatedAt = created
	return nil
}

// GetCoin returns a coin by ID.
func (t *tx) GetCoin(_ context.Context, id int64) (*ledger.Coin, error) {
	c, ok := t.s.coins[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ListCoins returns coins ordered by ID, optionally only active ones.
func (t *tx) ListCoins(_ context.Context, activeOnly bool) ([]*ledger.Coin, error) {
	var out []*ledger.Coin
	for _, c := range t.s.coins {
		if activeOnly && !c.Active {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreatePlan inserts a staking plan and sets its ID.
func (t *tx) CreatePlan(_ context.Context, p *ledger.StakingPlan) error {
	if _, ok := t.s.coins[p.CoinID]; !ok {
		return ledger.ErrNotFound
	}
	p.ID = t.s.nextID()
	cp := *p
	t.s.plans[p.ID] = &cp
	return nil
}

// UpdatePlan overwrites the editable plan fields.
func (t *tx) UpdatePlan(_ context.Context, p *ledger.StakingPlan) error {
	cur, ok := t.s.plans[p.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	created := cur.CreatedAt
	*cur = *p
	cur.CreatedAt = created
	return nil
}

// GetPlan returns a plan by ID.
func (t *tx) GetPlan(_ context.Context, id int64) (*ledger.StakingPlan, error) {
	p, ok := t.s.plans[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListPlans returns the plans of a coin ordered by duration.
func (t *tx) ListPlans(_ context.Context, coinID int64, activeOnly bool) ([]*ledger.StakingPlan, error) {
	var out []*ledger.StakingPlan
	for _, p := range t.s.plans {
		if (coinID != 0 && p.CoinID != coinID) || (activeOnly && !p.Active) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DurationDays != out[j].DurationDays {
			return out[i].DurationDays < out[j].DurationDays
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpsertPaymentAddress inserts the address or updates the existing row of the same network and address.
func (t *tx) UpsertPaymentAddress(_ context.Context, a *ledger.PaymentAddress) error {
	for _, o := range t.s.addresses {
		if o.Network == a.Network && o.Address == a.Address {
			a.ID = o.ID
			a.CreatedAt = o.CreatedAt
			cp := *a
			t.s.addresses[a.ID] = &cp
			return nil
		}
	}
	a.ID = t.s.nextID()
	cp := *a
	t.s.addresses[a.ID] = &cp
	return nil
}

// DeactivatePaymentAddresses deactivates every address of the network except exceptID.
func (t *tx) DeactivatePaymentAddresses(_ context.Context, network string, exceptID int64) error {
	for _, o := range t.s.addresses {
		if o.Network == network && o.ID != exceptID {
			o.IsActive = false
		}
	}
	return nil
}

// GetActivePaymentAddress returns the active deposit address of a network.
func (t *tx) GetActivePaymentAddress(_ context.Context, network string) (*ledger.PaymentAddress, error) {
	for _, o := range t.s.addresses {
		if o.Network == network && o.IsActive {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ledger.ErrNotFound
}

// ListPaymentAddresses returns every payment address.
func (t *tx) ListPaymentAddresses(_ context.Context) ([]*ledger.PaymentAddress, error) {
	var out []*ledger.PaymentAddress
	for _, o := range t.s.addresses {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
