package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"stakehub/internal/ledger"
)

// Stakes

// InsertStake inserts a stake and sets its ID.
func (t *tx) InsertStake(_ context.Context, s *ledger.Stake) error {
	s.ID = t.s.nextID()
	cp := *s
	t.s.stakes[s.ID] = &cp
	return nil
}

// GetStake returns a stake by ID.
func (t *tx) GetStake(_ context.Context, id int64) (*ledger.Stake, error) {
	s, ok := t.s.stakes[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// GetStakeForUpdate returns a stake and locks its row.
func (t *tx) GetStakeForUpdate(ctx context.Context, id int64) (*ledger.Stake, error) {
	return t.GetStake(ctx, id)
}

// UpdateStakeStatus stores the status and withdrawn flag of a stake.
func (t *tx) UpdateStakeStatus(_ context.Context, s *ledger.Stake) error {
	cur, ok := t.s.stakes[s.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	cur.Status = s.Status
	cur.Withdrawn = s.Withdrawn
	cur.UpdatedAt = s.UpdatedAt
	return nil
}

// ListStakes returns stakes newest first.
func (t *tx) ListStakes(_ context.Context, f ledger.ListFilter) ([]*ledger.Stake, error) {
	var out []*ledger.Stake
	for _, s := range t.s.stakes {
		if (f.UserID != 0 && s.UserID != f.UserID) || (f.Status != "" && s.Status != f.Status) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f), nil
}

// Deposits

// InsertDeposit inserts a deposit. A reused tx hash is a unique violation.
func (t *tx) InsertDeposit(_ context.Context, d *ledger.Deposit) error {
	for _, o := range t.s.deposits {
		if o.TxHash == d.TxHash {
			return &ledger.UniqueError{Constraint: ledger.ConstraintDepositTxHash}
		}
	}
	d.ID = t.s.nextID()
	cp := *d
	t.s.deposits[d.ID] = &cp
	return nil
}

// GetDeposit returns a deposit by ID.
func (t *tx) GetDeposit(_ context.Context, id int64) (*ledger.Deposit, error) {
	d, ok := t.s.deposits[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// GetDepositForUpdate returns a deposit and locks its row.
func (t *tx) GetDepositForUpdate(ctx context.Context, id int64) (*ledger.Deposit, error) {
	return t.GetDeposit(ctx, id)
}

// GetDepositByTxHash returns the deposit holding a normalised tx hash.
func (t *tx) GetDepositByTxHash(_ context.Context, hash string) (*ledger.Deposit, error) {
	for _, d := range t.s.deposits {
		if d.TxHash == hash {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ledger.ErrNotFound
}

// DeleteDeposit removes a rejected deposit before its owner retries the hash.
func (t *tx) DeleteDeposit(_ context.Context, id int64) error {
	if _, ok := t.s.deposits[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(t.s.deposits, id)
	return nil
}

// UpdateDeposit stores the review outcome of a deposit.
func (t *tx) UpdateDeposit(_ context.Context, d *ledger.Deposit) error {
	cur, ok := t.s.deposits[d.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	cur.Status = d.Status
	cur.BlockchainVerified = d.BlockchainVerified
	cur.VerificationDetails = d.VerificationDetails
	cur.AdminNotes = d.AdminNotes
	cur.ProcessedAt = d.ProcessedAt
	return nil
}

// ListDeposits returns deposits newest first.
func (t *tx) ListDeposits(_ context.Context, f ledger.ListFilter) ([]*ledger.Deposit, error) {
	var out []*ledger.Deposit
	for _, d := range t.s.deposits {
		if (f.UserID != 0 && d.UserID != f.UserID) || (f.Status != "" && d.Status != f.Status) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f), nil
}

// Withdrawals

// InsertWithdrawal inserts a withdrawal and sets its ID.
func (t *tx) InsertWithdrawal(_ context.Context, w *ledger.Withdrawal) error {
	w.ID = t.s.nextID()
	cp := *w
	t.s.withdrawals[w.ID] = &cp
	return nil
}

// GetWithdrawalForUpdate returns a withdrawal and locks its row.
func (t *tx) GetWithdrawalForUpdate(_ context.Context, id int64) (*ledger.Withdrawal, error) {
	w, ok := t.s.withdrawals[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

// UpdateWithdrawal stores the status, tx hash and notes of a withdrawal.
func (t *tx) UpdateWithdrawal(_ context.Context, w *ledger.Withdrawal) error {
	cur, ok := t.s.withdrawals[w.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	cur.Status = w.Status
	cur.TxHash = w.TxHash
	cur.AdminNotes = w.AdminNotes
	cur.ProcessedAt = w.ProcessedAt
	cur.CompletedAt = w.CompletedAt
	return nil
}

// ListWithdrawals returns withdrawals newest first.
func (t *tx) ListWithdrawals(_ context.Context, f ledger.ListFilter) ([]*ledger.Withdrawal, error) {
	var out []*ledger.Withdrawal
	for _, w := range t.s.withdrawals {
		if (f.UserID != 0 && w.UserID != f.UserID) || (f.Status != "" && w.Status != f.Status) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f), nil
}

// SumWithdrawalsSince sums the non-rejected withdrawals of a user created at or after since.
func (t *tx) SumWithdrawalsSince(_ context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, w := range t.s.withdrawals {
		if w.UserID == userID && w.Status != ledger.WithdrawalRejected && !w.CreatedAt.Before(since) {
			sum = sum.Add(w.Amount)
		}
	}
	return sum, nil
}
