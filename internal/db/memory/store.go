// Package memory is an in-process ledger.Store. Transactions are serialised
// by one mutex and run against a copy of the state that replaces the
// original only on success, so a failed unit of work leaves nothing behind.
// Used by tests and local runs without PostgreSQL.
package memory

import (
	"context"
	"sync"

	"stakehub/internal/ledger"
)

type state struct {
	seq         int64
	users       map[int64]*ledger.User
	coins       map[int64]*ledger.Coin
	plans       map[int64]*ledger.StakingPlan
	stakes      map[int64]*ledger.Stake
	deposits    map[int64]*ledger.Deposit
	withdrawals map[int64]*ledger.Withdrawal
	addresses   map[int64]*ledger.PaymentAddress
	commissions map[int64]*ledger.ReferralCommission
	salary      map[int64]*ledger.SalaryRequest
	settings    map[string]*ledger.PlatformSetting
	activity    []*ledger.ActivityLog
	logins      []*ledger.LoginAttempt
}

func newState() *state {
	return &state{
		users:       map[int64]*ledger.User{},
		coins:       map[int64]*ledger.Coin{},
		plans:       map[int64]*ledger.StakingPlan{},
		stakes:      map[int64]*ledger.Stake{},
		deposits:    map[int64]*ledger.Deposit{},
		withdrawals: map[int64]*ledger.Withdrawal{},
		addresses:   map[int64]*ledger.PaymentAddress{},
		commissions: map[int64]*ledger.ReferralCommission{},
		salary:      map[int64]*ledger.SalaryRequest{},
		settings:    map[string]*ledger.PlatformSetting{},
	}
}

func cloneMap[K comparable, V any](m map[K]*V) map[K]*V {
	out := make(map[K]*V, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func (s *state) clone() *state {
	c := &state{
		seq:         s.seq,
		users:       cloneMap(s.users),
		coins:       cloneMap(s.coins),
		plans:       cloneMap(s.plans),
		stakes:      cloneMap(s.stakes),
		deposits:    cloneMap(s.deposits),
		withdrawals: cloneMap(s.withdrawals),
		addresses:   cloneMap(s.addresses),
		commissions: cloneMap(s.commissions),
		salary:      cloneMap(s.salary),
		settings:    cloneMap(s.settings),
	}
	// append-only rows are never mutated in place
	c.activity = append([]*ledger.ActivityLog(nil), s.activity...)
	c.logins = append([]*ledger.LoginAttempt(nil), s.logins...)
	return c
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store implements ledger.Store in memory.
type Store struct {
	mu    sync.Mutex
	state *state
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// WithTx runs fn with exclusive access to a working copy of the state.
func (s *Store) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{s: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

type tx struct {
	s *state
}

var _ ledger.Tx = (*tx)(nil)
