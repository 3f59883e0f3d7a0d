package salary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakehub/internal/chain"
	"stakehub/internal/common"
	"stakehub/internal/features/referral"
	"stakehub/internal/ledger"
	"stakehub/internal/notify"
)

type Service struct {
	store    ledger.Store
	engine   *referral.Engine
	notifier notify.Notifier
	clock    common.Clock
}

// NewService creates the salary service.
func NewService(store ledger.Store, engine *referral.Engine, notifier notify.Notifier, clock common.Clock) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{store: store, engine: engine, notifier: notifier, clock: clock}
}

// evaluate reads the live inputs of the salary table for userID.
func (s *Service) evaluate(ctx context.Context, tx ledger.Tx, userID int64) (*Progress, error) {
	q, err := s.engine.QualifiedCount(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	b, err := tx.EconomicBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := &Progress{QualifiedReferrals: q, EconomicBalance: b}
	level := 0
	if t, ok := Evaluate(q, b); ok {
		p.Eligible = true
		p.Current = &t
		level = t.Level
	}
	if n, ok := next(level); ok {
		p.Next = &n
		p.ReferralProgress = percent(decimal.NewFromInt(int64(q)), decimal.NewFromInt(int64(n.MinReferrals)))
		p.BalanceProgress = percent(b, n.MinBalance)
	} else {
		p.ReferralProgress = 100
		p.BalanceProgress = 100
	}
	return p, nil
}

// Progress returns the user's salary marker.
func (s *Service) Progress(ctx context.Context, userID int64) (*Progress, error) {
	var out *Progress
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		out, err = s.evaluate(ctx, tx, userID)
		if err != nil {
			return err
		}
		out.SalaryWallet = u.SalaryWallet
		out.RequestedThisMonth, err = tx.HasSalaryRequestSince(ctx, userID, common.StartOfMonth(s.clock.Now()))
		return err
	})
	if err != nil {
		return nil, notFound(err)
	}
	return out, nil
}

// SetWallet stores the payout address of the user.
func (s *Service) SetWallet(ctx context.Context, userID int64, address string) error {
	address = strings.TrimSpace(address)
	if len(address) < chain.MinAddressLength {
		return common.ErrInvalidAddress
	}
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.SetSalaryWallet(ctx, userID, address); err != nil {
			return err
		}
		return ledger.Log(ctx, tx, userID, ledger.ActionSalaryWallet, "Salary wallet address updated", s.clock.Now())
	})
	return notFound(err)
}

// Request files this month's salary request for the user's current tier.
func (s *Service) Request(ctx context.Context, userID int64) (*View, error) {
	var (
		out      View
		username string
	)
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if !u.IsActive {
			return common.ErrUserInactive
		}
		username = u.Username
		r, err := s.request(ctx, tx, u)
		if err != nil {
			return err
		}
		out = toView(r)
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"request_id": out.ID,
		"tier":       out.Tier,
		"amount":     out.Amount.String(),
	}).Info("Salary requested")
	s.notifier.Notify(ctx, notify.SalaryRequested(out.ID, userID, username, out.Tier, out.Amount, out.WalletAddress))
	return &out, nil
}

func (s *Service) request(ctx context.Context, tx ledger.Tx, u *ledger.User) (*ledger.SalaryRequest, error) {
	if u.SalaryWallet == "" {
		return nil, common.ErrSalaryWalletMissing
	}
	now := s.clock.Now()

	done, err := tx.HasSalaryRequestSince(ctx, u.ID, common.StartOfMonth(now))
	if err != nil {
		return nil, err
	}
	if done {
		return nil, common.ErrSalaryAlreadyRequested
	}

	p, err := s.evaluate(ctx, tx, u.ID)
	if err != nil {
		return nil, err
	}
	if !p.Eligible {
		return nil, common.ErrNotEligible
	}

	r := &ledger.SalaryRequest{
		UserID:        u.ID,
		Tier:          p.Current.Level,
		Amount:        p.Current.MonthlyAmount,
		WalletAddress: u.SalaryWallet,
		Status:        ledger.SalaryPending,
		CreatedAt:     now,
	}
	if err := tx.InsertSalaryRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("insert salary request: %w", err)
	}
	desc := fmt.Sprintf("Salary request tier %d: %s", r.Tier, common.FormatUSDT(r.Amount))
	if err := ledger.Log(ctx, tx, u.ID, ledger.ActionSalaryRequest, desc, now); err != nil {
		return nil, err
	}
	return r, nil
}

// GenerateMonthly files requests for every eligible user with a salary
// wallet who has none this month. Each user runs in its own transaction.
func (s *Service) GenerateMonthly(ctx context.Context) (RunResult, error) {
	var res RunResult

	var candidates []*ledger.User
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		var err error
		candidates, err = tx.ListSalaryCandidates(ctx)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("list salary candidates: %w", err)
	}
	res.Candidates = len(candidates)

	for _, c := range candidates {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var created *ledger.SalaryRequest
		err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
			u, err := tx.GetUserForUpdate(ctx, c.ID)
			if err != nil {
				return err
			}
			created, err = s.request(ctx, tx, u)
			return err
		})
		switch {
		case err == nil:
			res.Created++
			s.notifier.Notify(ctx, notify.SalaryRequested(created.ID, c.ID, c.Username, created.Tier, created.Amount, created.WalletAddress))
		case errors.Is(err, common.ErrNotEligible), errors.Is(err, common.ErrSalaryAlreadyRequested),
			errors.Is(err, common.ErrSalaryWalletMissing):
			res.Skipped++
		default:
			res.Failed++
			log.WithError(err).WithField("user_id", c.ID).Error("Monthly salary request failed")
		}
	}
	return res, nil
}

// List returns salary requests newest first.
func (s *Service) List(ctx context.Context, f ledger.ListFilter) ([]View, error) {
	var out []View
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		rows, err := tx.ListSalaryRequests(ctx, f)
		if err != nil {
			return err
		}
		out = make([]View, 0, len(rows))
		for _, r := range rows {
			out = append(out, toView(r))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list salary requests: %w", err)
	}
	return out, nil
}

// Approve marks a pending request paid. The payout itself happens outside
// the platform, so no balance moves.
func (s *Service) Approve(ctx context.Context, adminID, id int64, txHash, notes string) (*View, error) {
	return s.process(ctx, adminID, id, ledger.SalaryApproved, strings.TrimSpace(txHash), notes)
}

// Reject closes a pending request without payout.
func (s *Service) Reject(ctx context.Context, adminID, id int64, notes string) (*View, error) {
	return s.process(ctx, adminID, id, ledger.SalaryRejected, "", notes)
}

func (s *Service) process(ctx context.Context, adminID, id int64, status, txHash, notes string) (*View, error) {
	now := s.clock.Now()
	var out View
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		r, err := tx.GetSalaryRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.Status != ledger.SalaryPending {
			return common.ErrInvalidTransition
		}
		admin := adminID
		r.Status = status
		r.TxHash = txHash
		r.AdminNotes = notes
		r.ProcessedBy = &admin
		r.ProcessedAt = &now
		if err := tx.UpdateSalaryRequest(ctx, r); err != nil {
			return err
		}
		out = toView(r)
		desc := fmt.Sprintf("Salary request #%d %s", r.ID, status)
		return ledger.Log(ctx, tx, r.UserID, ledger.ActionSalaryProcessed, desc, now)
	})
	if err != nil {
		return nil, notFound(err)
	}

	log.WithFields(log.Fields{
		"request_id": id,
		"admin_id":   adminID,
		"status":     status,
	}).Info("Salary request processed")
	return &out, nil
}

func notFound(err error) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return common.ErrNotFound
	}
	return err
}
