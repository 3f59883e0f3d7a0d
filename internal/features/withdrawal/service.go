package withdrawal

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
	"stakehub/internal/metrics"
	"stakehub/internal/notify"
)

type Service struct {
	store    ledger.Store
	engine   *referral.Engine
	settings referral.SettingsSource
	notifier notify.Notifier
	clock    common.Clock
}

// NewService creates the withdrawal workflow.
func NewService(store ledger.Store, engine *referral.Engine, settings referral.SettingsSource,
	notifier notify.Notifier, clock common.Clock) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{
		store:    store,
		engine:   engine,
		settings: settings,
		notifier: notifier,
		clock:    clock,
	}
}

// fee waives the percentage fee for premium users.
func fee(amount, pct decimal.Decimal, premium bool) Quote {
	q := Quote{Amount: amount, FeeWaived: premium}
	if !premium {
		q.Fee = common.Percent(amount, pct).Round(8)
	}
	q.Net = amount.Sub(q.Fee)
	return q
}

// Quote previews the fee for amount.
func (s *Service) Quote(ctx context.Context, userID int64, amount decimal.Decimal) (*Quote, error) {
	if !amount.IsPositive() {
		return nil, common.ErrInvalidAmount
	}
	var q Quote
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		premium, err := s.engine.IsPremium(ctx, tx, userID)
		if err != nil {
			return err
		}
		q = fee(amount, s.settings.Get().WithdrawalFee, premium)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Submit debits the gross amount and files a pending withdrawal.
func (s *Service) Submit(ctx context.Context, userID int64, req SubmitRequest) (*SubmitResult, error) {
	cfg := s.settings.Get()
	if cfg.MaintenanceMode {
		return nil, &common.Error{Kind: common.KindPrecondition, Message: cfg.MaintenanceMessage, Reason: common.ErrMaintenance.Reason}
	}

	network := strings.ToUpper(strings.TrimSpace(req.Network))
	if _, ok := chain.ParseNetwork(network); !ok || !cfg.NetworkAllowed(network) {
		return nil, common.ErrInvalidNetwork
	}
	address := strings.TrimSpace(req.Address)
	if len(address) < chain.MinAddressLength {
		return nil, common.ErrInvalidAddress
	}
	if !req.Amount.IsPositive() {
		return nil, common.ErrInvalidAmount
	}
	if req.Amount.LessThan(cfg.MinWithdrawal) {
		return nil, fmt.Errorf("minimum withdrawal is %s: %w", common.FormatUSDT(cfg.MinWithdrawal), common.ErrBelowMinimum)
	}
	if cfg.MaxWithdrawal.IsPositive() && req.Amount.GreaterThan(cfg.MaxWithdrawal) {
		return nil, fmt.Errorf("maximum withdrawal is %s: %w", common.FormatUSDT(cfg.MaxWithdrawal), common.ErrAboveMaximum)
	}

	now := s.clock.Now()
	var (
		res      SubmitResult
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

		// Daily limit counts everything not rejected since local midnight.
		if cfg.DailyLimit.IsPositive() {
			today, err := tx.SumWithdrawalsSince(ctx, userID, common.StartOfDay(now))
			if err != nil {
				return err
			}
			if today.Add(req.Amount).GreaterThan(cfg.DailyLimit) {
				return common.ErrDailyLimitExceeded
			}
		}
		if req.Amount.GreaterThan(u.Balance) {
			return common.ErrInsufficientBalance
		}

		premium, err := s.engine.IsPremium(ctx, tx, userID)
		if err != nil {
			return err
		}
		q := fee(req.Amount, cfg.WithdrawalFee, premium)

		// Gross is debited now; a rejection refunds it.
		u.Balance = u.Balance.Sub(req.Amount)
		u.UpdatedAt = now
		if err := tx.SaveUserBalances(ctx, u); err != nil {
			return err
		}

		w := &ledger.Withdrawal{
			UserID:        userID,
			Amount:        q.Amount,
			FeeAmount:     q.Fee,
			NetAmount:     q.Net,
			WalletAddress: address,
			Network:       network,
			Status:        ledger.WithdrawalPending,
			CreatedAt:     now,
		}
		if err := tx.InsertWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}

		desc := fmt.Sprintf("Withdrawal request %s via %s (fee %s)", common.FormatUSDT(q.Amount), network, common.FormatUSDT(q.Fee))
		if err := ledger.Log(ctx, tx, userID, ledger.ActionWithdrawalSubmitted, desc, now); err != nil {
			return err
		}
		// The drop may cost the user or the referrer premium.
		if err := s.engine.AfterBalanceChange(ctx, tx, u); err != nil {
			return err
		}

		res = SubmitResult{WithdrawalID: w.ID, Status: w.Status, Quote: q}
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}

	metrics.WithdrawalsTotal.WithLabelValues(ledger.WithdrawalPending).Inc()
	log.WithFields(log.Fields{
		"user_id":       userID,
		"withdrawal_id": res.WithdrawalID,
		"amount":        res.Amount.String(),
		"fee":           res.Fee.String(),
		"network":       network,
	}).Info("Withdrawal submitted")

	s.notifier.Notify(ctx, notify.WithdrawalSubmitted(res.WithdrawalID, userID, username, res.Amount, res.Net, network, address))
	return &res, nil
}

// List returns withdrawals newest first.
func (s *Service) List(ctx context.Context, f ledger.ListFilter) ([]View, error) {
	var out []View
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		rows, err := tx.ListWithdrawals(ctx, f)
		if err != nil {
			return err
		}
		out = make([]View, 0, len(rows))
		for _, w := range rows {
			out = append(out, toView(w))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return out, nil
}

// Approve moves pending to approved. Funds were debited at submission.
func (s *Service) Approve(ctx context.Context, adminID, id int64, notes string) (*View, error) {
	return s.transition(ctx, adminID, id, ledger.WithdrawalApproved, func(tx ledger.Tx, w *ledger.Withdrawal) error {
		if w.Status != ledger.WithdrawalPending {
			return common.ErrInvalidTransition
		}
		now := s.clock.Now()
		w.Status = ledger.WithdrawalApproved
		w.AdminNotes = notes
		w.ProcessedAt = &now
		return ledger.Log(ctx, tx, w.UserID, ledger.ActionWithdrawalApproved,
			fmt.Sprintf("Withdrawal #%d of %s approved", w.ID, common.FormatUSDT(w.Amount)), now)
	})
}

// Complete records the settlement hash of an approved withdrawal.
func (s *Service) Complete(ctx context.Context, adminID, id int64, txHash, notes string) (*View, error) {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, common.Validation("tx_hash is required")
	}
	return s.transition(ctx, adminID, id, ledger.WithdrawalCompleted, func(tx ledger.Tx, w *ledger.Withdrawal) error {
		if w.Status != ledger.WithdrawalApproved {
			return common.ErrInvalidTransition
		}
		now := s.clock.Now()
		w.Status = ledger.WithdrawalCompleted
		w.TxHash = txHash
		w.CompletedAt = &now
		if notes != "" {
			w.AdminNotes = notes
		}
		return ledger.Log(ctx, tx, w.UserID, ledger.ActionWithdrawalCompleted,
			fmt.Sprintf("Withdrawal #%d of %s sent, tx %s", w.ID, common.FormatUSDT(w.NetAmount), txHash), now)
	})
}

// Reject refunds the gross amount of a pending or approved withdrawal.
func (s *Service) Reject(ctx context.Context, adminID, id int64, notes string) (*View, error) {
	return s.transition(ctx, adminID, id, ledger.WithdrawalRejected, func(tx ledger.Tx, w *ledger.Withdrawal) error {
		if w.Status != ledger.WithdrawalPending && w.Status != ledger.WithdrawalApproved {
			return common.ErrInvalidTransition
		}
		now := s.clock.Now()

		u, err := tx.GetUserForUpdate(ctx, w.UserID)
		if err != nil {
			return err
		}
		u.Balance = u.Balance.Add(w.Amount)
		u.UpdatedAt = now
		if err := tx.SaveUserBalances(ctx, u); err != nil {
			return err
		}

		w.Status = ledger.WithdrawalRejected
		w.AdminNotes = notes
		w.ProcessedAt = &now
		if err := ledger.Log(ctx, tx, w.UserID, ledger.ActionWithdrawalRejected,
			fmt.Sprintf("Withdrawal #%d rejected, %s refunded", w.ID, common.FormatUSDT(w.Amount)), now); err != nil {
			return err
		}
		return s.engine.AfterBalanceChange(ctx, tx, u)
	})
}

// transition locks the withdrawal, lets apply mutate it and saves it.
func (s *Service) transition(ctx context.Context, adminID, id int64, to string,
	apply func(tx ledger.Tx, w *ledger.Withdrawal) error) (*View, error) {
	var out View
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		w, err := tx.GetWithdrawalForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(tx, w); err != nil {
			return err
		}
		if err := tx.UpdateWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		out = toView(w)
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}

	metrics.WithdrawalsTotal.WithLabelValues(to).Inc()
	log.WithFields(log.Fields{
		"withdrawal_id": id,
		"admin_id":      adminID,
		"status":        to,
	}).Info("Withdrawal status changed")
	return &out, nil
}

func notFound(err error) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return common.ErrNotFound
	}
	return err
}
