package staking

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"stakehub/internal/common"
	"stakehub/internal/features/referral"
	"stakehub/internal/ledger"
	"stakehub/internal/metrics"
)

type Service struct {
	store    ledger.Store
	engine   *referral.Engine
	settings referral.SettingsSource
	clock    common.Clock
}

// NewService creates the stake engine.
func NewService(store ledger.Store, engine *referral.Engine, settings referral.SettingsSource, clock common.Clock) *Service {
	return &Service{store: store, engine: engine, settings: settings, clock: clock}
}

// Open debits the principal and creates an active stake. Premium users get
// an instant commission on top, credited to the wallet.
func (s *Service) Open(ctx context.Context, userID int64, req OpenRequest) (*OpenResult, error) {
	if !req.Amount.IsPositive() {
		return nil, common.ErrInvalidAmount
	}
	now := s.clock.Now()
	var res OpenResult

	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		// Catalog: coin and plan must be active and belong together.
		coin, err := tx.GetCoin(ctx, req.CoinID)
		if err != nil {
			return err
		}
		if !coin.Active {
			return common.ErrCoinInactive
		}
		plan, err := tx.GetPlan(ctx, req.PlanID)
		if err != nil {
			return err
		}
		if plan.CoinID != coin.ID {
			return common.ErrPlanCoinMismatch
		}
		if !plan.Active {
			return common.ErrPlanInactive
		}
		if req.Amount.LessThan(coin.MinStake) {
			return fmt.Errorf("minimum stake is %s: %w", common.FormatUSDT(coin.MinStake), common.ErrBelowMinimum)
		}

		// Balance check under the user lock.
		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if !u.IsActive {
			return common.ErrUserInactive
		}
		if req.Amount.GreaterThan(u.Balance) {
			return common.ErrInsufficientBalance
		}

		// Live count, not the stored premium flag.
		premium, err := s.engine.IsPremium(ctx, tx, userID)
		if err != nil {
			return err
		}

		st := &ledger.Stake{
			UserID:       userID,
			CoinID:       coin.ID,
			PlanID:       plan.ID,
			Amount:       req.Amount,
			DailyRate:    plan.InterestRate,
			DurationDays: plan.DurationDays,
			TotalReturn:  TotalReturn(req.Amount, plan.InterestRate, plan.DurationDays),
			StartTime:    now,
			EndTime:      now.Add(time.Duration(plan.DurationDays) * day),
			Status:       ledger.StakeActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if premium {
			st.PremiumCommission = common.Percent(req.Amount, s.settings.Get().PremiumStakeCommission)
		}

		// Debit the principal, credit the commission.
		u.Balance = u.Balance.Sub(req.Amount).Add(st.PremiumCommission)
		u.TotalStaked = u.TotalStaked.Add(req.Amount)
		u.UpdatedAt = now
		if err := tx.SaveUserBalances(ctx, u); err != nil {
			return err
		}
		if err := tx.InsertStake(ctx, st); err != nil {
			return fmt.Errorf("insert stake: %w", err)
		}

		desc := fmt.Sprintf("Staked %s in %s for %d days", common.FormatUSDT(req.Amount), coin.Symbol, plan.DurationDays)
		if err := ledger.Log(ctx, tx, userID, ledger.ActionStakeOpened, desc, now); err != nil {
			return err
		}
		if st.PremiumCommission.IsPositive() {
			desc := fmt.Sprintf("Premium stake commission %s on %s stake",
				common.FormatUSDT(st.PremiumCommission), common.FormatUSDT(req.Amount))
			if err := ledger.Log(ctx, tx, userID, ledger.ActionPremiumCommission, desc, now); err != nil {
				return err
			}
		}
		// Referral hooks run last: user, then referrer.
		if err := s.engine.AfterBalanceChange(ctx, tx, u); err != nil {
			return err
		}

		res = OpenResult{
			StakeID:           st.ID,
			Amount:            st.Amount,
			DailyRate:         st.DailyRate,
			TotalReturn:       st.TotalReturn,
			PremiumCommission: st.PremiumCommission,
			EndTime:           st.EndTime,
		}
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}

	metrics.StakesTotal.WithLabelValues("opened").Inc()
	log.WithFields(log.Fields{
		"user_id":    userID,
		"stake_id":   res.StakeID,
		"amount":     res.Amount.String(),
		"commission": res.PremiumCommission.String(),
	}).Info("Stake opened")
	return &res, nil
}

// WithdrawMatured settles a matured stake: principal plus accrual.
func (s *Service) WithdrawMatured(ctx context.Context, userID, stakeID int64) (*WithdrawResult, error) {
	now := s.clock.Now()
	var res WithdrawResult

	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		st, err := s.ownStake(ctx, tx, userID, stakeID)
		if err != nil {
			return err
		}
		switch {
		case st.Withdrawn:
			return common.ErrStakeWithdrawn
		case st.Status != ledger.StakeActive:
			return common.ErrStakeNotActive
		case now.Before(st.EndTime):
			return common.ErrStakeNotMatured
		}

		earnings := CurrentReturn(st, now)
		total := st.Amount.Add(earnings)

		st.Status = ledger.StakeCompleted
		st.Withdrawn = true
		st.UpdatedAt = now
		if err := tx.UpdateStakeStatus(ctx, st); err != nil {
			return err
		}

		u.Balance = u.Balance.Add(total)
		u.TotalEarned = u.TotalEarned.Add(earnings)
		u.TotalStaked = u.TotalStaked.Sub(st.Amount)
		u.UpdatedAt = now
		if err := tx.SaveUserBalances(ctx, u); err != nil {
			return err
		}

		desc := fmt.Sprintf("Withdrew stake #%d: principal %s, earnings %s",
			st.ID, common.FormatUSDT(st.Amount), common.FormatUSDT(earnings))
		if err := ledger.Log(ctx, tx, userID, ledger.ActionStakeWithdrawn, desc, now); err != nil {
			return err
		}
		if err := s.engine.AfterBalanceChange(ctx, tx, u); err != nil {
			return err
		}

		res = WithdrawResult{StakeID: st.ID, Principal: st.Amount, Earnings: earnings, CreditedTotal: total}
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}

	metrics.StakesTotal.WithLabelValues("withdrawn").Inc()
	log.WithFields(log.Fields{
		"user_id":  userID,
		"stake_id": stakeID,
		"total":    res.CreditedTotal.String(),
	}).Info("Stake withdrawn")
	return &res, nil
}

// Cancel returns the principal of an active stake; nothing accrued is paid.
func (s *Service) Cancel(ctx context.Context, userID, stakeID int64) (*CancelResult, error) {
	now := s.clock.Now()
	var res CancelResult

	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		st, err := s.ownStake(ctx, tx, userID, stakeID)
		if err != nil {
			return err
		}
		if st.Status != ledger.StakeActive {
			return common.ErrStakeNotActive
		}

		st.Status = ledger.StakeCancelled
		st.UpdatedAt = now
		if err := tx.UpdateStakeStatus(ctx, st); err != nil {
			return err
		}

		u.Balance = u.Balance.Add(st.Amount)
		u.TotalStaked = u.TotalStaked.Sub(st.Amount)
		u.UpdatedAt = now
		if err := tx.SaveUserBalances(ctx, u); err != nil {
			return err
		}

		desc := fmt.Sprintf("Cancelled stake #%d, principal %s returned", st.ID, common.FormatUSDT(st.Amount))
		if err := ledger.Log(ctx, tx, userID, ledger.ActionStakeCancelled, desc, now); err != nil {
			return err
		}
		if err := s.engine.AfterBalanceChange(ctx, tx, u); err != nil {
			return err
		}

		res = CancelResult{StakeID: st.ID, RefundedPrincipal: st.Amount}
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}

	metrics.StakesTotal.WithLabelValues("cancelled").Inc()
	log.WithFields(log.Fields{
		"user_id":  userID,
		"stake_id": stakeID,
	}).Info("Stake cancelled")
	return &res, nil
}

// Get returns one of the user's stakes.
func (s *Service) Get(ctx context.Context, userID, stakeID int64) (*View, error) {
	var v View
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		st, err := s.ownStake(ctx, tx, userID, stakeID)
		if err != nil {
			return err
		}
		v = toView(st, s.clock.Now())
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// List returns stakes newest first with their current return.
func (s *Service) List(ctx context.Context, f ledger.ListFilter) ([]View, error) {
	now := s.clock.Now()
	var out []View
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		rows, err := tx.ListStakes(ctx, f)
		if err != nil {
			return err
		}
		out = make([]View, 0, len(rows))
		for _, st := range rows {
			out = append(out, toView(st, now))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list stakes: %w", err)
	}
	return out, nil
}

// ownStake locks a stake; stakes of other users read as not found.
func (s *Service) ownStake(ctx context.Context, tx ledger.Tx, userID, stakeID int64) (*ledger.Stake, error) {
	st, err := tx.GetStakeForUpdate(ctx, stakeID)
	if err != nil {
		return nil, err
	}
	if st.UserID != userID {
		return nil, ledger.ErrNotFound
	}
	return st, nil
}

func notFound(err error) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return common.ErrNotFound
	}
	return err
}
