package referral

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"stakehub/internal/common"
	"stakehub/internal/ledger"
)

// Service serves referral reads and the periodic premium sweep.
type Service struct {
	store  ledger.Store
	engine *Engine
}

// NewService creates the referral read service.
func NewService(store ledger.Store, engine *Engine) *Service {
	return &Service{store: store, engine: engine}
}

// Overview returns the user's referral program state. Premium is reported
// from the live count, not from the cached flag.
func (s *Service) Overview(ctx context.Context, userID int64) (*Overview, error) {
	cfg := s.engine.settings.Get()
	out := &Overview{
		RequiredReferrals:   cfg.PremiumReferralCount,
		ActivationThreshold: cfg.MinReferralActivation,
		Referrals:           []ReferralView{},
	}

	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		out.ReferralCode = u.ReferralCode
		out.TwoReferralBonusClaimed = u.TwoReferralBonusClaimed
		out.ReferralBonus = u.ReferralBonus

		refs, err := tx.ListReferrals(ctx, userID)
		if err != nil {
			return err
		}
		for _, r := range refs {
			eb, err := tx.EconomicBalance(ctx, r.ID)
			if err != nil {
				return err
			}
			q := eb.GreaterThanOrEqual(cfg.MinReferralActivation)
			if q {
				out.QualifiedReferrals++
			}
			out.Referrals = append(out.Referrals, ReferralView{
				ID:              r.ID,
				Username:        r.Username,
				EconomicBalance: eb,
				Qualified:       q,
				JoinedAt:        r.CreatedAt,
			})
		}
		out.TotalReferrals = len(refs)
		out.PremiumActive = out.QualifiedReferrals >= cfg.PremiumReferralCount

		comms, err := tx.ListReferralCommissions(ctx, userID)
		if err != nil {
			return err
		}
		for _, c := range comms {
			out.Commissions = append(out.Commissions, CommissionView{
				ReferredUserID: c.ReferredUserID,
				Amount:         c.Amount,
				DepositAmount:  c.DepositAmount,
				CreatedAt:      c.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		if ledgerNotFound(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("referral overview: %w", err)
	}
	return out, nil
}

// Sweep re-evaluates every user who has referrals, one transaction per
// user, so a stale premium flag or a due bonus is fixed even when no
// balance-moving request touched the referrer.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	var ids []int64
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		var err error
		ids, err = tx.ListReferrerIDs(ctx)
		return err
	})
	if err != nil {
		return SweepResult{}, fmt.Errorf("list referrers: %w", err)
	}

	var res SweepResult
	for _, id := range ids {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var ev Evaluation
		err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
			var err error
			ev, err = s.engine.Reevaluate(ctx, tx, id)
			return err
		})
		if err != nil {
			res.Failed++
			log.WithError(err).WithField("user_id", id).Error("Premium re-evaluation failed")
			continue
		}
		res.Evaluated++
		if ev.Changed {
			res.Changed++
		}
		if ev.Bonus.IsPositive() {
			res.Bonuses++
		}
	}
	return res, nil
}

func ledgerNotFound(err error) bool { return errors.Is(err, ledger.ErrNotFound) }
