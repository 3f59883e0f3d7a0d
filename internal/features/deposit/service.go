package deposit

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
)

// Service runs deposit intake and the admin review of pending deposits.
type Service struct {
	store    ledger.Store
	verifier Verifier
	claims   Claims
	engine   *referral.Engine
	settings referral.SettingsSource
	clock    common.Clock
}

// NewService creates the deposit intake.
func NewService(store ledger.Store, verifier Verifier, claims Claims, engine *referral.Engine,
	settings referral.SettingsSource, clock common.Clock) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		claims:   claims,
		engine:   engine,
		settings: settings,
		clock:    clock,
	}
}

// Submit verifies a claimed transfer and credits it exactly once.
//
// The deposits.tx_hash unique constraint is the serialization point: the
// pre-checks below only avoid provider calls for hashes that are already
// settled.
func (s *Service) Submit(ctx context.Context, userID int64, req SubmitRequest) (*Result, error) {
	network, ok := chain.ParseNetwork(strings.ToUpper(strings.TrimSpace(req.Network)))
	if !ok {
		return nil, common.ErrInvalidNetwork
	}
	if !req.Amount.IsPositive() {
		return nil, common.ErrInvalidAmount
	}
	hash, ok := chain.NormalizeHash(network, req.TxHash)
	if !ok {
		s.count(network, "invalid_format")
		return nil, common.ErrInvalidTxHash
	}

	addr, err := s.precheck(ctx, userID, network, hash, req.Amount)
	if err != nil {
		s.count(network, common.ReasonOf(err))
		return nil, err
	}

	token, ok, err := s.claims.Acquire(ctx, hash)
	if err != nil {
		// the unique constraint still protects the ledger
		log.WithError(err).WithField("tx_hash", hash).Warn("Deposit claim unavailable, continuing without it")
	} else if !ok {
		return nil, common.ErrVerificationInProgress
	} else {
		defer func() {
			if err := s.claims.Release(context.WithoutCancel(ctx), hash, token); err != nil {
				log.WithError(err).WithField("tx_hash", hash).Warn("Release deposit claim failed")
			}
		}()
	}

	verdict := s.verifier.Verify(ctx, chain.Request{
		TxHash:    hash,
		Amount:    req.Amount,
		ToAddress: addr.Address,
		Network:   network,
	})
	switch verdict.Kind {
	case chain.ProviderUnavailable:
		s.count(network, string(verdict.Kind))
		return nil, common.Unavailable("blockchain providers unavailable", errors.New(verdict.Detail))
	case chain.InvalidFormat:
		s.count(network, string(verdict.Kind))
		return nil, common.Validation(verdict.Detail)
	}

	res, err := s.record(ctx, userID, network, hash, req.Amount, verdict)
	if err != nil {
		if errors.Is(err, ledger.ErrUniqueViolation) {
			err = common.ErrDuplicateTxHash
		}
		s.count(network, outcomeOf(err))
		return nil, err
	}
	s.count(network, string(verdict.Kind))

	if !verdict.OK() {
		return res, common.Rejected(string(verdict.Kind), rejectionMessage(verdict))
	}
	return res, nil
}

// precheck validates the user, the network address, the minimum and the
// current owner of the hash.
func (s *Service) precheck(ctx context.Context, userID int64, network chain.Network, hash string, amount decimal.Decimal) (*ledger.PaymentAddress, error) {
	var addr *ledger.PaymentAddress
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if !u.IsActive {
			return common.ErrUserInactive
		}

		addr, err = tx.GetActivePaymentAddress(ctx, string(network))
		if errors.Is(err, ledger.ErrNotFound) {
			return common.ErrNetworkUnavailable
		}
		if err != nil {
			return err
		}

		minDeposit := addr.MinDeposit
		if !minDeposit.IsPositive() {
			minDeposit = s.settings.Get().MinDeposit
		}
		if amount.LessThan(minDeposit) {
			return fmt.Errorf("minimum deposit is %s: %w", common.FormatUSDT(minDeposit), common.ErrBelowMinimum)
		}

		existing, err := tx.GetDepositByTxHash(ctx, hash)
		if errors.Is(err, ledger.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return ownership(existing, userID)
	})
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, common.ErrNotFound
	}
	return addr, err
}

// ownership decides whether userID may (re)submit a hash that already has
// a row. Only the owner's own rejected row can be retried; any row of
// another user, rejected ones included, keeps the hash bound to them.
func ownership(existing *ledger.Deposit, userID int64) error {
	switch {
	case existing.UserID != userID:
		return common.ErrTxBelongsToAnotherUser
	case existing.Final():
		return common.ErrDuplicateTxHash
	case existing.Status == ledger.DepositPending:
		return common.ErrDepositPending
	}
	return nil
}

// record writes the verdict. A verified transfer credits the wallet and runs
// the referral hook in the same transaction.
func (s *Service) record(ctx context.Context, userID int64, network chain.Network, hash string,
	amount decimal.Decimal, verdict chain.Verdict) (*Result, error) {
	now := s.clock.Now()
	res := &Result{TxHash: hash}

	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		// Ownership again: a parallel submit may have settled the hash
		// while the provider was answering.
		existing, err := tx.GetDepositByTxHash(ctx, hash)
		switch {
		case errors.Is(err, ledger.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := ownership(existing, userID); err != nil {
				return err
			}
			if err := tx.DeleteDeposit(ctx, existing.ID); err != nil {
				return fmt.Errorf("delete rejected deposit: %w", err)
			}
			if err := ledger.Log(ctx, tx, userID, ledger.ActionDepositRetry,
				fmt.Sprintf("Retrying rejected transaction %s", hash), now); err != nil {
				return err
			}
		}

		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		// Insert: the tx_hash unique index settles any remaining race.
		d := &ledger.Deposit{
			UserID:              userID,
			Amount:              amount,
			TxHash:              hash,
			Network:             string(network),
			Status:              ledger.DepositRejected,
			VerificationDetails: verdict.Details(),
			CreatedAt:           now,
			ProcessedAt:         &now,
		}
		if verdict.OK() {
			d.Status = ledger.DepositVerified
			d.BlockchainVerified = true
		}
		if err := tx.InsertDeposit(ctx, d); err != nil {
			return fmt.Errorf("insert deposit: %w", err)
		}
		res.DepositID = d.ID
		res.Status = d.Status

		if !verdict.OK() {
			res.Reason = string(verdict.Kind)
			return ledger.Log(ctx, tx, userID, ledger.ActionDepositRejected,
				fmt.Sprintf("Deposit %s rejected: %s", hash, verdict.Kind), now)
		}

		// Credit, then let the referral engine react in the same commit.
		u.Balance = u.Balance.Add(amount)
		u.UpdatedAt = now
		if err := tx.SaveUserBalances(ctx, u); err != nil {
			return fmt.Errorf("credit deposit: %w", err)
		}
		if err := ledger.Log(ctx, tx, userID, ledger.ActionDepositVerified,
			fmt.Sprintf("Deposit %s via %s verified on chain", common.FormatUSDT(amount), network), now); err != nil {
			return err
		}
		if err := s.engine.AfterDeposit(ctx, tx, u, amount); err != nil {
			return err
		}

		res.Verified = true
		res.Credited = true
		res.AmountCredited = amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := log.WithFields(log.Fields{
		"user_id":  userID,
		"tx_hash":  hash,
		"network":  network,
		"amount":   amount.String(),
		"verdict":  verdict.Kind,
		"provider": verdict.Provider,
	})
	if verdict.OK() {
		entry.Info("Deposit credited")
	} else {
		entry.Info("Deposit rejected")
	}
	return res, nil
}

// List returns a user's deposits, newest first.
func (s *Service) List(ctx context.Context, f ledger.ListFilter) ([]View, error) {
	var out []View
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		rows, err := tx.ListDeposits(ctx, f)
		if err != nil {
			return err
		}
		out = make([]View, 0, len(rows))
		for _, d := range rows {
			out = append(out, toView(d))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	return out, nil
}

// Approve credits a pending deposit after manual review.
func (s *Service) Approve(ctx context.Context, adminID, depositID int64, notes string) (*View, error) {
	now := s.clock.Now()
	var out View
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		d, err := tx.GetDepositForUpdate(ctx, depositID)
		if err != nil {
			return err
		}
		if d.Status != ledger.DepositPending {
			return common.ErrInvalidTransition
		}

		u, err := tx.GetUserForUpdate(ctx, d.UserID)
		if err != nil {
			return err
		}

		d.Status = ledger.DepositApproved
		d.AdminNotes = notes
		d.ProcessedAt = &now
		if err := tx.UpdateDeposit(ctx, d); err != nil {
			return err
		}

		u.Balance = u.Balance.Add(d.Amount)
		u.UpdatedAt = now
		if err := tx.SaveUserBalances(ctx, u); err != nil {
			return err
		}
		if err := ledger.Log(ctx, tx, d.UserID, ledger.ActionDepositApproved,
			fmt.Sprintf("Deposit %s approved by admin #%d", common.FormatUSDT(d.Amount), adminID), now); err != nil {
			return err
		}
		if err := s.engine.AfterDeposit(ctx, tx, u, d.Amount); err != nil {
			return err
		}
		out = toView(d)
		return nil
	})
	if err != nil {
		return nil, notFound(fmt.Errorf("approve deposit: %w", err))
	}

	metrics.DepositsTotal.WithLabelValues(out.Network, "approved").Inc()
	log.WithFields(log.Fields{
		"deposit_id": depositID,
		"admin_id":   adminID,
		"user_id":    out.UserID,
		"amount":     out.Amount.String(),
	}).Info("Deposit approved")
	return &out, nil
}

// Reject closes a pending deposit without a balance effect.
func (s *Service) Reject(ctx context.Context, adminID, depositID int64, notes string) (*View, error) {
	now := s.clock.Now()
	var out View
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		d, err := tx.GetDepositForUpdate(ctx, depositID)
		if err != nil {
			return err
		}
		if d.Status != ledger.DepositPending {
			return common.ErrInvalidTransition
		}
		d.Status = ledger.DepositRejected
		d.AdminNotes = notes
		d.ProcessedAt = &now
		if err := tx.UpdateDeposit(ctx, d); err != nil {
			return err
		}
		out = toView(d)
		return ledger.Log(ctx, tx, d.UserID, ledger.ActionDepositRejected,
			fmt.Sprintf("Deposit %s rejected by admin #%d", common.FormatUSDT(d.Amount), adminID), now)
	})
	if err != nil {
		return nil, notFound(fmt.Errorf("reject deposit: %w", err))
	}

	log.WithFields(log.Fields{
		"deposit_id": depositID,
		"admin_id":   adminID,
	}).Info("Deposit rejected by admin")
	return &out, nil
}

func (s *Service) count(n chain.Network, outcome string) {
	if outcome == "" {
		outcome = "error"
	}
	metrics.DepositsTotal.WithLabelValues(string(n), outcome).Inc()
}

func outcomeOf(err error) string {
	if r := common.ReasonOf(err); r != "" {
		return r
	}
	return "error"
}

func notFound(err error) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return common.ErrNotFound
	}
	return err
}

func rejectionMessage(v chain.Verdict) string {
	switch v.Kind {
	case chain.NotFound:
		return "transaction not found on the blockchain"
	case chain.FailedOnChain:
		return "transaction failed on the blockchain"
	case chain.NoTransfer:
		return "transaction contains no USDT transfer"
	case chain.WrongRecipient:
		return "USDT was sent to a different address"
	case chain.AmountMismatch:
		return fmt.Sprintf("transferred amount %s does not match the claimed amount", v.Amount.StringFixed(2))
	}
	return "deposit could not be verified"
}
