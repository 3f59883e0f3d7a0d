package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"stakehub/internal/common"
	"stakehub/internal/features/referral"
	"stakehub/internal/features/salary"
	"stakehub/internal/ledger"
)

// codeAttempts bounds referral code regeneration on collision.
const codeAttempts = 5

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(userID int64, isAdmin bool) (string, time.Time, error)
}

// LoginPolicy locks a login after MaxAttempts failures inside Window.
type LoginPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

type Service struct {
	store  ledger.Store
	engine *referral.Engine
	tokens TokenIssuer
	policy LoginPolicy
	clock  common.Clock
}

// NewService creates the user service. A zero policy falls back to the defaults.
func NewService(store ledger.Store, engine *referral.Engine, tokens TokenIssuer, policy LoginPolicy, clock common.Clock) *Service {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 5
	}
	if policy.Window <= 0 {
		policy.Window = time.Hour
	}
	return &Service{store: store, engine: engine, tokens: tokens, policy: policy, clock: clock}
}

// Register creates an account. A collision on the generated referral code
// is retried in a fresh transaction.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Profile, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.Phone)
	if len(req.Password) < 8 {
		return nil, common.Validation("password must be at least 8 characters")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var u *ledger.User
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := newReferralCode()
		if err != nil {
			return nil, fmt.Errorf("generate referral code: %w", err)
		}
		u = &ledger.User{
			Username:     username,
			Email:        email,
			Phone:        phone,
			PasswordHash: hash,
			ReferralCode: code,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		err = s.store.WithTx(ctx, func(tx ledger.Tx) error {
			if ref := strings.ToUpper(strings.TrimSpace(req.ReferralCode)); ref != "" {
				r, err := tx.GetUserByReferralCode(ctx, ref)
				if errors.Is(err, ledger.ErrNotFound) {
					return common.ErrUnknownReferral
				}
				if err != nil {
					return err
				}
				id := r.ID
				u.ReferredBy = &id
			}
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
			return ledger.Log(ctx, tx, u.ID, ledger.ActionRegister, "Account registered", now)
		})
		if ledger.ConstraintOf(err) == ledger.ConstraintReferralCode {
			log.WithField("attempt", attempt+1).Warn("Referral code collision, regenerating")
			continue
		}
		switch {
		case errors.Is(err, ledger.ErrUniqueViolation):
			return nil, common.ErrDuplicateUser
		case common.KindOf(err) != common.KindInternal:
			return nil, err
		case err != nil:
			return nil, fmt.Errorf("register: %w", err)
		}

		log.WithFields(log.Fields{
			"user_id":     u.ID,
			"username":    u.Username,
			"referred_by": u.ReferredBy,
		}).Info("User registered")
		return s.Profile(ctx, u.ID)
	}
	return nil, fmt.Errorf("register: no free referral code after %d attempts", codeAttempts)
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	login := strings.ToLower(strings.TrimSpace(req.Login))
	now := s.clock.Now()

	var u *ledger.User
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		failed, err := tx.CountFailedLogins(ctx, login, now.Add(-s.policy.Window))
		if err != nil {
			return err
		}
		if failed >= s.policy.MaxAttempts {
			return common.ErrTooManyAttempts
		}
		u, err = tx.GetUserByLogin(ctx, login)
		return err
	})
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		s.recordAttempt(ctx, login, false, nil)
		return nil, common.ErrWrongCredentials
	case err != nil:
		return nil, err
	}

	ok, err := VerifyPassword(req.Password, u.PasswordHash)
	if err != nil {
		log.WithError(err).WithField("user_id", u.ID).Error("Stored password hash is unreadable")
	}
	if !ok {
		s.recordAttempt(ctx, login, false, nil)
		return nil, common.ErrWrongCredentials
	}
	if !u.IsActive {
		return nil, common.ErrUserInactive
	}

	token, exp, err := s.tokens.Issue(u.ID, u.IsAdmin)
	if err != nil {
		return nil, err
	}
	s.recordAttempt(ctx, login, true, u)

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
		UserID:      u.ID,
		IsAdmin:     u.IsAdmin,
	}, nil
}

// recordAttempt persists a login attempt in its own transaction so a
// failure is kept even though the login itself fails.
func (s *Service) recordAttempt(ctx context.Context, login string, success bool, u *ledger.User) {
	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.RecordLoginAttempt(ctx, &ledger.LoginAttempt{Login: login, Success: success, CreatedAt: now}); err != nil {
			return err
		}
		if u == nil {
			return nil
		}
		return ledger.Log(ctx, tx, u.ID, ledger.ActionLogin, "Logged in", now)
	})
	if err != nil {
		log.WithError(err).WithField("login", login).Warn("Record login attempt failed")
	}
}

// Profile assembles the account dashboard.
func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	var p Profile
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		eb, err := tx.EconomicBalance(ctx, userID)
		if err != nil {
			return err
		}
		q, err := s.engine.QualifiedCount(ctx, tx, userID)
		if err != nil {
			return err
		}
		premium, err := s.engine.IsPremium(ctx, tx, userID)
		if err != nil {
			return err
		}

		p = Profile{
			ID:                      u.ID,
			Username:                u.Username,
			Email:                   u.Email,
			Phone:                   u.Phone,
			ReferralCode:            u.ReferralCode,
			ReferredBy:              u.ReferredBy,
			Balance:                 u.Balance,
			TotalStaked:             u.TotalStaked,
			TotalEarned:             u.TotalEarned,
			ReferralBonus:           u.ReferralBonus,
			EconomicBalance:         eb,
			QualifiedReferrals:      q,
			PremiumActive:           premium,
			TwoReferralBonusClaimed: u.TwoReferralBonusClaimed,
			SalaryWallet:            u.SalaryWallet,
			IsAdmin:                 u.IsAdmin,
			CreatedAt:               u.CreatedAt,
		}
		if t, ok := salary.Evaluate(q, eb); ok {
			p.SalaryEligible = true
			p.SalaryTier = &t
		}
		return nil
	})
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &p, nil
}

// List returns users for the admin panel.
func (s *Service) List(ctx context.Context, f ledger.ListFilter) ([]AdminView, error) {
	var out []AdminView
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		rows, err := tx.ListUsers(ctx, f)
		if err != nil {
			return err
		}
		out = make([]AdminView, 0, len(rows))
		for _, u := range rows {
			out = append(out, toAdminView(u))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// SetActive activates or deactivates an account. Admins cannot deactivate
// themselves.
func (s *Service) SetActive(ctx context.Context, adminID, userID int64, active bool) error {
	if adminID == userID && !active {
		return common.Precondition("you cannot deactivate your own account")
	}
	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.SetUserActive(ctx, userID, active); err != nil {
			return err
		}
		state := "deactivated"
		if active {
			state = "activated"
		}
		return ledger.Log(ctx, tx, userID, ledger.ActionUserStatus,
			fmt.Sprintf("Account %s by admin #%d", state, adminID), now)
	})
	if errors.Is(err, ledger.ErrNotFound) {
		return common.ErrNotFound
	}
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id":  userID,
		"admin_id": adminID,
		"active":   active,
	}).Info("User status changed")
	return nil
}

// EnsureAdmin creates the bootstrap admin when no user has the username.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, passwordHash string) error {
	if username == "" || passwordHash == "" {
		log.Warn("ADMIN_PASSWORD_HASH not set, skipping admin bootstrap")
		return nil
	}
	if _, err := VerifyPassword("", passwordHash); errors.Is(err, errMalformedHash) {
		return fmt.Errorf("ADMIN_PASSWORD_HASH: %w", err)
	}
	if email == "" {
		email = strings.ToLower(username) + "@localhost"
	}
	now := s.clock.Now()

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := newReferralCode()
		if err != nil {
			return err
		}
		created := false
		err = s.store.WithTx(ctx, func(tx ledger.Tx) error {
			_, err := tx.GetUserByLogin(ctx, username)
			if err == nil {
				return nil
			}
			if !errors.Is(err, ledger.ErrNotFound) {
				return err
			}
			created = true
			return tx.CreateUser(ctx, &ledger.User{
				Username:     username,
				Email:        email,
				PasswordHash: passwordHash,
				ReferralCode: code,
				IsAdmin:      true,
				IsActive:     true,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		})
		if ledger.ConstraintOf(err) == ledger.ConstraintReferralCode {
			continue
		}
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			log.WithField("username", username).Info("Bootstrap admin created")
		}
		return nil
	}
	return fmt.Errorf("bootstrap admin: no free referral code after %d attempts", codeAttempts)
}
