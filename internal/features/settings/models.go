// Package settings assembles the string-keyed platform_settings rows into a
// typed Settings value. Consumers never look a setting up by name.
package settings

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"stakehub/internal/common"
)

// Setting keys
const (
	KeyWithdrawalFee          = "withdrawal_fee"
	KeyMinDeposit             = "min_deposit"
	KeyMinWithdrawal          = "min_withdrawal"
	KeyMaxWithdrawal          = "max_withdrawal"
	KeyDailyLimit             = "daily_limit"
	KeyMinReferralActivation  = "min_referral_activation"
	KeyPremiumReferralCount   = "premium_referral_count"
	KeyTwoReferralBonus       = "two_referral_bonus"
	KeyPremiumStakeCommission = "premium_stake_commission"
	KeyAllowedNetworks        = "allowed_networks"
	KeyMaintenanceMode        = "maintenance_mode"
	KeyMaintenanceMessage     = "maintenance_message"
)

// Settings is the typed view of the platform settings.
type Settings struct {
	WithdrawalFee          decimal.Decimal // percent
	MinDeposit             decimal.Decimal
	MinWithdrawal          decimal.Decimal
	MaxWithdrawal          decimal.Decimal
	DailyLimit             decimal.Decimal
	MinReferralActivation  decimal.Decimal
	PremiumReferralCount   int
	TwoReferralBonus       decimal.Decimal
	PremiumStakeCommission decimal.Decimal // percent
	AllowedNetworks        []string
	MaintenanceMode        bool
	MaintenanceMessage     string
}

// Defaults returns the built-in values used for missing rows.
func Defaults() Settings {
	return Settings{
		WithdrawalFee:          decimal.NewFromInt(1),
		MinDeposit:             decimal.NewFromInt(10),
		MinWithdrawal:          decimal.NewFromInt(10),
		MaxWithdrawal:          decimal.NewFromInt(50000),
		DailyLimit:             decimal.NewFromInt(10000),
		MinReferralActivation:  decimal.NewFromInt(100),
		PremiumReferralCount:   2,
		TwoReferralBonus:       decimal.NewFromInt(20),
		PremiumStakeCommission: decimal.NewFromInt(2),
		AllowedNetworks:        []string{"BEP20", "TRC20"},
		MaintenanceMode:        false,
		MaintenanceMessage:     "Withdrawals are temporarily unavailable",
	}
}

// NetworkAllowed reports whether withdrawals may use network n.
func (s Settings) NetworkAllowed(n string) bool {
	return slices.Contains(s.AllowedNetworks, n)
}

type field struct {
	description string
	parse       func(value string, s *Settings) error
	format      func(s Settings) string
}

// Keys lists every known key in display order.
var Keys = []string{
	KeyWithdrawalFee, KeyMinDeposit, KeyMinWithdrawal, KeyMaxWithdrawal, KeyDailyLimit,
	KeyMinReferralActivation, KeyPremiumReferralCount, KeyTwoReferralBonus,
	KeyPremiumStakeCommission, KeyAllowedNetworks, KeyMaintenanceMode, KeyMaintenanceMessage,
}

var fields = map[string]field{
	KeyWithdrawalFee: {
		"Withdrawal fee in percent for non-premium users",
		percentField(func(s *Settings) *decimal.Decimal { return &s.WithdrawalFee }),
		func(s Settings) string { return s.WithdrawalFee.String() },
	},
	KeyMinDeposit: {
		"Minimum deposit when the payment address sets none",
		amountField(func(s *Settings) *decimal.Decimal { return &s.MinDeposit }),
		func(s Settings) string { return s.MinDeposit.String() },
	},
	KeyMinWithdrawal: {
		"Minimum withdrawal amount",
		amountField(func(s *Settings) *decimal.Decimal { return &s.MinWithdrawal }),
		func(s Settings) string { return s.MinWithdrawal.String() },
	},
	KeyMaxWithdrawal: {
		"Maximum single withdrawal amount",
		amountField(func(s *Settings) *decimal.Decimal { return &s.MaxWithdrawal }),
		func(s Settings) string { return s.MaxWithdrawal.String() },
	},
	KeyDailyLimit: {
		"Maximum withdrawn per user per day",
		amountField(func(s *Settings) *decimal.Decimal { return &s.DailyLimit }),
		func(s Settings) string { return s.DailyLimit.String() },
	},
	KeyMinReferralActivation: {
		"Economic balance that makes a referral qualified",
		amountField(func(s *Settings) *decimal.Decimal { return &s.MinReferralActivation }),
		func(s Settings) string { return s.MinReferralActivation.String() },
	},
	KeyPremiumReferralCount: {
		"Qualified referrals needed for premium benefits",
		func(v string, s *Settings) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 1 {
				return fmt.Errorf("must be a positive integer")
			}
			s.PremiumReferralCount = n
			return nil
		},
		func(s Settings) string { return strconv.Itoa(s.PremiumReferralCount) },
	},
	KeyTwoReferralBonus: {
		"One-time bonus paid when premium is first reached",
		amountField(func(s *Settings) *decimal.Decimal { return &s.TwoReferralBonus }),
		func(s Settings) string { return s.TwoReferralBonus.String() },
	},
	KeyPremiumStakeCommission: {
		"Instant commission in percent on stakes opened by premium users",
		percentField(func(s *Settings) *decimal.Decimal { return &s.PremiumStakeCommission }),
		func(s Settings) string { return s.PremiumStakeCommission.String() },
	},
	KeyAllowedNetworks: {
		"Comma separated networks open for withdrawals",
		func(v string, s *Settings) error {
			var nets []string
			for _, p := range strings.Split(v, ",") {
				p = strings.ToUpper(strings.TrimSpace(p))
				if p == "" {
					continue
				}
				if p != "BEP20" && p != "TRC20" {
					return fmt.Errorf("unknown network %q", p)
				}
				if !slices.Contains(nets, p) {
					nets = append(nets, p)
				}
			}
			if len(nets) == 0 {
				return fmt.Errorf("at least one network is required")
			}
			s.AllowedNetworks = nets
			return nil
		},
		func(s Settings) string { return strings.Join(s.AllowedNetworks, ",") },
	},
	KeyMaintenanceMode: {
		"Blocks new withdrawal requests when true",
		func(v string, s *Settings) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("must be true or false")
			}
			s.MaintenanceMode = b
			return nil
		},
		func(s Settings) string { return strconv.FormatBool(s.MaintenanceMode) },
	},
	KeyMaintenanceMessage: {
		"Message shown while maintenance mode is on",
		func(v string, s *Settings) error {
			s.MaintenanceMessage = strings.TrimSpace(v)
			return nil
		},
		func(s Settings) string { return s.MaintenanceMessage },
	},
}

func parseDecimal(v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("must be a number")
	}
	return d, nil
}

func amountField(ptr func(*Settings) *decimal.Decimal) func(string, *Settings) error {
	return func(v string, s *Settings) error {
		d, err := parseDecimal(v)
		if err != nil {
			return err
		}
		if d.IsNegative() {
			return fmt.Errorf("must not be negative")
		}
		*ptr(s) = d
		return nil
	}
}

func percentField(ptr func(*Settings) *decimal.Decimal) func(string, *Settings) error {
	return func(v string, s *Settings) error {
		d, err := parseDecimal(v)
		if err != nil {
			return err
		}
		if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("must be between 0 and 100")
		}
		*ptr(s) = d
		return nil
	}
}

// Apply sets key to value on s, validating the value.
func (s *Settings) Apply(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return common.ErrUnknownSetting
	}
	if err := f.parse(value, s); err != nil {
		return common.Validation(fmt.Sprintf("%s: %v", key, err))
	}
	if s.MinWithdrawal.GreaterThan(s.MaxWithdrawal) {
		return common.Validation("min_withdrawal must not exceed max_withdrawal")
	}
	return nil
}

// Value renders the current value of key.
func (s Settings) Value(key string) (string, bool) {
	f, ok := fields[key]
	if !ok {
		return "", false
	}
	return f.format(s), true
}

// Description returns the human description of key.
func Description(key string) string {
	return fields[key].description
}

// Entry is one setting as shown to admins.
type Entry struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// UpdateRequest is the admin update body.
type UpdateRequest struct {
	Value string `json:"value"`
}

// PublicView is what users may read.
type PublicView struct {
	MinDeposit         decimal.Decimal `json:"min_deposit"`
	MinWithdrawal      decimal.Decimal `json:"min_withdrawal"`
	MaxWithdrawal      decimal.Decimal `json:"max_withdrawal"`
	DailyLimit         decimal.Decimal `json:"daily_limit"`
	WithdrawalFee      decimal.Decimal `json:"withdrawal_fee_percent"`
	AllowedNetworks    []string        `json:"allowed_networks"`
	MaintenanceMode    bool            `json:"maintenance_mode"`
	MaintenanceMessage string          `json:"maintenance_message,omitempty"`
}
