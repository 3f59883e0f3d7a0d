package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakehub/internal/common"
	"stakehub/internal/db/memory"
	"stakehub/internal/ledger"
	lt "stakehub/internal/ledger/ledgertest"
)

func TestDefaultsRoundTrip(t *testing.T) {
	d := Defaults()
	for _, k := range Keys {
		v, ok := d.Value(k)
		require.True(t, ok, k)
		next := Defaults()
		assert.NoError(t, next.Apply(k, v), k)
		assert.NotEmpty(t, Description(k), k)
	}
}

func TestApplyValidation(t *testing.T) {
	tests := []struct {
		key, value string
		ok         bool
	}{
		{KeyWithdrawalFee, "2.5", true},
		{KeyWithdrawalFee, "101", false},
		{KeyWithdrawalFee, "-1", false},
		{KeyMinDeposit, "abc", false},
		{KeyMinWithdrawal, "60000", false},
		{KeyPremiumReferralCount, "0", false},
		{KeyPremiumReferralCount, "3", true},
		{KeyAllowedNetworks, "trc20, bep20", true},
		{KeyAllowedNetworks, "ERC20", false},
		{KeyAllowedNetworks, " , ", false},
		{KeyMaintenanceMode, "yes", false},
		{KeyMaintenanceMode, "true", true},
		{"no_such_key", "1", false},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s := Defaults()
			err := s.Apply(tt.key, tt.value)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, common.KindValidation, common.KindOf(err))
		})
	}

	s := Defaults()
	require.NoError(t, s.Apply(KeyAllowedNetworks, "trc20,TRC20"))
	assert.Equal(t, []string{"TRC20"}, s.AllowedNetworks)
	assert.False(t, s.NetworkAllowed("BEP20"))
}

func TestLoadAndUpdate(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	admin := lt.CreateUser(t, store, "admin", lt.AsAdmin())

	lt.Do(t, store, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.UpsertSetting(ctx, &ledger.PlatformSetting{Key: KeyWithdrawalFee, Value: "5"}); err != nil {
			return err
		}
		return tx.UpsertSetting(ctx, &ledger.PlatformSetting{Key: "legacy_key", Value: "x"})
	})

	svc := NewService(store, common.NewFixedClock(lt.Epoch))
	require.NoError(t, svc.Load(ctx))
	assert.True(t, svc.Get().WithdrawalFee.Equal(lt.D("5")))
	assert.True(t, svc.Get().MinDeposit.Equal(lt.D("10")), "missing rows keep defaults")

	entry, err := svc.Update(ctx, admin.ID, KeyMaintenanceMode, "TRUE")
	require.NoError(t, err)
	assert.Equal(t, "true", entry.Value)
	assert.True(t, svc.Get().MaintenanceMode)
	assert.Equal(t, svc.Get().MaintenanceMessage, svc.Public().MaintenanceMessage)
	assert.Len(t, lt.Activity(t, store, admin.ID, ledger.ActionSettingUpdated), 1)

	_, err = svc.Update(ctx, admin.ID, KeyWithdrawalFee, "150")
	assert.Equal(t, common.KindValidation, common.KindOf(err))
	assert.True(t, svc.Get().WithdrawalFee.Equal(lt.D("5")), "rejected update leaves the cache alone")

	reloaded := NewService(store, common.NewFixedClock(lt.Epoch))
	require.NoError(t, reloaded.Load(ctx))
	assert.True(t, reloaded.Get().MaintenanceMode)
}

func TestLoadRejectsMalformedRow(t *testing.T) {
	store := memory.New()
	lt.Do(t, store, func(ctx context.Context, tx ledger.Tx) error {
		return tx.UpsertSetting(ctx, &ledger.PlatformSetting{Key: KeyDailyLimit, Value: "lots"})
	})
	assert.Error(t, NewService(store, common.NewFixedClock(lt.Epoch)).Load(context.Background()))
}

func TestGetReturnsCopy(t *testing.T) {
	svc := NewService(memory.New(), common.NewFixedClock(lt.Epoch))
	s := svc.Get()
	s.AllowedNetworks[0] = "XXX"
	assert.Equal(t, "BEP20", svc.Get().AllowedNetworks[0])
}
