package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	depositAddr = "0x1111111111111111111111111111111111111111"
	senderAddr  = "0x2222222222222222222222222222222222222222"
	otherAddr   = "0x3333333333333333333333333333333333333333"
	goodHash    = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

type fakeProvider struct {
	name     string
	networks []Network
	receipt  *Receipt
	err      error
	calls    int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Supports(n Network) bool {
	for _, x := range f.networks {
		if x == n {
			return true
		}
	}
	return false
}

func (f *fakeProvider) Receipt(ctx context.Context, _ Network, _ string) (*Receipt, error) {
	f.calls++
	return f.receipt, f.err
}

func addrTopic(addr string) string {
	return common.BytesToHash(common.HexToAddress(addr).Bytes()).Hex()
}

func rawAmount(amount string, decimals int32) string {
	d := decimal.RequireFromString(amount).Shift(decimals)
	return common.BigToHash(d.BigInt()).Hex()
}

func transferLog(contract, from, to, amount string, decimals int32) Log {
	return Log{
		Address: contract,
		Topics:  []string{TransferTopic, addrTopic(from), addrTopic(to)},
		Data:    rawAmount(amount, decimals),
	}
}

func bepReceipt(logs ...Log) *Receipt {
	return &Receipt{Success: true, BlockNumber: 4242, Logs: logs}
}

func bepRequest(amount string) Request {
	return Request{
		TxHash:    goodHash,
		Amount:    decimal.RequireFromString(amount),
		ToAddress: depositAddr,
		Network:   BEP20,
	}
}

func TestNormalizeHash(t *testing.T) {
	bare := strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		network Network
		in      string
		want    string
		ok      bool
	}{
		{"bep20 with prefix", BEP20, "0x" + bare, "0x" + bare, true},
		{"bep20 prefix added", BEP20, bare, "0x" + bare, true},
		{"bep20 upper prefix", BEP20, "0X" + bare, "0x" + bare, true},
		{"bep20 lowercased", BEP20, "0x" + strings.ToUpper(bare), "0x" + bare, true},
		{"bep20 trimmed", BEP20, "  0x" + bare + " ", "0x" + bare, true},
		{"bep20 too short", BEP20, "0x" + bare[:62], "", false},
		{"bep20 not hex", BEP20, "0x" + strings.Repeat("zz", 32), "", false},
		{"empty", BEP20, "  ", "", false},
		{"trc20 bare", TRC20, bare, bare, true},
		{"trc20 lowercased", TRC20, strings.ToUpper(bare), bare, true},
		{"trc20 prefix dropped", TRC20, "0x" + bare, bare, true},
		{"trc20 upper prefix dropped", TRC20, "0X" + strings.ToUpper(bare), bare, true},
		{"trc20 too short", TRC20, "a", "", false},
		{"trc20 too long", TRC20, bare + "ab", "", false},
		{"trc20 not hex", TRC20, strings.Repeat("zz", 32), "", false},
		{"unknown network", Network("ERC20"), bare, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeHash(tt.network, tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTronAddressRoundTrip(t *testing.T) {
	assert.Equal(t, Tokens[TRC20].Contract, TronAddress("0xa614f803b6fd780986a42c78ec9c7f77e6ded13c"))
	assert.True(t, sameAddress("41a614f803b6fd780986a42c78ec9c7f77e6ded13c", Tokens[TRC20].Contract))

	addr := TronAddress(depositAddr)
	require.True(t, strings.HasPrefix(addr, "T"))
	require.Len(t, addr, 34)
	assert.Equal(t, strings.TrimPrefix(depositAddr, "0x"), canonicalAddress(addr))

	_, ok := decodeBase58Check(addr[:33] + "1")
	assert.False(t, ok, "broken checksum must not decode")
}

func TestVerifierVerified(t *testing.T) {
	p := &fakeProvider{name: "p1", networks: []Network{BEP20},
		receipt: bepReceipt(transferLog(Tokens[BEP20].Contract, senderAddr, depositAddr, "100", 18))}
	v := NewVerifier(time.Second, p)

	got := v.Verify(context.Background(), bepRequest("100"))

	require.Equal(t, Verified, got.Kind, got.Detail)
	assert.True(t, got.OK())
	assert.Equal(t, "p1", got.Provider)
	assert.Equal(t, uint64(4242), got.Block)
	assert.True(t, sameAddress(senderAddr, got.Sender))
	assert.True(t, sameAddress(depositAddr, got.Recipient))
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "verified", got.Details()["verdict"])
}

func TestVerifierTolerance(t *testing.T) {
	tests := []struct {
		actual string
		want   VerdictKind
	}{
		{"100", Verified},
		{"99.99", Verified},
		{"100.01", Verified},
		{"99.98", AmountMismatch},
		{"99.5", AmountMismatch},
		{"100.02", AmountMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.actual, func(t *testing.T) {
			p := &fakeProvider{name: "p", networks: []Network{BEP20},
				receipt: bepReceipt(transferLog(Tokens[BEP20].Contract, senderAddr, depositAddr, tt.actual, 18))}
			got := NewVerifier(time.Second, p).Verify(context.Background(), bepRequest("100"))
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestVerifierRejections(t *testing.T) {
	contract := Tokens[BEP20].Contract

	tests := []struct {
		name    string
		receipt *Receipt
		want    VerdictKind
	}{
		{"reverted", &Receipt{Success: false}, FailedOnChain},
		{"no logs", bepReceipt(), NoTransfer},
		{"other token", bepReceipt(transferLog(otherAddr, senderAddr, depositAddr, "100", 18)), NoTransfer},
		{"wrong recipient", bepReceipt(transferLog(contract, senderAddr, otherAddr, "100", 18)), WrongRecipient},
		{"recipient preferred", bepReceipt(
			transferLog(contract, senderAddr, otherAddr, "5", 18),
			transferLog(contract, senderAddr, depositAddr, "100", 18),
		), Verified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{name: "p", networks: []Network{BEP20}, receipt: tt.receipt}
			got := NewVerifier(time.Second, p).Verify(context.Background(), bepRequest("100"))
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestVerifierInvalidInput(t *testing.T) {
	p := &fakeProvider{name: "p", networks: []Network{BEP20}}
	v := NewVerifier(time.Second, p)

	req := bepRequest("100")
	req.TxHash = "0x1234"
	assert.Equal(t, InvalidFormat, v.Verify(context.Background(), req).Kind)

	req = bepRequest("0")
	assert.Equal(t, InvalidFormat, v.Verify(context.Background(), req).Kind)

	req = bepRequest("100")
	req.ToAddress = "0x123"
	assert.Equal(t, InvalidFormat, v.Verify(context.Background(), req).Kind)

	assert.Zero(t, p.calls, "format checks run before any provider call")
}

func TestVerifierFallthrough(t *testing.T) {
	good := bepReceipt(transferLog(Tokens[BEP20].Contract, senderAddr, depositAddr, "100", 18))

	t.Run("transient error falls through", func(t *testing.T) {
		broken := &fakeProvider{name: "broken", networks: []Network{BEP20}, err: errors.New("timeout")}
		second := &fakeProvider{name: "second", networks: []Network{BEP20}, receipt: good}
		got := NewVerifier(time.Second, broken, second).Verify(context.Background(), bepRequest("100"))
		assert.Equal(t, Verified, got.Kind)
		assert.Equal(t, "second", got.Provider)
		assert.Equal(t, 1, broken.calls)
	})

	t.Run("unsupported network skipped", func(t *testing.T) {
		tron := &fakeProvider{name: "tron", networks: []Network{TRC20}, receipt: good}
		got := NewVerifier(time.Second, tron).Verify(context.Background(), bepRequest("100"))
		assert.Equal(t, ProviderUnavailable, got.Kind)
		assert.Zero(t, tron.calls)
	})

	t.Run("all transient", func(t *testing.T) {
		a := &fakeProvider{name: "a", networks: []Network{BEP20}, err: errors.New("502")}
		b := &fakeProvider{name: "b", networks: []Network{BEP20}, err: errors.New("503")}
		got := NewVerifier(time.Second, a, b).Verify(context.Background(), bepRequest("100"))
		assert.Equal(t, ProviderUnavailable, got.Kind)
	})

	t.Run("not found wins over transient", func(t *testing.T) {
		a := &fakeProvider{name: "a", networks: []Network{BEP20}, err: ErrTxNotFound}
		b := &fakeProvider{name: "b", networks: []Network{BEP20}, err: errors.New("503")}
		got := NewVerifier(time.Second, a, b).Verify(context.Background(), bepRequest("100"))
		assert.Equal(t, NotFound, got.Kind)
		assert.Equal(t, 1, b.calls)
	})

	t.Run("first definitive answer wins", func(t *testing.T) {
		first := &fakeProvider{name: "first", networks: []Network{BEP20}, receipt: &Receipt{Success: false}}
		second := &fakeProvider{name: "second", networks: []Network{BEP20}, receipt: good}
		got := NewVerifier(time.Second, first, second).Verify(context.Background(), bepRequest("100"))
		assert.Equal(t, FailedOnChain, got.Kind)
		assert.Zero(t, second.calls)
	})
}

func TestVerifierTRC20(t *testing.T) {
	recipientHex := "0x4444444444444444444444444444444444444444"
	log := Log{
		Address: "41a614f803b6fd780986a42c78ec9c7f77e6ded13c",
		Topics:  []string{TransferTopic, addrTopic(senderAddr), addrTopic(recipientHex)},
		Data:    common.BigToHash(big.NewInt(250_500_000)).Hex(),
	}
	p := &fakeProvider{name: "p", networks: []Network{TRC20}, receipt: &Receipt{Success: true, Logs: []Log{log}}}

	got := NewVerifier(time.Second, p).Verify(context.Background(), Request{
		TxHash:    strings.Repeat("cd", 32),
		Amount:    decimal.RequireFromString("250.5"),
		ToAddress: TronAddress(recipientHex),
		Network:   TRC20,
	})

	require.Equal(t, Verified, got.Kind, got.Detail)
	assert.Equal(t, TronAddress(recipientHex), got.Recipient)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("250.5")))
}
