// Package chain verifies USDT deposits on BEP20 and TRC20. Given a
// transaction hash, the expected amount and the expected recipient it asks
// an ordered list of blockchain data providers for the transaction receipt
// and returns a Verdict.
package chain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// Network is a supported chain tag.
type Network string

const (
	BEP20 Network = "BEP20"
	TRC20 Network = "TRC20"
)

// ParseNetwork validates a network tag.
func ParseNetwork(s string) (Network, bool) {
	switch Network(s) {
	case BEP20, TRC20:
		return Network(s), true
	}
	return "", false
}

// Token describes the USDT contract of a network.
type Token struct {
	Contract string
	Decimals int32
}

// Tokens maps each network to its USDT contract.
var Tokens = map[Network]Token{
	BEP20: {Contract: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18},
	TRC20: {Contract: "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", Decimals: 6},
}

// TransferTopic is keccak256("Transfer(address,address,uint256)").
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")).Hex()

// Tolerance is the accepted absolute difference between claimed and
// transferred amounts, inclusive.
var Tolerance = decimal.RequireFromString("0.01")

// VerdictKind tags the outcome of a verification.
type VerdictKind string

const (
	Verified            VerdictKind = "verified"
	InvalidFormat       VerdictKind = "invalid_format"
	ProviderUnavailable VerdictKind = "provider_unavailable"
	NotFound            VerdictKind = "not_found"
	FailedOnChain       VerdictKind = "failed_on_chain"
	NoTransfer          VerdictKind = "no_transfer"
	WrongRecipient      VerdictKind = "wrong_recipient"
	AmountMismatch      VerdictKind = "amount_mismatch"
)

// Request is one verification query.
type Request struct {
	TxHash    string
	Amount    decimal.Decimal
	ToAddress string
	Network   Network
}

// Verdict is the verifier's answer. Transfer fields are filled whenever a
// matching transfer event was found, including mismatch verdicts.
type Verdict struct {
	Kind      VerdictKind
	TxHash    string // normalised
	Sender    string
	Recipient string
	Amount    decimal.Decimal
	Block     uint64
	Provider  string
	Detail    string
}

// OK reports whether the deposit can be credited.
func (v Verdict) OK() bool { return v.Kind == Verified }

// Details renders the verdict for storage next to the deposit.
func (v Verdict) Details() map[string]any {
	d := map[string]any{
		"verdict": string(v.Kind),
	}
	if v.Provider != "" {
		d["provider"] = v.Provider
	}
	if v.Sender != "" {
		d["from_address"] = v.Sender
	}
	if v.Recipient != "" {
		d["to_address"] = v.Recipient
		d["amount"] = v.Amount.String()
	}
	if v.Block != 0 {
		d["block_number"] = v.Block
	}
	if v.Detail != "" {
		d["detail"] = v.Detail
	}
	return d
}

// Log is a contract event as returned by a provider. Topics and Data are
// 0x-prefixed hex.
type Log struct {
	Address string
	Topics  []string
	Data    string
}

// Receipt is the part of a transaction receipt the verifier needs.
type Receipt struct {
	Success     bool
	BlockNumber uint64
	Logs        []Log
}

// ErrTxNotFound is returned by a provider that definitively does not know
// the transaction. Any other provider error counts as transient.
var ErrTxNotFound = errors.New("chain: transaction not found")

// Provider fetches receipts from one blockchain data source.
type Provider interface {
	Name() string
	Supports(n Network) bool
	Receipt(ctx context.Context, n Network, txHash string) (*Receipt, error)
}
