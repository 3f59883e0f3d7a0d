package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakehub/internal/metrics"
)

// Verifier asks providers in order until one gives a definitive answer.
type Verifier struct {
	providers []Provider
	timeout   time.Duration
}

// NewVerifier creates a verifier. timeout bounds each provider call.
func NewVerifier(timeout time.Duration, providers ...Provider) *Verifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Verifier{providers: providers, timeout: timeout}
}

// Verify checks that txHash carries a USDT transfer of amount to toAddress.
// It never returns an error: every failure is a Verdict kind.
func (v *Verifier) Verify(ctx context.Context, req Request) Verdict {
	hash, ok := NormalizeHash(req.Network, req.TxHash)
	if !ok {
		return Verdict{Kind: InvalidFormat, TxHash: strings.TrimSpace(req.TxHash), Detail: "malformed transaction hash"}
	}
	if len(strings.TrimSpace(req.ToAddress)) < MinAddressLength {
		return Verdict{Kind: InvalidFormat, TxHash: hash, Detail: "malformed recipient address"}
	}
	if !req.Amount.IsPositive() {
		return Verdict{Kind: InvalidFormat, TxHash: hash, Detail: "amount must be positive"}
	}
	token, ok := Tokens[req.Network]
	if !ok {
		return Verdict{Kind: InvalidFormat, TxHash: hash, Detail: "unknown network"}
	}

	sawNotFound := false
	for _, p := range v.providers {
		if !p.Supports(req.Network) {
			continue
		}

		receipt, err := v.fetch(ctx, p, req.Network, hash)
		switch {
		case errors.Is(err, ErrTxNotFound):
			sawNotFound = true
			continue
		case err != nil:
			log.WithError(err).WithFields(log.Fields{
				"provider": p.Name(),
				"tx_hash":  hash,
			}).Warn("Chain provider unavailable, trying next")
			if ctx.Err() != nil {
				return Verdict{Kind: ProviderUnavailable, TxHash: hash, Detail: ctx.Err().Error()}
			}
			continue
		}

		verdict := evaluate(receipt, token, req)
		verdict.TxHash = hash
		verdict.Provider = p.Name()
		return verdict
	}

	if sawNotFound {
		return Verdict{Kind: NotFound, TxHash: hash, Detail: "transaction not found"}
	}
	return Verdict{Kind: ProviderUnavailable, TxHash: hash, Detail: "no provider answered"}
}

func (v *Verifier) fetch(ctx context.Context, p Provider, n Network, hash string) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	start := time.Now()
	receipt, err := p.Receipt(ctx, n, hash)
	metrics.ChainProviderLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	outcome := "ok"
	switch {
	case errors.Is(err, ErrTxNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	case receipt == nil:
		outcome = "error"
		err = errors.New("empty receipt")
	}
	metrics.ChainProviderRequests.WithLabelValues(p.Name(), outcome).Inc()
	return receipt, err
}

// evaluate turns a receipt into a verdict. A transfer to the expected
// recipient is preferred when the transaction emits several.
func evaluate(r *Receipt, token Token, req Request) Verdict {
	if !r.Success {
		return Verdict{Kind: FailedOnChain, Block: r.BlockNumber, Detail: "transaction reverted"}
	}

	var (
		found    bool
		transfer Verdict
	)
	for _, l := range r.Logs {
		if !sameAddress(l.Address, token.Contract) {
			continue
		}
		if len(l.Topics) < 3 || !strings.EqualFold(l.Topics[0], TransferTopic) {
			continue
		}
		t := Verdict{
			Sender:    formatAddress(req.Network, topicAddress(l.Topics[1])),
			Recipient: formatAddress(req.Network, topicAddress(l.Topics[2])),
			Amount:    tokenAmount(l.Data, token.Decimals),
			Block:     r.BlockNumber,
		}
		if !found || sameAddress(t.Recipient, req.ToAddress) {
			transfer, found = t, true
		}
		if sameAddress(t.Recipient, req.ToAddress) {
			break
		}
	}
	if !found {
		return Verdict{Kind: NoTransfer, Block: r.BlockNumber, Detail: "no USDT transfer in transaction"}
	}

	if !sameAddress(transfer.Recipient, req.ToAddress) {
		transfer.Kind = WrongRecipient
		transfer.Detail = "transfer sent to " + transfer.Recipient
		return transfer
	}
	if transfer.Amount.Sub(req.Amount).Abs().GreaterThan(Tolerance) {
		transfer.Kind = AmountMismatch
		transfer.Detail = "transferred " + transfer.Amount.String() + ", claimed " + req.Amount.String()
		return transfer
	}
	transfer.Kind = Verified
	return transfer
}

func tokenAmount(data string, decimals int32) decimal.Decimal {
	raw := new(big.Int).SetBytes(common.FromHex(data))
	return decimal.NewFromBigInt(raw, -decimals)
}

func formatAddress(n Network, addr string) string {
	if addr == "" {
		return ""
	}
	if n == TRC20 {
		return TronAddress(addr)
	}
	return addr
}
