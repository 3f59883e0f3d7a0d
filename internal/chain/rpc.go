package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// RPC reads BEP20 receipts straight from a BSC JSON-RPC node.
type RPC struct {
	client *ethclient.Client
}

// DialRPC connects to a JSON-RPC endpoint. The connection is lazy for HTTP
// URLs, so this does not touch the network.
func DialRPC(ctx context.Context, rawURL string) (*RPC, error) {
	c, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial bsc rpc: %w", err)
	}
	return &RPC{client: c}, nil
}

// Name tags verdicts produced by this provider.
func (r *RPC) Name() string { return "bsc_rpc" }

// Supports is true for BEP20 only.
func (r *RPC) Supports(n Network) bool { return n == BEP20 }

// Receipt reads the receipt over JSON-RPC.
func (r *RPC) Receipt(ctx context.Context, _ Network, txHash string) (*Receipt, error) {
	rc, err := r.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrTxNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bsc rpc: %w", err)
	}

	out := &Receipt{
		Success: rc.Status == types.ReceiptStatusSuccessful,
	}
	if rc.BlockNumber != nil {
		out.BlockNumber = rc.BlockNumber.Uint64()
	}
	for _, l := range rc.Logs {
		topics := make([]string, 0, len(l.Topics))
		for _, t := range l.Topics {
			topics = append(topics, t.Hex())
		}
		out.Logs = append(out.Logs, Log{
			Address: l.Address.Hex(),
			Topics:  topics,
			Data:    hexutil.Encode(l.Data),
		})
	}
	return out, nil
}

// Close releases the RPC connection.
func (r *RPC) Close() {
	r.client.Close()
}
