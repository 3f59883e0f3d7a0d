package chain

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoralisReceipt(t *testing.T) {
	transfer := transferLog(Tokens[BEP20].Contract, senderAddr, depositAddr, "100", 18)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "bsc", r.URL.Query().Get("chain"))

		if !strings.HasSuffix(r.URL.Path, "/transaction/"+goodHash) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hash":           goodHash,
			"receipt_status": "1",
			"block_number":   "39000000",
			"logs": []map[string]any{{
				"address": transfer.Address,
				"topic0":  transfer.Topics[0],
				"topic1":  transfer.Topics[1],
				"topic2":  transfer.Topics[2],
				"topic3":  nil,
				"data":    transfer.Data,
			}},
		})
	}))
	defer srv.Close()

	m := NewMoralis(srv.URL+"/", "secret", srv.Client())

	r, err := m.Receipt(context.Background(), BEP20, goodHash)
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, uint64(39000000), r.BlockNumber)
	require.Len(t, r.Logs, 1)
	assert.Len(t, r.Logs[0].Topics, 3)

	_, err = m.Receipt(context.Background(), BEP20, "0x"+strings.Repeat("0", 64))
	assert.ErrorIs(t, err, ErrTxNotFound)

	v := NewVerifier(0, m)
	assert.Equal(t, Verified, v.Verify(context.Background(), bepRequest("100")).Kind)
}

func TestMoralisServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewMoralis(srv.URL, "", nil).Receipt(context.Background(), TRC20, "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTxNotFound)
	assert.Contains(t, err.Error(), "429")
}

// rpcServer answers eth_getTransactionReceipt with result.
func rpcServer(t *testing.T, result any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "eth_getTransactionReceipt", req.Method)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func TestRPCReceipt(t *testing.T) {
	transfer := transferLog(Tokens[BEP20].Contract, senderAddr, depositAddr, "100", 18)
	zeroHash := "0x" + strings.Repeat("0", 64)

	srv := rpcServer(t, map[string]any{
		"transactionHash":   goodHash,
		"blockHash":         zeroHash,
		"blockNumber":       "0x10",
		"transactionIndex":  "0x0",
		"status":            "0x1",
		"cumulativeGasUsed": "0x5208",
		"gasUsed":           "0x5208",
		"logsBloom":         "0x" + strings.Repeat("0", 512),
		"logs": []map[string]any{{
			"address":          transfer.Address,
			"topics":           transfer.Topics,
			"data":             transfer.Data,
			"blockNumber":      "0x10",
			"transactionHash":  goodHash,
			"transactionIndex": "0x0",
			"blockHash":        zeroHash,
			"logIndex":         "0x0",
			"removed":          false,
		}},
	})
	defer srv.Close()

	p, err := DialRPC(context.Background(), srv.URL)
	require.NoError(t, err)
	defer p.Close()

	assert.False(t, p.Supports(TRC20))

	r, err := p.Receipt(context.Background(), BEP20, goodHash)
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, uint64(16), r.BlockNumber)
	require.Len(t, r.Logs, 1)

	got := NewVerifier(0, p).Verify(context.Background(), bepRequest("100"))
	assert.Equal(t, Verified, got.Kind, got.Detail)
	assert.Equal(t, "bsc_rpc", got.Provider)
}

func TestRPCNotFound(t *testing.T) {
	srv := rpcServer(t, nil)
	defer srv.Close()

	p, err := DialRPC(context.Background(), srv.URL)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Receipt(context.Background(), BEP20, goodHash)
	assert.ErrorIs(t, err, ErrTxNotFound)
}
