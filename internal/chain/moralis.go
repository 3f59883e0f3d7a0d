package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Moralis reads transactions from a Moralis-compatible indexer API:
// GET {base}/transaction/{hash}?chain={bsc|tron} with an X-API-Key header.
type Moralis struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewMoralis creates the provider. client may be nil.
func NewMoralis(baseURL, apiKey string, client *http.Client) *Moralis {
	if client == nil {
		client = &http.Client{}
	}
	return &Moralis{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

// Name tags verdicts produced by this provider.
func (m *Moralis) Name() string { return "moralis" }

// Supports reports whether the API is queried for n.
func (m *Moralis) Supports(n Network) bool {
	return n == BEP20 || n == TRC20
}

type moralisLog struct {
	Address string  `json:"address"`
	Topic0  *string `json:"topic0"`
	Topic1  *string `json:"topic1"`
	Topic2  *string `json:"topic2"`
	Topic3  *string `json:"topic3"`
	Data    string  `json:"data"`
}

type moralisTx struct {
	Hash          string       `json:"hash"`
	ReceiptStatus string       `json:"receipt_status"`
	BlockNumber   string       `json:"block_number"`
	Logs          []moralisLog `json:"logs"`
}

// Receipt fetches the transaction and maps it to a Receipt. A 404 is ErrTxNotFound.
func (m *Moralis) Receipt(ctx context.Context, n Network, txHash string) (*Receipt, error) {
	chainTag := "bsc"
	if n == TRC20 {
		chainTag = "tron"
	}
	endpoint := fmt.Sprintf("%s/transaction/%s?chain=%s", m.baseURL, url.PathEscape(txHash), chainTag)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("moralis: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if m.apiKey != "" {
		req.Header.Set("X-API-Key", m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moralis: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrTxNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("moralis: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tx moralisTx
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, fmt.Errorf("moralis: decode: %w", err)
	}
	if tx.Hash == "" && tx.BlockNumber == "" {
		return nil, ErrTxNotFound
	}

	block, _ := strconv.ParseUint(tx.BlockNumber, 10, 64)
	receipt := &Receipt{
		Success:     tx.ReceiptStatus == "1",
		BlockNumber: block,
	}
	for _, l := range tx.Logs {
		var topics []string
		for _, t := range []*string{l.Topic0, l.Topic1, l.Topic2, l.Topic3} {
			if t == nil || *t == "" {
				break
			}
			topics = append(topics, *t)
		}
		receipt.Logs = append(receipt.Logs, Log{Address: l.Address, Topics: topics, Data: l.Data})
	}
	return receipt, nil
}
