// Package relay submits settlement transactions to a private relay instead
// of the public mempool. The wire protocol is flashbots-style JSON-RPC over
// HTTPS; a detached identity signs every request body, so the operator key
// never appears in relay traffic.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// Signer authenticates request bodies. *wallet.Wallet satisfies it.
type Signer interface {
	Address() common.Address
	SignText(msg []byte) ([]byte, error)
}

// StatusError carries the relay's status code and message so callers can
// tell a rejected bundle from relay downtime.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string { return fmt.Sprintf("relay: status %d: %s", e.Code, e.Message) }
func (e *StatusError) Unwrap() error { return domain.ErrRelayRejected }

// Client is the relay RPC client.
type Client struct {
	url        string
	signer     Signer
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(url string, signer Signer, logger *slog.Logger) *Client {
	return &Client{
		url:    url,
		signer: signer,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "relay")),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type sendBundleParams struct {
	Txs         []string `json:"txs"`
	BlockNumber string   `json:"blockNumber"`
}

type callBundleParams struct {
	Txs              []string `json:"txs"`
	BlockNumber      string   `json:"blockNumber"`
	StateBlockNumber string   `json:"stateBlockNumber"`
}

// SimulatedTx is one transaction's result inside a simulated bundle.
type SimulatedTx struct {
	TxHash  string `json:"txHash"`
	GasUsed uint64 `json:"gasUsed"`
	Error   string `json:"error"`
	Revert  string `json:"revert"`
}

// Simulation is the relay's answer to a bundle rehearsal.
type Simulation struct {
	BundleHash   string        `json:"bundleHash"`
	TotalGasUsed uint64        `json:"totalGasUsed"`
	Results      []SimulatedTx `json:"results"`
}

// Failed reports the first failed transaction in the simulation, if any.
func (s Simulation) Failed() (SimulatedTx, bool) {
	for _, r := range s.Results {
		if r.Error != "" || r.Revert != "" {
			return r, true
		}
	}
	return SimulatedTx{}, false
}

// SendBundle submits signed transactions for inclusion in the target block
// and returns the relay's bundle hash. Rejections come back as StatusError;
// nothing is retried here.
func (c *Client) SendBundle(ctx context.Context, txs []*types.Transaction, targetBlock uint64) (string, error) {
	raw, err := encodeTxs(txs)
	if err != nil {
		return "", err
	}
	params := sendBundleParams{Txs: raw, BlockNumber: hexutil.EncodeUint64(targetBlock)}
	var result struct {
		BundleHash string `json:"bundleHash"`
	}
	if err := c.do(ctx, "eth_sendBundle", params, &result); err != nil {
		return "", err
	}
	c.logger.Info("bundle submitted",
		slog.String("bundle_hash", result.BundleHash),
		slog.Uint64("target_block", targetBlock),
	)
	return result.BundleHash, nil
}

// SimulateBundle runs the bundle against the state of stateBlock without
// submitting anything.
func (c *Client) SimulateBundle(ctx context.Context, txs []*types.Transaction, targetBlock, stateBlock uint64) (Simulation, error) {
	raw, err := encodeTxs(txs)
	if err != nil {
		return Simulation{}, err
	}
	params := callBundleParams{
		Txs:              raw,
		BlockNumber:      hexutil.EncodeUint64(targetBlock),
		StateBlockNumber: hexutil.EncodeUint64(stateBlock),
	}
	var sim Simulation
	if err := c.do(ctx, "eth_callBundle", params, &sim); err != nil {
		return Simulation{}, err
	}
	return sim, nil
}

func (c *Client) do(ctx context.Context, method string, params, result interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: []interface{}{params}})
	if err != nil {
		return fmt.Errorf("relay: marshal %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("relay: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	sig, err := c.signBody(body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Flashbots-Signature", sig)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("relay: read %s response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("relay: decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return &StatusError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("relay: decode %s result: %w", method, err)
		}
	}
	return nil
}

// signBody builds the identity header: the relay recovers the signer address
// from an EIP-191 signature over the hex form of the body's keccak digest.
func (c *Client) signBody(body []byte) (string, error) {
	digest := crypto.Keccak256Hash(body).Hex()
	sig, err := c.signer.SignText([]byte(digest))
	if err != nil {
		return "", fmt.Errorf("relay: sign body: %w", err)
	}
	return c.signer.Address().Hex() + ":" + hexutil.Encode(sig), nil
}

func encodeTxs(txs []*types.Transaction) ([]string, error) {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("relay: encode tx %s: %w", tx.Hash().Hex(), err)
		}
		out = append(out, hexutil.Encode(raw))
	}
	return out, nil
}
