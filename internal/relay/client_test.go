package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
	"github.com/SMSDAO/aaveflashloan/internal/wallet"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.Load(wallet.KeySource{RawHex: testKeyHex}, big.NewInt(1))
	if err != nil {
		t.Fatalf("wallet.Load() error = %v", err)
	}
	return w
}

func testTx(t *testing.T, w *wallet.Wallet) *types.Transaction {
	t.Helper()
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	signed, err := w.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     7,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(30_000_000_000),
		Gas:       500_000,
		To:        &to,
	}))
	if err != nil {
		t.Fatalf("SignTx() error = %v", err)
	}
	return signed
}

func TestSendBundle(t *testing.T) {
	w := testWallet(t)
	tx := testTx(t, w)

	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Flashbots-Signature")
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		rw.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"bundleHash":"0xbeef"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, w, slog.New(slog.DiscardHandler))
	hash, err := c.SendBundle(context.Background(), []*types.Transaction{tx}, 12_345)
	if err != nil {
		t.Fatalf("SendBundle() error = %v", err)
	}
	if hash != "0xbeef" {
		t.Errorf("bundle hash = %q, want 0xbeef", hash)
	}

	var req struct {
		Method string `json:"method"`
		Params []struct {
			Txs         []string `json:"txs"`
			BlockNumber string   `json:"blockNumber"`
		} `json:"params"`
	}
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if req.Method != "eth_sendBundle" {
		t.Errorf("method = %q, want eth_sendBundle", req.Method)
	}
	if len(req.Params) != 1 || len(req.Params[0].Txs) != 1 {
		t.Fatalf("params = %+v, want one bundle of one tx", req.Params)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	if req.Params[0].Txs[0] != hexutil.Encode(raw) {
		t.Errorf("tx payload = %q, want %q", req.Params[0].Txs[0], hexutil.Encode(raw))
	}
	if req.Params[0].BlockNumber != hexutil.EncodeUint64(12_345) {
		t.Errorf("blockNumber = %q, want %q", req.Params[0].BlockNumber, hexutil.EncodeUint64(12_345))
	}

	// The identity header must recover to the signer over the body digest.
	parts := strings.SplitN(gotSig, ":", 2)
	if len(parts) != 2 {
		t.Fatalf("signature header = %q, want address:signature", gotSig)
	}
	if parts[0] != w.Address().Hex() {
		t.Errorf("header address = %s, want %s", parts[0], w.Address().Hex())
	}
	sig, err := hexutil.Decode(parts[1])
	if err != nil {
		t.Fatalf("signature hex: %v", err)
	}
	digest := crypto.Keccak256Hash(gotBody).Hex()
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(digest)), sig)
	if err != nil {
		t.Fatalf("SigToPub() error = %v", err)
	}
	if recovered := crypto.PubkeyToAddress(*pub); recovered != w.Address() {
		t.Errorf("recovered signer = %s, want %s", recovered.Hex(), w.Address().Hex())
	}
}

func TestSendBundleRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"bundle rejected"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testWallet(t), slog.New(slog.DiscardHandler))
	_, err := c.SendBundle(context.Background(), nil, 1)
	if !errors.Is(err, domain.ErrRelayRejected) {
		t.Fatalf("SendBundle() error = %v, want %v", err, domain.ErrRelayRejected)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("SendBundle() error = %T, want *StatusError", err)
	}
	if statusErr.Code != -32000 || statusErr.Message != "bundle rejected" {
		t.Errorf("StatusError = %+v", statusErr)
	}
}

func TestSendBundleHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testWallet(t), slog.New(slog.DiscardHandler))
	_, err := c.SendBundle(context.Background(), nil, 1)
	if !errors.Is(err, domain.ErrRelayRejected) {
		t.Fatalf("SendBundle() error = %v, want %v", err, domain.ErrRelayRejected)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("SendBundle() error = %T, want *StatusError", err)
	}
	if statusErr.Code != http.StatusForbidden {
		t.Errorf("Code = %d, want %d", statusErr.Code, http.StatusForbidden)
	}
}

func TestSimulateBundle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Method string `json:"method"`
			Params []struct {
				BlockNumber      string `json:"blockNumber"`
				StateBlockNumber string `json:"stateBlockNumber"`
			} `json:"params"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request body: %v", err)
		}
		if req.Method != "eth_callBundle" {
			t.Errorf("method = %q, want eth_callBundle", req.Method)
		}
		if req.Params[0].StateBlockNumber != hexutil.EncodeUint64(99) {
			t.Errorf("stateBlockNumber = %q", req.Params[0].StateBlockNumber)
		}
		rw.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{
			"bundleHash":"0xcafe","totalGasUsed":321000,
			"results":[{"txHash":"0x01","gasUsed":21000},{"txHash":"0x02","gasUsed":300000,"revert":"NOT_PROFITABLE"}]
		}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testWallet(t), slog.New(slog.DiscardHandler))
	sim, err := c.SimulateBundle(context.Background(), nil, 100, 99)
	if err != nil {
		t.Fatalf("SimulateBundle() error = %v", err)
	}
	if sim.BundleHash != "0xcafe" || sim.TotalGasUsed != 321_000 {
		t.Errorf("simulation = %+v", sim)
	}
	failed, ok := sim.Failed()
	if !ok {
		t.Fatal("Failed() found no failed tx")
	}
	if failed.TxHash != "0x02" || failed.Revert != "NOT_PROFITABLE" {
		t.Errorf("failed tx = %+v", failed)
	}
}
