package executor

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func settledLog(contract, asset common.Address, principal, profit *big.Int) *types.Log {
	data := make([]byte, 64)
	principal.FillBytes(data[:32])
	profit.FillBytes(data[32:])
	return &types.Log{
		Address: contract,
		Topics:  []common.Hash{settledTopic, common.BytesToHash(asset.Bytes())},
		Data:    data,
	}
}

func TestDecodeSettled(t *testing.T) {
	contract := common.HexToAddress("0x3333333333333333333333333333333333333333")
	asset := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	principal := big.NewInt(10_000_000_000)
	profit := big.NewInt(42_000_000)

	logs := []*types.Log{
		// Unrelated contract, same event.
		settledLog(common.HexToAddress("0x4444444444444444444444444444444444444444"), asset, principal, profit),
		// Right contract, different event.
		{Address: contract, Topics: []common.Hash{common.HexToHash("0x01")}},
		settledLog(contract, asset, principal, profit),
	}

	ev, ok := DecodeSettled(contract, logs)
	if !ok {
		t.Fatal("DecodeSettled() found no event")
	}
	if ev.Asset != asset {
		t.Errorf("Asset = %s, want %s", ev.Asset.Hex(), asset.Hex())
	}
	if ev.Principal.Cmp(principal) != 0 {
		t.Errorf("Principal = %s, want %s", ev.Principal, principal)
	}
	if ev.Profit.Cmp(profit) != 0 {
		t.Errorf("Profit = %s, want %s", ev.Profit, profit)
	}
}

func TestDecodeSettledAbsent(t *testing.T) {
	contract := common.HexToAddress("0x3333333333333333333333333333333333333333")
	logs := []*types.Log{
		{Address: contract, Topics: []common.Hash{common.HexToHash("0x01")}},
	}
	if _, ok := DecodeSettled(contract, logs); ok {
		t.Fatal("DecodeSettled() decoded an event from unrelated logs")
	}
	if _, ok := DecodeSettled(contract, nil); ok {
		t.Fatal("DecodeSettled() decoded an event from no logs")
	}
}

func TestDecodeSettledShortData(t *testing.T) {
	contract := common.HexToAddress("0x3333333333333333333333333333333333333333")
	l := settledLog(contract, common.Address{}, big.NewInt(1), big.NewInt(2))
	l.Data = l.Data[:32]
	if _, ok := DecodeSettled(contract, []*types.Log{l}); ok {
		t.Fatal("DecodeSettled() accepted truncated event data")
	}
}
