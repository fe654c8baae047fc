package executor

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// contractABIJSON is the operator-facing surface of the deployed settlement
// contract: the loan entrypoint plus its two lifecycle events.
const contractABIJSON = `[
  {"inputs":[
    {"internalType":"address","name":"asset","type":"address"},
    {"internalType":"uint256","name":"amount","type":"uint256"},
    {"internalType":"bytes","name":"params","type":"bytes"}
  ],"name":"requestFlashLoan","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"asset","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}
  ],"name":"LoanRequested","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"asset","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"principal","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"profit","type":"uint256"}
  ],"name":"ArbitrageSettled","type":"event"}
]`

var contractABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(contractABIJSON))
	if err != nil {
		panic("executor: bad ABI literal: " + err.Error())
	}
	return parsed
}()

var settledTopic = crypto.Keccak256Hash([]byte("ArbitrageSettled(address,uint256,uint256)"))

// SettledEvent is the completion event the contract emits once the loan is
// repaid: the borrowed asset, the principal returned, and the profit kept.
type SettledEvent struct {
	Asset     common.Address
	Principal *big.Int
	Profit    *big.Int
}

// DecodeSettled scans receipt logs from the contract for the completion
// event. Absence is not an error; a reverted settlement has no such log.
func DecodeSettled(contract common.Address, logs []*types.Log) (SettledEvent, bool) {
	for _, l := range logs {
		if l.Address != contract || len(l.Topics) < 2 || l.Topics[0] != settledTopic {
			continue
		}
		if len(l.Data) < 64 {
			continue
		}
		readU256 := func(word int) *big.Int {
			start := word * 32
			return new(big.Int).SetBytes(l.Data[start : start+32])
		}
		return SettledEvent{
			Asset:     common.BytesToAddress(l.Topics[1].Bytes()),
			Principal: readU256(0),
			Profit:    readU256(1),
		}, true
	}
	return SettledEvent{}, false
}
