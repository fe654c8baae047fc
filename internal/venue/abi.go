package venue

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const pairFactoryABIJSON = `[
  {"inputs":[
    {"internalType":"address","name":"tokenA","type":"address"},
    {"internalType":"address","name":"tokenB","type":"address"}
  ],"name":"getPair","outputs":[{"internalType":"address","name":"pair","type":"address"}],"stateMutability":"view","type":"function"}
]`

const pairABIJSON = `[
  {"inputs":[],"name":"getReserves","outputs":[
    {"internalType":"uint112","name":"reserve0","type":"uint112"},
    {"internalType":"uint112","name":"reserve1","type":"uint112"},
    {"internalType":"uint32","name":"blockTimestampLast","type":"uint32"}
  ],"stateMutability":"view","type":"function"}
]`

const routerABIJSON = `[
  {"inputs":[
    {"internalType":"uint256","name":"amountIn","type":"uint256"},
    {"internalType":"address[]","name":"path","type":"address[]"}
  ],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}
]`

const poolFactoryABIJSON = `[
  {"inputs":[
    {"internalType":"address","name":"tokenA","type":"address"},
    {"internalType":"address","name":"tokenB","type":"address"},
    {"internalType":"uint24","name":"fee","type":"uint24"}
  ],"name":"getPool","outputs":[{"internalType":"address","name":"pool","type":"address"}],"stateMutability":"view","type":"function"}
]`

const poolABIJSON = `[
  {"inputs":[],"name":"slot0","outputs":[
    {"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
    {"internalType":"int24","name":"tick","type":"int24"},
    {"internalType":"uint16","name":"observationIndex","type":"uint16"},
    {"internalType":"uint16","name":"observationCardinality","type":"uint16"},
    {"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
    {"internalType":"uint8","name":"feeProtocol","type":"uint8"},
    {"internalType":"bool","name":"unlocked","type":"bool"}
  ],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"liquidity","outputs":[{"internalType":"uint128","name":"","type":"uint128"}],"stateMutability":"view","type":"function"}
]`

const quoterABIJSON = `[
  {"inputs":[
    {"internalType":"address","name":"tokenIn","type":"address"},
    {"internalType":"address","name":"tokenOut","type":"address"},
    {"internalType":"uint24","name":"fee","type":"uint24"},
    {"internalType":"uint256","name":"amountIn","type":"uint256"},
    {"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}
  ],"name":"quoteExactInputSingle","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}
]`

const stablePoolABIJSON = `[
  {"inputs":[
    {"internalType":"int128","name":"i","type":"int128"},
    {"internalType":"int128","name":"j","type":"int128"},
    {"internalType":"uint256","name":"dx","type":"uint256"}
  ],"name":"get_dy","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var (
	pairFactoryABI = mustABI(pairFactoryABIJSON)
	pairABI        = mustABI(pairABIJSON)
	routerABI      = mustABI(routerABIJSON)
	poolFactoryABI = mustABI(poolFactoryABIJSON)
	poolABI        = mustABI(poolABIJSON)
	quoterABI      = mustABI(quoterABIJSON)
	stablePoolABI  = mustABI(stablePoolABIJSON)
)

func mustABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("venue: bad ABI literal: " + err.Error())
	}
	return parsed
}
