package entities

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token identifies an ERC20 token on a specific chain. Native marks the chain's
// native currency; its Address is the wrapped token used inside pairs.
type Token struct {
	ChainID  int64          `json:"chainId"`
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	Decimals uint8          `json:"decimals"`
	Native   bool           `json:"native,omitempty"`
}

// Equals compares chain and address. Native and wrapped forms are equal.
func (t Token) Equals(other Token) bool {
	return t.ChainID == other.ChainID && t.Address == other.Address
}

// SortsBefore reports whether t is token0 of a pair with other (Uniswap V2 convention).
func (t Token) SortsBefore(other Token) bool {
	return strings.ToLower(t.Address.Hex()) < strings.ToLower(other.Address.Hex())
}

// Wrapped returns the ERC20 form of the token.
func (t Token) Wrapped() Token {
	t.Native = false
	return t
}

// AsNative returns the native-currency form backed by the wrapped token t.
func (t Token) AsNative(symbol, name string) Token {
	t.Native = true
	t.Symbol = symbol
	t.Name = name
	return t
}

const HarmonyMainnetChainID int64 = 1666600000

// WONE is Wrapped ONE on Harmony mainnet
var WONE = Token{
	ChainID:  HarmonyMainnetChainID,
	Address:  common.HexToAddress("0xcF664087a5bB0237a0BAd6742852ec6c8d69A27a"),
	Symbol:   "WONE",
	Name:     "Wrapped ONE",
	Decimals: 18,
}

// USDC is the bridged USD Coin on Harmony mainnet
var USDC = Token{
	ChainID:  HarmonyMainnetChainID,
	Address:  common.HexToAddress("0x985458E523dB3d53125813eD68c274899e9DfAb4"),
	Symbol:   "1USDC",
	Name:     "USD Coin",
	Decimals: 6,
}
