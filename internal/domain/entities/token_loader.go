package entities

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TokenConfig represents token configuration from JSON
type TokenConfig struct {
	ChainID  int64  `json:"chainId"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

// TokensConfig represents the token list file structure
type TokensConfig struct {
	Name   string        `json:"name"`
	Tokens []TokenConfig `json:"tokens"`
}

// LoadTokenList reads a token list file and keeps the entries for chainID.
func LoadTokenList(path string, chainID int64) ([]Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token list: %w", err)
	}

	var config TokensConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse token list: %w", err)
	}

	tokens := make([]Token, 0, len(config.Tokens))
	for _, tc := range config.Tokens {
		if tc.ChainID != chainID {
			continue
		}
		if !common.IsHexAddress(tc.Address) {
			return nil, fmt.Errorf("token %s has invalid address %q", tc.Symbol, tc.Address)
		}
		tokens = append(tokens, Token{
			ChainID:  tc.ChainID,
			Address:  common.HexToAddress(tc.Address),
			Symbol:   tc.Symbol,
			Name:     tc.Name,
			Decimals: tc.Decimals,
		})
	}

	return tokens, nil
}

// TokenRegistry holds loaded tokens indexed by address and symbol
type TokenRegistry struct {
	mu        sync.RWMutex
	byAddress map[common.Address]Token
	bySymbol  map[string]Token
	all       []Token
}

// NewTokenRegistry creates a new token registry
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		byAddress: make(map[common.Address]Token),
		bySymbol:  make(map[string]Token),
		all:       make([]Token, 0),
	}
}

// Register adds a token to the registry. A later token with the same address replaces the earlier one.
func (r *TokenRegistry) Register(token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byAddress[token.Address]; !exists {
		r.all = append(r.all, token)
	} else {
		for i := range r.all {
			if r.all[i].Address == token.Address {
				r.all[i] = token
			}
		}
	}
	r.byAddress[token.Address] = token
	r.bySymbol[strings.ToUpper(token.Symbol)] = token
}

// GetByAddress returns a token by its address
func (r *TokenRegistry) GetByAddress(addr common.Address) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.byAddress[addr]
	return token, ok
}

// GetBySymbol returns a token by its symbol, case-insensitively
func (r *TokenRegistry) GetBySymbol(symbol string) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.bySymbol[strings.ToUpper(symbol)]
	return token, ok
}

// GetAll returns all registered tokens in registration order
func (r *TokenRegistry) GetAll() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Token, len(r.all))
	copy(out, r.all)
	return out
}

// Count returns the number of registered tokens
func (r *TokenRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}
