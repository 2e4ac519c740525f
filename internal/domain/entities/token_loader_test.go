package entities

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func writeTokenList(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTokenList(t *testing.T) {
	path := writeTokenList(t, `{
  "name": "test",
  "tokens": [
    {"chainId": 1666600000, "address": "0xcf664087a5bb0237a0bad6742852ec6c8d69a27a", "symbol": "WONE", "name": "Wrapped ONE", "decimals": 18},
    {"chainId": 1, "address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "symbol": "USDC", "name": "USD Coin", "decimals": 6},
    {"chainId": 1666600000, "address": "0x985458E523dB3d53125813eD68c274899e9DfAb4", "symbol": "1USDC", "name": "USD Coin", "decimals": 6}
  ]
}`)

	tokens, err := LoadTokenList(path, HarmonyMainnetChainID)
	if err != nil {
		t.Fatalf("LoadTokenList() error = %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("LoadTokenList() returned %d tokens, want 2", len(tokens))
	}

	wone := tokens[0]
	if wone.Address != common.HexToAddress("0xcF664087a5bB0237a0BAd6742852ec6c8d69A27a") {
		t.Errorf("WONE address = %s", wone.Address.Hex())
	}
	if wone.Decimals != 18 || wone.Native {
		t.Errorf("WONE = %+v", wone)
	}
	if tokens[1].Symbol != "1USDC" || tokens[1].Decimals != 6 {
		t.Errorf("second token = %+v", tokens[1])
	}
}

func TestLoadTokenListErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.json") },
			want: "failed to read token list",
		},
		{
			name: "malformed json",
			path: func(t *testing.T) string { return writeTokenList(t, `{"tokens": [`) },
			want: "failed to parse token list",
		},
		{
			name: "bad address",
			path: func(t *testing.T) string {
				return writeTokenList(t, `{"tokens": [{"chainId": 1666600000, "address": "0x123", "symbol": "BAD", "decimals": 18}]}`)
			},
			want: "invalid address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTokenList(tt.path(t), HarmonyMainnetChainID)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadTokenList() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestShippedTokenLists(t *testing.T) {
	lists := map[string]int64{
		"harmony_mainnet.json":  HarmonyMainnetChainID,
		"ethereum_mainnet.json": 1,
	}
	for file, chainID := range lists {
		tokens, err := LoadTokenList(filepath.Join("..", "..", "..", "configs", "tokens", file), chainID)
		if err != nil {
			t.Fatalf("%s: %v", file, err)
		}
		if len(tokens) == 0 {
			t.Errorf("%s has no tokens for chain %d", file, chainID)
		}
		seen := map[string]bool{}
		for _, tok := range tokens {
			key := strings.ToUpper(tok.Symbol)
			if seen[key] {
				t.Errorf("%s: duplicate symbol %s", file, tok.Symbol)
			}
			seen[key] = true
		}
	}
}

func TestTokenRegistry(t *testing.T) {
	r := NewTokenRegistry()
	wone := Token{ChainID: HarmonyMainnetChainID, Address: common.HexToAddress("0xcF664087a5bB0237a0BAd6742852ec6c8d69A27a"), Symbol: "WONE", Decimals: 18}
	usdc := Token{ChainID: HarmonyMainnetChainID, Address: common.HexToAddress("0x985458E523dB3d53125813eD68c274899e9DfAb4"), Symbol: "1USDC", Decimals: 6}

	r.Register(wone)
	r.Register(usdc)

	if got, ok := r.GetBySymbol("wone"); !ok || !got.Equals(wone) {
		t.Errorf("GetBySymbol(wone) = %+v, %v", got, ok)
	}
	if got, ok := r.GetByAddress(usdc.Address); !ok || got.Symbol != "1USDC" {
		t.Errorf("GetByAddress(usdc) = %+v, %v", got, ok)
	}
	if _, ok := r.GetBySymbol("DAI"); ok {
		t.Error("GetBySymbol(DAI) found an unregistered token")
	}

	renamed := usdc
	renamed.Name = "USD Coin (bridged)"
	r.Register(renamed)
	if r.Count() != 2 {
		t.Errorf("Count() = %d after re-register, want 2", r.Count())
	}

	all := r.GetAll()
	if all[0].Symbol != "WONE" || all[1].Name != "USD Coin (bridged)" {
		t.Errorf("GetAll() = %+v", all)
	}
	all[0].Symbol = "MUTATED"
	if got, _ := r.GetBySymbol("WONE"); got.Symbol != "WONE" {
		t.Error("GetAll() exposed internal storage")
	}
}
