package entities

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// TokenAmount is a raw integer amount of a token in its smallest unit.
type TokenAmount struct {
	Token Token    `json:"token"`
	Raw   *big.Int `json:"raw"`
}

// NewTokenAmount copies raw so later mutation by the caller does not leak in.
func NewTokenAmount(token Token, raw *big.Int) TokenAmount {
	if raw == nil {
		raw = big.NewInt(0)
	}
	return TokenAmount{Token: token, Raw: new(big.Int).Set(raw)}
}

// Decimal returns the amount scaled by the token decimals, e.g. 1.5 for 1500000 USDC units.
func (a TokenAmount) Decimal() decimal.Decimal {
	if a.Raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.Raw, -int32(a.Token.Decimals))
}

func (a TokenAmount) String() string {
	return a.Decimal().String() + " " + a.Token.Symbol
}
