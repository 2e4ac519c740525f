package entities

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// pricePrecision is the number of decimal places kept when rendering a price.
const pricePrecision = 18

// Price is the amount of Quote paid per unit of Base, kept as raw Numerator/Denominator.
type Price struct {
	Base        Token    `json:"base"`
	Quote       Token    `json:"quote"`
	Numerator   *big.Int `json:"numerator"`   // raw quote units
	Denominator *big.Int `json:"denominator"` // raw base units
}

// NewPrice builds the price at which baseAmount of Base trades for quoteAmount of Quote.
func NewPrice(baseAmount, quoteAmount TokenAmount) Price {
	return Price{
		Base:        baseAmount.Token,
		Quote:       quoteAmount.Token,
		Numerator:   new(big.Int).Set(quoteAmount.Raw),
		Denominator: new(big.Int).Set(baseAmount.Raw),
	}
}

// Decimal returns the human-readable price adjusted for both tokens' decimals.
func (p Price) Decimal() decimal.Decimal {
	if p.Denominator == nil || p.Denominator.Sign() == 0 {
		return decimal.Zero
	}
	raw := decimal.NewFromBigInt(p.Numerator, 0).DivRound(decimal.NewFromBigInt(p.Denominator, 0), pricePrecision)
	return raw.Shift(int32(p.Base.Decimals) - int32(p.Quote.Decimals))
}

// Invert returns the price of Base in terms of Quote.
func (p Price) Invert() Price {
	return Price{
		Base:        p.Quote,
		Quote:       p.Base,
		Numerator:   new(big.Int).Set(p.Denominator),
		Denominator: new(big.Int).Set(p.Numerator),
	}
}

// QuoteAmount converts an amount of Base to Quote at this price, rounding down.
func (p Price) QuoteAmount(amount *big.Int) *big.Int {
	if p.Denominator == nil || p.Denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, p.Numerator)
	return out.Quo(out, p.Denominator)
}

func (p Price) String() string {
	return p.Decimal().String()
}
