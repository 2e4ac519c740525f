package entities

import (
	"fmt"
	"math/big"
)

// Percent is an exact non-negative fraction, used for slippage tolerance and price impact.
// 1/100 is one percent.
type Percent struct {
	Num *big.Int
	Den *big.Int
}

// NewPercent panics on a negative numerator or non-positive denominator; callers validate input first.
func NewPercent(num, den *big.Int) Percent {
	if num.Sign() < 0 || den.Sign() <= 0 {
		panic(fmt.Sprintf("entities: invalid percent %s/%s", num, den))
	}
	return Percent{Num: new(big.Int).Set(num), Den: new(big.Int).Set(den)}
}

// Rat returns the fraction as a big.Rat.
func (p Percent) Rat() *big.Rat {
	if p.Num == nil || p.Den == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(p.Num, p.Den)
}

// Cmp compares the values of two percents, ignoring representation.
func (p Percent) Cmp(other Percent) int {
	return p.Rat().Cmp(other.Rat())
}

func (p Percent) String() string {
	return fmt.Sprintf("%s/%s", p.Num, p.Den)
}

// slippageAdjust returns floor(amount * den / (den + num)) when shrink, else floor(amount * (den + num) / den).
func (p Percent) slippageAdjust(amount *big.Int, shrink bool) *big.Int {
	onePlus := new(big.Int).Add(p.Den, p.Num)
	if shrink {
		out := new(big.Int).Mul(amount, p.Den)
		return out.Quo(out, onePlus)
	}
	out := new(big.Int).Mul(amount, onePlus)
	return out.Quo(out, p.Den)
}
