package entities

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultFeeBps is the Uniswap V2 swap fee (0.3%).
const DefaultFeeBps uint64 = 30

var (
	ErrInsufficientReserves    = errors.New("insufficient reserves")
	ErrInsufficientInputAmount = errors.New("insufficient input amount")
	ErrTokenNotInPair          = errors.New("token not in pair")
)

// Pair represents a constant-product liquidity pair. Token0 sorts before Token1.
type Pair struct {
	Address   common.Address `json:"address"`
	Token0    Token          `json:"token0"`
	Token1    Token          `json:"token1"`
	Reserve0  *big.Int       `json:"reserve0"`
	Reserve1  *big.Int       `json:"reserve1"`
	Fee       uint64         `json:"fee"` // Fee in basis points (e.g., 30 = 0.3%)
	UpdatedAt int64          `json:"updatedAt"`
}

// NewPair orders the two amounts into token0/token1.
func NewPair(address common.Address, a, b TokenAmount, fee uint64) *Pair {
	if b.Token.SortsBefore(a.Token) {
		a, b = b, a
	}
	return &Pair{
		Address:  address,
		Token0:   a.Token.Wrapped(),
		Token1:   b.Token.Wrapped(),
		Reserve0: new(big.Int).Set(a.Raw),
		Reserve1: new(big.Int).Set(b.Raw),
		Fee:      fee,
	}
}

// InvolvesToken reports whether the token is one of the pair's tokens.
func (p *Pair) InvolvesToken(t Token) bool {
	return t.Equals(p.Token0) || t.Equals(p.Token1)
}

// Other returns the pair token opposite t.
func (p *Pair) Other(t Token) Token {
	if t.Equals(p.Token0) {
		return p.Token1
	}
	return p.Token0
}

// ReserveOf returns the reserve held for t.
func (p *Pair) ReserveOf(t Token) *big.Int {
	if t.Equals(p.Token0) {
		return p.Reserve0
	}
	return p.Reserve1
}

// PriceOf is the mid price of t in terms of the other pair token.
func (p *Pair) PriceOf(t Token) Price {
	other := p.Other(t)
	return NewPrice(NewTokenAmount(t, p.ReserveOf(t)), NewTokenAmount(other, p.ReserveOf(other)))
}

func (p *Pair) GetAmountOut(amountIn *big.Int, tokenIn common.Address) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0)
	}

	var reserveIn, reserveOut *big.Int
	if tokenIn == p.Token0.Address {
		reserveIn = p.Reserve0
		reserveOut = p.Reserve1
	} else {
		reserveIn = p.Reserve1
		reserveOut = p.Reserve0
	}

	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return big.NewInt(0)
	}

	// Apply fee (e.g., 0.3% fee means multiply by 997/1000)
	feeMultiplier := big.NewInt(10000 - int64(p.Fee))
	amountInWithFee := new(big.Int).Mul(amountIn, feeMultiplier)

	// numerator = amountInWithFee * reserveOut
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)

	// denominator = reserveIn * 10000 + amountInWithFee
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(10000))
	denominator.Add(denominator, amountInWithFee)

	return new(big.Int).Div(numerator, denominator)
}

// GetAmountIn is the input of tokenIn required to receive amountOut of the other token.
// Returns nil when the pair cannot deliver amountOut.
func (p *Pair) GetAmountIn(amountOut *big.Int, tokenIn common.Address) *big.Int {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil
	}

	var reserveIn, reserveOut *big.Int
	if tokenIn == p.Token0.Address {
		reserveIn = p.Reserve0
		reserveOut = p.Reserve1
	} else {
		reserveIn = p.Reserve1
		reserveOut = p.Reserve0
	}

	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() == 0 || amountOut.Cmp(reserveOut) >= 0 {
		return nil
	}

	// numerator = reserveIn * amountOut * 10000
	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, big.NewInt(10000))

	// denominator = (reserveOut - amountOut) * (10000 - fee)
	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, big.NewInt(10000-int64(p.Fee)))

	// round up so the pool never receives less than the invariant requires
	amountIn := numerator.Div(numerator, denominator)
	return amountIn.Add(amountIn, big.NewInt(1))
}

// OutputAmount swaps an exact input through the pair.
func (p *Pair) OutputAmount(in TokenAmount) (TokenAmount, error) {
	if !p.InvolvesToken(in.Token) {
		return TokenAmount{}, ErrTokenNotInPair
	}
	if p.Reserve0 == nil || p.Reserve1 == nil || p.Reserve0.Sign() == 0 || p.Reserve1.Sign() == 0 {
		return TokenAmount{}, ErrInsufficientReserves
	}
	out := p.GetAmountOut(in.Raw, in.Token.Address)
	if out.Sign() == 0 {
		return TokenAmount{}, ErrInsufficientInputAmount
	}
	return NewTokenAmount(p.Other(in.Token), out), nil
}

// InputAmount is the input of tokenIn required to receive out exactly.
func (p *Pair) InputAmount(out TokenAmount) (TokenAmount, error) {
	if !p.InvolvesToken(out.Token) {
		return TokenAmount{}, ErrTokenNotInPair
	}
	tokenIn := p.Other(out.Token)
	in := p.GetAmountIn(out.Raw, tokenIn.Address)
	if in == nil {
		return TokenAmount{}, ErrInsufficientReserves
	}
	return NewTokenAmount(tokenIn, in), nil
}
