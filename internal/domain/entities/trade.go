package entities

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// TradeType tells which side of a trade is fixed.
type TradeType int

const (
	// ExactInput fixes the input amount; the output is minimized under slippage.
	ExactInput TradeType = iota
	// ExactOutput fixes the output amount; the input is maximized under slippage.
	ExactOutput
)

func (t TradeType) String() string {
	switch t {
	case ExactInput:
		return "EXACT_INPUT"
	case ExactOutput:
		return "EXACT_OUTPUT"
	default:
		return fmt.Sprintf("TradeType(%d)", int(t))
	}
}

var (
	ErrInvalidRoute        = errors.New("invalid route")
	ErrMultiHopUnsupported = errors.New("routes longer than one pair are not supported")
)

// Route is a swap path through one or more pairs from Input to Output.
type Route struct {
	Pairs  []*Pair `json:"pairs"`
	Path   []Token `json:"path"`
	Input  Token   `json:"input"`
	Output Token   `json:"output"`
}

// NewRoute validates that the pairs form a connected path from input to output.
func NewRoute(pairs []*Pair, input, output Token) (*Route, error) {
	if len(pairs) == 0 {
		return nil, ErrInvalidRoute
	}
	if !pairs[0].InvolvesToken(input) {
		return nil, fmt.Errorf("%w: input %s not in first pair", ErrInvalidRoute, input.Address.Hex())
	}

	path := []Token{input.Wrapped()}
	for _, pair := range pairs {
		current := path[len(path)-1]
		if !pair.InvolvesToken(current) {
			return nil, fmt.Errorf("%w: pair %s is disconnected", ErrInvalidRoute, pair.Address.Hex())
		}
		path = append(path, pair.Other(current))
	}
	if !path[len(path)-1].Equals(output) {
		return nil, fmt.Errorf("%w: path ends at %s", ErrInvalidRoute, path[len(path)-1].Address.Hex())
	}

	return &Route{Pairs: pairs, Path: path, Input: input, Output: output}, nil
}

// MidPrice is the product of the pair mid prices along the path (output per input).
func (r *Route) MidPrice() Price {
	num := big.NewInt(1)
	den := big.NewInt(1)
	for i, pair := range r.Pairs {
		p := pair.PriceOf(r.Path[i])
		num.Mul(num, p.Numerator)
		den.Mul(den, p.Denominator)
	}
	return Price{Base: r.Input, Quote: r.Output, Numerator: num, Denominator: den}
}

// Addresses returns the token addresses along the path, as the router expects them.
func (r *Route) Addresses() []common.Address {
	out := make([]common.Address, len(r.Path))
	for i, t := range r.Path {
		out[i] = t.Address
	}
	return out
}

// Trade is a planned swap along a route.
type Trade struct {
	Route          *Route      `json:"route"`
	TradeType      TradeType   `json:"tradeType"`
	InputAmount    TokenAmount `json:"inputAmount"`
	OutputAmount   TokenAmount `json:"outputAmount"`
	ExecutionPrice Price       `json:"executionPrice"`
	PriceImpact    Percent     `json:"priceImpact"`
}

// NewTrade simulates amount through route in the given direction.
func NewTrade(route *Route, amount TokenAmount, tradeType TradeType) (*Trade, error) {
	var input, output TokenAmount

	switch tradeType {
	case ExactInput:
		if !amount.Token.Equals(route.Input) {
			return nil, fmt.Errorf("%w: amount token is not the route input", ErrInvalidRoute)
		}
		current := NewTokenAmount(amount.Token.Wrapped(), amount.Raw)
		for _, pair := range route.Pairs {
			next, err := pair.OutputAmount(current)
			if err != nil {
				return nil, err
			}
			current = next
		}
		input = NewTokenAmount(route.Input, amount.Raw)
		output = NewTokenAmount(route.Output, current.Raw)
	case ExactOutput:
		if !amount.Token.Equals(route.Output) {
			return nil, fmt.Errorf("%w: amount token is not the route output", ErrInvalidRoute)
		}
		current := NewTokenAmount(amount.Token.Wrapped(), amount.Raw)
		for i := len(route.Pairs) - 1; i >= 0; i-- {
			prev, err := route.Pairs[i].InputAmount(current)
			if err != nil {
				return nil, err
			}
			current = prev
		}
		input = NewTokenAmount(route.Input, current.Raw)
		output = NewTokenAmount(route.Output, amount.Raw)
	default:
		return nil, fmt.Errorf("unknown trade type %s", tradeType)
	}

	return &Trade{
		Route:          route,
		TradeType:      tradeType,
		InputAmount:    input,
		OutputAmount:   output,
		ExecutionPrice: NewPrice(input, output),
		PriceImpact:    computePriceImpact(route.MidPrice(), input, output),
	}, nil
}

// computePriceImpact = (spotAmount - actualAmount) / spotAmount
// where spotAmount is the output at mid price with no curve movement.
func computePriceImpact(mid Price, input, output TokenAmount) Percent {
	spotAmount := mid.QuoteAmount(input.Raw)
	if spotAmount.Sign() == 0 {
		return NewPercent(big.NewInt(0), big.NewInt(1))
	}
	diff := new(big.Int).Sub(spotAmount, output.Raw)
	if diff.Sign() <= 0 {
		return NewPercent(big.NewInt(0), big.NewInt(1))
	}
	return NewPercent(diff, spotAmount)
}

// MinimumAmountOut is the least output accepted under the slippage tolerance.
func (t *Trade) MinimumAmountOut(tolerance Percent) TokenAmount {
	if t.TradeType == ExactOutput {
		return t.OutputAmount
	}
	return NewTokenAmount(t.OutputAmount.Token, tolerance.slippageAdjust(t.OutputAmount.Raw, true))
}

// MaximumAmountIn is the most input paid under the slippage tolerance.
func (t *Trade) MaximumAmountIn(tolerance Percent) TokenAmount {
	if t.TradeType == ExactInput {
		return t.InputAmount
	}
	return NewTokenAmount(t.InputAmount.Token, tolerance.slippageAdjust(t.InputAmount.Raw, false))
}

// BestTradeOptions bound the search.
type BestTradeOptions struct {
	MaxNumResults int
	MaxHops       int
}

func (o BestTradeOptions) validate() error {
	if o.MaxHops < 1 {
		return fmt.Errorf("max hops must be at least 1, got %d", o.MaxHops)
	}
	if o.MaxHops > 1 {
		return ErrMultiHopUnsupported
	}
	return nil
}

func (o BestTradeOptions) limit(trades []*Trade) []*Trade {
	if o.MaxNumResults > 0 && len(trades) > o.MaxNumResults {
		return trades[:o.MaxNumResults]
	}
	return trades
}

// BestTradeExactIn returns direct trades from amountIn to tokenOut, best output first.
// Pairs that cannot fill the trade are skipped.
func BestTradeExactIn(pairs []*Pair, amountIn TokenAmount, tokenOut Token, opts BestTradeOptions) ([]*Trade, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	trades := make([]*Trade, 0, len(pairs))
	for _, pair := range pairs {
		if !pair.InvolvesToken(amountIn.Token) || !pair.Other(amountIn.Token).Equals(tokenOut) {
			continue
		}
		route, err := NewRoute([]*Pair{pair}, amountIn.Token, tokenOut)
		if err != nil {
			continue
		}
		trade, err := NewTrade(route, amountIn, ExactInput)
		if err != nil {
			continue
		}
		trades = append(trades, trade)
	}

	sort.SliceStable(trades, func(i, j int) bool { return tradeLess(trades[i], trades[j]) })
	return opts.limit(trades), nil
}

// BestTradeExactOut returns direct trades from tokenIn to amountOut, cheapest input first.
func BestTradeExactOut(pairs []*Pair, tokenIn Token, amountOut TokenAmount, opts BestTradeOptions) ([]*Trade, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	trades := make([]*Trade, 0, len(pairs))
	for _, pair := range pairs {
		if !pair.InvolvesToken(amountOut.Token) || !pair.Other(amountOut.Token).Equals(tokenIn) {
			continue
		}
		route, err := NewRoute([]*Pair{pair}, tokenIn, amountOut.Token)
		if err != nil {
			continue
		}
		trade, err := NewTrade(route, amountOut, ExactOutput)
		if err != nil {
			continue
		}
		trades = append(trades, trade)
	}

	sort.SliceStable(trades, func(i, j int) bool { return tradeLess(trades[i], trades[j]) })
	return opts.limit(trades), nil
}

// tradeLess orders by more output, then less input, then lower impact, then fewer hops.
func tradeLess(a, b *Trade) bool {
	if c := a.OutputAmount.Raw.Cmp(b.OutputAmount.Raw); c != 0 {
		return c > 0
	}
	if c := a.InputAmount.Raw.Cmp(b.InputAmount.Raw); c != 0 {
		return c < 0
	}
	if c := a.PriceImpact.Cmp(b.PriceImpact); c != 0 {
		return c < 0
	}
	return len(a.Route.Path) < len(b.Route.Path)
}
