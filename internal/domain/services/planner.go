package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/bimakw/dex-connector/internal/domain/entities"
	"github.com/bimakw/dex-connector/internal/infrastructure/dex"
)

var ErrInvalidAmount = errors.New("amount must be positive")

// ExpectedTrade is a planned trade and its slippage-adjusted counter-amount:
// the minimum output for exact-input trades, the maximum input for exact-output trades.
type ExpectedTrade struct {
	Trade          *entities.Trade      `json:"trade"`
	ExpectedAmount entities.TokenAmount `json:"expectedAmount"`
}

// TradePlanner finds the best single-pool trade between two tokens
type TradePlanner struct {
	fetcher  dex.PairFetcher
	slippage SlippageResolver
	logger   *zap.Logger
}

func NewTradePlanner(fetcher dex.PairFetcher, slippage SlippageResolver, logger *zap.Logger) *TradePlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradePlanner{
		fetcher:  fetcher,
		slippage: slippage,
		logger:   logger.Named("planner"),
	}
}

// EstimateSellTrade plans selling exactly amount of base for as much quote as possible.
func (p *TradePlanner) EstimateSellTrade(ctx context.Context, base, quote entities.Token, amount *big.Int, slippageOverride string) (*ExpectedTrade, error) {
	return p.plan(ctx, entities.ExactInput, base, quote, amount, slippageOverride)
}

// EstimateBuyTrade plans buying exactly amount of base for as little quote as possible.
func (p *TradePlanner) EstimateBuyTrade(ctx context.Context, quote, base entities.Token, amount *big.Int, slippageOverride string) (*ExpectedTrade, error) {
	return p.plan(ctx, entities.ExactOutput, base, quote, amount, slippageOverride)
}

func (p *TradePlanner) plan(ctx context.Context, tradeType entities.TradeType, base, quote entities.Token, amount *big.Int, slippageOverride string) (*ExpectedTrade, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	pair, err := p.fetcher.FetchPairData(ctx, quote, base)
	if err != nil {
		if errors.Is(err, dex.ErrPairNotFound) {
			return nil, &PriceError{Base: base, Quote: quote, Err: err}
		}
		return nil, fmt.Errorf("failed to fetch pair %s/%s: %w", base.Symbol, quote.Symbol, err)
	}

	pairs := []*entities.Pair{pair}
	opts := entities.BestTradeOptions{MaxHops: 1, MaxNumResults: 1}
	baseAmount := entities.NewTokenAmount(base, amount)

	var trades []*entities.Trade
	switch tradeType {
	case entities.ExactInput:
		trades, err = entities.BestTradeExactIn(pairs, baseAmount, quote, opts)
	case entities.ExactOutput:
		trades, err = entities.BestTradeExactOut(pairs, quote, baseAmount, opts)
	default:
		return nil, fmt.Errorf("unknown trade type %s", tradeType)
	}
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, &PriceError{Base: base, Quote: quote}
	}
	trade := trades[0]

	tolerance, err := p.slippage.Resolve(slippageOverride)
	if err != nil {
		return nil, err
	}

	expected := trade.MinimumAmountOut(tolerance)
	if tradeType == entities.ExactOutput {
		expected = trade.MaximumAmountIn(tolerance)
	}

	p.logger.Debug("trade planned",
		zap.Stringer("type", tradeType),
		zap.String("base", base.Symbol),
		zap.String("quote", quote.Symbol),
		zap.String("input", trade.InputAmount.Raw.String()),
		zap.String("output", trade.OutputAmount.Raw.String()),
		zap.String("expected", expected.Raw.String()),
		zap.Stringer("slippage", tolerance),
	)

	return &ExpectedTrade{Trade: trade, ExpectedAmount: expected}, nil
}
