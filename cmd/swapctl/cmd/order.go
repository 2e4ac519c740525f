package cmd

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/bimakw/dex-connector/internal/domain/entities"
	"github.com/bimakw/dex-connector/internal/domain/services"
)

// highImpact is where quotes start warning about pool depth.
var highImpact = entities.NewPercent(big.NewInt(3), big.NewInt(100))

// order is a parsed "<side> <amount> <base> <quote>" argument list.
type order struct {
	buy       bool
	base      entities.Token
	quote     entities.Token
	amount    decimal.Decimal
	rawAmount *big.Int
}

func (o order) side() string {
	if o.buy {
		return "BUY"
	}
	return "SELL"
}

func parseOrder(c *services.Connector, args []string) (order, error) {
	var o order
	switch strings.ToLower(args[0]) {
	case "buy":
		o.buy = true
	case "sell":
	default:
		return o, fmt.Errorf("side must be buy or sell, got %q", args[0])
	}

	var err error
	if o.base, err = lookupToken(c, args[2]); err != nil {
		return o, err
	}
	if o.quote, err = lookupToken(c, args[3]); err != nil {
		return o, err
	}
	if o.base.Equals(o.quote) {
		return o, fmt.Errorf("base and quote must differ")
	}

	if o.amount, err = decimal.NewFromString(args[1]); err != nil {
		return o, fmt.Errorf("amount %q is not a number", args[1])
	}
	raw := o.amount.Shift(int32(o.base.Decimals))
	if !raw.IsInteger() || raw.Sign() <= 0 {
		return o, fmt.Errorf("amount must be positive with at most %d decimals", o.base.Decimals)
	}
	o.rawAmount = raw.BigInt()
	return o, nil
}

func lookupToken(c *services.Connector, ref string) (entities.Token, error) {
	if common.IsHexAddress(ref) {
		if t, ok := c.GetTokenByAddress(common.HexToAddress(ref)); ok {
			return t, nil
		}
	} else if t, ok := c.GetTokenBySymbol(ref); ok {
		return t, nil
	}
	return entities.Token{}, fmt.Errorf("token %q is not in the %s/%s token list (try: swapctl tokens)", ref, c.Chain(), c.Network())
}

func estimate(ctx context.Context, c *services.Connector, o order, slippage string) (*services.ExpectedTrade, error) {
	if o.buy {
		return c.EstimateBuyTrade(ctx, o.quote, o.base, o.rawAmount, slippage)
	}
	return c.EstimateSellTrade(ctx, o.base, o.quote, o.rawAmount, slippage)
}

// price is quote per base regardless of side.
func (o order) price(trade *entities.Trade) decimal.Decimal {
	if o.buy {
		return trade.ExecutionPrice.Invert().Decimal()
	}
	return trade.ExecutionPrice.Decimal()
}

func percentString(p entities.Percent) string {
	if p.Num == nil || p.Den == nil || p.Den.Sign() == 0 {
		return "0"
	}
	return decimal.NewFromBigInt(p.Num, 2).DivRound(decimal.NewFromBigInt(p.Den, 0), 4).String()
}
