package dex

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimakw/dex-connector/internal/domain/entities"
)

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func testPair() *entities.Pair {
	return entities.NewPair(
		pairAddr,
		entities.NewTokenAmount(entities.WONE, new(big.Int).Mul(big.NewInt(1_000_000), exp10(18))),
		entities.NewTokenAmount(entities.USDC, new(big.Int).Mul(big.NewInt(10_040), exp10(6))),
		entities.DefaultFeeBps,
	)
}

func plan(t *testing.T, amount entities.TokenAmount, other entities.Token, tradeType entities.TradeType) *entities.Trade {
	t.Helper()
	var (
		trades []*entities.Trade
		err    error
	)
	if tradeType == entities.ExactInput {
		trades, err = entities.BestTradeExactIn([]*entities.Pair{testPair()}, amount, other, entities.BestTradeOptions{MaxHops: 1})
	} else {
		trades, err = entities.BestTradeExactOut([]*entities.Pair{testPair()}, other, amount, entities.BestTradeOptions{MaxHops: 1})
	}
	require.NoError(t, err)
	require.NotEmpty(t, trades)
	return trades[0]
}

func TestSwapCallParametersMethodSelection(t *testing.T) {
	one := entities.WONE.AsNative("ONE", "Harmony ONE")
	woneAmount := entities.NewTokenAmount(entities.WONE, exp10(21))
	oneAmount := entities.NewTokenAmount(one, exp10(21))
	usdcAmount := entities.NewTokenAmount(entities.USDC, exp10(7))

	tests := []struct {
		name    string
		trade   *entities.Trade
		method  SwapMethod
		payable bool
	}{
		{"exact tokens for tokens", plan(t, woneAmount, entities.USDC, entities.ExactInput), SwapExactTokensForTokens, false},
		{"tokens for exact tokens", plan(t, usdcAmount, entities.WONE, entities.ExactOutput), SwapTokensForExactTokens, false},
		{"exact eth for tokens", plan(t, oneAmount, entities.USDC, entities.ExactInput), SwapExactETHForTokens, true},
		{"eth for exact tokens", plan(t, usdcAmount, one, entities.ExactOutput), SwapETHForExactTokens, true},
		{"exact tokens for eth", plan(t, usdcAmount, one, entities.ExactInput), SwapExactTokensForETH, false},
		{"tokens for exact eth", plan(t, oneAmount, entities.USDC, entities.ExactOutput), SwapTokensForExactETH, false},
	}

	router, err := ParseRouterABI()
	require.NoError(t, err)

	tolerance := entities.NewPercent(big.NewInt(1), big.NewInt(100))
	recipient := common.HexToAddress("0x1111111111111111111111111111111111111111")
	now := time.Unix(1_700_000_000, 0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := SwapCallParameters(tt.trade, TradeOptions{
				TTL:             300 * time.Second,
				Recipient:       recipient,
				AllowedSlippage: tolerance,
				Now:             func() time.Time { return now },
			})
			require.NoError(t, err)
			assert.Equal(t, tt.method, call.Method)
			assert.Equal(t, tt.payable, call.Method.Payable())

			if tt.payable {
				assert.Equal(t, tt.trade.MaximumAmountIn(tolerance).Raw, call.Value)
			} else {
				assert.Zero(t, call.Value.Sign())
			}

			data, err := call.Pack(router)
			require.NoError(t, err)

			method := router.Methods[tt.method.String()]
			assert.Equal(t, method.ID, data[:4])

			args, err := method.Inputs.Unpack(data[4:])
			require.NoError(t, err)
			assert.Equal(t, big.NewInt(now.Unix()+300), args[len(args)-1])
			assert.Equal(t, recipient, args[len(args)-2])
			assert.Equal(t, tt.trade.Route.Addresses(), args[len(args)-3])
		})
	}
}

func TestSwapCallParametersAmounts(t *testing.T) {
	tolerance := entities.NewPercent(big.NewInt(5), big.NewInt(1000))
	trade := plan(t, entities.NewTokenAmount(entities.WONE, exp10(21)), entities.USDC, entities.ExactInput)

	call, err := SwapCallParameters(trade, TradeOptions{TTL: time.Minute, AllowedSlippage: tolerance})
	require.NoError(t, err)

	assert.Equal(t, trade.InputAmount.Raw, call.Args[0])
	assert.Equal(t, trade.MinimumAmountOut(tolerance).Raw, call.Args[1])

	buy := plan(t, entities.NewTokenAmount(entities.WONE, exp10(21)), entities.USDC, entities.ExactOutput)
	call, err = SwapCallParameters(buy, TradeOptions{TTL: time.Minute, AllowedSlippage: tolerance})
	require.NoError(t, err)

	assert.Equal(t, buy.OutputAmount.Raw, call.Args[0])
	assert.Equal(t, buy.MaximumAmountIn(tolerance).Raw, call.Args[1])
}

func TestSwapCallParametersRejects(t *testing.T) {
	trade := plan(t, entities.NewTokenAmount(entities.WONE, exp10(21)), entities.USDC, entities.ExactInput)
	_, err := SwapCallParameters(trade, TradeOptions{AllowedSlippage: entities.NewPercent(big.NewInt(0), big.NewInt(1))})
	assert.Error(t, err)
}

func TestSwapMethodString(t *testing.T) {
	assert.Equal(t, "swapExactTokensForTokens", SwapExactTokensForTokens.String())
	assert.Equal(t, "swapTokensForExactETH", SwapTokensForExactETH.String())
	assert.Equal(t, "SwapMethod(42)", SwapMethod(42).String())
}

func TestQueryFactory(t *testing.T) {
	router, err := ParseRouterABI()
	require.NoError(t, err)

	routerAddr := common.HexToAddress("0xf012702a5f0e54015362cBCA26a26fc90AA832a3")
	caller := newFakeCaller()
	caller.responses[routerAddr] = word(factoryAddr.Bytes())

	got, err := QueryFactory(context.Background(), caller, router, routerAddr)
	require.NoError(t, err)
	assert.Equal(t, factoryAddr, got)

	require.Len(t, caller.calls, 1)
	assert.Equal(t, router.Methods["factory"].ID, caller.calls[0].Data)
}
