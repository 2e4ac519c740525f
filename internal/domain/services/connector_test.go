package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bimakw/dex-connector/internal/domain/entities"
	"github.com/bimakw/dex-connector/internal/infrastructure/wallet"
)

func testConnectorConfig() ConnectorConfig {
	return ConnectorConfig{
		Name:            "viperswap",
		Chain:           "harmony",
		Network:         "mainnet",
		Router:          routerAddr,
		GasLimit:        150_688,
		TTL:             5 * time.Minute,
		AllowedSlippage: "1%",
	}
}

func newTestConnector(t *testing.T, chain *fakeChain, opts ...ConnectorOption) *Connector {
	t.Helper()
	c, err := NewConnector(testConnectorConfig(), chain, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return c
}

func assertUninitialized(t *testing.T, err error) {
	t.Helper()
	var initErr *InitializationError
	require.True(t, errors.As(err, &initErr), "got %v", err)
	assert.Equal(t, ServiceUninitializedCode, initErr.Code)
}

func TestConnectorInitRequiresReadyChain(t *testing.T) {
	chain := newFakeChain()
	chain.ready = false
	c := newTestConnector(t, chain)

	assertUninitialized(t, c.Init())
	assert.False(t, c.Ready())

	chain.ready = true
	require.NoError(t, c.Init())
	assert.True(t, c.Ready())
}

func TestConnectorRejectsUseBeforeInit(t *testing.T) {
	c := newTestConnector(t, newFakeChain(), WithPairFetcher(&fakeFetcher{pair: wonePair()}))
	ctx := context.Background()

	_, err := c.EstimateSellTrade(ctx, entities.WONE, entities.USDC, units(1, 18), "")
	assertUninitialized(t, err)

	_, err = c.EstimateBuyTrade(ctx, entities.USDC, entities.WONE, units(1, 18), "")
	assertUninitialized(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = c.ExecuteTrade(ctx, wallet.New(key), sellTrade(t, entities.WONE), ExecuteParams{GasPriceGwei: 1})
	assertUninitialized(t, err)
}

func TestConnectorAccessors(t *testing.T) {
	chain := newFakeChain()
	c := newTestConnector(t, chain)
	require.NoError(t, c.Init())

	assert.Equal(t, "viperswap", c.Name())
	assert.Equal(t, "harmony", c.Chain())
	assert.Equal(t, "mainnet", c.Network())
	assert.Equal(t, routerAddr, c.Router())
	assert.Equal(t, uint64(150_688), c.GasLimit())
	assert.Equal(t, 5*time.Minute, c.TTL())
	assert.Equal(t, chain.chainID, c.ChainID())
	assert.Contains(t, c.RouterABI().Methods, "swapExactTokensForTokens")

	slippage, err := c.GetAllowedSlippage("")
	require.NoError(t, err)
	assert.Equal(t, "1", slippage.Num.String())
	assert.Equal(t, "100", slippage.Den.String())

	slippage, err = c.GetAllowedSlippage("3/1000")
	require.NoError(t, err)
	assert.Equal(t, "3", slippage.Num.String())
}

func TestConnectorTokenLookups(t *testing.T) {
	c := newTestConnector(t, newFakeChain())
	require.NoError(t, c.Init())

	got, ok := c.GetTokenByAddress(entities.USDC.Address)
	require.True(t, ok)
	assert.Equal(t, "1USDC", got.Symbol)

	got, ok = c.GetTokenBySymbol("1usdc")
	require.True(t, ok)
	assert.Equal(t, entities.USDC.Address, got.Address)

	got, ok = c.GetTokenBySymbol("wone")
	require.True(t, ok)
	assert.False(t, got.Native)

	// the native symbol resolves to the native form of the wrapped token
	got, ok = c.GetTokenBySymbol("one")
	require.True(t, ok)
	assert.True(t, got.Native)
	assert.Equal(t, entities.WONE.Address, got.Address)

	native, ok := c.NativeToken()
	require.True(t, ok)
	assert.Equal(t, "ONE", native.Symbol)

	_, ok = c.GetTokenBySymbol("DAI")
	assert.False(t, ok)
	_, ok = c.GetTokenByAddress(common.HexToAddress("0x01"))
	assert.False(t, ok)

	tokens := c.Tokens()
	require.Len(t, tokens, 2)
	assert.Equal(t, "WONE", tokens[0].Symbol)
	tokens[0].Symbol = "changed"
	assert.Equal(t, "WONE", c.Tokens()[0].Symbol)
}

func TestConnectorWithoutNative(t *testing.T) {
	chain := newFakeChain()
	chain.native = nil
	c := newTestConnector(t, chain)
	require.NoError(t, c.Init())

	_, ok := c.NativeToken()
	assert.False(t, ok)
	_, ok = c.GetTokenBySymbol("ONE")
	assert.False(t, ok)
}

func TestConnectorFactoryResolvedOnce(t *testing.T) {
	chain := newFakeChain()
	c := newTestConnector(t, chain)

	var wg sync.WaitGroup
	results := make([]common.Address, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Factory(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, factoryAddr, results[i])
	}
	assert.Equal(t, 1, chain.factoryCalls)

	addr, err := c.Factory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, factoryAddr, addr)
	assert.Equal(t, 1, chain.factoryCalls)
}

func TestConnectorFactoryFailureNotCached(t *testing.T) {
	chain := newFakeChain()
	chain.factoryErr = errors.New("connection refused")
	c := newTestConnector(t, chain)

	_, err := c.Factory(context.Background())
	assert.ErrorIs(t, err, chain.factoryErr)

	chain.factoryErr = nil
	addr, err := c.Factory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, factoryAddr, addr)
	assert.Equal(t, 2, chain.factoryCalls)
}

func TestConnectorEstimates(t *testing.T) {
	fetcher := &fakeFetcher{pair: wonePair()}
	c := newTestConnector(t, newFakeChain(), WithPairFetcher(fetcher))
	require.NoError(t, c.Init())

	sell, err := c.EstimateSellTrade(context.Background(), entities.WONE, entities.USDC, units(1000, 18), "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sell.ExpectedAmount.Raw.Int64(), int64(9_900_000))

	buy, err := c.EstimateBuyTrade(context.Background(), entities.USDC, one, units(10, 18), "")
	require.NoError(t, err)
	assert.True(t, buy.Trade.OutputAmount.Token.Native)
	assert.Equal(t, 2, fetcher.calls)
}

func TestConnectorExecuteTradeDefaults(t *testing.T) {
	chain := newFakeChain()
	nonces := &recordingCoordinator{next: 3}
	chain.nonces = nonces
	c := newTestConnector(t, chain, WithPairFetcher(&fakeFetcher{pair: wonePair()}))
	require.NoError(t, c.Init())

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expected, err := c.EstimateSellTrade(context.Background(), entities.WONE, entities.USDC, units(1000, 18), "")
	require.NoError(t, err)

	tx, err := c.ExecuteTrade(context.Background(), wallet.New(key), expected.Trade, ExecuteParams{GasPriceGwei: 2})
	require.NoError(t, err)

	assert.Equal(t, routerAddr, *tx.To())
	assert.Equal(t, uint64(150_688), tx.Gas())
	assert.Equal(t, uint64(3), tx.Nonce())
	assert.Equal(t, "2000000000", tx.GasPrice().String())
	assert.Equal(t, []uint64{3}, nonces.committed)
	require.Len(t, chain.sent, 1)
}

func TestConnectorClose(t *testing.T) {
	chain := newFakeChain()
	c := newTestConnector(t, chain)
	require.NoError(t, c.Init())

	c.Close()
	assert.True(t, chain.closed)
	assert.False(t, c.Ready())
}

func TestConnectorResyncNonce(t *testing.T) {
	chain := newFakeChain()
	nonces := &recordingCoordinator{next: 9}
	chain.nonces = nonces
	c := newTestConnector(t, chain)
	addr := common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")

	_, err := c.ResyncNonce(context.Background(), addr)
	assertUninitialized(t, err)

	require.NoError(t, c.Init())
	next, err := c.ResyncNonce(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), next)
	assert.Equal(t, 1, nonces.resyncs)
}
