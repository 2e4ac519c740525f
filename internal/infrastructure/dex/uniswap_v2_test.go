package dex

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimakw/dex-connector/internal/domain/entities"
)

type fakeCaller struct {
	mu        sync.Mutex
	responses map[common.Address][]byte
	calls     []ethereum.CallMsg
	err       error
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[common.Address][]byte)}
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if f.err != nil {
		return nil, f.err
	}
	return f.responses[*msg.To], nil
}

func word(b []byte) []byte {
	return common.LeftPadBytes(b, 32)
}

var (
	factoryAddr = common.HexToAddress("0x7D02c116b98d0965ba7B642ace0183ad8b8D2196")
	pairAddr    = common.HexToAddress("0xBf255d8c30DbaB84eA42110EA7DC870F01c0013A")
)

func staticFactory(context.Context) (common.Address, error) { return factoryAddr, nil }

func TestFetchPairData(t *testing.T) {
	caller := newFakeCaller()
	caller.responses[factoryAddr] = word(pairAddr.Bytes())

	// WONE (0xcF66...) sorts after USDC (0x9854...), so USDC is token0
	usdcReserve := big.NewInt(10_040_000_000)
	woneReserve, _ := new(big.Int).SetString("1000000000000000000000000", 10)
	reserves := append(word(usdcReserve.Bytes()), word(woneReserve.Bytes())...)
	reserves = append(reserves, word(big.NewInt(1700000000).Bytes())...)
	caller.responses[pairAddr] = reserves

	fetcher := NewUniswapV2Fetcher(caller, staticFactory)
	fetcher.now = func() time.Time { return time.Unix(1700000100, 0) }

	pair, err := fetcher.FetchPairData(context.Background(), entities.WONE, entities.USDC)
	require.NoError(t, err)

	assert.Equal(t, pairAddr, pair.Address)
	assert.True(t, pair.Token0.Equals(entities.USDC))
	assert.True(t, pair.Token1.Equals(entities.WONE))
	assert.Equal(t, usdcReserve, pair.Reserve0)
	assert.Equal(t, woneReserve, pair.Reserve1)
	assert.Equal(t, entities.DefaultFeeBps, pair.Fee)
	assert.Equal(t, int64(1700000100), pair.UpdatedAt)

	require.Len(t, caller.calls, 2)
	getPair := caller.calls[0].Data
	assert.Equal(t, getPairSelector, getPair[:4])
	assert.Equal(t, entities.USDC.Address.Bytes(), getPair[16:36])
	assert.Equal(t, entities.WONE.Address.Bytes(), getPair[48:68])
}

func TestFetchPairDataMissingPair(t *testing.T) {
	caller := newFakeCaller()
	caller.responses[factoryAddr] = word(nil)

	_, err := NewUniswapV2Fetcher(caller, staticFactory).FetchPairData(context.Background(), entities.WONE, entities.USDC)
	assert.ErrorIs(t, err, ErrPairNotFound)
}

func TestFetchPairDataPropagatesErrors(t *testing.T) {
	rpcErr := errors.New("connection refused")

	caller := newFakeCaller()
	caller.err = rpcErr
	_, err := NewUniswapV2Fetcher(caller, staticFactory).FetchPairData(context.Background(), entities.WONE, entities.USDC)
	assert.ErrorIs(t, err, rpcErr)

	factoryErr := errors.New("factory lookup failed")
	_, err = NewUniswapV2Fetcher(newFakeCaller(), func(context.Context) (common.Address, error) {
		return common.Address{}, factoryErr
	}).FetchPairData(context.Background(), entities.WONE, entities.USDC)
	assert.ErrorIs(t, err, factoryErr)
}

func TestFetchPairDataShortReserves(t *testing.T) {
	caller := newFakeCaller()
	caller.responses[factoryAddr] = word(pairAddr.Bytes())
	caller.responses[pairAddr] = word(big.NewInt(1).Bytes())

	_, err := NewUniswapV2Fetcher(caller, staticFactory).FetchPairData(context.Background(), entities.WONE, entities.USDC)
	assert.Error(t, err)
}

func TestSortTokens(t *testing.T) {
	a := common.HexToAddress("0x0000000000000000000000000000000000000001")
	b := common.HexToAddress("0x0000000000000000000000000000000000000002")

	t0, t1 := sortTokens(b, a)
	assert.True(t, bytes.Equal(a.Bytes(), t0.Bytes()))
	assert.Equal(t, b, t1)
}
