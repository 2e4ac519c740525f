package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/dex-connector/internal/domain/entities"
)

// UniswapV2 ABI function signatures (keccak256 hash of function signature)
var (
	// getReserves() returns (uint112 reserve0, uint112 reserve1, uint32 blockTimestampLast)
	getReservesSelector = common.Hex2Bytes("0902f1ac")
	// getPair(address,address) returns (address)
	getPairSelector = common.Hex2Bytes("e6a43905")
)

// ErrPairNotFound is returned when the factory has no pool for the two tokens.
var ErrPairNotFound = errors.New("pair does not exist")

// UniswapV2Fetcher reads pair reserves from a Uniswap V2 compatible factory
type UniswapV2Fetcher struct {
	caller  ContractCaller
	factory FactoryResolver
	fee     uint64 // Fee in basis points (30 = 0.3%)
	now     func() time.Time
}

var _ PairFetcher = (*UniswapV2Fetcher)(nil)

// NewUniswapV2Fetcher creates a fetcher. factory is asked for the factory address on each fetch,
// so callers should pass a memoized resolver.
func NewUniswapV2Fetcher(caller ContractCaller, factory FactoryResolver) *UniswapV2Fetcher {
	return &UniswapV2Fetcher{
		caller:  caller,
		factory: factory,
		fee:     entities.DefaultFeeBps,
		now:     time.Now,
	}
}

// GetPairAddress returns the pair address for two tokens, or the zero address when none exists
func (f *UniswapV2Fetcher) GetPairAddress(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	factory, err := f.factory(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to resolve factory: %w", err)
	}

	// Sort tokens (Uniswap V2 convention)
	token0, token1 := sortTokens(tokenA, tokenB)

	// Encode getPair(token0, token1)
	data := make([]byte, 68)
	copy(data[0:4], getPairSelector)
	copy(data[16:36], token0.Bytes())
	copy(data[48:68], token1.Bytes())

	result, err := f.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &factory,
		Data: data,
	})
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get pair address: %w", err)
	}

	if len(result) < 32 {
		return common.Address{}, fmt.Errorf("invalid response length %d", len(result))
	}

	return common.BytesToAddress(result[12:32]), nil
}

// FetchPairData fetches the pool for tokenA/tokenB including reserves
func (f *UniswapV2Fetcher) FetchPairData(ctx context.Context, tokenA, tokenB entities.Token) (*entities.Pair, error) {
	pairAddress, err := f.GetPairAddress(ctx, tokenA.Address, tokenB.Address)
	if err != nil {
		return nil, err
	}
	if pairAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s/%s", ErrPairNotFound, tokenA.Address.Hex(), tokenB.Address.Hex())
	}

	reserves, err := f.getReserves(ctx, pairAddress)
	if err != nil {
		return nil, err
	}

	// getReserves reports in token0/token1 order; NewPair sorts the same way
	token0, token1 := tokenA, tokenB
	if token1.SortsBefore(token0) {
		token0, token1 = token1, token0
	}

	pair := entities.NewPair(
		pairAddress,
		entities.NewTokenAmount(token0, reserves[0]),
		entities.NewTokenAmount(token1, reserves[1]),
		f.fee,
	)
	pair.UpdatedAt = f.now().Unix()
	return pair, nil
}

// getReserves fetches reserves from a pair
func (f *UniswapV2Fetcher) getReserves(ctx context.Context, pairAddress common.Address) ([2]*big.Int, error) {
	result, err := f.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &pairAddress,
		Data: getReservesSelector,
	})
	if err != nil {
		return [2]*big.Int{}, fmt.Errorf("failed to get reserves: %w", err)
	}

	if len(result) < 64 {
		return [2]*big.Int{}, fmt.Errorf("invalid reserves response length %d", len(result))
	}

	reserve0 := new(big.Int).SetBytes(result[0:32])
	reserve1 := new(big.Int).SetBytes(result[32:64])

	return [2]*big.Int{reserve0, reserve1}, nil
}

// sortTokens sorts two addresses in ascending order (Uniswap V2 convention)
func sortTokens(tokenA, tokenB common.Address) (common.Address, common.Address) {
	if tokenA.Cmp(tokenB) < 0 {
		return tokenA, tokenB
	}
	return tokenB, tokenA
}
