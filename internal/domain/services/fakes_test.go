package services

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bimakw/dex-connector/internal/domain/entities"
	"github.com/bimakw/dex-connector/internal/infrastructure/nonce"
)

func units(n int64, decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

var (
	routerAddr  = common.HexToAddress("0xf012702a5f0e54015362cBCA26a26fc90AA832a3")
	factoryAddr = common.HexToAddress("0x7D02c116b98d0965ba7B642ace0183ad8b8D2196")
	pairAddr    = common.HexToAddress("0xBf255d8c30DbaB84eA42110EA7DC870F01c0013A")
	one         = entities.WONE.AsNative("ONE", "Harmony ONE")
)

// wonePair prices 1000 WONE at about 10 USDC after fees.
func wonePair() *entities.Pair {
	return entities.NewPair(
		pairAddr,
		entities.NewTokenAmount(entities.WONE, units(1_000_000, 18)),
		entities.NewTokenAmount(entities.USDC, units(10_040, 6)),
		entities.DefaultFeeBps,
	)
}

type fakeFetcher struct {
	mu    sync.Mutex
	pair  *entities.Pair
	err   error
	calls int
}

func (f *fakeFetcher) FetchPairData(_ context.Context, _, _ entities.Token) (*entities.Pair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pair, nil
}

type recordingCoordinator struct {
	mu        sync.Mutex
	next      uint64
	acquired  []uint64
	committed []uint64
	abandoned []uint64
	resyncs   int
}

func (c *recordingCoordinator) AcquireNonce(_ context.Context, _ common.Address) (nonce.Lease, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.next
	c.next++
	c.acquired = append(c.acquired, n)
	return &recordingLease{c: c, n: n}, nil
}

func (c *recordingCoordinator) CommitNonce(_ context.Context, _ common.Address, n uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = append(c.committed, n)
	return nil
}

func (c *recordingCoordinator) Resync(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resyncs++
	return c.next, nil
}

type recordingLease struct {
	c    *recordingCoordinator
	n    uint64
	done bool
}

func (l *recordingLease) Nonce() uint64 { return l.n }

func (l *recordingLease) Commit(ctx context.Context) error {
	if l.done {
		return nil
	}
	l.done = true
	return l.c.CommitNonce(ctx, common.Address{}, l.n)
}

func (l *recordingLease) Abandon() {
	if l.done {
		return
	}
	l.done = true
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	l.c.abandoned = append(l.c.abandoned, l.n)
	// an abandoned nonce is handed out again
	if l.c.next == l.n+1 {
		l.c.next = l.n
	}
}

type fakeChain struct {
	mu sync.Mutex

	ready   bool
	chainID *big.Int
	tokens  []entities.Token
	native  *entities.Token
	nonces  nonce.Coordinator

	factoryCalls int
	factoryErr   error
	sent         []*types.Transaction
	sendErr      error
	tipCap       *big.Int
	baseFee      *big.Int
	feeQueries   int
	closed       bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		ready:   true,
		chainID: big.NewInt(entities.HarmonyMainnetChainID),
		tokens:  []entities.Token{entities.WONE, entities.USDC},
		native:  &one,
		nonces:  &recordingCoordinator{},
		tipCap:  big.NewInt(2_000_000_000),
		baseFee: big.NewInt(10_000_000_000),
	}
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if *msg.To == routerAddr {
		f.factoryCalls++
		if f.factoryErr != nil {
			return nil, f.factoryErr
		}
		return common.LeftPadBytes(factoryAddr.Bytes(), 32), nil
	}
	return nil, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeQueries++
	return new(big.Int).Set(f.tipCap), nil
}

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeQueries++
	return &types.Header{Number: big.NewInt(1), BaseFee: f.baseFee}, nil
}

func (f *fakeChain) Ready() bool                       { return f.ready }
func (f *fakeChain) ChainID() *big.Int                 { return f.chainID }
func (f *fakeChain) StoredTokenList() []entities.Token { return f.tokens }
func (f *fakeChain) NonceManager() nonce.Coordinator   { return f.nonces }
func (f *fakeChain) NativeToken() (entities.Token, bool) {
	if f.native == nil {
		return entities.Token{}, false
	}
	return *f.native, true
}

func (f *fakeChain) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
