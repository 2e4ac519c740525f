package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bimakw/dex-connector/internal/domain/entities"
	"github.com/bimakw/dex-connector/internal/infrastructure/dex"
	"github.com/bimakw/dex-connector/internal/infrastructure/nonce"
)

// ChainClient is the network handle a connector runs on.
type ChainClient interface {
	dex.ContractCaller
	TxBackend
	Ready() bool
	ChainID() *big.Int
	StoredTokenList() []entities.Token
	NativeToken() (entities.Token, bool)
	NonceManager() nonce.Coordinator
}

// ConnectorConfig is fixed for the lifetime of a connector.
type ConnectorConfig struct {
	Name            string
	Chain           string
	Network         string
	Router          common.Address
	GasLimit        uint64
	TTL             time.Duration
	AllowedSlippage string
}

// factoryCell holds the router's factory address once it has been looked up.
type factoryCell struct {
	resolved bool
	address  common.Address
}

// Connector quotes and executes swaps against one Uniswap V2 router on one (chain, network).
type Connector struct {
	cfg       ConnectorConfig
	chain     ChainClient
	routerABI abi.ABI
	slippage  SlippageResolver
	planner   *TradePlanner
	logger    *zap.Logger

	mu       sync.RWMutex
	ready    bool
	tokens   *entities.TokenRegistry
	native   *entities.Token
	executor *TradeExecutor

	factoryMu    sync.Mutex
	factory      factoryCell
	factoryGroup singleflight.Group
}

// ConnectorOption customizes a connector at construction.
type ConnectorOption func(*Connector)

// WithPairFetcher replaces the on-chain pair fetcher.
func WithPairFetcher(fetcher dex.PairFetcher) ConnectorOption {
	return func(c *Connector) {
		c.planner = NewTradePlanner(fetcher, c.slippage, c.logger)
	}
}

// NewConnector builds an uninitialized connector; call Init before quoting.
func NewConnector(cfg ConnectorConfig, chain ChainClient, logger *zap.Logger, opts ...ConnectorOption) (*Connector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	routerABI, err := dex.ParseRouterABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse router abi: %w", err)
	}

	c := &Connector{
		cfg:       cfg,
		chain:     chain,
		routerABI: routerABI,
		slippage:  NewSlippageResolver(cfg.AllowedSlippage),
		logger:    logger.Named("connector").With(zap.String("chain", cfg.Chain), zap.String("network", cfg.Network)),
	}
	c.planner = NewTradePlanner(dex.NewUniswapV2Fetcher(chain, c.Factory), c.slippage, c.logger)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Init loads the chain client's token list. It fails while the chain client is not ready.
func (c *Connector) Init() error {
	if !c.chain.Ready() {
		return errUninitialized("chain client is not ready")
	}

	tokens := entities.NewTokenRegistry()
	for _, t := range c.chain.StoredTokenList() {
		tokens.Register(t)
	}

	var native *entities.Token
	if t, ok := c.chain.NativeToken(); ok {
		native = &t
	}

	executor := NewTradeExecutor(c.chain, c.chain.NonceManager(), c.slippage, c.chain.ChainID(), c.logger)

	c.mu.Lock()
	c.tokens = tokens
	c.native = native
	c.executor = executor
	c.ready = true
	c.mu.Unlock()

	c.logger.Info("connector initialized", zap.Int("tokens", tokens.Count()))
	return nil
}

// Ready reports whether Init has completed.
func (c *Connector) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *Connector) Name() string    { return c.cfg.Name }
func (c *Connector) Chain() string   { return c.cfg.Chain }
func (c *Connector) Network() string { return c.cfg.Network }

func (c *Connector) Router() common.Address { return c.cfg.Router }
func (c *Connector) RouterABI() abi.ABI     { return c.routerABI }
func (c *Connector) GasLimit() uint64       { return c.cfg.GasLimit }
func (c *Connector) TTL() time.Duration     { return c.cfg.TTL }
func (c *Connector) ChainID() *big.Int      { return c.chain.ChainID() }

// GetTokenByAddress looks a token up in the loaded token list.
func (c *Connector) GetTokenByAddress(addr common.Address) (entities.Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return entities.Token{}, false
	}
	return c.tokens.GetByAddress(addr)
}

// GetTokenBySymbol looks a token up case-insensitively; the native currency symbol is matched first.
func (c *Connector) GetTokenBySymbol(symbol string) (entities.Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.native != nil && strings.EqualFold(c.native.Symbol, symbol) {
		return *c.native, true
	}
	if c.tokens == nil {
		return entities.Token{}, false
	}
	return c.tokens.GetBySymbol(symbol)
}

// Tokens returns the loaded token list in its original order.
func (c *Connector) Tokens() []entities.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return nil
	}
	return c.tokens.GetAll()
}

// NativeToken returns the chain's native currency, if configured.
func (c *Connector) NativeToken() (entities.Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.native == nil {
		return entities.Token{}, false
	}
	return *c.native, true
}

// GetAllowedSlippage resolves the tolerance for an optional "N/D" override.
func (c *Connector) GetAllowedSlippage(override string) (entities.Percent, error) {
	return c.slippage.Resolve(override)
}

// Factory returns the router's factory address, querying the router on first use.
// Concurrent first calls share one query; a failed query is retried by the next call.
func (c *Connector) Factory(ctx context.Context) (common.Address, error) {
	c.factoryMu.Lock()
	cell := c.factory
	c.factoryMu.Unlock()
	if cell.resolved {
		return cell.address, nil
	}

	v, err, _ := c.factoryGroup.Do("factory", func() (interface{}, error) {
		c.factoryMu.Lock()
		cell := c.factory
		c.factoryMu.Unlock()
		if cell.resolved {
			return cell.address, nil
		}

		addr, err := dex.QueryFactory(ctx, c.chain, c.routerABI, c.cfg.Router)
		if err != nil {
			return nil, err
		}
		c.factoryMu.Lock()
		c.factory = factoryCell{resolved: true, address: addr}
		c.factoryMu.Unlock()
		c.logger.Debug("factory resolved", zap.String("factory", addr.Hex()))
		return addr, nil
	})
	if err != nil {
		return common.Address{}, err
	}
	return v.(common.Address), nil
}

func (c *Connector) checkReady() error {
	if !c.Ready() {
		return errUninitialized("connector used before Init")
	}
	return nil
}

// EstimateSellTrade quotes selling amount of base for quote.
func (c *Connector) EstimateSellTrade(ctx context.Context, base, quote entities.Token, amount *big.Int, slippageOverride string) (*ExpectedTrade, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	return c.planner.EstimateSellTrade(ctx, base, quote, amount, slippageOverride)
}

// EstimateBuyTrade quotes buying amount of base with quote.
func (c *Connector) EstimateBuyTrade(ctx context.Context, quote, base entities.Token, amount *big.Int, slippageOverride string) (*ExpectedTrade, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	return c.planner.EstimateBuyTrade(ctx, quote, base, amount, slippageOverride)
}

// ExecuteTrade submits trade for signer. Zero-valued router, ttl, abi and gas limit
// take the connector's configured values.
func (c *Connector) ExecuteTrade(ctx context.Context, signer Signer, trade *entities.Trade, params ExecuteParams) (*types.Transaction, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	if params.Router == (common.Address{}) {
		params.Router = c.cfg.Router
	}
	if params.TTL == 0 {
		params.TTL = c.cfg.TTL
	}
	if len(params.ABI.Methods) == 0 {
		params.ABI = c.routerABI
	}
	if params.GasLimit == 0 {
		params.GasLimit = c.cfg.GasLimit
	}

	c.mu.RLock()
	executor := c.executor
	c.mu.RUnlock()
	return executor.ExecuteTrade(ctx, signer, trade, params)
}

// ResyncNonce forgets the committed nonce watermark for addr, for when a submitted
// transaction was dropped and the node's pending count fell behind it.
func (c *Connector) ResyncNonce(ctx context.Context, addr common.Address) (uint64, error) {
	if err := c.checkReady(); err != nil {
		return 0, err
	}
	return c.chain.NonceManager().Resync(ctx, addr)
}

// Close releases the chain client when it can be closed.
func (c *Connector) Close() {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()
	if closer, ok := c.chain.(interface{ Close() }); ok {
		closer.Close()
	}
}
