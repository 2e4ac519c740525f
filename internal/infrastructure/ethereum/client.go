package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/bimakw/dex-connector/internal/domain/entities"
	"github.com/bimakw/dex-connector/internal/infrastructure/nonce"
)

var ErrNotStarted = errors.New("chain client not started")

// Options describe one (chain, network) endpoint
type Options struct {
	Chain   string
	Network string
	RPCURL  string
	// ChainID, when non-zero, must match what the node reports.
	ChainID       int64
	TokenListPath string
	// WrappedNative is the token-list entry standing in for the native currency.
	WrappedNative common.Address
	NativeSymbol  string
	NativeName    string

	StartupMaxTries        uint
	StartupInitialInterval time.Duration
	StartupMaxElapsed      time.Duration
}

// Client wraps the go-ethereum client with token list and nonce bookkeeping
type Client struct {
	opts   Options
	store  nonce.Store
	logger *zap.Logger

	mu      sync.RWMutex
	client  *ethclient.Client
	chainID *big.Int
	tokens  []entities.Token
	native  *entities.Token
	nonces  *nonce.Manager
	ready   atomic.Bool
}

// NewClient creates a client that stays unready until Start succeeds
func NewClient(opts Options, store nonce.Store, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		opts:  opts,
		store: store,
		logger: logger.Named("ethereum").With(
			zap.String("chain", opts.Chain),
			zap.String("network", opts.Network),
		),
	}
}

// Start dials the node, retrying transient failures, then loads the token list
func (c *Client) Start(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	if c.opts.StartupInitialInterval > 0 {
		policy.InitialInterval = c.opts.StartupInitialInterval
		policy.MaxInterval = c.opts.StartupInitialInterval * 10
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(policy),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.logger.Warn("chain client not reachable, retrying", zap.Error(err), zap.Duration("backoff", d))
		}),
	}
	if c.opts.StartupMaxTries > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxTries(c.opts.StartupMaxTries))
	}
	if c.opts.StartupMaxElapsed > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(c.opts.StartupMaxElapsed))
	}

	type dialed struct {
		client  *ethclient.Client
		chainID *big.Int
	}
	operation := func() (dialed, error) {
		client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
		if err != nil {
			return dialed{}, fmt.Errorf("failed to dial %s: %w", c.opts.RPCURL, err)
		}
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		chainID, err := client.ChainID(callCtx)
		if err != nil {
			client.Close()
			return dialed{}, fmt.Errorf("failed to get chain id: %w", err)
		}
		if c.opts.ChainID != 0 && chainID.Int64() != c.opts.ChainID {
			client.Close()
			return dialed{}, backoff.Permanent(fmt.Errorf("node reports chain id %s, expected %d", chainID, c.opts.ChainID))
		}
		return dialed{client: client, chainID: chainID}, nil
	}

	d, err := backoff.Retry(ctx, operation, retryOpts...)
	if err != nil {
		return err
	}

	tokens, native, err := c.loadTokens(d.chainID.Int64())
	if err != nil {
		d.client.Close()
		return err
	}

	c.mu.Lock()
	c.client = d.client
	c.chainID = d.chainID
	c.tokens = tokens
	c.native = native
	c.nonces = nonce.NewManager(d.chainID.String(), c, c.store, c.logger)
	c.mu.Unlock()
	c.ready.Store(true)

	c.logger.Info("chain client ready", zap.String("chain_id", d.chainID.String()), zap.Int("tokens", len(tokens)))
	return nil
}

func (c *Client) loadTokens(chainID int64) ([]entities.Token, *entities.Token, error) {
	if c.opts.TokenListPath == "" {
		return nil, nil, nil
	}
	tokens, err := entities.LoadTokenList(c.opts.TokenListPath, chainID)
	if err != nil {
		return nil, nil, err
	}

	if c.opts.WrappedNative == (common.Address{}) || c.opts.NativeSymbol == "" {
		return tokens, nil, nil
	}
	for _, t := range tokens {
		if t.Address == c.opts.WrappedNative {
			native := t.AsNative(strings.ToUpper(c.opts.NativeSymbol), c.opts.NativeName)
			return tokens, &native, nil
		}
	}
	return nil, nil, fmt.Errorf("wrapped native %s is not in token list %s", c.opts.WrappedNative.Hex(), c.opts.TokenListPath)
}

// Ready reports whether Start has completed
func (c *Client) Ready() bool {
	return c.ready.Load()
}

// Close closes the underlying client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready.Store(false)
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

// ChainID returns the chain ID
func (c *Client) ChainID() *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.chainID == nil {
		return nil
	}
	return new(big.Int).Set(c.chainID)
}

// StoredTokenList returns the tokens loaded for this chain, in file order
func (c *Client) StoredTokenList() []entities.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entities.Token, len(c.tokens))
	copy(out, c.tokens)
	return out
}

// NativeToken returns the native currency, backed by its wrapped token
func (c *Client) NativeToken() (entities.Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.native == nil {
		return entities.Token{}, false
	}
	return *c.native, true
}

// NonceManager returns the coordinator for accounts on this chain
func (c *Client) NonceManager() nonce.Coordinator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.nonces == nil {
		return nil
	}
	return c.nonces
}

func (c *Client) eth() (*ethclient.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, ErrNotStarted
	}
	return c.client, nil
}

// CallContract executes a contract call against the latest block
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	client, err := c.eth()
	if err != nil {
		return nil, err
	}
	return client.CallContract(ctx, msg, nil)
}

// SendTransaction broadcasts a signed transaction
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	client, err := c.eth()
	if err != nil {
		return err
	}
	return client.SendTransaction(ctx, tx)
}

// PendingNonceAt returns the next nonce including pending transactions
func (c *Client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	client, err := c.eth()
	if err != nil {
		return 0, err
	}
	return client.PendingNonceAt(ctx, addr)
}

// SuggestGasTipCap suggests a priority fee for dynamic-fee transactions
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	client, err := c.eth()
	if err != nil {
		return nil, err
	}
	return client.SuggestGasTipCap(ctx)
}

// HeaderByNumber returns a block header, the latest when number is nil
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	client, err := c.eth()
	if err != nil {
		return nil, err
	}
	return client.HeaderByNumber(ctx, number)
}

