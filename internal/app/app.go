// Package app assembles the connector stack from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/dex-connector/internal/config"
	"github.com/bimakw/dex-connector/internal/domain/services"
	"github.com/bimakw/dex-connector/internal/infrastructure/ethereum"
	"github.com/bimakw/dex-connector/internal/infrastructure/nonce"
	"github.com/bimakw/dex-connector/internal/infrastructure/wallet"
)

var ErrNoWallet = errors.New("no wallet configured; set DEXCONN_WALLET_PRIVATE_KEY")

// App owns the process-wide nonce store and connector registry.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    nonce.Store
	Registry *services.Registry
}

// New opens the nonce store and prepares a registry that builds connectors on demand.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := OpenNonceStore(ctx, cfg.Nonce)
	if err != nil {
		return nil, err
	}
	logger.Info("nonce store opened", zap.String("store", cfg.Nonce.Store))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Registry: services.NewRegistry(NewConnectorFactory(cfg, store, logger), logger),
	}, nil
}

// OpenNonceStore opens the configured nonce watermark backend.
func OpenNonceStore(ctx context.Context, cfg config.NonceConfig) (nonce.Store, error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		return nonce.NewMemoryStore(), nil
	case config.StoreRedis:
		return nonce.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	case config.StoreSQLite:
		return nonce.NewSQLiteStore(ctx, cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown nonce store %q", cfg.Store)
	}
}

// NewConnectorFactory returns a factory that starts a chain client for the
// requested (chain, network) and initializes a connector on it.
func NewConnectorFactory(cfg *config.Config, store nonce.Store, logger *zap.Logger) services.ConnectorFactory {
	return func(ctx context.Context, chain, network string) (*services.Connector, error) {
		nc, err := cfg.Network(chain, network)
		if err != nil {
			return nil, err
		}

		opts := ethereum.Options{
			Chain:                  chain,
			Network:                network,
			RPCURL:                 nc.RPCURL,
			ChainID:                nc.ChainID,
			TokenListPath:          nc.TokenList,
			NativeSymbol:           nc.NativeSymbol,
			NativeName:             nc.NativeName,
			StartupMaxTries:        nc.Startup.MaxTries,
			StartupInitialInterval: nc.Startup.InitialInterval,
			StartupMaxElapsed:      nc.Startup.MaxElapsed,
		}
		if nc.WrappedNative != "" {
			opts.WrappedNative = common.HexToAddress(nc.WrappedNative)
		}

		client := ethereum.NewClient(opts, store, logger)
		if err := client.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start %s/%s client: %w", chain, network, err)
		}

		connector, err := services.NewConnector(services.ConnectorConfig{
			Name:            cfg.Connector.Name,
			Chain:           chain,
			Network:         network,
			Router:          common.HexToAddress(nc.Router),
			GasLimit:        cfg.Connector.GasLimit,
			TTL:             cfg.Connector.TTL,
			AllowedSlippage: cfg.Connector.AllowedSlippage,
		}, client, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		if err := connector.Init(); err != nil {
			client.Close()
			return nil, err
		}
		return connector, nil
	}
}

// Signer returns the configured wallet.
func (a *App) Signer() (*wallet.Wallet, error) {
	if a.Config.Wallet.PrivateKey == "" {
		return nil, ErrNoWallet
	}
	return wallet.FromHex(a.Config.Wallet.PrivateKey)
}

// Close shuts every connector down and closes the nonce store.
func (a *App) Close() error {
	a.Registry.Close()
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
