package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/multierr"

	"github.com/bimakw/dex-connector/internal/domain/services"
)

// ErrUnknownNetwork is returned for a (chain, network) missing from the configuration.
var ErrUnknownNetwork = errors.New("unknown chain or network")

// Nonce store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig           `mapstructure:"server"`
	Logging   LoggingConfig          `mapstructure:"logging"`
	Connector ConnectorConfig        `mapstructure:"connector"`
	Nonce     NonceConfig            `mapstructure:"nonce"`
	Wallet    WalletConfig           `mapstructure:"wallet"`
	Chains    map[string]ChainConfig `mapstructure:"chains"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ConnectorConfig is shared by every (chain, network) connector.
type ConnectorConfig struct {
	Name string `mapstructure:"name"`
	// AllowedSlippage is a percent string such as "1%" or "0.5%".
	AllowedSlippage string        `mapstructure:"allowed_slippage"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
	TTL             time.Duration `mapstructure:"ttl"`
}

type NonceConfig struct {
	Store  string       `mapstructure:"store"`
	Redis  RedisConfig  `mapstructure:"redis"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// WalletConfig holds the signing key used by the trade endpoint. Usually set through DEXCONN_WALLET_PRIVATE_KEY.
type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

type ChainConfig struct {
	Networks map[string]NetworkConfig `mapstructure:"networks"`
}

// NetworkConfig describes one RPC endpoint and the router deployed on it.
type NetworkConfig struct {
	RPCURL        string        `mapstructure:"rpc_url"`
	ChainID       int64         `mapstructure:"chain_id"`
	Router        string        `mapstructure:"router"`
	TokenList     string        `mapstructure:"token_list"`
	WrappedNative string        `mapstructure:"wrapped_native"`
	NativeSymbol  string        `mapstructure:"native_symbol"`
	NativeName    string        `mapstructure:"native_name"`
	Startup       StartupConfig `mapstructure:"startup"`
}

// StartupConfig bounds the retries made while the chain client first connects.
type StartupConfig struct {
	MaxTries        uint          `mapstructure:"max_tries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxElapsed      time.Duration `mapstructure:"max_elapsed"`
}

// Network returns the configuration for chain and network. Names are case-insensitive.
func (c *Config) Network(chain, network string) (NetworkConfig, error) {
	cc, ok := c.Chains[strings.ToLower(chain)]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%w: chain %q is not configured", ErrUnknownNetwork, chain)
	}
	nc, ok := cc.Networks[strings.ToLower(network)]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%w: network %q is not configured for chain %q", ErrUnknownNetwork, network, chain)
	}
	return nc, nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var err error

	if c.Server.Port == "" {
		err = multierr.Append(err, errors.New("server.port must not be empty"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level must not be empty"))
	}
	if c.Connector.Name == "" {
		err = multierr.Append(err, errors.New("connector.name must not be empty"))
	}
	if !services.ValidPercent(c.Connector.AllowedSlippage) {
		err = multierr.Append(err, fmt.Errorf("connector.allowed_slippage %q must look like \"1%%\" or \"0.5%%\"", c.Connector.AllowedSlippage))
	}
	if c.Connector.GasLimit == 0 {
		err = multierr.Append(err, errors.New("connector.gas_limit must be greater than 0"))
	}
	if c.Connector.TTL <= 0 {
		err = multierr.Append(err, errors.New("connector.ttl must be positive"))
	}

	switch c.Nonce.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Nonce.Redis.Addr == "" {
			err = multierr.Append(err, errors.New("nonce.redis.addr must not be empty"))
		}
	case StoreSQLite:
		if c.Nonce.SQLite.Path == "" {
			err = multierr.Append(err, errors.New("nonce.sqlite.path must not be empty"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("nonce.store %q must be one of memory, redis, sqlite", c.Nonce.Store))
	}

	if len(c.Chains) == 0 {
		err = multierr.Append(err, errors.New("chains must configure at least one network"))
	}
	chains := make([]string, 0, len(c.Chains))
	for name := range c.Chains {
		chains = append(chains, name)
	}
	sort.Strings(chains)
	for _, chain := range chains {
		networks := c.Chains[chain].Networks
		if len(networks) == 0 {
			err = multierr.Append(err, fmt.Errorf("chains.%s.networks must not be empty", chain))
		}
		for network, nc := range networks {
			err = multierr.Append(err, nc.validate("chains."+chain+".networks."+network))
		}
	}

	return err
}

func (n NetworkConfig) validate(prefix string) error {
	var err error
	if n.RPCURL == "" {
		err = multierr.Append(err, fmt.Errorf("%s.rpc_url must not be empty", prefix))
	}
	if !common.IsHexAddress(n.Router) {
		err = multierr.Append(err, fmt.Errorf("%s.router %q is not an address", prefix, n.Router))
	}
	if n.TokenList == "" {
		err = multierr.Append(err, fmt.Errorf("%s.token_list must not be empty", prefix))
	}
	if n.ChainID < 0 {
		err = multierr.Append(err, fmt.Errorf("%s.chain_id must not be negative", prefix))
	}
	if n.WrappedNative != "" && !common.IsHexAddress(n.WrappedNative) {
		err = multierr.Append(err, fmt.Errorf("%s.wrapped_native %q is not an address", prefix, n.WrappedNative))
	}
	if n.WrappedNative != "" && n.NativeSymbol == "" {
		err = multierr.Append(err, fmt.Errorf("%s.native_symbol is required with wrapped_native", prefix))
	}
	return err
}
