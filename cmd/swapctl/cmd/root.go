package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bimakw/dex-connector/internal/app"
	"github.com/bimakw/dex-connector/internal/config"
	"github.com/bimakw/dex-connector/internal/domain/services"
	applog "github.com/bimakw/dex-connector/internal/log"
)

var (
	configPath string
	chainName  string
	network    string
)

var rootCmd = &cobra.Command{
	Use:   "swapctl",
	Short: "Quote and execute swaps on Uniswap-V2 style routers",
	Long: `swapctl prices and submits single-pool swaps through a Uniswap-V2 style
router using the same configuration as the connector API.

Examples:
  swapctl tokens --chain harmony --network mainnet
  swapctl quote sell 100 WONE 1USDC
  swapctl quote buy 5 ONE 1USDC --slippage 1/200
  swapctl trade sell 100 WONE 1USDC --gas-price 100
  swapctl nonce-reset`,
	Version:      "0.3.0",
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&chainName, "chain", "harmony", "Chain name")
	rootCmd.PersistentFlags().StringVar(&network, "network", "mainnet", "Network name")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// withConnector builds the app, leases the connector for --chain/--network and
// hands both to fn.
func withConnector(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, c *services.Connector) error) error {
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if verbose {
		if logger, err = applog.NewLogger(cfg.Logging); err != nil {
			return err
		}
		defer logger.Sync()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.Registry.Get(ctx, chainName, network)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", chainName, network, err)
	}
	defer a.Registry.Release(chainName, network)

	return fn(ctx, a, c)
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
