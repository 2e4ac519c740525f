package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bimakw/dex-connector/internal/app"
	"github.com/bimakw/dex-connector/internal/domain/services"
)

var (
	gasPrice       float64
	maxFee         string
	maxPriorityFee string
	txNonce        int64
	limitPrice     string
	noConfirm      bool
)

var tradeCmd = &cobra.Command{
	Use:   "trade <buy|sell> <amount> <base> <quote>",
	Short: "Execute a swap from the configured wallet",
	Long: `Price a swap and submit it from the wallet in DEXCONN_WALLET_PRIVATE_KEY.

The command returns once the node accepts the transaction; it does not wait for
the swap to be mined. Pass --max-fee or --max-priority-fee (wei) for a dynamic-fee
transaction, otherwise --gas-price (gwei) is used.

Examples:
  swapctl trade sell 100 WONE 1USDC --gas-price 100
  swapctl trade buy 5 ONE 1USDC --max-priority-fee 2000000000 --limit-price 0.02 --yes`,
	Args: cobra.ExactArgs(4),
	Run:  runTrade,
}

func init() {
	rootCmd.AddCommand(tradeCmd)

	tradeCmd.Flags().StringVar(&slippage, "slippage", "", "Allowed slippage as N/D (default from config)")
	tradeCmd.Flags().Float64Var(&gasPrice, "gas-price", 0, "Legacy gas price in gwei")
	tradeCmd.Flags().StringVar(&maxFee, "max-fee", "", "Max fee per gas in wei")
	tradeCmd.Flags().StringVar(&maxPriorityFee, "max-priority-fee", "", "Max priority fee per gas in wei")
	tradeCmd.Flags().Int64Var(&txNonce, "nonce", -1, "Explicit nonce (default next pending)")
	tradeCmd.Flags().StringVar(&limitPrice, "limit-price", "", "Refuse a buy above or a sell below this price (quote per base)")
	tradeCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runTrade(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	params, err := tradeParams()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	err = withConnector(cmd, func(ctx context.Context, a *app.App, c *services.Connector) error {
		signer, err := a.Signer()
		if err != nil {
			return err
		}
		o, err := parseOrder(c, args)
		if err != nil {
			return err
		}

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		if !jsonOutput {
			s.Suffix = " Fetching reserves..."
			s.Start()
		}
		expected, err := estimate(ctx, c, o, slippage)
		if !jsonOutput {
			s.Stop()
		}
		if err != nil {
			return err
		}

		if err := checkLimit(o, o.price(expected.Trade)); err != nil {
			return err
		}

		if !jsonOutput {
			displayQuote(c, o, expected)
			fmt.Printf("  From:          %s\n\n", signer.Address().Hex())
			if !noConfirm && !confirmTrade() {
				fmt.Println("\nTrade cancelled.")
				return nil
			}
			s.Suffix = " Submitting transaction..."
			s.Start()
		}
		tx, err := c.ExecuteTrade(ctx, signer, expected.Trade, params)
		if !jsonOutput {
			s.Stop()
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			output := quoteOutput(c, o, expected)
			output["tx_hash"] = tx.Hash().Hex()
			output["nonce"] = tx.Nonce()
			output["from"] = signer.Address().Hex()
			out, _ := json.MarshalIndent(output, "", "  ")
			fmt.Println(string(out))
			return nil
		}
		color.Green("✓ Transaction submitted")
		fmt.Printf("  Hash:   %s\n", tx.Hash().Hex())
		fmt.Printf("  Nonce:  %d\n", tx.Nonce())
		printSuccess("The swap is pending; check the hash on a block explorer.")
		return nil
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

func tradeParams() (services.ExecuteParams, error) {
	params := services.ExecuteParams{
		GasPriceGwei:     gasPrice,
		SlippageOverride: slippage,
	}
	if txNonce >= 0 {
		n := uint64(txNonce)
		params.Nonce = &n
	}

	var err error
	if params.MaxFeePerGas, err = parseWei("--max-fee", maxFee); err != nil {
		return params, err
	}
	if params.MaxPriorityFeePerGas, err = parseWei("--max-priority-fee", maxPriorityFee); err != nil {
		return params, err
	}
	if params.MaxFeePerGas == nil && params.MaxPriorityFeePerGas == nil && gasPrice <= 0 {
		return params, fmt.Errorf("--gas-price or --max-fee/--max-priority-fee is required")
	}
	return params, nil
}

func parseWei(flag, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer in wei", flag)
	}
	return v, nil
}

func checkLimit(o order, price decimal.Decimal) error {
	if limitPrice == "" {
		return nil
	}
	limit, err := decimal.NewFromString(limitPrice)
	if err != nil {
		return fmt.Errorf("--limit-price %q is not a number", limitPrice)
	}
	if (o.buy && price.GreaterThan(limit)) || (!o.buy && price.LessThan(limit)) {
		return fmt.Errorf("%s price %s is beyond limit %s", strings.ToLower(o.side()), price, limit)
	}
	return nil
}

func confirmTrade() bool {
	fmt.Print("Submit this trade? (yes/no): ")
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "yes" || response == "y"
}
