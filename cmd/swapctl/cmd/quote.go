package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bimakw/dex-connector/internal/app"
	"github.com/bimakw/dex-connector/internal/domain/services"
)

var slippage string

var quoteCmd = &cobra.Command{
	Use:   "quote <buy|sell> <amount> <base> <quote>",
	Short: "Price a swap without sending it",
	Long: `Price a swap through the configured router.

A sell spends exactly <amount> of base; a buy receives exactly <amount> of base.
Tokens may be given by symbol or address.

Examples:
  swapctl quote sell 100 WONE 1USDC
  swapctl quote buy 5 ONE 1USDC --slippage 1/200`,
	Args: cobra.ExactArgs(4),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&slippage, "slippage", "", "Allowed slippage as N/D (default from config)")
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	err := withConnector(cmd, func(ctx context.Context, a *app.App, c *services.Connector) error {
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

		if jsonOutput {
			out, _ := json.MarshalIndent(quoteOutput(c, o, expected), "", "  ")
			fmt.Println(string(out))
			return nil
		}
		displayQuote(c, o, expected)
		return nil
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

func quoteOutput(c *services.Connector, o order, expected *services.ExpectedTrade) map[string]interface{} {
	tolerance, _ := c.GetAllowedSlippage(slippage)
	return map[string]interface{}{
		"chain":            c.Chain(),
		"network":          c.Network(),
		"side":             o.side(),
		"base":             o.base.Symbol,
		"quote":            o.quote.Symbol,
		"amount":           o.amount.String(),
		"expected_amount":  expected.ExpectedAmount.Decimal().String(),
		"price":            o.price(expected.Trade).String(),
		"price_impact":     percentString(expected.Trade.PriceImpact),
		"allowed_slippage": percentString(tolerance),
	}
}

func displayQuote(c *services.Connector, o order, expected *services.ExpectedTrade) {
	trade := expected.Trade
	tolerance, _ := c.GetAllowedSlippage(slippage)

	color.Cyan("\n%s %s %s for %s on %s/%s\n", o.side(), o.amount, o.base.Symbol, o.quote.Symbol, c.Chain(), c.Network())
	fmt.Printf("  Price:         %s %s per %s\n", o.price(trade).String(), o.quote.Symbol, o.base.Symbol)
	if o.buy {
		fmt.Printf("  Input:         %s\n", trade.InputAmount)
		fmt.Printf("  Maximum sold:  %s\n", expected.ExpectedAmount)
	} else {
		fmt.Printf("  Output:        %s\n", trade.OutputAmount)
		fmt.Printf("  Minimum out:   %s\n", expected.ExpectedAmount)
	}
	impact := percentString(trade.PriceImpact)
	if trade.PriceImpact.Cmp(highImpact) > 0 {
		color.Yellow("  Price impact:  %s%%", impact)
	} else {
		fmt.Printf("  Price impact:  %s%%\n", impact)
	}
	fmt.Printf("  Slippage:      %s%%\n", percentString(tolerance))
	fmt.Printf("  Pair:          %s\n\n", trade.Route.Pairs[0].Address.Hex())
}
