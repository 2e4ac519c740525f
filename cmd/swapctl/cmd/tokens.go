package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bimakw/dex-connector/internal/app"
	"github.com/bimakw/dex-connector/internal/domain/entities"
	"github.com/bimakw/dex-connector/internal/domain/services"
)

var filterSymbol string

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List tokens known to the connector",
	Long: `List the tokens loaded from the network's token list, native token first.

Examples:
  swapctl tokens
  swapctl tokens --network testnet --symbol USD`,
	Args: cobra.NoArgs,
	Run:  runTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by symbol substring")
}

func runTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	err := withConnector(cmd, func(_ context.Context, _ *app.App, c *services.Connector) error {
		var tokens []entities.Token
		if native, ok := c.NativeToken(); ok {
			tokens = append(tokens, native)
		}
		tokens = append(tokens, c.Tokens()...)

		if filterSymbol != "" {
			filtered := tokens[:0]
			for _, t := range tokens {
				if strings.Contains(strings.ToUpper(t.Symbol), strings.ToUpper(filterSymbol)) {
					filtered = append(filtered, t)
				}
			}
			tokens = filtered
		}

		if jsonOutput {
			out, _ := json.MarshalIndent(tokens, "", "  ")
			fmt.Println(string(out))
			return nil
		}

		color.Cyan("\n%d tokens on %s/%s\n", len(tokens), c.Chain(), c.Network())
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tNAME\tDECIMALS\tADDRESS")
		for _, t := range tokens {
			symbol := t.Symbol
			if t.Native {
				symbol += " (native)"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", symbol, t.Name, t.Decimals, t.Address.Hex())
		}
		w.Flush()
		fmt.Println()
		return nil
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}
