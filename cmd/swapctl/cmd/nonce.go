package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bimakw/dex-connector/internal/app"
	"github.com/bimakw/dex-connector/internal/domain/services"
)

var nonceCmd = &cobra.Command{
	Use:   "nonce-reset [address]",
	Short: "Forget the stored nonce watermark for a wallet",
	Long: `Drop the committed nonce watermark so the next trade uses the node's pending nonce.

Use this when a submitted swap was dropped from the mempool and later trades keep
waiting behind the missing nonce. Defaults to the configured wallet.

Examples:
  swapctl nonce-reset
  swapctl nonce-reset 0x8ba1f109551bD432803012645Ac136ddd64DBA72 --network mainnet`,
	Args: cobra.MaximumNArgs(1),
	Run:  runNonceReset,
}

func init() {
	rootCmd.AddCommand(nonceCmd)
}

func runNonceReset(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	err := withConnector(cmd, func(ctx context.Context, a *app.App, c *services.Connector) error {
		var addr common.Address
		if len(args) == 1 {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("%q is not an address", args[0])
			}
			addr = common.HexToAddress(args[0])
		} else {
			signer, err := a.Signer()
			if err != nil {
				return err
			}
			addr = signer.Address()
		}

		pending, err := c.ResyncNonce(ctx, addr)
		if err != nil {
			return err
		}

		if jsonOutput {
			out, _ := json.MarshalIndent(map[string]interface{}{
				"address":    addr.Hex(),
				"next_nonce": pending,
			}, "", "  ")
			fmt.Println(string(out))
			return nil
		}
		color.Green("✓ Nonce watermark cleared for %s", addr.Hex())
		fmt.Printf("  Next nonce:  %d\n\n", pending)
		return nil
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}
