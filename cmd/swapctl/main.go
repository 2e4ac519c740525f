package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/bimakw/dex-connector/cmd/swapctl/cmd"
)

func main() {
	// .env is optional; DEXCONN_* variables may come from the environment directly
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
