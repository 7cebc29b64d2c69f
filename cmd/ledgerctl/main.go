// Package main is the entry point for the ledgerctl operator CLI.
package main

import (
	"os"

	"github.com/odyssey-erp/odyssey-ledger/cmd/ledgerctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
