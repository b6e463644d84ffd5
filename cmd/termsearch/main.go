// Package main provides the entry point for the termsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/termsearch/cmd/termsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
