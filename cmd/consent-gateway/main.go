// Package main is the entry point for the consent-gateway server.
package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-consent-gateway/cmd/consent-gateway/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
