// Package main runs the consent gateway as a Lambda or Netlify function.
package main

import (
	"context"
	"fmt"
	"os"

	consentgateway "github.com/goliatone/go-consent-gateway"
	"github.com/goliatone/go-consent-gateway/adapters/gologger"
	"github.com/goliatone/go-consent-gateway/adapters/lambda"
)

func main() {
	provider, err := gologger.NewProductionProvider(os.Getenv("CONSENT_GATEWAY_LOG_LEVEL"), false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = provider.Sync() }()

	// One gateway per container keeps the token cache warm across invocations.
	gw, err := consentgateway.New(context.Background(), consentgateway.WithLoggerProvider(provider))
	if err != nil {
		provider.GetLogger("lambda").Error("gateway init failed", "error", err.Error())
		os.Exit(1)
	}
	lambda.Start(gw)
}
