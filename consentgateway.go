// Package consentgateway assembles the consent gateway from configuration and
// exposes it to the net/http and lambda entry points.
package consentgateway

import (
	"context"

	"github.com/goliatone/go-consent-gateway/core"
	"github.com/goliatone/go-consent-gateway/providers/leegality"
	"github.com/goliatone/go-consent-gateway/transport"
)

type Config = core.Config

type IncomingRequest = core.IncomingRequest

type OutgoingResponse = core.OutgoingResponse

type RegisterAction = core.RegisterAction
type UpdateAction = core.UpdateAction
type RegisterResult = core.RegisterResult
type UpdateResult = core.UpdateResult
type TokenResult = core.TokenResult

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// ResolveConfig layers the process environment and runtime over the defaults.
func ResolveConfig(runtime Config) (Config, error) {
	return resolveConfig(context.Background(), newOptions(WithRuntimeConfig(runtime)))
}

func LeegalityClient(cfg leegality.Config, adapter core.TransportAdapter) (*leegality.Client, error) {
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	return leegality.New(cfg, adapter)
}
