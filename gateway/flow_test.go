package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-consent-gateway/auth"
	"github.com/goliatone/go-consent-gateway/core"
	"github.com/goliatone/go-consent-gateway/providers/devkit"
	"github.com/goliatone/go-consent-gateway/providers/leegality"
)

var flowNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type flowFixture struct {
	fake    *devkit.FakeTransportAdapter
	cache   *auth.TokenCache
	handler *Handler
}

func newFlowFixture(t *testing.T, mutate func(*core.Config), tokenScript devkit.TransportScript) flowFixture {
	t.Helper()
	clock := func() time.Time { return flowNow }
	fake := devkit.NewFakeTransportAdapter("rest").
		Route(leegality.TokenPath, tokenScript).
		Route(leegality.RegisterPath, devkit.JSONResponse(http.StatusOK, `{"data":{"consentCollectUrl":"https://collect/1"}}`)).
		Route(leegality.UpdatePath, devkit.JSONResponse(http.StatusOK, `{"data":{"privacyCenterUrl":"https://privacy/1"}}`))

	cfg := core.DefaultConfig()
	cfg.Provider.BaseURL = "https://gw.test"
	cfg.Provider.ClientID = "client-id"
	cfg.Provider.ClientSecret = "client-secret-value"
	cfg.Consent.ProfileID = "P1"
	if mutate != nil {
		mutate(&cfg)
	}

	client, err := leegality.New(leegality.Config{BaseURL: cfg.Provider.BaseURL}, fake)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	cache, err := auth.NewTokenCache(auth.TokenCacheConfig{
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		TokenURL:     client.TokenURL(),
		Scopes:       cfg.Provider.Scopes,
		RenewBefore:  time.Minute,
		Now:          clock,
	}, fake)
	if err != nil {
		t.Fatalf("new token cache: %v", err)
	}
	service, err := core.NewService(cfg,
		core.WithTokenSource(cache),
		core.WithConsentClient(client),
		core.WithClock(clock),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewHandler(service, cfg.CORS, WithErrorMapper(service.MapError))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return flowFixture{fake: fake, cache: cache, handler: handler}
}

func okToken() devkit.TransportScript {
	return devkit.JSONResponse(http.StatusOK, `{"access_token":"SECRET-TOKEN","token_type":"Bearer","expires_in":3600}`)
}

const registerBody = `{"name":"Asha","email":"asha@example.com","phone":"9876543210"}`

func TestFlow_RegisterHappyPath(t *testing.T) {
	fx := newFlowFixture(t, nil, okToken())
	resp := fx.handler.Handle(context.Background(), post("/register", "https://consent.in", registerBody))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %#v", resp.StatusCode, resp.Body)
	}
	body := decodeBody(t, resp)
	if body["consentUrl"] != "https://collect/1" {
		t.Fatalf("unexpected consent url %#v", body)
	}
	if body["cpid"] != fmt.Sprintf("asha@example.com-%d", flowNow.UnixMilli()) {
		t.Fatalf("unexpected cpid %#v", body["cpid"])
	}
	if _, ok := body["profileId"]; ok {
		t.Fatalf("expected profile fields omitted when not supplied, got %#v", body)
	}

	raw, _ := resp.EncodeBody()
	for _, forbidden := range []string{"access_token", "client_secret", "SECRET-TOKEN", "client-secret-value"} {
		if strings.Contains(string(raw), forbidden) {
			t.Fatalf("response body leaked %q: %s", forbidden, raw)
		}
	}

	registers := fx.fake.RequestsTo(leegality.RegisterPath)
	if len(registers) != 1 || registers[0].Headers[core.HeaderAuthorization] != "Bearer SECRET-TOKEN" {
		t.Fatalf("unexpected register requests %#v", registers)
	}
	if !strings.Contains(string(registers[0].Body), `"consentProfileId":"P1"`) {
		t.Fatalf("expected configured profile id in payload, got %s", registers[0].Body)
	}
}

func TestFlow_RegisterEchoesSuppliedProfile(t *testing.T) {
	fx := newFlowFixture(t, nil, okToken())
	resp := fx.handler.Handle(context.Background(), post("/register", "",
		`{"name":"Asha","email":"asha@example.com","phone":"1","consentProfileId":"P7","consentProfileVersion":3}`))
	body := decodeBody(t, resp)
	if body["profileId"] != "P7" || body["profileVersion"] != float64(3) {
		t.Fatalf("expected supplied profile echoed, got %#v", body)
	}
}

func TestFlow_WarmCacheSkipsExchange(t *testing.T) {
	fx := newFlowFixture(t, nil, okToken())
	for i := 0; i < 3; i++ {
		resp := fx.handler.Handle(context.Background(), post("/register", "", registerBody))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i, resp.StatusCode)
		}
	}
	if got := len(fx.fake.RequestsTo(leegality.TokenPath)); got != 1 {
		t.Fatalf("expected one token exchange, got %d", got)
	}
	if stats := fx.cache.Stats(); stats.Exchanges != 1 {
		t.Fatalf("expected one exchange in stats, got %#v", stats)
	}
}

func TestFlow_ConcurrentRequestsShareOneExchange(t *testing.T) {
	fx := newFlowFixture(t, nil, okToken())
	var wg sync.WaitGroup
	statuses := make([]int, 20)
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i] = fx.handler.Handle(context.Background(), post("/register", "", registerBody)).StatusCode
		}(i)
	}
	wg.Wait()
	for i, status := range statuses {
		if status != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, status)
		}
	}
	if got := len(fx.fake.RequestsTo(leegality.TokenPath)); got != 1 {
		t.Fatalf("expected exactly one token exchange, got %d", got)
	}
}

func TestFlow_OAuthFailure(t *testing.T) {
	fx := newFlowFixture(t, nil, devkit.JSONResponse(http.StatusUnauthorized, `{"error":"invalid_client"}`))
	resp := fx.handler.Handle(context.Background(), post("/register", "", registerBody))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != core.MessageTokenFailed {
		t.Fatalf("unexpected error %#v", body)
	}
	details, ok := body["details"].(map[string]any)
	if !ok || details["error"] != "invalid_client" {
		t.Fatalf("expected downstream body as details, got %#v", body["details"])
	}
	if len(fx.fake.RequestsTo(leegality.RegisterPath)) != 0 {
		t.Fatalf("expected no register call after token failure")
	}
}

func TestFlow_DownstreamUnauthorizedInvalidatesToken(t *testing.T) {
	fx := newFlowFixture(t, nil, okToken())
	fx.fake.Route(leegality.RegisterPath,
		devkit.JSONResponse(http.StatusUnauthorized, `{"message":"token expired"}`),
		devkit.JSONResponse(http.StatusOK, `{"data":{"consentCollectUrl":"https://collect/2"}}`),
	)

	resp := fx.handler.Handle(context.Background(), post("/register", "", registerBody))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected pass-through 401, got %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "Consent registration failed" {
		t.Fatalf("unexpected body %#v", body)
	}

	resp = fx.handler.Handle(context.Background(), post("/register", "", registerBody))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected retry by caller to succeed, got %d", resp.StatusCode)
	}
	if got := len(fx.fake.RequestsTo(leegality.TokenPath)); got != 2 {
		t.Fatalf("expected token re-exchange after 401, got %d exchanges", got)
	}
}

func TestFlow_MissingCredentials(t *testing.T) {
	fx := newFlowFixture(t, func(cfg *core.Config) {
		cfg.Provider.ClientSecret = ""
	}, okToken())
	resp := fx.handler.Handle(context.Background(), post("/register", "", registerBody))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != core.MessageCredentialsMissing {
		t.Fatalf("unexpected body %#v", body)
	}
	if len(fx.fake.Requests()) != 0 {
		t.Fatalf("expected no downstream traffic")
	}
}

func TestFlow_RegisterMissingFields(t *testing.T) {
	fx := newFlowFixture(t, nil, okToken())
	resp := fx.handler.Handle(context.Background(), post("/register", "", `{"name":"Asha"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != core.MessageMissingFields || body["details"] != core.MessageRegisterFieldsRequired {
		t.Fatalf("unexpected body %#v", body)
	}
	if len(fx.fake.Requests()) != 0 {
		t.Fatalf("expected no downstream traffic")
	}
}

func TestFlow_RegisterMissingProfile(t *testing.T) {
	fx := newFlowFixture(t, func(cfg *core.Config) {
		cfg.Consent.ProfileID = ""
	}, okToken())
	resp := fx.handler.Handle(context.Background(), post("/register", "", registerBody))
	if body := decodeBody(t, resp); resp.StatusCode != http.StatusBadRequest || body["error"] != core.MessageProfileIDRequired {
		t.Fatalf("unexpected response %d %#v", resp.StatusCode, body)
	}
}

func TestFlow_UpdateHappyPathAndValidation(t *testing.T) {
	fx := newFlowFixture(t, nil, okToken())
	resp := fx.handler.Handle(context.Background(), post("/update", "", `{}`))
	if body := decodeBody(t, resp); resp.StatusCode != http.StatusBadRequest || body["error"] != core.MessagePrincipalIDRequired {
		t.Fatalf("unexpected response %d %#v", resp.StatusCode, body)
	}
	if len(fx.fake.Requests()) != 0 {
		t.Fatalf("expected no downstream traffic for invalid update")
	}

	resp = fx.handler.Handle(context.Background(), post("/gateway", "", `{"action":"update","principalId":"P-42"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["privacyCenterUrl"] != "https://privacy/1" || body["principalId"] != "P-42" {
		t.Fatalf("unexpected body %#v", body)
	}
	raw, _ := resp.EncodeBody()
	if strings.Contains(string(raw), "SECRET-TOKEN") || strings.Contains(string(raw), "access_token") {
		t.Fatalf("update body leaked token: %s", raw)
	}
	updates := fx.fake.RequestsTo(leegality.UpdatePath)
	if len(updates) != 1 || !strings.Contains(string(updates[0].Body), `"preferenceUrlType":"PRIVACY"`) {
		t.Fatalf("expected default preference url type, got %#v", updates)
	}
}

func TestFlow_TokenEndpointDisabledByDefault(t *testing.T) {
	fx := newFlowFixture(t, nil, okToken())
	resp := fx.handler.Handle(context.Background(), post("/token", "", ""))
	if body := decodeBody(t, resp); resp.StatusCode != http.StatusNotFound || body["error"] != core.MessageTokenEndpointDisabled {
		t.Fatalf("unexpected response %d %#v", resp.StatusCode, body)
	}
	if len(fx.fake.Requests()) != 0 {
		t.Fatalf("expected no token exchange when disabled")
	}
}

func TestFlow_TokenEndpointEnabled(t *testing.T) {
	fx := newFlowFixture(t, func(cfg *core.Config) {
		cfg.Token.ExposeEndpoint = true
	}, okToken())
	resp := fx.handler.Handle(context.Background(), post("/getToken", "", ""))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["access_token"] != "SECRET-TOKEN" || body["expires_in"] != float64(3600) {
		t.Fatalf("unexpected token body %#v", body)
	}
}
