package leegality

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-consent-gateway/core"
	"github.com/goliatone/go-consent-gateway/providers/devkit"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(DefaultConfig(), nil); err == nil {
		t.Fatalf("expected transport required error")
	}
	if _, err := New(Config{BaseURL: "not a url"}, devkit.NewFakeTransportAdapter("rest")); err == nil {
		t.Fatalf("expected invalid base url error")
	}
	client, err := New(Config{BaseURL: "https://gw.example.com/"}, devkit.NewFakeTransportAdapter("rest"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if client.TokenURL() != "https://gw.example.com/auth/oauth2/token" {
		t.Fatalf("unexpected token url %q", client.TokenURL())
	}
}

func TestClient_RegisterPostsBearerJSON(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest").
		Route(RegisterPath, devkit.JSONResponse(http.StatusOK, `{"data":{"consentCollectUrl":"https://c/1"}}`))
	client, err := New(Config{BaseURL: "https://gw.example.com", Timeout: 3 * time.Second}, fake)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	resp, err := client.Register(context.Background(), "T1", core.RegisterRequest{
		ConsentProfileID:      "P1",
		ConsentProfileVersion: 1,
		Principal:             core.Principal{ID: "a@b.c-1", Email: "a@b.c", Name: "A", Phone: "9"},
		PublicURLExpiry:       60,
		SessionExpiry:         60,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	requests := fake.RequestsTo(RegisterPath)
	if len(requests) != 1 {
		t.Fatalf("expected one register request, got %d", len(requests))
	}
	req := requests[0]
	if req.Method != http.MethodPost || req.URL != "https://gw.example.com"+RegisterPath {
		t.Fatalf("unexpected request %s %s", req.Method, req.URL)
	}
	if req.Headers[core.HeaderAuthorization] != "Bearer T1" {
		t.Fatalf("expected bearer header, got %q", req.Headers[core.HeaderAuthorization])
	}
	if req.Headers[core.HeaderContentType] != core.ContentTypeJSON {
		t.Fatalf("expected json content type, got %q", req.Headers[core.HeaderContentType])
	}
	if req.Timeout != 3*time.Second {
		t.Fatalf("expected configured timeout, got %s", req.Timeout)
	}

	var payload map[string]any
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["consentProfileId"] != "P1" || payload["publicUrlExpiry"] != float64(60) {
		t.Fatalf("unexpected payload %#v", payload)
	}
	principal, ok := payload["principal"].(map[string]any)
	if !ok || principal["id"] != "a@b.c-1" || principal["phone"] != "9" {
		t.Fatalf("unexpected principal %#v", payload["principal"])
	}
}

func TestClient_UpdateReturnsNon2xxAsResponse(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest").
		Route(UpdatePath, devkit.JSONResponse(http.StatusUnprocessableEntity, `{"message":"bad principal"}`))
	client, err := New(DefaultConfig(), fake)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	resp, err := client.Update(context.Background(), "T1", core.UpdateRequest{
		PrincipalID:       "P-9",
		PreferenceURLType: "PRIVACY",
		PublicURLExpiry:   60,
		SessionExpiry:     60,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity || string(resp.Body) != `{"message":"bad principal"}` {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, resp.Body)
	}

	requests := fake.RequestsTo(UpdatePath)
	if len(requests) != 1 || requests[0].URL != core.DefaultProviderBaseURL+UpdatePath {
		t.Fatalf("unexpected update requests %#v", requests)
	}
	var payload map[string]any
	if err := json.Unmarshal(requests[0].Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["principalId"] != "P-9" || payload["preferenceUrlType"] != "PRIVACY" {
		t.Fatalf("unexpected payload %#v", payload)
	}
}

func TestClient_TransportErrorPropagates(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest", devkit.FailingScript(errors.New("dial tcp: refused")))
	client, err := New(DefaultConfig(), fake)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := client.Update(context.Background(), "T1", core.UpdateRequest{PrincipalID: "P"}); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestClient_RequiresAccessToken(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest")
	client, err := New(DefaultConfig(), fake)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := client.Register(context.Background(), " ", core.RegisterRequest{}); err == nil {
		t.Fatalf("expected access token error")
	}
	if len(fake.Requests()) != 0 {
		t.Fatalf("expected no downstream request")
	}
}
