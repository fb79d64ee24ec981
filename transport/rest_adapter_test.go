package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-consent-gateway/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestRESTAdapter_SendsHeadersAndBody(t *testing.T) {
	var gotAuth, gotType, gotAgent, gotBody, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotAgent = r.Header.Get("User-Agent")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid"}`))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	res, err := adapter.Do(context.Background(), core.TransportRequest{
		Method:  "post",
		URL:     server.URL + "/register",
		Headers: map[string]string{"Authorization": "Bearer T", "Content-Type": "application/json"},
		Body:    []byte(`{"a":1}`),
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected non-2xx status returned as response, got %d", res.StatusCode)
	}
	if string(res.Body) != `{"message":"invalid"}` {
		t.Fatalf("unexpected body %q", res.Body)
	}
	if res.Headers["Content-Type"] != "application/json" {
		t.Fatalf("expected flattened headers, got %#v", res.Headers)
	}
	if gotMethod != http.MethodPost || gotAuth != "Bearer T" || gotType != "application/json" {
		t.Fatalf("unexpected request %s %q %q", gotMethod, gotAuth, gotType)
	}
	if gotAgent != defaultUserAgent {
		t.Fatalf("expected default user agent, got %q", gotAgent)
	}
	if gotBody != `{"a":1}` {
		t.Fatalf("unexpected request body %q", gotBody)
	}
}

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
	if rich.TextCode != ErrorTransportFailed {
		t.Fatalf("expected %q text code, got %q", ErrorTransportFailed, rich.TextCode)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_TimeoutIsClassified(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	adapter := NewRESTAdapter(server.Client())
	_, err := adapter.Do(context.Background(), core.TransportRequest{
		Method:  http.MethodPost,
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected timeout classification, got %v", err)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != ErrorTransportTimeout {
		t.Fatalf("expected timeout text code, got %v", err)
	}
}

func TestRESTAdapter_NilReturnsRichError(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), core.TransportRequest{URL: "https://example.com"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal || rich.TextCode != ErrorTransportInternal {
		t.Fatalf("unexpected envelope %q %q", rich.Category, rich.TextCode)
	}
}

func TestRESTAdapter_RequiresURL(t *testing.T) {
	adapter := NewRESTAdapter(nil)
	_, err := adapter.Do(context.Background(), core.TransportRequest{Method: http.MethodGet})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Code != http.StatusBadRequest {
		t.Fatalf("expected bad input error, got %v", err)
	}
}

func TestRESTAdapter_ForwardsRequestID(t *testing.T) {
	var gotID, gotOverride string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/override" {
			gotOverride = r.Header.Get(core.HeaderRequestID)
		} else {
			gotID = r.Header.Get(core.HeaderRequestID)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	ctx := core.ContextWithRequestID(context.Background(), "req-42")
	if _, err := adapter.Do(ctx, core.TransportRequest{Method: http.MethodPost, URL: server.URL + "/plain"}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotID != "req-42" {
		t.Fatalf("expected request id forwarded, got %q", gotID)
	}

	_, err := adapter.Do(ctx, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     server.URL + "/override",
		Headers: map[string]string{core.HeaderRequestID: "caller"},
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotOverride != "caller" {
		t.Fatalf("expected explicit header to win, got %q", gotOverride)
	}
}

func TestRESTAdapter_RejectsRelativeURL(t *testing.T) {
	adapter := NewRESTAdapter(nil)
	_, err := adapter.Do(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: "not a url"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != ErrorTransportBadInput {
		t.Fatalf("expected bad input text code, got %v", err)
	}
}
