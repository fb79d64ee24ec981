package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-consent-gateway/core"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_CountersAndHistograms(t *testing.T) {
	recorder := NewRecorder(nil, "")
	ctx := context.Background()

	recorder.IncCounter(ctx, "gateway.register.total", 1, map[string]string{"operation": "register", "status": "success", "code": "200"})
	recorder.IncCounter(ctx, "gateway.register.total", 2, map[string]string{"operation": "register", "status": "failure", "code": "502"})
	recorder.ObserveHistogram(ctx, "gateway.register.duration_ms", 12, map[string]string{"operation": "register", "status": "success", "code": "200"})

	counter := recorder.counters["gateway_register_total"]
	if counter == nil {
		t.Fatalf("expected sanitized counter registration")
	}
	if got := testutil.ToFloat64(counter.vec.WithLabelValues("502", "register", "failure")); got != 2 {
		t.Fatalf("expected failure counter 2, got %v", got)
	}
	if got := testutil.CollectAndCount(recorder.histograms["gateway_register_duration_ms"].vec); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}
}

func TestRecorder_ProjectsMismatchedTags(t *testing.T) {
	recorder := NewRecorder(nil, "consent")
	ctx := context.Background()

	recorder.IncCounter(ctx, core.MetricTokenExchangeTotal, 1, map[string]string{"status": "success"})
	recorder.IncCounter(ctx, core.MetricTokenExchangeTotal, 1, map[string]string{"status": "failure", "extra": "ignored"})
	recorder.IncCounter(ctx, core.MetricTokenCacheHitTotal, 1, nil)

	entry := recorder.counters["gateway_token_exchange_total"]
	if len(entry.labels) != 1 || entry.labels[0] != "status" {
		t.Fatalf("expected label set fixed by first observation, got %#v", entry.labels)
	}
	if got := testutil.ToFloat64(entry.vec.WithLabelValues("failure")); got != 1 {
		t.Fatalf("expected projected failure count, got %v", got)
	}
	if got := testutil.ToFloat64(recorder.counters["gateway_token_cache_hit_total"].vec.WithLabelValues()); got != 1 {
		t.Fatalf("expected unlabeled hit counter, got %v", got)
	}
}

func TestRecorder_HandlerExposesMetrics(t *testing.T) {
	recorder := NewRecorder(nil, "consent")
	recorder.IncCounter(context.Background(), core.MetricResponsesTotal, 1, map[string]string{"method": "post", "status": "200"})

	server := httptest.NewServer(recorder.Handler())
	defer server.Close()
	res, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(raw), `consent_gateway_responses_total{method="post",status="200"} 1`) {
		t.Fatalf("expected exposed counter, got:\n%s", raw)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"gateway.register.total": "gateway_register_total",
		"9lives":                 "_9lives",
		"a-b c":                  "a_b_c",
		" ":                      "",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Fatalf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
