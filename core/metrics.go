package core

import "context"

const (
	MetricPrefix = "gateway."

	MetricTokenExchangeTotal      = "gateway.token_exchange.total"
	MetricTokenExchangeDurationMS = "gateway.token_exchange.duration_ms"
	MetricTokenCacheHitTotal      = "gateway.token_cache.hit.total"
	MetricTokenInvalidatedTotal   = "gateway.token_cache.invalidated.total"
	MetricResponsesTotal          = "gateway.responses.total"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
