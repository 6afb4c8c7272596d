package cache

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type cacheMetricsCollection struct {
	lookupCount     metric.Int64Counter
	fetchErrorCount metric.Int64Counter
	fetchDuration   metric.Float64Histogram
}

var metrics cacheMetricsCollection

func init() {
	const name = "pagedata/cache"
	meter := otel.Meter(name)

	lookupCount, err := meter.Int64Counter(
		"pagecache/lookup_count",
		metric.WithDescription("Number of page data lookups by result (hit, miss, coalesced)"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create lookup count metric: %w", err))
	}

	fetchErrorCount, err := meter.Int64Counter(
		"pagecache/fetch_error_count",
		metric.WithDescription("Number of failed page data fetches"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create fetch error count metric: %w", err))
	}

	fetchDuration, err := meter.Float64Histogram(
		"pagecache/fetch_duration_seconds",
		metric.WithDescription("Time spent in page data fetch functions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create fetch duration metric: %w", err))
	}

	metrics = cacheMetricsCollection{
		lookupCount:     lookupCount,
		fetchErrorCount: fetchErrorCount,
		fetchDuration:   fetchDuration,
	}
}

func recordLookup(ctx context.Context, cacheName string, result string) {
	metrics.lookupCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cacheName),
		attribute.String("result", result),
	))
}
