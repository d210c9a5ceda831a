package chunker

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"rlm/internal/domain"
)

var meter = otel.Meter("rlm/chunker")

var (
	chunksEmitted metric.Int64Counter
	fallbacks     metric.Int64Counter
	chunkSize     metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments once. Without an installed
// MeterProvider they are no-ops.
func initMetrics() error {
	metricsOnce.Do(func() {
		chunksEmitted, metricsErr = meter.Int64Counter(
			"rlm_chunks_emitted_total",
			metric.WithDescription("Chunks produced by the chunker and splitter"),
		)
		if metricsErr != nil {
			return
		}

		fallbacks, metricsErr = meter.Int64Counter(
			"rlm_split_fallbacks_total",
			metric.WithDescription("Sources split with plain text chunking instead of syntax units"),
		)
		if metricsErr != nil {
			return
		}

		chunkSize, metricsErr = meter.Int64Histogram(
			"rlm_chunk_size_chars",
			metric.WithDescription("Chunk size in characters"),
			metric.WithUnit("{char}"),
		)
	})
	return metricsErr
}

// RecordChunks records a batch of chunks produced in mode ("text" or
// "syntax") for lang.
func RecordChunks(ctx context.Context, mode, lang string, chunks []domain.Chunk) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("language", lang),
	)
	chunksEmitted.Add(ctx, int64(len(chunks)), attrs)
	for _, c := range chunks {
		chunkSize.Record(ctx, int64(c.Size()), attrs)
	}
}

func recordFallback(ctx context.Context, lang string) {
	if initMetrics() != nil {
		return
	}
	fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("language", lang)))
}
