package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskcart-api/api"

// productsRequestMetrics accumulates per-request timing for the catalog
// read path and emits one structured log entry plus an OpenTelemetry span
// when the request finishes.
type productsRequestMetrics struct {
	logger *log.Logger
	start  time.Time
	span   trace.Span

	fetchDuration    time.Duration
	pipelineDuration time.Duration
	encodeDuration   time.Duration
	productsReturned int
	facets           int
	filtered         bool
	errorStage       string
}

// newProductsRequestMetrics starts a span and returns the metrics collector
// together with the span-carrying context.
func newProductsRequestMetrics(ctx context.Context, logger *log.Logger) (*productsRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, "catalog.products")
	return &productsRequestMetrics{
		logger: logger,
		start:  time.Now(),
		span:   span,
	}, spanCtx
}

func (m *productsRequestMetrics) ObserveFetch(d time.Duration) {
	if d > 0 {
		m.fetchDuration = d
	}
}

func (m *productsRequestMetrics) ObservePipeline(d time.Duration) {
	if d > 0 {
		m.pipelineDuration = d
	}
}

func (m *productsRequestMetrics) ObserveEncode(d time.Duration) {
	if d > 0 {
		m.encodeDuration = d
	}
}

func (m *productsRequestMetrics) SetProductsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.productsReturned = count
}

func (m *productsRequestMetrics) SetFacets(count int) {
	m.facets = count
}

func (m *productsRequestMetrics) SetFiltered(filtered bool) {
	m.filtered = filtered
}

func (m *productsRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Finish closes the span and logs the request summary.
func (m *productsRequestMetrics) Finish(status int, err error) {
	if m == nil {
		return
	}
	if m.span != nil {
		m.span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int("catalog.products_returned", m.productsReturned),
			attribute.Int("catalog.facets", m.facets),
			attribute.Bool("catalog.filtered", m.filtered),
		)
		if m.errorStage != "" {
			m.span.SetAttributes(attribute.String("error.stage", m.errorStage))
		}
		if err != nil || status >= 500 {
			m.span.SetStatus(codes.Error, severityForStatus(status, err))
			if err != nil {
				m.span.RecordError(err)
			}
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"route":             "/api/products",
		"status":            status,
		"total_ms":          durationToMillis(time.Since(m.start)),
		"products_returned": m.productsReturned,
		"facets":            m.facets,
		"filtered":          m.filtered,
	}
	if m.fetchDuration > 0 {
		fields["fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.pipelineDuration > 0 {
		fields["pipeline_ms"] = durationToMillis(m.pipelineDuration)
	}
	if m.encodeDuration > 0 {
		fields["encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info("products.request.metrics")
}

// severityForStatus maps a response status and error to a span status
// message.
func severityForStatus(status int, err error) string {
	switch {
	case err != nil:
		return "error"
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	default:
		return "ok"
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
