package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/incidentd/internal/embeddings"

// Status is the embedding lifecycle state of an incident row.
type Status string

const (
	// StatusPending is the initial state, set at row creation before any
	// embedding attempt.
	StatusPending Status = "pending"
	// StatusReady means the embedding succeeded and was stored.
	StatusReady Status = "ready"
	// StatusFailed means the attempt errored or timed out; the error
	// detail is recorded and the vector left empty.
	StatusFailed Status = "failed"
)

// Outcome is the result of one embedding attempt. An attempt always
// terminates in ready or failed; failure detail rides along for the row.
type Outcome struct {
	Status    Status
	Vector    []float32
	Model     string
	Dimension int
	Error     string
}

// DefaultTimeout bounds a single embedding attempt.
const DefaultTimeout = 5 * time.Second

// Lifecycle drives embedding attempts against the configured provider
// and owns the pending -> ready|failed state machine.
//
// Document embedding is best-effort: any provider error, timeout, or
// malformed response becomes a failed Outcome, never an error to the
// caller, so incident creation cannot be blocked by an embedding outage.
// Query embedding returns its error; the search layer degrades to an
// empty result set instead.
type Lifecycle struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger

	tracer         trace.Tracer
	meter          metric.Meter
	attemptCounter metric.Int64Counter
}

// NewLifecycle creates the embedding lifecycle. A zero timeout uses
// DefaultTimeout.
func NewLifecycle(provider Provider, timeout time.Duration, logger *zap.Logger) (*Lifecycle, error) {
	if provider == nil {
		return nil, errors.New("embedding provider is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Lifecycle{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
	}

	var err error
	l.attemptCounter, err = l.meter.Int64Counter(
		"incidentd.embeddings.attempts_total",
		metric.WithDescription("Total embedding attempts, labeled by outcome status"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		logger.Warn("failed to create attempt counter", zap.Error(err))
	}

	return l, nil
}

// EmbedDocument attempts to embed one document within the bounded
// timeout and returns the terminal Outcome. The returned status is
// always ready or failed.
func (l *Lifecycle) EmbedDocument(ctx context.Context, text string) Outcome {
	ctx, span := l.tracer.Start(ctx, "embeddings.embed_document")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	vectors, err := l.provider.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return l.failed(ctx, span, fmt.Sprintf("embedding provider: %v", err))
	}
	if len(vectors) != 1 {
		return l.failed(ctx, span, fmt.Sprintf("provider returned %d vectors, want 1", len(vectors)))
	}
	vec := vectors[0]
	if len(vec) != l.provider.Dimension() {
		return l.failed(ctx, span, fmt.Sprintf("provider returned dimension %d, want %d", len(vec), l.provider.Dimension()))
	}

	if l.attemptCounter != nil {
		l.attemptCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", string(StatusReady)),
		))
	}
	span.SetAttributes(attribute.String("status", string(StatusReady)))

	return Outcome{
		Status:    StatusReady,
		Vector:    vec,
		Model:     l.provider.Model(),
		Dimension: l.provider.Dimension(),
	}
}

// EmbedQuery embeds a search query within the bounded timeout. Unlike
// document embedding, the error is returned; callers degrade to an
// empty result set.
func (l *Lifecycle) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, span := l.tracer.Start(ctx, "embeddings.embed_query")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	vec, err := l.provider.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(vec) != l.provider.Dimension() {
		return nil, fmt.Errorf("%w: query vector dimension %d, want %d", ErrEmbeddingFailed, len(vec), l.provider.Dimension())
	}
	return vec, nil
}

// Model returns the active provider's model identifier.
func (l *Lifecycle) Model() string {
	return l.provider.Model()
}

// Dimension returns the active provider's embedding dimension.
func (l *Lifecycle) Dimension() int {
	return l.provider.Dimension()
}

func (l *Lifecycle) failed(ctx context.Context, span trace.Span, detail string) Outcome {
	if l.attemptCounter != nil {
		l.attemptCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", string(StatusFailed)),
		))
	}
	span.SetAttributes(
		attribute.String("status", string(StatusFailed)),
		attribute.String("detail", detail),
	)
	l.logger.Warn("embedding attempt failed",
		zap.String("detail", detail),
		zap.String("model", l.provider.Model()),
	)
	return Outcome{
		Status:    StatusFailed,
		Model:     l.provider.Model(),
		Dimension: l.provider.Dimension(),
		Error:     detail,
	}
}
