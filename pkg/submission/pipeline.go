package submission

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/goliatone/go-formsheet/pkg/answers"
)

const tracerName = "github.com/goliatone/go-formsheet/pkg/submission"

// Target names the destination of a row: the spreadsheet (or local table)
// identifier and the range or tab the row is appended to.
type Target struct {
	StoreID string
	Range   string
}

// Appender appends exactly one row to an append-only store. Implementations
// classify their failures as *Error values with CodeStoreUnavailable or
// CodeStoreRejected; anything else is treated as unavailable.
type Appender interface {
	Append(ctx context.Context, target Target, row Row) error
}

// AppenderFunc adapts a function to the Appender interface.
type AppenderFunc func(ctx context.Context, target Target, row Row) error

func (f AppenderFunc) Append(ctx context.Context, target Target, row Row) error {
	return f(ctx, target, row)
}

// Observer receives one notification per submission attempt.
type Observer interface {
	ObserveSubmission(code Code, cells int, elapsed time.Duration)
}

// Pipeline parses answers, flattens them and appends the row. There are no
// internal retries: one call performs at most one Append.
type Pipeline struct {
	appender Appender
	target   Target
	logger   *zap.Logger
	tracer   trace.Tracer
	observer Observer
	now      func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger used for submission events.
func WithLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer overrides the tracer. The global provider is used by default.
func WithTracer(tracer trace.Tracer) PipelineOption {
	return func(p *Pipeline) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// WithObserver registers a metrics hook.
func WithObserver(observer Observer) PipelineOption {
	return func(p *Pipeline) {
		p.observer = observer
	}
}

// NewPipeline builds a pipeline appending to target through appender.
func NewPipeline(appender Appender, target Target, opts ...PipelineOption) (*Pipeline, error) {
	if appender == nil {
		return nil, errors.New("submission: appender is required")
	}
	p := &Pipeline{
		appender: appender,
		target:   target,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Target returns the configured destination.
func (p *Pipeline) Target() Target { return p.target }

// Submit parses a raw JSON payload and submits it.
func (p *Pipeline) Submit(ctx context.Context, raw []byte) error {
	value, err := answers.Parse(raw)
	if err != nil {
		err = Wrap(CodeMalformedInput, "parse answers", err)
		p.record(ctx, err, 0, p.now())
		return err
	}
	return p.SubmitValue(ctx, value)
}

// SubmitValue flattens an already parsed answer object and appends it.
func (p *Pipeline) SubmitValue(ctx context.Context, value answers.Value) (err error) {
	started := p.now()
	ctx, span := p.tracer.Start(ctx, "submission.Submit",
		trace.WithAttributes(
			attribute.String("submission.store_id", p.target.StoreID),
			attribute.String("submission.range", p.target.Range),
		))
	defer span.End()

	row, err := BuildRow(value)
	if err == nil && len(row) == 0 {
		err = Wrap(CodeMalformedInput, "nothing to submit", ErrNoAnswers)
	}
	if err != nil {
		p.finish(ctx, span, err, 0, started)
		return err
	}
	span.SetAttributes(attribute.Int("submission.cells", len(row)))

	if appendErr := p.appender.Append(ctx, p.target, row); appendErr != nil {
		err = classify(appendErr)
	}
	p.finish(ctx, span, err, len(row), started)
	return err
}

func (p *Pipeline) finish(ctx context.Context, span trace.Span, err error, cells int, started time.Time) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(CodeOf(err)))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	p.record(ctx, err, cells, started)
}

func (p *Pipeline) record(_ context.Context, err error, cells int, started time.Time) {
	elapsed := p.now().Sub(started)
	code := CodeOK
	if err != nil {
		code = CodeOf(err)
	}
	if p.observer != nil {
		p.observer.ObserveSubmission(code, cells, elapsed)
	}

	fields := []zap.Field{
		zap.String("store_id", p.target.StoreID),
		zap.String("range", p.target.Range),
		zap.Int("cells", cells),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		p.logger.Warn("submission failed", append(fields, zap.String("code", string(code)), zap.Error(err))...)
		return
	}
	p.logger.Info("submission appended", fields...)
}

func classify(err error) error {
	var serr *Error
	if errors.As(err, &serr) {
		switch serr.Code {
		case CodeStoreRejected, CodeStoreUnavailable:
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeStoreUnavailable, "append interrupted", err)
	}
	return Wrap(CodeStoreUnavailable, "append row", err)
}
