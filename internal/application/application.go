package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "UC."

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// Instruments holds the tracer, base logger and RED instruments a service's use cases share.
// Build it once per service with NewInstruments; never create metrics inside a call.
type Instruments struct {
	tracer       observability.Tracer
	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	tel = observability.OrNop(tel)
	m := tel.Metrics()
	return Instruments{
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

func (in Instruments) Logger() observability.Logger { return in.log }

// Call tracks one use case execution. End records the span status, RED metrics and
// a single use_case_done log line.
type Call struct {
	ctx     context.Context
	span    trace.Span
	log     observability.Logger
	in      Instruments
	useCase string
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

// Begin opens a span named UC.<spanName> and binds a use_case logger onto the returned context.
func (in Instruments) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Call) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName, attrs...)
	ctx, logger := logctx.Enrich(ctx, in.log, observability.F("use_case", useCase))
	return ctx, &Call{
		ctx:     ctx,
		span:    span,
		log:     logger,
		in:      in,
		useCase: useCase,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
	}
}

func (c *Call) Logger() observability.Logger { return c.log }

func (c *Call) Span() trace.Span { return c.span }

// Fail marks the call as failed with a status code for logs and the span.
func (c *Call) Fail(status string) {
	c.outcome, c.status = "error", status
}

// Note records a status without failing the call.
func (c *Call) Note(status string) { c.status = status }

// Outcome overrides the outcome label, e.g. "dropped" for acknowledged-but-ignored messages.
func (c *Call) Outcome(outcome string) { c.outcome = outcome }

func (c *Call) With(fields ...observability.Field) {
	c.fields = append(c.fields, fields...)
}

func (c *Call) End(err error) {
	lat := time.Since(c.start).Seconds()
	if err != nil && c.outcome == "success" {
		c.outcome = "error"
		if c.status == "OK" {
			c.status = "ERROR"
		}
	}

	if c.span != nil {
		if err != nil {
			c.span.RecordError(err)
			c.span.SetStatus(codes.Error, c.status)
		} else {
			c.span.SetStatus(codes.Ok, c.status)
		}
		c.span.End()
	}

	c.in.reqCounter.Add(1,
		observability.L("use_case", c.useCase),
		observability.L("outcome", c.outcome),
	)
	c.in.durHistogram.Observe(lat, observability.L("use_case", c.useCase))

	fields := append([]observability.Field{
		observability.F("outcome", c.outcome),
		observability.F("status", c.status),
		observability.F("latency_seconds", lat),
	}, c.fields...)
	fields = append(fields, observability.TraceFields(c.ctx)...)
	if err != nil {
		fields = append(fields,
			observability.F("error", err.Error()),
			observability.F("reason", apperr.Kind(err)),
		)
	}
	c.log.Info("use_case_done", fields...)
}

// External records one outbound call made during a use case.
func (in Instruments) External(peer, endpoint string, start time.Time, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case apperr.ClassOf(err) == apperr.ClassDependencyUnavailable:
		outcome = "unavailable"
	default:
		outcome = "error"
	}
	in.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}
