// Package metrics records request and action metrics through the
// OpenTelemetry metric API. Without a configured meter provider the
// instruments are no-ops.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "HatterAgent"

// Recorder holds the instruments used across the service.
type Recorder struct {
	httpRequests  metric.Int64Counter
	httpLatency   metric.Float64Histogram
	actionRuns    metric.Int64Counter
	actionLatency metric.Float64Histogram
	queueDepth    metric.Int64UpDownCounter
}

// New creates the instruments on the given meter.
func New(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	var err error
	if r.httpRequests, err = meter.Int64Counter("hatter.http.requests",
		metric.WithDescription("HTTP requests by route, method and status")); err != nil {
		return nil, err
	}
	if r.httpLatency, err = meter.Float64Histogram("hatter.http.duration",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.actionRuns, err = meter.Int64Counter("hatter.action.runs",
		metric.WithDescription("Action pipeline runs by action and outcome")); err != nil {
		return nil, err
	}
	if r.actionLatency, err = meter.Float64Histogram("hatter.action.duration",
		metric.WithDescription("Action pipeline latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.queueDepth, err = meter.Int64UpDownCounter("hatter.turns.pending",
		metric.WithDescription("Turns waiting for the processor")); err != nil {
		return nil, err
	}
	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// Default returns a recorder bound to the global meter provider. It is
// created on first use, so telemetry must be initialised before.
func Default() *Recorder {
	defaultOnce.Do(func() {
		r, err := New(otel.Meter(meterName))
		if err != nil {
			otel.Handle(err)
			r = &Recorder{}
		}
		defaultRecorder = r
	})
	return defaultRecorder
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func (r *Recorder) ObserveHTTPRequest(ctx context.Context, route, method string, status int, duration time.Duration) {
	if r == nil || r.httpRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.method", method),
		attribute.String("http.status_code", strconv.Itoa(status)),
	)
	r.httpRequests.Add(ctx, 1, attrs)
	r.httpLatency.Record(ctx, duration.Seconds(), attrs)
}

// ObserveAction records one pipeline run. outcome is "success" or an error
// code.
func (r *Recorder) ObserveAction(ctx context.Context, action, outcome string, duration time.Duration) {
	if r == nil || r.actionRuns == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("hatter.action", action),
		attribute.String("hatter.outcome", outcome),
	)
	r.actionRuns.Add(ctx, 1, attrs)
	r.actionLatency.Record(ctx, duration.Seconds(), attrs)
}

// TurnQueued adjusts the pending turn gauge by delta.
func (r *Recorder) TurnQueued(ctx context.Context, delta int64) {
	if r == nil || r.queueDepth == nil {
		return
	}
	r.queueDepth.Add(ctx, delta)
}

// Middleware records request metrics labelled by the chi route pattern.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := req.URL.Path
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.ObserveHTTPRequest(req.Context(), route, req.Method, status, time.Since(start))
	})
}
