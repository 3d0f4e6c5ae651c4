package booking

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "moveflow/services/booking"

var tracer = otel.Tracer(instrumentationName)

type counters struct {
	bookingsCreated  metric.Int64Counter
	bookingConflicts metric.Int64Counter
	transitions      metric.Int64Counter
	cancellations    metric.Int64Counter
	refundsFailed    metric.Int64Counter
}

var (
	metricsOnce sync.Once
	metrics     counters
)

// instruments resolves counters from the global meter provider on first use,
// so a provider installed at startup is picked up.
func instruments() *counters {
	metricsOnce.Do(func() {
		m := otel.Meter(instrumentationName)
		metrics.bookingsCreated, _ = m.Int64Counter("bookings_created_total",
			metric.WithDescription("Bookings successfully written"))
		metrics.bookingConflicts, _ = m.Int64Counter("booking_conflicts_total",
			metric.WithDescription("Booking writes rejected by the overlap constraint"))
		metrics.transitions, _ = m.Int64Counter("booking_status_transitions_total")
		metrics.cancellations, _ = m.Int64Counter("booking_cancellations_total")
		metrics.refundsFailed, _ = m.Int64Counter("booking_refunds_failed_total")
	})
	return &metrics
}

func addCount(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
