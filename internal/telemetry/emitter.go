package telemetry

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// AssignmentEvent is the outcome of one identifier assignment.
type AssignmentEvent struct {
	CoID           int64
	PersonID       int64
	IdentifierType string
	Outcome        string
	Error          string
	OccurredAt     time.Time
}

const (
	OutcomeAssigned = "assigned"
	OutcomeFailed   = "failed"
)

// EventEmitter emits assignment events. Emit is best-effort.
type EventEmitter interface {
	Emit(ctx context.Context, event *AssignmentEvent)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via provider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger("cilogon.assigner"))
}

// RecordEmitter is the subset of otellog.Logger the emitter writes to.
type RecordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger.
func NewEventEmitterWithLogger(logger RecordEmitter) EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *AssignmentEvent) {}

type otelEmitter struct {
	logger RecordEmitter
}

func (e *otelEmitter) Emit(ctx context.Context, event *AssignmentEvent) {
	if event == nil {
		return
	}
	rec := otellog.Record{}
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetBody(otellog.StringValue("identifier assignment " + event.Outcome))
	rec.AddAttributes(
		otellog.Int64("co_id", event.CoID),
		otellog.Int64("co_person_id", event.PersonID),
		otellog.String("outcome", event.Outcome),
	)
	if event.IdentifierType != "" {
		rec.AddAttributes(otellog.String("identifier_type", event.IdentifierType))
	}
	if event.Error != "" {
		rec.SetSeverity(otellog.SeverityWarn)
		rec.AddAttributes(otellog.String("error", event.Error))
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
	}
	e.logger.Emit(ctx, rec)
}
