// Package sagalog defines the domain types for the saga transition log.
//
// The log is a durable audit trail of every transition an order saga goes
// through. It serves two purposes:
//
//  1. Observability: you can query the DB to see exactly which state a saga
//     is (or was) in and correlate it with a distributed trace via trace_id.
//
//  2. Forensics: when a compensation path runs, the log preserves which
//     message drove each transition and the failure reason recorded at the
//     time, independent of the instance's current snapshot.
package sagalog

import "time"

// Entry is a single row in the saga_transitions table. It captures a
// point-in-time snapshot taken right after a transition was persisted.
type Entry struct {
	// SagaID is the correlation identifier of the order transaction.
	SagaID string

	// State is the saga state after the transition was applied.
	State string

	// MessageKind is the kind of the message that drove the transition
	// (e.g. "PaymentResult", "StepTimedOut").
	MessageKind string

	// FailureReason is the business rejection or timeout recorded on the
	// instance, empty on the happy path.
	FailureReason string

	// TraceID is the W3C trace ID extracted from the OpenTelemetry span
	// active when the entry was written; allows jumping from a log row to
	// the full distributed trace.
	TraceID string

	// SpanID pinpoints the exact span within the trace.
	SpanID string

	// RecordedAt is the wall-clock time of this entry.
	RecordedAt time.Time
}
