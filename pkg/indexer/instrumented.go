package indexer

import (
	"context"
	"time"
)

// DispatchRecorder receives one observation per indexer call.
// internal/telemetry provides the Prometheus implementation.
type DispatchRecorder interface {
	ObserveDispatch(operation string, err error, elapsed time.Duration)
}

// InstrumentedIndexer reports every call of the wrapped Indexer.
type InstrumentedIndexer struct {
	inner    Indexer
	recorder DispatchRecorder
	now      func() time.Time
}

// Instrumented wraps inner so each call is reported to recorder.
func Instrumented(inner Indexer, recorder DispatchRecorder) *InstrumentedIndexer {
	return &InstrumentedIndexer{inner: inner, recorder: recorder, now: time.Now}
}

// UpdateIndexAfterUpdate implements Indexer.
func (i *InstrumentedIndexer) UpdateIndexAfterUpdate(ctx context.Context, a AffectedNodes) error {
	start := i.now()
	err := i.inner.UpdateIndexAfterUpdate(ctx, a)
	i.recorder.ObserveDispatch(OpUpdate, err, i.now().Sub(start))
	return err
}

// UpdateIndexAfterDelete implements Indexer.
func (i *InstrumentedIndexer) UpdateIndexAfterDelete(ctx context.Context, a AffectedNodes) error {
	start := i.now()
	err := i.inner.UpdateIndexAfterDelete(ctx, a)
	i.recorder.ObserveDispatch(OpDelete, err, i.now().Sub(start))
	return err
}

var _ Indexer = (*InstrumentedIndexer)(nil)
