package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
	"github.com/Aman-CERP/termsearch/pkg/indexer"
)

// ErrNilIndexer is returned when creating a Processor without an indexer.
var ErrNilIndexer = errors.New("indexer is required")

// ErrNilClassifier is returned when creating a Processor without a classifier.
var ErrNilClassifier = errors.New("classifier is required")

// Observer receives processing measurements. internal/telemetry.Metrics
// satisfies it.
type Observer interface {
	ObserveNotification(event string, err error, elapsed time.Duration)
	ObserveLockWait(wait time.Duration)
}

// Processor applies notifications to an indexer one at a time.
//
// Every call to Process holds a single process-wide lock from dispatch of
// the first graph group until the last one returns, so two notifications
// never interleave at the indexer. Waiters acquire the lock in arrival
// order.
type Processor struct {
	indexer         indexer.Indexer
	classifier      *Classifier
	continueOnError bool
	history         *History
	observer        Observer
	now             func() time.Time

	// sem is a one-slot semaphore; a channel lets waiters give up on
	// context cancellation, which sync.Mutex cannot.
	sem chan struct{}
}

// Option configures a Processor.
type Option func(*Processor)

// WithContinueOnError makes Process attempt every graph group and return
// the joined errors, instead of stopping at the first failure.
func WithContinueOnError(on bool) Option {
	return func(p *Processor) {
		p.continueOnError = on
	}
}

// WithHistory records an Entry per processed notification.
func WithHistory(h *History) Option {
	return func(p *Processor) {
		p.history = h
	}
}

// WithObserver reports timings and outcomes to o.
func WithObserver(o Observer) Option {
	return func(p *Processor) {
		p.observer = o
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProcessor creates a Processor dispatching to ix.
func NewProcessor(ix indexer.Indexer, c *Classifier, opts ...Option) (*Processor, error) {
	if ix == nil {
		return nil, ErrNilIndexer
	}
	if c == nil {
		return nil, ErrNilClassifier
	}
	p := &Processor{
		indexer:    ix,
		classifier: c,
		now:        time.Now,
		sem:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// History returns the processor's history, or nil.
func (p *Processor) History() *History {
	return p.history
}

// Process applies one notification.
//
// Nodes are grouped by graph and one indexer call is made per group:
// UpdateIndexAfterUpdate for NodeSavedEvent, UpdateIndexAfterDelete for
// NodeDeletedEvent. Unknown event types are accepted and do nothing.
// A notification with a node lacking an id or graph id is rejected before
// any call is made. ctx bounds the wait for the processing lock; after the
// lock is taken its cancellation no longer interrupts dispatch.
func (p *Processor) Process(ctx context.Context, n *Notification) (err error) {
	id := uuid.NewString()
	received := p.now()
	log := slog.With(slog.String("notification_id", id))

	var event string
	var groups []Group
	var nodes int
	defer func() {
		p.record(log, id, event, received, len(groups), nodes, err)
	}()

	if err = Validate(n); err != nil {
		event = EventUnknown.String()
		if n != nil {
			event = n.Kind().String()
		}
		return err
	}

	kind := n.Kind()
	event = kind.String()
	nodes = len(n.Body.Nodes)
	log.Debug("notification_received",
		slog.String("type", n.Type),
		slog.Int("nodes", nodes))

	if err = p.acquire(ctx, received); err != nil {
		return err
	}
	defer p.release()

	if kind == EventUnknown {
		log.Info("notification_ignored", slog.String("type", n.Type))
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("dispatch_panic", slog.Any("panic", r))
			err = termerrors.InternalError("panic during dispatch", fmt.Errorf("%v", r))
		}
	}()

	// Once the lock is held every group is applied; cancellation only
	// bounds the wait above.
	groups = GroupByGraph(n.Body.Nodes)
	return p.dispatchAll(context.WithoutCancel(ctx), log, kind, groups)
}

func (p *Processor) dispatchAll(ctx context.Context, log *slog.Logger, kind EventKind, groups []Group) error {
	var errs []error
	for _, g := range groups {
		a := p.classifier.Affected(g)
		if err := p.dispatch(ctx, kind, a); err != nil {
			log.Warn("graph_dispatch_failed",
				slog.String("graph_id", a.GraphID),
				slog.String("event", kind.String()),
				slog.Any("error", termerrors.FormatForLog(err)))

			err = dispatchError(a.GraphID, err)
			if !p.continueOnError {
				return err
			}
			errs = append(errs, err)
			continue
		}
		log.Debug("graph_dispatched",
			slog.String("graph_id", a.GraphID),
			slog.String("event", kind.String()),
			slog.Int("vocabularies", len(a.Vocabularies)),
			slog.Int("concepts", len(a.Concepts)))
	}
	return errors.Join(errs...)
}

// dispatch routes one graph's change set by event kind.
func (p *Processor) dispatch(ctx context.Context, kind EventKind, a indexer.AffectedNodes) error {
	switch kind {
	case EventNodeSaved:
		return p.indexer.UpdateIndexAfterUpdate(ctx, a)
	case EventNodeDeleted:
		return p.indexer.UpdateIndexAfterDelete(ctx, a)
	case EventUnknown:
		return nil
	default:
		return termerrors.New(termerrors.ErrCodeUnhandledEvent,
			fmt.Sprintf("no dispatch for event kind %d", int(kind)), nil)
	}
}

// dispatchError names the failing graph. Retryability follows the cause so
// callers can still tell a transient index outage from a hard failure.
func dispatchError(graphID string, cause error) error {
	if termerrors.GetCode(cause) == termerrors.ErrCodeUnhandledEvent {
		return cause
	}
	te := termerrors.New(termerrors.ErrCodeDispatchFailed,
		fmt.Sprintf("index update for graph %s failed", graphID), cause).
		WithDetail("graph_id", graphID)
	te.Retryable = termerrors.IsRetryable(cause) ||
		errors.Is(cause, context.DeadlineExceeded)
	return te
}

func (p *Processor) acquire(ctx context.Context, since time.Time) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for processing lock: %w", ctx.Err())
	}
	if p.observer != nil {
		p.observer.ObserveLockWait(p.now().Sub(since))
	}
	return nil
}

func (p *Processor) release() {
	<-p.sem
}

func (p *Processor) record(log *slog.Logger, id, event string, received time.Time, graphs, nodes int, err error) {
	elapsed := p.now().Sub(received)

	if p.observer != nil {
		p.observer.ObserveNotification(event, err, elapsed)
	}

	if p.history != nil {
		e := Entry{
			ID:         id,
			Event:      event,
			ReceivedAt: received,
			Graphs:     graphs,
			Nodes:      nodes,
			DurationMS: elapsed.Milliseconds(),
		}
		if err != nil {
			e.Error = err.Error()
		}
		p.history.Add(e)
	}

	if err != nil {
		log.Warn("notification_failed",
			slog.String("event", event),
			slog.Int("graphs", graphs),
			slog.Any("error", termerrors.FormatForLog(err)))
		return
	}
	log.Info("notification_processed",
		slog.String("event", event),
		slog.Int("graphs", graphs),
		slog.Int("nodes", nodes),
		slog.Int64("duration_ms", elapsed.Milliseconds()))
}
