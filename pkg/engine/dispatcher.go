package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/themesync/pkg/telemetry"
)

var (
	// ErrDispatcherStopped is returned by Dispatch after Stop.
	ErrDispatcherStopped = errors.New("dispatcher stopped")

	// ErrQueueFull is returned by Dispatch when the queue has no room.
	ErrQueueFull = errors.New("dispatch queue full")
)

// DefaultQueueSize is the queue capacity used when none is configured.
const DefaultQueueSize = 256

// Handler handles a single action.
type Handler interface {
	OnAction(ctx context.Context, action Action) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, action Action) error

// OnAction calls f.
func (f HandlerFunc) OnAction(ctx context.Context, action Action) error {
	return f(ctx, action)
}

type queuedAction struct {
	id       string
	action   Action
	enqueued time.Time
}

// ActionDispatcher feeds actions to a Handler one at a time, in the order
// they were dispatched.
type ActionDispatcher struct {
	handler Handler
	logger  zerolog.Logger
	metrics *telemetry.Metrics

	// mu guards queue closure against concurrent sends.
	mu      sync.RWMutex
	queue   chan queuedAction
	started bool
	stopped bool
	done    chan struct{}

	// completions is unbounded and handled ahead of queued intents.
	completionMu sync.Mutex
	completions  []queuedAction
	wake         chan struct{}
}

// NewActionDispatcher creates a dispatcher for handler.
func NewActionDispatcher(handler Handler, queueSize int, logger zerolog.Logger, metrics *telemetry.Metrics) *ActionDispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &ActionDispatcher{
		handler: handler,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
		metrics: metrics,
		queue:   make(chan queuedAction, queueSize),
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Start launches the worker. Actions are handled with ctx until it is
// cancelled or Stop is called.
func (d *ActionDispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrDispatcherStopped
	}
	if d.started {
		return fmt.Errorf("dispatcher already started")
	}
	d.started = true

	go d.run(ctx)
	return nil
}

// Dispatch enqueues an action without blocking.
func (d *ActionDispatcher) Dispatch(action Action) error {
	if action == nil {
		return fmt.Errorf("%w: nil", ErrUnknownAction)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}

	item := queuedAction{
		id:       uuid.New().String(),
		action:   action,
		enqueued: time.Now(),
	}
	select {
	case d.queue <- item:
		d.metrics.SetQueueDepth(len(d.queue))
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, action.Type())
	}
}

// DispatchCompletion implements Dispatcher. Completions are queued without
// bound and fail only after Stop.
func (d *ActionDispatcher) DispatchCompletion(action Action) error {
	if action == nil {
		return fmt.Errorf("%w: nil", ErrUnknownAction)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}

	d.completionMu.Lock()
	d.completions = append(d.completions, queuedAction{
		id:       uuid.New().String(),
		action:   action,
		enqueued: time.Now(),
	})
	d.completionMu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

func (d *ActionDispatcher) nextCompletion() (queuedAction, bool) {
	d.completionMu.Lock()
	defer d.completionMu.Unlock()
	if len(d.completions) == 0 {
		return queuedAction{}, false
	}
	item := d.completions[0]
	d.completions[0] = queuedAction{}
	d.completions = d.completions[1:]
	return item, true
}

func (d *ActionDispatcher) handleCompletions(ctx context.Context) {
	for {
		item, ok := d.nextCompletion()
		if !ok {
			return
		}
		d.handle(ctx, item)
	}
}

// Len returns the number of queued actions.
func (d *ActionDispatcher) Len() int {
	return len(d.queue)
}

// Stop refuses new actions and waits for queued ones to be handled.
func (d *ActionDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.closeLocked()
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to drain dispatch queue: %w", ctx.Err())
	}
}

func (d *ActionDispatcher) closeLocked() {
	if d.stopped {
		return
	}
	d.stopped = true
	close(d.queue)
}

func (d *ActionDispatcher) run(ctx context.Context) {
	defer close(d.done)

	for {
		d.handleCompletions(ctx)

		select {
		case item, ok := <-d.queue:
			if !ok {
				d.handleCompletions(ctx)
				return
			}
			d.metrics.SetQueueDepth(len(d.queue))
			d.handle(ctx, item)
		case <-d.wake:
		case <-ctx.Done():
			d.mu.Lock()
			d.closeLocked()
			d.mu.Unlock()

			// Queued actions still owe their notifications.
			d.logger.Debug().Int("pending", len(d.queue)).Msg("Dispatcher context done, draining")
			drainCtx := context.WithoutCancel(ctx)
			for item := range d.queue {
				d.handleCompletions(drainCtx)
				d.handle(drainCtx, item)
			}
			d.handleCompletions(drainCtx)
			d.metrics.SetQueueDepth(0)
			return
		}
	}
}

func (d *ActionDispatcher) handle(ctx context.Context, item queuedAction) {
	logger := d.logger.With().
		Str("action_id", item.id).
		Str("action", string(item.action.Type())).
		Logger()
	ctx = logger.WithContext(ctx)

	logger.Debug().Dur("queued", time.Since(item.enqueued)).Msg("Dispatching action")
	if err := d.handler.OnAction(ctx, item.action); err != nil {
		logger.Error().Err(err).Msg("Action failed")
	}
}
