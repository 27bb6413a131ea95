package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher decorates a bus's subscriptions. Every handler subscribed
// through it runs inside the middleware chain, is retried with backoff,
// and lands in the dead letter queue when retries run out.
//
// Dispatcher implements shared.EventSubscriber, so event handlers register
// against it exactly as they would against a bus.
type Dispatcher struct {
	bus         shared.EventSubscriber
	middlewares []Middleware
	retryConfig RetryConfig
	deadLetterQ *DeadLetterQueue
	logger      *slog.Logger
	mu          sync.RWMutex
}

// RetryConfig contains handler retry configuration.
type RetryConfig struct {
	// MaxAttempts includes the first call.
	MaxAttempts int

	// InitialBackoff is the initial wait between retries.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum wait between retries.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	// Bus is the underlying subscriber.
	Bus shared.EventSubscriber

	// Retry configures handler retries.
	Retry RetryConfig

	// DeadLetterQueueSize is the max size of the DLQ; 0 disables it.
	DeadLetterQueueSize int

	// Logger for structured logging.
	Logger *slog.Logger
}

// NewDispatcher creates a dispatcher with recovery and logging middleware
// installed.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = DefaultRetryConfig()
	}
	logger := config.Logger.With("component", "dispatcher")

	d := &Dispatcher{
		bus:         config.Bus,
		retryConfig: config.Retry,
		logger:      logger,
	}
	if config.DeadLetterQueueSize > 0 {
		d.deadLetterQ = NewDeadLetterQueue(config.DeadLetterQueueSize)
	}
	d.Use(RecoveryMiddleware(logger))
	d.Use(LoggingMiddleware(logger))
	return d
}

// Subscribe registers a wrapped handler for an event type.
func (d *Dispatcher) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	return d.bus.Subscribe(eventType, d.wrap(string(eventType), handler))
}

// SubscribeAll registers a wrapped handler for all events.
func (d *Dispatcher) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	return d.bus.SubscribeAll(d.wrap("*", handler))
}

// wrap builds the chain at subscription time; middleware added later
// applies only to later subscriptions.
func (d *Dispatcher) wrap(name string, handler shared.EventHandler) shared.EventHandler {
	d.mu.RLock()
	chain := handler
	for i := len(d.middlewares) - 1; i >= 0; i-- {
		chain = d.middlewares[i](chain)
	}
	d.mu.RUnlock()

	retrier := retry.New(
		retry.WithMaxAttempts(d.retryConfig.MaxAttempts),
		retry.WithInitialDelay(d.retryConfig.InitialBackoff),
		retry.WithMaxDelay(d.retryConfig.MaxBackoff),
		retry.WithRetryIf(func(error) bool { return true }),
	)

	return func(event shared.Event) error {
		err := retrier.Do(context.Background(), func(context.Context) error {
			return chain(event)
		})
		if err == nil {
			return nil
		}
		if d.deadLetterQ != nil {
			attempts := 1
			if retry.IsExhausted(err) {
				attempts = retrier.MaxAttempts()
			}
			d.deadLetterQ.Add(DeadLetterEntry{
				Event:        event,
				Subscription: name,
				Error:        err,
				Attempts:     attempts,
				FailedAt:     time.Now(),
			})
		}
		return fmt.Errorf("handler for %s failed: %w", name, err)
	}
}

// DeadLetterQueue returns the dead letter queue, nil when disabled.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.deadLetterQ
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// Use appends middleware; the first added runs outermost.
func (d *Dispatcher) Use(middleware Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middleware)
}

// RecoveryMiddleware turns handler panics into errors.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panic recovered",
						"event_type", event.EventType(),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs handler failures and, at debug level, successes.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			duration := time.Since(start)

			if err != nil {
				logger.Warn("handler failed",
					"event_type", event.EventType(),
					"aggregate_id", event.AggregateID(),
					"duration", duration,
					"error", err,
				)
				return err
			}
			logger.Debug("handler completed",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"duration", duration,
			)
			return nil
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry represents an event a handler gave up on.
type DeadLetterEntry struct {
	Event        shared.Event
	Subscription string
	Error        error
	Attempts     int
	FailedAt     time.Time
}

// DeadLetterQueue is a bounded FIFO of failed deliveries. When full the
// oldest entry is dropped.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a new dead letter queue.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add adds an entry to the queue.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Size returns the current queue size.
func (q *DeadLetterQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Drain removes and returns all entries, oldest first.
func (q *DeadLetterQueue) Drain() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.entries
	q.entries = nil
	return out
}
