package queue

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/presencectl/internal/api/metrics"
	"github.com/99minutos/presencectl/internal/core/domain"
	"github.com/99minutos/presencectl/internal/core/ports"
)

var _ ports.EventPublisher = (*Notifier)(nil)

// Handler receives session events in publish order.
type Handler func(ctx context.Context, event domain.SessionEvent)

// Notifier delivers session events to subscribers from a single worker
// goroutine. Publish never blocks, so the session controller may call it while
// holding its own lock.
type Notifier struct {
	mu       sync.Mutex
	pending  []domain.SessionEvent
	handlers map[int]Handler
	nextID   int
	stopped  bool

	wake chan struct{}
	done chan struct{}
	log  zerolog.Logger
}

// NewNotifier creates an idle Notifier. Call Start to begin delivery.
func NewNotifier(log zerolog.Logger) *Notifier {
	return &Notifier{
		handlers: make(map[int]Handler),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		log:      log,
	}
}

// Subscribe registers h and returns a function that removes it.
func (n *Notifier) Subscribe(h Handler) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.handlers[id] = h
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.handlers, id)
		n.mu.Unlock()
	}
}

// Publish queues event for delivery. Events published after Stop are dropped.
func (n *Notifier) Publish(event domain.SessionEvent) {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.pending = append(n.pending, event)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Start launches the delivery worker. It exits when ctx is cancelled or Stop
// is called.
func (n *Notifier) Start(ctx context.Context) {
	go n.run(ctx)
}

// Stop refuses further events and waits until everything already queued has
// been delivered. Start must have been called.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		<-n.done
		return
	}
	n.stopped = true
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
	<-n.done
}

func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)
	for {
		for {
			batch, handlers, stopped := n.take()
			for _, event := range batch {
				n.deliver(ctx, handlers, event)
			}
			if len(batch) == 0 {
				if stopped {
					return
				}
				break
			}
		}

		select {
		case <-ctx.Done():
			n.mu.Lock()
			n.stopped = true
			dropped := len(n.pending)
			n.pending = nil
			n.mu.Unlock()
			if dropped > 0 {
				metrics.DroppedEventsTotal.Add(float64(dropped))
				n.log.Warn().Int("dropped", dropped).Msg("notifier cancelled with undelivered events")
			}
			return
		case <-n.wake:
		}
	}
}

// take swaps out the pending queue and snapshots the current subscribers.
func (n *Notifier) take() ([]domain.SessionEvent, []Handler, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	batch := n.pending
	n.pending = nil

	ids := make([]int, 0, len(n.handlers))
	for id := range n.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = n.handlers[id]
	}
	return batch, handlers, n.stopped
}

func (n *Notifier) deliver(ctx context.Context, handlers []Handler, event domain.SessionEvent) {
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					n.log.Error().
						Interface("panic", r).
						Str("event", event.Kind.String()).
						Msg("session event handler panicked")
				}
			}()
			h(ctx, event)
		}()
	}
}
