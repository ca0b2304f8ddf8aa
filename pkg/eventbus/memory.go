package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryBus est un topic exchange en mémoire, sans broker.
// Il applique le même contrat que le client NATS (files exclusives, livraison séquentielle,
// NACK avec redélivrance différée) et sert aux tests et au développement mono-processus.
type MemoryBus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	topic  string
	queues map[*memQueue]struct{}
	closed bool

	pending atomic.Int64
	wg      sync.WaitGroup
}

func NewMemoryBus(logger *slog.Logger) *MemoryBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBus{
		logger: logger.With("component", "memory-bus"),
		queues: make(map[*memQueue]struct{}),
	}
}

func (b *MemoryBus) DeclareTopic(_ context.Context, name string, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.topic = name
	return nil
}

func (b *MemoryBus) Publish(_ context.Context, routingKey string, payload any) error {
	if err := validateRoutingKey(routingKey); err != nil {
		return err
	}
	env, err := NewEnvelope(routingKey, payload)
	if err != nil {
		return err
	}
	// Passage par le format fil pour que les tests exercent la sérialisation réelle.
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	if b.topic == "" {
		return ErrTopicNotDeclared
	}

	for q := range b.queues {
		if Match(q.pattern, routingKey) {
			b.pending.Add(1)
			if !q.enqueue(memMessage{routingKey: routingKey, data: data, attempt: 1}) {
				b.pending.Add(-1)
			}
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, routingKey string, h Handler, opts ...SubscribeOption) (Subscription, error) {
	if _, err := subjectFor("memory", routingKey); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if b.topic == "" {
		return nil, ErrTopicNotDeclared
	}

	q := &memQueue{
		bus:     b,
		pattern: routingKey,
		handler: h,
		opts:    newSubscribeOptions(opts),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	b.queues[q] = struct{}{}
	b.wg.Add(1)
	go q.run()

	b.logger.Info("subscribed", "routing_key", routingKey, "queue", q.opts.queue)
	return q, nil
}

// WaitIdle attend que toutes les livraisons, redélivrances comprises, soient terminées.
func (b *MemoryBus) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if b.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for q := range b.queues {
		q.stop()
	}
	b.queues = map[*memQueue]struct{}{}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

type memMessage struct {
	routingKey string
	data       []byte
	attempt    int
}

type memQueue struct {
	bus     *MemoryBus
	pattern string
	handler Handler
	opts    subscribeOptions

	mu       sync.Mutex
	messages []memMessage
	wake     chan struct{}
	done     chan struct{}
	once     sync.Once
}

func (q *memQueue) enqueue(m memMessage) bool {
	q.mu.Lock()
	select {
	case <-q.done:
		q.mu.Unlock()
		return false
	default:
	}
	q.messages = append(q.messages, m)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *memQueue) next() (memMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return memMessage{}, false
	}
	m := q.messages[0]
	q.messages = q.messages[1:]
	return m, true
}

func (q *memQueue) run() {
	defer q.bus.wg.Done()
	for {
		m, ok := q.next()
		if !ok {
			select {
			case <-q.done:
				return
			case <-q.wake:
				continue
			}
		}
		q.deliver(m)
	}
}

func (q *memQueue) deliver(m memMessage) {
	env, err := DecodeEnvelope(m.data)
	if err != nil {
		q.bus.logger.Error("dropping undecodable message", "routing_key", m.routingKey, "error", err)
		q.bus.pending.Add(-1)
		return
	}

	d := Delivery{RoutingKey: m.routingKey, Envelope: env, Attempt: m.attempt}
	switch dispatch(context.Background(), q.bus.logger, q.opts, q.handler, d) {
	case outcomeRetry:
		m.attempt++
		time.AfterFunc(q.opts.retryDelay, func() {
			if !q.enqueue(m) {
				q.bus.pending.Add(-1)
			}
		})
	default:
		q.bus.pending.Add(-1)
	}
}

func (q *memQueue) stop() {
	q.once.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.bus.pending.Add(-int64(len(q.messages)))
		q.messages = nil
		q.mu.Unlock()
	})
}

func (q *memQueue) Unsubscribe() error {
	q.bus.mu.Lock()
	delete(q.bus.queues, q)
	q.bus.mu.Unlock()
	q.stop()
	return nil
}
