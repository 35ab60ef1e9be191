// Package events carries domain events from request handlers to their
// subscribers without blocking the request.  Each project's events land on
// one shard, so delivery within a project is FIFO while projects proceed
// independently.
package events

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/config"
	"github.com/iliyamo/taskflow/internal/metrics"
	"github.com/iliyamo/taskflow/internal/model"
)

// Event is one audited domain action.  ID is stable across redeliveries
// and lets sinks discard duplicates.
type Event struct {
	ID         string               `json:"id"`
	ProjectID  string               `json:"projectId"`
	UserID     string               `json:"userId"`
	Action     model.ActivityAction `json:"action"`
	Details    string               `json:"details"`
	OccurredAt time.Time            `json:"occurredAt"`
}

// Handler consumes one event.  A returned error triggers a retry.
type Handler func(ctx context.Context, e Event) error

// ErrClosed is returned by Close when called twice.
var ErrClosed = errors.New("events: bus closed")

type subscriber struct {
	name string
	fn   Handler
}

// Bus is a sharded, bounded, in-process event queue.  Emit never blocks:
// when a shard is full the event is dropped and counted.
type Bus struct {
	shards      []chan Event
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
	log         *zap.Logger
	metrics     *metrics.Registry

	mu     sync.RWMutex
	subs   []subscriber
	closed bool
	wg     sync.WaitGroup
}

// NewBus starts cfg.Shards workers.
func NewBus(cfg config.EventConfig, log *zap.Logger, m *metrics.Registry) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	shards := max(cfg.Shards, 1)
	b := &Bus{
		shards:      make([]chan Event, shards),
		maxAttempts: max(cfg.MaxAttempts, 1),
		backoff:     100 * time.Millisecond,
		timeout:     5 * time.Second,
		log:         log.Named("events"),
		metrics:     m,
	}
	for i := range b.shards {
		b.shards[i] = make(chan Event, max(cfg.Buffer, 1))
		b.wg.Add(1)
		go b.work(b.shards[i])
	}
	return b
}

// Subscribe registers fn under name.  Every subscriber sees every event.
func (b *Bus) Subscribe(name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscriber{name: name, fn: fn})
}

// Emit enqueues e and reports whether it was accepted.  ID and OccurredAt
// are filled in when empty.
func (b *Bus) Emit(e Event) bool {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.drop(e, "bus closed")
		return false
	}
	select {
	case b.shard(e.ProjectID) <- e:
		b.metrics.Event("enqueued")
		return true
	default:
		b.drop(e, "shard full")
		return false
	}
}

// Close stops accepting events and waits for queued ones to be delivered
// or for ctx to expire.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.closed = true
	for _, ch := range b.shards {
		close(ch)
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) shard(projectID string) chan Event {
	h := fnv.New32a()
	_, _ = h.Write([]byte(projectID))
	return b.shards[h.Sum32()%uint32(len(b.shards))]
}

func (b *Bus) drop(e Event, reason string) {
	b.metrics.Event("dropped")
	b.log.Warn("event dropped",
		zap.String("reason", reason),
		zap.String("id", e.ID),
		zap.String("projectId", e.ProjectID),
		zap.String("action", string(e.Action)))
}

func (b *Bus) work(ch <-chan Event) {
	defer b.wg.Done()
	for e := range ch {
		b.mu.RLock()
		subs := append([]subscriber(nil), b.subs...)
		b.mu.RUnlock()
		for _, s := range subs {
			b.deliver(s, e)
		}
	}
}

func (b *Bus) deliver(s subscriber, e Event) {
	var err error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		if err = b.call(s.fn, e); err == nil {
			b.metrics.Event("delivered")
			return
		}
		if attempt < b.maxAttempts {
			b.log.Warn("event delivery failed, retrying",
				zap.String("subscriber", s.name), zap.String("id", e.ID),
				zap.Int("attempt", attempt), zap.Error(err))
			time.Sleep(b.backoff * time.Duration(attempt))
		}
	}
	b.metrics.Event("failed")
	b.log.Error("event delivery abandoned",
		zap.String("subscriber", s.name), zap.String("id", e.ID),
		zap.String("projectId", e.ProjectID), zap.String("action", string(e.Action)),
		zap.Error(err))
}

func (b *Bus) call(fn Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	return fn(ctx, e)
}
