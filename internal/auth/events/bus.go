package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// Command is a follow-up operation issued by a saga.
type Command func(ctx context.Context) error

// Saga reacts to one event with at most one Command. A nil Command means
// there is nothing to do.
type Saga func(ctx context.Context, e domain.Event) (Command, error)

// Forwarder relays events outside the process. It only ever sees redacted clones.
type Forwarder interface {
	Forward(ctx context.Context, e domain.Event) error
}

// Source is anything that buffers events, i.e. an aggregate.
type Source interface {
	PullEvents() []domain.Event
}

// Bus is the in-process publish/subscribe hub. Sagas are registered per event
// name; forwarders receive every event.
type Bus struct {
	mu         sync.RWMutex
	sagas      map[string][]Saga
	forwarders []Forwarder
}

func NewBus() *Bus {
	return &Bus{sagas: make(map[string][]Saga)}
}

// RegisterSaga subscribes s to events named name.
func (b *Bus) RegisterSaga(name string, s Saga) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sagas[name] = append(b.sagas[name], s)
}

// AddForwarder subscribes f to every event.
func (b *Bus) AddForwarder(f Forwarder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forwarders = append(b.forwarders, f)
}

// PublishFrom drains each source and publishes its events. Call it only after
// the write that produced the events has succeeded.
func (b *Bus) PublishFrom(ctx context.Context, sources ...Source) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		b.Publish(ctx, src.PullEvents()...)
	}
}

// Publish delivers events in order. The request id of ctx is stamped on each
// event. Failures of subscribers are logged and never returned.
//
// The write behind the events has already committed, so subscribers run
// detached from ctx cancellation. Values such as the logger and request id
// are kept.
func (b *Bus) Publish(ctx context.Context, events ...domain.Event) {
	if len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	reqID := slogx.RequestID(ctx)

	b.mu.RLock()
	forwarders := append([]Forwarder(nil), b.forwarders...)
	b.mu.RUnlock()

	for _, e := range events {
		e.RequestID = reqID

		for _, f := range forwarders {
			b.forward(ctx, f, e)
		}

		b.mu.RLock()
		sagas := append([]Saga(nil), b.sagas[e.Name]...)
		b.mu.RUnlock()

		for _, s := range sagas {
			b.runSaga(ctx, s, e)
		}
	}
}

func (b *Bus) forward(ctx context.Context, f Forwarder, e domain.Event) {
	log := slogx.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("event forwarder panicked", "event", e.Name, "entity_id", e.EntityID, "panic", r)
		}
	}()

	if err := f.Forward(ctx, Redact(e)); err != nil {
		log.Error("event forward failed", "event", e.Name, "entity_id", e.EntityID, "err", err)
	}
}

func (b *Bus) runSaga(ctx context.Context, s Saga, e domain.Event) {
	log := slogx.FromContext(ctx)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("saga panic: %v", r)
			}
		}()

		cmd, err := s(ctx, e)
		if err != nil || cmd == nil {
			return err
		}
		return cmd(ctx)
	}()
	if err != nil {
		log.Error("saga failed", "event", e.Name, "entity_id", e.EntityID, "err", err)
	}
}
