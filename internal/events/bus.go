// Package events is an in-process publisher for auth domain events. A Bus is
// constructed explicitly and handed to the services that publish on it.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Name string

const (
	UserRegistered      Name = "user.registered"
	UserLoggedIn        Name = "user.logged_in"
	UserPasswordChanged Name = "user.password_changed"
	UserDeactivated     Name = "user.deactivated"
	OAuthLinked         Name = "oauth.linked"
	OAuthUnlinked       Name = "oauth.unlinked"
	TokenReplayDetected Name = "token.replay_detected"
)

// All lists every event the auth core emits.
var All = []Name{
	UserRegistered, UserLoggedIn, UserPasswordChanged, UserDeactivated,
	OAuthLinked, OAuthUnlinked, TokenReplayDetected,
}

type Event struct {
	Name       Name
	UserID     string
	Attrs      map[string]string
	OccurredAt time.Time
}

// Handler errors are logged, never propagated to the publisher.
type Handler func(ctx context.Context, e Event) error

type subscription struct {
	id   int
	name Name // empty matches every event
	fn   Handler
}

type Bus struct {
	log *zap.Logger

	mu     sync.RWMutex
	subs   []subscription
	nextID int
	closed bool
}

func NewBus(l *zap.Logger) *Bus {
	if l == nil {
		l = zap.NewNop()
	}
	return &Bus{log: l.Named("events")}
}

// Subscribe registers fn for name, or for every event when name is empty.
// The returned func removes the subscription.
func (b *Bus) Subscribe(name Name, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e synchronously to matching handlers. After Close it is a no-op.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	matched := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.name == "" || s.name == e.Name {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range matched {
		if err := b.call(ctx, s.fn, e); err != nil {
			b.log.Warn("event handler failed",
				zap.String("event", string(e.Name)),
				zap.String("userId", e.UserID),
				zap.Error(err))
		}
	}
}

func (b *Bus) call(ctx context.Context, fn Handler, e Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx, e)
}

// Close drops all subscribers; later publishes are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
}
