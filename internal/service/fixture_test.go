package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/events"
	"learnhub-auth/internal/testkit/authfakes"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *authfakes.Store
	oauth  *authfakes.OAuth
	states *authfakes.States
	bus    *events.Bus
	logs   *observer.ObservedLogs
	now    time.Time
	svc    *Services
	admin  *domain.User

	mu     sync.Mutex
	events []events.Event
}

var meta = domain.ClientMeta{UserAgent: "go-test", IP: "10.0.0.1"}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		store:  authfakes.NewStore(),
		oauth:  authfakes.NewOAuth(),
		states: &authfakes.States{},
		bus:    events.NewBus(l),
		logs:   logs,
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.bus.Subscribe("", func(_ context.Context, e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e)
		return nil
	})
	f.svc = New(Deps{
		Users:       f.store.Users(),
		Roles:       f.store.Roles(),
		Permissions: f.store.Permissions(),
		Connections: f.store.Connections(),
		Tokens:      f.store.Tokens(),
		Tx:          authfakes.Tx{},
		Hasher:      authfakes.PlainHasher{},
		JWT:         authfakes.Issuer{},
		OAuth:       f.oauth,
		States:      f.states,
		Bus:         f.bus,
		Log:         l,
		Now:         func() time.Time { return f.now },
	})
	require.NoError(t, f.svc.RBAC.Seed(f.ctx))

	f.admin = f.register("admin@example.com", "AdminPass!1")
	_, err := f.svc.RBAC.Promote(f.ctx, f.admin.Email)
	require.NoError(t, err)
	return f
}

func (f *fixture) register(email, password string) *domain.User {
	f.t.Helper()
	u, err := f.svc.Users.Register(f.ctx, RegisterInput{Email: email, Password: password, FullName: "Test User"})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) roleID(name string) string {
	f.t.Helper()
	r, err := f.store.Roles().FindByName(f.ctx, name)
	require.NoError(f.t, err)
	require.NotNil(f.t, r, name)
	return r.ID
}

func (f *fixture) permID(name string) string {
	f.t.Helper()
	p, err := f.store.Permissions().FindByName(f.ctx, name)
	require.NoError(f.t, err)
	require.NotNil(f.t, p, name)
	return p.ID
}

func (f *fixture) user(id string) *domain.User {
	f.t.Helper()
	u, err := f.store.Users().FindByID(f.ctx, id)
	require.NoError(f.t, err)
	return u
}

func (f *fixture) published(name events.Name) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Name == name {
			n++
		}
	}
	return n
}
