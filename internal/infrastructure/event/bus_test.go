package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "ReturnRecord", "r1")}
}

type testHandler struct {
	eventTypes []string
	err        error
	panics     bool

	mu      sync.Mutex
	handled []shared.DomainEvent
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string { return h.eventTypes }

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	created := &testHandler{eventTypes: []string{"return.record.created"}}
	all := &testHandler{}
	bus.Subscribe(created)
	bus.Subscribe(all)

	err := bus.Publish(context.Background(),
		newTestEvent("return.record.created"),
		newTestEvent("ncr.canceled"),
	)
	require.NoError(t, err)

	assert.Equal(t, 1, created.count())
	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := &testHandler{eventTypes: []string{"ncr.submitted"}}
	bus.Subscribe(h, "ncr.canceled")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ncr.submitted")))
	assert.Zero(t, h.count())
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ncr.canceled")))
	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_FailuresDoNotStopOthers(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := &testHandler{eventTypes: []string{"x"}, err: errors.New("nope")}
	panicking := &testHandler{eventTypes: []string{"x"}, panics: true}
	ok := &testHandler{eventTypes: []string{"x"}}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(ok)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("x")))

	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 2, logs.FilterMessage("event handler failed").Len())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := &testHandler{eventTypes: []string{"x", "y"}}
	bus.Subscribe(h)
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("x"), newTestEvent("y")))
	assert.Zero(t, h.count())
	assert.Empty(t, bus.registry.handlers)
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop())
	h := &testHandler{}
	bus.Subscribe(h)

	require.NoError(t, bus.Stop(ctx))
	assert.ErrorIs(t, bus.Publish(ctx, newTestEvent("x")), ErrBusStopped)

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Publish(ctx, newTestEvent("x")))
	assert.Equal(t, 1, h.count())
}

func TestHandlerRegistry_DeduplicatesAndOrders(t *testing.T) {
	r := NewHandlerRegistry()
	specific := &testHandler{}
	wildcard := &testHandler{}

	r.Register(wildcard)
	r.Register(specific, "x")
	r.Register(specific, "x")
	r.Register(wildcard)

	handlers := r.GetHandlers("x")
	require.Len(t, handlers, 2)
	assert.Same(t, specific, handlers[0])
	assert.Same(t, wildcard, handlers[1])
	assert.Len(t, r.GetHandlers("other"), 1)
}
