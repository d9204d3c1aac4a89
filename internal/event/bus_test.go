package event

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/quorum/internal/lifecycle"
	"github.com/Iron-Ham/quorum/internal/logging"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	called := false
	id := bus.Subscribe(TypeTaskRegistered, func(e Event) { called = true })

	if id == "" {
		t.Error("Subscribe should return a non-empty ID")
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", bus.SubscriptionCount())
	}
	if called {
		t.Error("handler called before publish")
	}
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus()

	var got Event
	bus.Subscribe(TypeTaskStatusChanged, func(e Event) { got = e })
	bus.Publish(NewTaskStatusChangedEvent("t1", lifecycle.StatusQueued, lifecycle.StatusPlanning))

	if got == nil {
		t.Fatal("handler did not receive the event")
	}
	changed, ok := got.(TaskStatusChangedEvent)
	if !ok {
		t.Fatalf("got %T, want TaskStatusChangedEvent", got)
	}
	if changed.From != lifecycle.StatusQueued || changed.To != lifecycle.StatusPlanning {
		t.Errorf("From/To = %s/%s", changed.From, changed.To)
	}
	if changed.Timestamp().IsZero() {
		t.Error("Timestamp() is zero")
	}
}

func TestBus_OnlyMatchingTypeReceives(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.Subscribe(TypeConsensusResolved, func(e Event) { count++ })
	bus.Publish(NewConsensusOpenedEvent("t1", "code", "majority", 3))

	if count != 0 {
		t.Errorf("handler called %d times for a different type", count)
	}
}

func TestBus_SpecificBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "all") })
	bus.Subscribe(TypeVoteReceived, func(e Event) { order = append(order, "first") })
	bus.Subscribe(TypeVoteReceived, func(e Event) { order = append(order, "second") })

	bus.Publish(NewVoteReceivedEvent("t1", "v1", true, false))

	want := []string{"first", "second", "all"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	id := bus.Subscribe(TypeTaskRegistered, func(e Event) { count++ })
	keep := bus.Subscribe(TypeTaskRegistered, func(e Event) { count += 10 })

	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe returned false for a live subscription")
	}
	if bus.Unsubscribe(id) {
		t.Error("Unsubscribe returned true twice")
	}

	bus.Publish(NewTaskRegisteredEvent("t1", "title", "r1"))
	if count != 10 {
		t.Errorf("count = %d, want 10", count)
	}
	if !bus.Unsubscribe(keep) {
		t.Error("Unsubscribe(keep) returned false")
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", bus.SubscriptionCount())
	}
}

func TestBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	var id string
	calls := 0
	id = bus.Subscribe(TypeTaskRegistered, func(e Event) {
		calls++
		bus.Unsubscribe(id)
	})
	bus.Subscribe(TypeTaskRegistered, func(e Event) { calls++ })

	bus.Publish(NewTaskRegisteredEvent("t1", "", ""))
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	bus.Publish(NewTaskRegisteredEvent("t2", "", ""))
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestBus_PanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(WithLogger(logging.NewLoggerWithWriter(&buf, "DEBUG")))

	reached := false
	bus.Subscribe(TypeExecutionFinished, func(e Event) { panic("boom") })
	bus.Subscribe(TypeExecutionFinished, func(e Event) { reached = true })

	bus.Publish(NewExecutionFinishedEvent("t1", lifecycle.RoleBuilder, "echo", true, 0, ""))

	if !reached {
		t.Error("handler after the panicking one was not called")
	}
	if !strings.Contains(buf.String(), "event handler panicked") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestBus_NilPublishIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(NewTaskRegisteredEvent("t1", "", ""))
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(TypeTaskRegistered, func(Event) {})
	bus.SubscribeAll(func(Event) {})
	bus.Clear()
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", bus.SubscriptionCount())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(NewVoteReceivedEvent("t1", "v", true, false))
		}()
	}
	wg.Wait()

	if count != 50 {
		t.Errorf("count = %d, want 50", count)
	}
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{NewTaskRegisteredEvent("t", "", ""), TypeTaskRegistered},
		{NewTaskStatusChangedEvent("t", lifecycle.StatusQueued, lifecycle.StatusPlanning), TypeTaskStatusChanged},
		{NewExecutionStartedEvent("t", lifecycle.RolePlanner, "echo"), TypeExecutionStarted},
		{NewExecutionFinishedEvent("t", lifecycle.RolePlanner, "echo", false, 0, "x"), TypeExecutionFinished},
		{NewConsensusOpenedEvent("t", "code", "unanimous", 2), TypeConsensusOpened},
		{NewVoteReceivedEvent("t", "v", true, true), TypeVoteReceived},
		{NewConsensusResolvedEvent("t", true, false, 2, "majority"), TypeConsensusResolved},
		{NewSnapshotPersistFailedEvent("t", 3, "disk full"), TypeSnapshotPersistFailed},
		{NewVoteRejectedEvent("/tmp/x.json", "bad json"), TypeVoteRejected},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.event.EventType(); got != tt.want {
				t.Errorf("EventType() = %q, want %q", got, tt.want)
			}
		})
	}
}
