package executor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/lifecycle"
	"github.com/Iron-Ham/quorum/internal/logging"
)

// stubAdapter is a configurable Adapter for tests.
type stubAdapter struct {
	id        string
	available bool
	invoke    func(ctx context.Context, req Request) (Output, error)
	calls     atomic.Int32
}

func (s *stubAdapter) ID() string      { return s.id }
func (s *stubAdapter) Available() bool { return s.available }

func (s *stubAdapter) Invoke(ctx context.Context, req Request) (Output, error) {
	s.calls.Add(1)
	if s.invoke == nil {
		return Output{Text: s.id + ":" + req.TaskID}, nil
	}
	return s.invoke(ctx, req)
}

func ok(id string) *stubAdapter { return &stubAdapter{id: id, available: true} }

func req(taskID string) Request {
	return Request{TaskID: taskID, Role: lifecycle.RoleBuilder, Title: "title"}
}

func TestClampConcurrency(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-10, MinConcurrency},
		{0, MinConcurrency},
		{1, 1},
		{4, 4},
		{32, 32},
		{33, MaxConcurrency},
		{1 << 20, MaxConcurrency},
	}
	for _, tt := range tests {
		if got := ClampConcurrency(tt.in); got != tt.want {
			t.Errorf("ClampConcurrency(%d) = %d, want %d", tt.in, got, tt.want)
		}
		if got := NewPool(tt.in, []Adapter{ok("a")}).Limit(); got != tt.want {
			t.Errorf("NewPool(%d).Limit() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestExecute_Success(t *testing.T) {
	p := NewPool(2, []Adapter{ok("echo")})
	res, err := p.Execute(context.Background(), req("t1"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Success || res.Output != "echo:t1" || res.AdapterID != "echo" {
		t.Errorf("Result = %+v", res)
	}
	if res.Role != lifecycle.RoleBuilder || res.TaskID != "t1" {
		t.Errorf("Result identity = %s/%s", res.TaskID, res.Role)
	}
	if p.InFlight() != 0 {
		t.Errorf("InFlight() = %d after return", p.InFlight())
	}
}

func TestExecute_AdapterSelection(t *testing.T) {
	claude := &stubAdapter{id: "claude", available: false}
	codex := ok("codex")
	echo := ok("echo")

	tests := []struct {
		name     string
		opts     []Option
		override string
		want     string
		wantErr  error
	}{
		{"first available in given order", nil, "", "codex", nil},
		{"configured order", []Option{WithOrder("echo", "codex")}, "", "echo", nil},
		{"order skips unknown ids", []Option{WithOrder("gemini", "codex")}, "", "codex", nil},
		{"override", nil, "echo", "echo", nil},
		{"override unknown", nil, "gemini", "", errors.ErrUnknownAdapter},
		{"override unavailable", nil, "claude", "", errors.ErrNoAdapter},
		{"nothing available", []Option{WithOrder("claude")}, "", "", errors.ErrNoAdapter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(1, []Adapter{claude, codex, echo}, tt.opts...)
			r := req("t1")
			r.AdapterID = tt.override
			res, err := p.Execute(context.Background(), r)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if res.Success {
					t.Error("Success = true on selection failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if res.AdapterID != tt.want {
				t.Errorf("AdapterID = %q, want %q", res.AdapterID, tt.want)
			}
		})
	}
	if claude.calls.Load() != 0 {
		t.Error("unavailable adapter was invoked")
	}
}

func TestExecute_AdapterFailure(t *testing.T) {
	boom := fmt.Errorf("exit status 2")
	a := &stubAdapter{id: "claude", available: true, invoke: func(context.Context, Request) (Output, error) {
		return Output{Text: "partial"}, boom
	}}
	p := NewPool(1, []Adapter{a})

	res, err := p.Execute(context.Background(), req("t1"))
	if !errors.Is(err, errors.ErrAdapterFailed) {
		t.Fatalf("err = %v, want ErrAdapterFailed", err)
	}
	if !errors.Is(err, boom) {
		t.Error("adapter cause not wrapped")
	}
	var execErr *errors.ExecutionError
	if !errors.As(err, &execErr) || execErr.AdapterID != "claude" || execErr.Role != "builder" {
		t.Errorf("err = %#v", err)
	}
	if res.Success || res.Err == nil || res.Output != "partial" {
		t.Errorf("Result = %+v", res)
	}

	// The permit must be back: a second call on a pool of one must not block.
	done := make(chan struct{})
	go func() {
		_, _ = p.Execute(context.Background(), req("t2"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("permit leaked after adapter failure")
	}
}

func TestExecute_PanicIsContained(t *testing.T) {
	a := &stubAdapter{id: "x", available: true, invoke: func(context.Context, Request) (Output, error) {
		panic("adapter bug")
	}}
	p := NewPool(1, []Adapter{a})

	for range 3 {
		res, err := p.Execute(context.Background(), req("t1"))
		if !errors.Is(err, errors.ErrAdapterFailed) || res.Success {
			t.Fatalf("Execute() = %+v, %v", res, err)
		}
	}
	if s := p.Stats(); s.Panicked != 3 || s.Failed != 3 || s.InFlight != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestExecute_CancelWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	a := &stubAdapter{id: "slow", available: true, invoke: func(context.Context, Request) (Output, error) {
		<-release
		return Output{}, nil
	}}
	p := NewPool(1, []Adapter{a})

	go func() { _, _ = p.Execute(context.Background(), req("holder")) }()
	waitFor(t, func() bool { return p.InFlight() == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Execute(ctx, req("waiter"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if a.calls.Load() != 1 {
		t.Errorf("adapter calls = %d, want 1", a.calls.Load())
	}

	close(release)
	waitFor(t, func() bool { return p.InFlight() == 0 })
	if _, err := p.Execute(context.Background(), req("after")); err != nil {
		t.Errorf("Execute() after cancel error = %v", err)
	}
}

func TestExecute_CancelDuringInvocation(t *testing.T) {
	a := &stubAdapter{id: "ctx", available: true, invoke: func(ctx context.Context, _ Request) (Output, error) {
		<-ctx.Done()
		return Output{}, ctx.Err()
	}}
	p := NewPool(1, []Adapter{a})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	res, err := p.Execute(ctx, req("t1"))
	if err == nil || res.Success {
		t.Fatalf("Execute() = %+v, %v; want failure", res, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want wrapped context.Canceled", err)
	}
	if errors.IsRetryable(err) {
		t.Error("canceled execution reported retryable")
	}

	if _, err := p.Execute(context.Background(), Request{TaskID: "t2", AdapterID: "echo"}); !errors.Is(err, errors.ErrUnknownAdapter) {
		t.Errorf("err = %v", err)
	}
	if p.InFlight() != 0 {
		t.Error("permit or in-flight counter leaked")
	}
}

func TestExecute_BoundsConcurrency(t *testing.T) {
	const limit = 3
	const requests = 25

	var current, peak atomic.Int32
	a := &stubAdapter{id: "w", available: true, invoke: func(context.Context, Request) (Output, error) {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return Output{Text: "ok"}, nil
	}}
	p := NewPool(limit, []Adapter{a})

	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Execute(context.Background(), req(fmt.Sprintf("t%d", i)))
			if err != nil {
				t.Errorf("Execute() error = %v", err)
				return
			}
			if res.Success {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > limit {
		t.Errorf("peak concurrency = %d, want <= %d", got, limit)
	}
	if successes.Load() != requests {
		t.Errorf("successes = %d, want %d", successes.Load(), requests)
	}
	if s := p.Stats(); s.Started != requests || s.Succeeded != requests {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestExecute_Events(t *testing.T) {
	bus := event.NewBus()
	var mu sync.Mutex
	var finished []event.ExecutionFinishedEvent
	started := 0
	bus.Subscribe(event.TypeExecutionStarted, func(event.Event) { mu.Lock(); started++; mu.Unlock() })
	bus.Subscribe(event.TypeExecutionFinished, func(e event.Event) {
		mu.Lock()
		finished = append(finished, e.(event.ExecutionFinishedEvent))
		mu.Unlock()
	})

	fail := &stubAdapter{id: "fail", available: true, invoke: func(context.Context, Request) (Output, error) {
		return Output{}, fmt.Errorf("nope")
	}}
	p := NewPool(2, []Adapter{ok("good"), fail}, WithEventBus(bus))
	_, _ = p.Execute(context.Background(), req("t1"))
	r := req("t2")
	r.AdapterID = "fail"
	_, _ = p.Execute(context.Background(), r)

	if started != 2 || len(finished) != 2 {
		t.Fatalf("started=%d finished=%d, want 2/2", started, len(finished))
	}
	if !finished[0].Success || finished[1].Success || finished[1].Error != "nope" {
		t.Errorf("finished = %+v", finished)
	}
}

func TestNewPool_NilAdapterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewPool(1, []Adapter{nil})
}

func TestSelect(t *testing.T) {
	p := NewPool(1, []Adapter{&stubAdapter{id: "a"}, ok("b")})
	id, err := p.Select("")
	if err != nil || id != "b" {
		t.Errorf("Select() = %q, %v", id, err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestExecute_FailureLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"adapter error", fmt.Errorf("exit status 1"), `"level":"ERROR"`},
		{"canceled", context.Canceled, `"level":"INFO"`},
		{"deadline", context.DeadlineExceeded, `"level":"WARN"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAdapter{id: "fail", available: true, invoke: func(context.Context, Request) (Output, error) {
				return Output{}, tt.err
			}}
			var buf bytes.Buffer
			p := NewPool(1, []Adapter{a}, WithLogger(logging.NewLoggerWithWriter(&buf, logging.LevelDebug)))

			_, err := p.Execute(context.Background(), req("t1"))
			if !errors.Is(err, errors.ErrAdapterFailed) {
				t.Fatalf("err = %v, want ErrAdapterFailed", err)
			}
			var line string
			for _, l := range strings.Split(buf.String(), "\n") {
				if strings.Contains(l, "execution failed") {
					line = l
				}
			}
			if !strings.Contains(line, tt.level) {
				t.Errorf("log line = %q, want %s", line, tt.level)
			}
		})
	}
}

func TestExecute_PermitTimeoutIsTagged(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	a := &stubAdapter{id: "slow", available: true, invoke: func(context.Context, Request) (Output, error) {
		<-release
		return Output{}, nil
	}}
	p := NewPool(1, []Adapter{a})
	go func() { _, _ = p.Execute(context.Background(), req("holder")) }()
	waitFor(t, func() bool { return p.InFlight() == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Execute(ctx, req("waiter"))
	if !errors.Is(err, errors.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want ErrTimeout wrapping DeadlineExceeded", err)
	}
}
