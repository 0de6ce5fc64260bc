package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"HatterAgent/internal/agent"
	xerrors "HatterAgent/internal/errors"
)

// fakeAction 记录并发度，并按消息内容返回成功或失败。
type fakeAction struct {
	name    string
	running atomic.Int32
	maxSeen atomic.Int32
	handled atomic.Int32
	latency time.Duration
}

func (f *fakeAction) Definition() agent.Definition {
	return agent.Definition{Name: f.name}
}

func (f *fakeAction) Validate(context.Context) bool { return true }

func (f *fakeAction) Handle(_ context.Context, state *agent.State, cb agent.Callback) bool {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(f.latency)
	f.handled.Add(1)

	text := state.RecentMessages[len(state.RecentMessages)-1].Text
	if text == "fail" {
		cb(agent.Reply{Text: "Error: nope", Content: map[string]any{"success": false, "error": "nope"}})
		return false
	}
	cb(agent.Reply{Text: "done " + text, Content: map[string]any{"success": true}})
	return true
}

type fakeActions map[string]agent.Action

func (f fakeActions) Lookup(name string) (agent.Action, bool) {
	a, ok := f[name]
	return a, ok
}

func startProcessor(t *testing.T, actions ActionSet) (*Service, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	store := NewMemoryStore()
	queue := NewMemoryQueue(256)
	service := NewService(store, queue, actions)
	processor := NewProcessor(actions, store, queue)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()
	stop := func() {
		cancel()
		wg.Wait()
	}
	t.Cleanup(stop)
	return service, stop
}

func TestProcessorSerialisesTurns(t *testing.T) {
	action := &fakeAction{name: "MINT_HAT", latency: 2 * time.Millisecond}
	service, _ := startProcessor(t, fakeActions{"MINT_HAT": action})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const total = 50
	ids := make([]string, 0, total)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			turn, err := service.Submit(ctx, SubmitRequest{
				Action:   "MINT_HAT",
				Messages: []agent.Message{{User: "alice", Text: fmt.Sprintf("turn-%d", i)}},
			})
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			mu.Lock()
			ids = append(ids, turn.ID)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		turn, err := service.WaitUntilCompleted(ctx, id, 5*time.Millisecond)
		if err != nil {
			t.Fatalf("wait %s: %v", id, err)
		}
		if turn.Status != StatusSucceeded {
			t.Fatalf("unexpected status %s", turn.Status)
		}
	}
	if got := action.handled.Load(); got != total {
		t.Fatalf("expected %d handled turns, got %d", total, got)
	}
	if got := action.maxSeen.Load(); got != 1 {
		t.Fatalf("expected turns to run one at a time, saw %d concurrent", got)
	}
}

func TestProcessorRecordsFailureReply(t *testing.T) {
	service, _ := startProcessor(t, fakeActions{"REVOKE_HAT": &fakeAction{name: "REVOKE_HAT"}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	turn, err := service.Run(ctx, SubmitRequest{Action: "REVOKE_HAT", Messages: []agent.Message{{Text: "fail"}}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if turn.Status != StatusFailed || turn.LastError != "nope" {
		t.Fatalf("unexpected turn: %+v", turn)
	}
	if turn.Reply == nil || turn.Reply.Text != "Error: nope" {
		t.Fatalf("unexpected reply: %+v", turn.Reply)
	}
}

func TestSubmitValidation(t *testing.T) {
	service := NewService(NewMemoryStore(), NewMemoryQueue(1), fakeActions{"HAT_BALANCE": &fakeAction{name: "HAT_BALANCE"}})
	ctx := context.Background()
	msgs := []agent.Message{{Text: "hi"}}

	cases := []struct {
		name string
		req  SubmitRequest
		code xerrors.Code
	}{
		{name: "missing action", req: SubmitRequest{Messages: msgs}, code: CodeTurnValidation},
		{name: "missing messages", req: SubmitRequest{Action: "HAT_BALANCE"}, code: CodeTurnValidation},
		{name: "unknown action", req: SubmitRequest{Action: "BURN_HAT", Messages: msgs}, code: CodeUnknownAction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Submit(ctx, tc.req)
			if xerrors.CodeOf(err) != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestSubmitIsIdempotentByID(t *testing.T) {
	queue := NewMemoryQueue(4)
	service := NewService(NewMemoryStore(), queue, nil)
	ctx := context.Background()
	req := SubmitRequest{ID: "fixed", Action: "HAT_BALANCE", Messages: []agent.Message{{Text: "hi"}}}

	first, err := service.Submit(ctx, req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := service.Submit(ctx, req)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same turn, got %s and %s", first.ID, second.ID)
	}
	if len(queue.ch) != 1 {
		t.Fatalf("expected one queued turn, got %d", len(queue.ch))
	}
}

func TestProcessorMarksUnknownAction(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, newTurn("x", "BURN_HAT")); err != nil {
		t.Fatalf("create: %v", err)
	}
	p := NewProcessor(fakeActions{}, store, NewMemoryQueue(1))
	if err := p.handle(ctx, "x"); xerrors.CodeOf(err) != CodeUnknownAction {
		t.Fatalf("expected unknown action, got %v", err)
	}
	turn, _ := store.Get(ctx, "x")
	if turn.Status != StatusFailed || turn.ErrorCode != string(CodeUnknownAction) {
		t.Fatalf("unexpected turn: %+v", turn)
	}
	if err := p.handle(ctx, "missing"); err != nil {
		t.Fatalf("missing turns are skipped, got %v", err)
	}
}

func TestProcessorLeavesForeignTurnsUntouched(t *testing.T) {
	ctx := context.Background()
	action := &fakeAction{name: "MINT_HAT"}
	actions := fakeActions{"MINT_HAT": action}

	ownerStore := NewMemoryStore()
	ownerQueue := NewMemoryQueue(1)
	owner := NewService(ownerStore, ownerQueue, actions)
	turn, err := owner.Submit(ctx, SubmitRequest{Action: "MINT_HAT", Messages: []agent.Message{{Text: "mint"}}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	other := NewProcessor(actions, NewMemoryStore(), NewMemoryQueue(1))
	if err := other.handle(ctx, turn.ID); err != nil {
		t.Fatalf("foreign turns are skipped, got %v", err)
	}
	if action.handled.Load() != 0 {
		t.Fatal("a processor must not run a turn it does not store")
	}
	if got, _ := owner.Get(ctx, turn.ID); got.Status != StatusPending {
		t.Fatalf("owner turn changed to %s", got.Status)
	}

	if err := NewProcessor(actions, ownerStore, ownerQueue).handle(ctx, turn.ID); err != nil {
		t.Fatalf("owner handle: %v", err)
	}
	if got, _ := owner.Get(ctx, turn.ID); got.Status != StatusSucceeded {
		t.Fatalf("expected owner to complete the turn, got %s", got.Status)
	}
}

func TestRunReturnsInFlightTurnWhenWaitEnds(t *testing.T) {
	action := &fakeAction{name: "MINT_HAT", latency: 150 * time.Millisecond}
	service, _ := startProcessor(t, fakeActions{"MINT_HAT": action})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	turn, err := service.Run(ctx, SubmitRequest{Action: "MINT_HAT", Messages: []agent.Message{{Text: "mint"}}})
	if err != nil {
		t.Fatalf("an expired wait must not be reported as a failure: %v", err)
	}
	if turn.Done() || turn.ID == "" {
		t.Fatalf("expected an in-flight turn, got %+v", turn)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	done, err := service.WaitUntilCompleted(waitCtx, turn.ID, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusSucceeded || action.handled.Load() != 1 {
		t.Fatalf("turn must finish exactly once, got %s after %d runs", done.Status, action.handled.Load())
	}
}

func TestWaitUntilCompletedTimeout(t *testing.T) {
	store := NewMemoryStore()
	service := NewService(store, NewMemoryQueue(1), nil)
	if err := store.Create(context.Background(), newTurn("slow", "MINT_HAT")); err != nil {
		t.Fatalf("create: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := service.WaitUntilCompleted(ctx, "slow", time.Millisecond); xerrors.CodeOf(err) != xerrors.CodeTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestNewQueueDrivers(t *testing.T) {
	q, err := NewQueue(QueueConfig{Driver: "memory", Buffer: 2})
	if err != nil {
		t.Fatalf("memory queue: %v", err)
	}
	_ = q.Close()
	if _, err := NewQueue(QueueConfig{Driver: "kafka"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
