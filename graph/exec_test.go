package graph

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecutor(t *testing.T) {
	ctx := context.Background()
	fastRetry := &RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	t.Run("transient failure retries until success", func(t *testing.T) {
		attempts := 0
		node := NodeFunc[testState]{
			NodeID: "flaky",
			Fn: func(_ context.Context, s testState) NodeResult[testState] {
				attempts++
				if attempts < 3 {
					return NodeResult[testState]{Err: Transient(errors.New("blip"))}
				}
				s.N = 7
				return NodeResult[testState]{State: s}
			},
		}
		x := &executor[testState]{retry: fastRetry}
		result, err := x.execute(ctx, 1, node, testState{})
		if err != nil {
			t.Fatalf("execute() error = %v", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
		if result.State.N != 7 {
			t.Errorf("N = %d, want 7", result.State.N)
		}
	})

	t.Run("each retry sees the pre-execution snapshot", func(t *testing.T) {
		var seen []int
		node := NodeFunc[testState]{
			NodeID: "mutator",
			Fn: func(_ context.Context, s testState) NodeResult[testState] {
				seen = append(seen, s.N)
				s.N += 100
				if len(seen) == 1 {
					return NodeResult[testState]{State: s, Err: Transient(errors.New("blip"))}
				}
				return NodeResult[testState]{State: s}
			},
		}
		x := &executor[testState]{retry: fastRetry}
		if _, err := x.execute(ctx, 1, node, testState{N: 5}); err != nil {
			t.Fatalf("execute() error = %v", err)
		}
		if len(seen) != 2 || seen[0] != 5 || seen[1] != 5 {
			t.Errorf("states seen = %v, want [5 5] (no mutation leak between attempts)", seen)
		}
	})

	t.Run("permanent failure is not retried", func(t *testing.T) {
		attempts := 0
		node := NodeFunc[testState]{
			NodeID: "broken",
			Fn: func(_ context.Context, _ testState) NodeResult[testState] {
				attempts++
				return NodeResult[testState]{Err: errors.New("bad input")}
			},
		}
		x := &executor[testState]{retry: fastRetry}
		_, err := x.execute(ctx, 1, node, testState{})
		if err == nil {
			t.Fatal("execute() error = nil, want failure")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
		var ne *NodeError
		if !errors.As(err, &ne) {
			t.Fatalf("error = %T, want *NodeError", err)
		}
		if ne.Attempts != 1 {
			t.Errorf("NodeError.Attempts = %d, want 1", ne.Attempts)
		}
	})

	t.Run("exhausted retries surface the last error", func(t *testing.T) {
		node := NodeFunc[testState]{
			NodeID: "always",
			Fn: func(_ context.Context, _ testState) NodeResult[testState] {
				return NodeResult[testState]{Err: Transient(errors.New("still down"))}
			},
		}
		x := &executor[testState]{retry: fastRetry}
		_, err := x.execute(ctx, 1, node, testState{})
		var ne *NodeError
		if !errors.As(err, &ne) {
			t.Fatalf("error = %T, want *NodeError", err)
		}
		if ne.Attempts != 3 {
			t.Errorf("Attempts = %d, want 3", ne.Attempts)
		}
	})

	t.Run("stuck node times out as transient", func(t *testing.T) {
		node := NodeFunc[testState]{
			NodeID: "stuck",
			Fn: func(ctx context.Context, s testState) NodeResult[testState] {
				<-ctx.Done()
				time.Sleep(time.Second)
				return NodeResult[testState]{State: s}
			},
		}
		x := &executor[testState]{timeout: 10 * time.Millisecond}
		start := time.Now()
		_, err := x.execute(ctx, 1, node, testState{})
		if err == nil {
			t.Fatal("execute() error = nil, want timeout")
		}
		if !IsTransient(err) {
			t.Errorf("timeout error not transient: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
			t.Errorf("executor waited %s for stuck node, want prompt abandon", elapsed)
		}
	})

	t.Run("panicking node fails instead of crashing", func(t *testing.T) {
		node := NodeFunc[testState]{
			NodeID: "panicky",
			Fn: func(_ context.Context, _ testState) NodeResult[testState] {
				panic("boom")
			},
		}
		x := &executor[testState]{}
		_, err := x.execute(ctx, 1, node, testState{})
		if err == nil {
			t.Fatal("execute() error = nil, want panic converted to error")
		}
	})
}
