package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errStoreDown = errors.New("store down")

func testConfig() Config {
	return Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             20 * time.Millisecond,
		MaxRequestsHalfOpen: 1,
	}
}

func trip(cb *CircuitBreaker) {
	for i := 0; i < testConfig().FailureThreshold; i++ {
		_ = cb.Execute(context.Background(), func() error { return errStoreDown })
	}
}

func TestExecute_PassesThroughWhileClosed(t *testing.T) {
	cb := New(testConfig())

	calls := 0
	err := cb.Execute(context.Background(), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got: %d", calls)
	}
	if got := cb.Stats().State; got != StateClosed {
		t.Errorf("Expected closed, got: %v", got)
	}
}

func TestExecute_WrapsFailure(t *testing.T) {
	cb := New(testConfig())

	err := cb.Execute(context.Background(), func() error { return errStoreDown })
	if !errors.Is(err, errStoreDown) {
		t.Errorf("Expected wrapped cause, got: %v", err)
	}
	if got := cb.Stats().FailureCount; got != 1 {
		t.Errorf("Expected 1 recorded failure, got: %d", got)
	}
}

func TestExecute_OpensAtThresholdAndSheds(t *testing.T) {
	cb := New(testConfig())
	trip(cb)

	if got := cb.Stats().State; got != StateOpen {
		t.Fatalf("Expected open after threshold, got: %v", got)
	}

	calls := 0
	err := cb.Execute(context.Background(), func() error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Expected ErrOpen, got: %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected call to be shed, got %d calls", calls)
	}
}

func TestExecute_SuccessResetsFailureStreak(t *testing.T) {
	cb := New(testConfig())

	_ = cb.Execute(context.Background(), func() error { return errStoreDown })
	_ = cb.Execute(context.Background(), func() error { return errStoreDown })
	_ = cb.Execute(context.Background(), func() error { return nil })
	_ = cb.Execute(context.Background(), func() error { return errStoreDown })

	// The streak broke, so the threshold was never reached.
	if got := cb.Stats().State; got != StateClosed {
		t.Errorf("Expected closed, got: %v", got)
	}
}

func TestExecute_HalfOpenTrialClosesAfterSuccesses(t *testing.T) {
	cfg := testConfig()
	cfg.SuccessThreshold = 2
	cfg.MaxRequestsHalfOpen = 2
	cb := New(cfg)
	trip(cb)

	time.Sleep(cfg.Timeout + 5*time.Millisecond)

	for i := 0; i < cfg.SuccessThreshold; i++ {
		if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("Expected trial call %d to pass, got: %v", i, err)
		}
	}
	if got := cb.Stats().State; got != StateClosed {
		t.Errorf("Expected closed after successful trial calls, got: %v", got)
	}
}

func TestExecute_HalfOpenTrialFailureReopens(t *testing.T) {
	cfg := testConfig()
	cb := New(cfg)
	trip(cb)

	time.Sleep(cfg.Timeout + 5*time.Millisecond)

	err := cb.Execute(context.Background(), func() error { return errStoreDown })
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("Expected trial call to run and fail, got: %v", err)
	}
	if got := cb.Stats().State; got != StateOpen {
		t.Errorf("Expected reopened, got: %v", got)
	}

	// And the fresh open period sheds again.
	err = cb.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Expected ErrOpen, got: %v", err)
	}
}

func TestExecute_HalfOpenBoundsTrialCalls(t *testing.T) {
	cfg := testConfig()
	cfg.SuccessThreshold = 5 // stay half-open across trial calls
	cfg.MaxRequestsHalfOpen = 1
	cb := New(cfg)
	trip(cb)

	time.Sleep(cfg.Timeout + 5*time.Millisecond)

	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Expected first trial call to pass, got: %v", err)
	}
	err := cb.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Expected second trial call to be shed, got: %v", err)
	}
}

func TestOnStateChange_ReportsTransitions(t *testing.T) {
	cb := New(testConfig())

	transitions := make(chan [2]State, 4)
	cb.OnStateChange(func(from, to State) {
		transitions <- [2]State{from, to}
	})
	trip(cb)

	select {
	case tr := <-transitions:
		if tr[0] != StateClosed || tr[1] != StateOpen {
			t.Errorf("Expected closed->open, got: %v -> %v", tr[0], tr[1])
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a transition callback")
	}
}

func TestStateString(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
