package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %v", timeout)
}

func statusOf(s *Scheduler, name string) JobStatus {
	for _, st := range s.Jobs() {
		if st.Name == name {
			return st
		}
	}
	return JobStatus{}
}

func TestRegister_Validation(t *testing.T) {
	s := NewScheduler()
	noop := func(ctx context.Context) error { return nil }

	if err := s.Register("a", time.Second, noop); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := s.Register("a", time.Second, noop); err == nil {
		t.Error("Expected duplicate name to be rejected")
	}
	if err := s.Register("b", 0, noop); err == nil {
		t.Error("Expected zero interval to be rejected")
	}
	if err := s.Register("c", time.Second, nil); err == nil {
		t.Error("Expected nil handler to be rejected")
	}
	if err := s.Register("", time.Second, noop); err == nil {
		t.Error("Expected empty name to be rejected")
	}

	s.Start(context.Background())
	defer s.Stop()
	if err := s.Register("d", time.Second, noop); !errors.Is(err, ErrSchedulerStarted) {
		t.Errorf("Expected ErrSchedulerStarted, got %v", err)
	}
}

func TestTrigger_OverlappingTickIsDropped(t *testing.T) {
	var active, maxActive, calls atomic.Int32
	release := make(chan struct{})

	s := NewScheduler()
	err := s.Register("slow", time.Hour, func(ctx context.Context) error {
		calls.Add(1)
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		<-release
		active.Add(-1)
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	s.Start(context.Background())
	defer s.Stop()

	started, err := s.Trigger("slow")
	if err != nil || !started {
		t.Fatalf("Expected first trigger to start, got %v, %v", started, err)
	}
	waitFor(t, time.Second, func() bool { return active.Load() == 1 })

	started, err = s.Trigger("slow")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if started {
		t.Error("Expected second trigger to be dropped while running")
	}
	if st := statusOf(s, "slow"); st.State != JobRunning || st.SkippedTicks != 1 {
		t.Errorf("Unexpected status while running: %+v", st)
	}

	close(release)
	waitFor(t, time.Second, func() bool { return statusOf(s, "slow").State == JobIdle })

	if calls.Load() != 1 {
		t.Errorf("Expected exactly 1 execution, got %d", calls.Load())
	}
	if maxActive.Load() != 1 {
		t.Errorf("Expected at most 1 concurrent execution, got %d", maxActive.Load())
	}
}

func TestScheduler_FailingJobsAreIsolated(t *testing.T) {
	var good, bad, panicky atomic.Int32

	s := NewScheduler()
	mustRegister(t, s, "good", 10*time.Millisecond, func(ctx context.Context) error {
		good.Add(1)
		return nil
	})
	mustRegister(t, s, "bad", 10*time.Millisecond, func(ctx context.Context) error {
		bad.Add(1)
		return errors.New("feed fetch failed")
	})
	mustRegister(t, s, "panicky", 10*time.Millisecond, func(ctx context.Context) error {
		panicky.Add(1)
		panic("boom")
	})

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, 2*time.Second, func() bool {
		return good.Load() >= 3 && bad.Load() >= 3 && panicky.Load() >= 3
	})

	if st := statusOf(s, "bad"); st.LastError == "" {
		t.Error("Expected last error to be recorded for failing job")
	}
	if st := statusOf(s, "panicky"); st.LastError != "panic: boom" {
		t.Errorf("Expected panic to be recorded, got %q", st.LastError)
	}
}

func TestScheduler_SlowJobDoesNotBlockOthers(t *testing.T) {
	var fast atomic.Int32
	release := make(chan struct{})

	s := NewScheduler(WithRunOnStart(true))
	mustRegister(t, s, "slow", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	mustRegister(t, s, "fast", 10*time.Millisecond, func(ctx context.Context) error {
		fast.Add(1)
		return nil
	})

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, 2*time.Second, func() bool { return fast.Load() >= 5 })
	waitFor(t, 2*time.Second, func() bool { return statusOf(s, "slow").SkippedTicks >= 1 })

	if st := statusOf(s, "slow"); st.Firings != 1 {
		t.Errorf("Expected slow job to have fired once, got %d", st.Firings)
	}
	close(release)
}

func TestScheduler_StopCancelsInFlight(t *testing.T) {
	var cancelled atomic.Bool
	running := make(chan struct{})

	s := NewScheduler()
	mustRegister(t, s, "blocking", time.Hour, func(ctx context.Context) error {
		close(running)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})
	s.Start(context.Background())

	if _, err := s.Trigger("blocking"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	<-running
	s.Stop()

	if !cancelled.Load() {
		t.Error("Expected Stop to wait for the cancelled firing")
	}
	if started, _ := s.Trigger("blocking"); started {
		t.Error("Expected no firing after Stop")
	}
}

func TestScheduler_NoFiringOutlivesStop(t *testing.T) {
	var calls, active atomic.Int32

	s := NewScheduler(WithRunOnStart(true))
	mustRegister(t, s, "busy", time.Millisecond, func(ctx context.Context) error {
		active.Add(1)
		defer active.Add(-1)
		calls.Add(1)
		return nil
	})
	s.Start(context.Background())

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			for {
				select {
				case <-done:
					return
				default:
					s.Trigger("busy")
				}
			}
		}()
	}
	waitFor(t, time.Second, func() bool { return calls.Load() > 10 })

	s.Stop()
	if n := active.Load(); n != 0 {
		t.Errorf("Expected no firing running after Stop, got %d", n)
	}
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	close(done)

	if got := calls.Load(); got != after {
		t.Errorf("Expected no firing after Stop, got %d more", got-after)
	}
	if _, err := s.Trigger("busy"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning after Stop, got %v", err)
	}
}

func TestTrigger_BeforeStart(t *testing.T) {
	s := NewScheduler()
	mustRegister(t, s, "idle", time.Hour, func(ctx context.Context) error { return nil })

	if started, err := s.Trigger("idle"); started || !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning, got %v %v", started, err)
	}
}

func TestTrigger_UnknownJob(t *testing.T) {
	s := NewScheduler()
	s.Start(context.Background())
	defer s.Stop()

	if _, err := s.Trigger("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
}

func mustRegister(t *testing.T, s *Scheduler, name string, interval time.Duration, h Handler) {
	t.Helper()
	if err := s.Register(name, interval, h); err != nil {
		t.Fatalf("Register %s: %v", name, err)
	}
}
