package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	var steps int
	tc.AddListener(func(_ time.Time, dt time.Duration) {
		if dt != 5*time.Millisecond {
			t.Errorf("listener dt = %v, want 5ms", dt)
		}
		steps++
	})

	done := tc.Start(context.Background(), 15*time.Millisecond)
	<-done

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if steps != 3 {
		t.Fatalf("listener called %d times, want 3", steps)
	}
}

func TestTimeControllerStopsOnCancel(t *testing.T) {
	tc := NewTimeController(time.Unix(0, 0), time.Millisecond, RealTime)
	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, 0)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("controller did not stop after cancel")
	}
}

func TestManualClockSleepAdvances(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewManualClock(start)
	if err := c.Sleep(context.Background(), 250*time.Millisecond); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if got := c.Now().Sub(start); got != 250*time.Millisecond {
		t.Fatalf("elapsed = %v, want 250ms", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestRunStopsOnStepError(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	boom := errors.New("boom")
	calls := 0

	err := Run(context.Background(), clock, func(context.Context) (time.Duration, error) {
		calls++
		if calls == 3 {
			return 0, boom
		}
		return 25 * time.Millisecond, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
	if got := len(clock.Sleeps()); got != 2 {
		t.Fatalf("sleeps = %d, want 2", got)
	}
}

func TestRunReturnsContextError(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())

	err := Run(ctx, clock, func(context.Context) (time.Duration, error) {
		cancel()
		return time.Millisecond, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}

func TestListenerAddedDuringTickWaitsForNextTick(t *testing.T) {
	tc := NewTimeController(time.Unix(0, 0), time.Millisecond, Accelerated)

	var late int
	added := false
	tc.AddListener(func(time.Time, time.Duration) {
		if !added {
			added = true
			tc.AddListener(func(time.Time, time.Duration) { late++ })
		}
	})

	<-tc.Start(context.Background(), 2*time.Millisecond)
	if late != 1 {
		t.Fatalf("late listener called %d times, want 1", late)
	}
}
