package collector

import (
	"context"
	"testing"
	"time"
)

func TestThrottleSpacesRequestsPerSource(t *testing.T) {
	th := NewSourceThrottle()
	src := Source{Name: "coindesk", MinInterval: 50 * time.Millisecond}
	ctx := context.Background()

	if err := th.Wait(ctx, src); err != nil {
		t.Fatalf("first Wait error: %v", err)
	}
	start := time.Now()
	if err := th.Wait(ctx, src); err != nil {
		t.Fatalf("second Wait error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("second request not spaced, waited only %v", elapsed)
	}

	// A different source has its own limiter and is not delayed.
	start = time.Now()
	if err := th.Wait(ctx, Source{Name: "theblock", MinInterval: time.Hour}); err != nil {
		t.Fatalf("Wait error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Fatalf("independent source should pass immediately, waited %v", elapsed)
	}
}

func TestThrottleZeroIntervalNeverBlocks(t *testing.T) {
	th := NewSourceThrottle()
	src := Source{Name: "messari"}
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := th.Wait(ctx, src); err != nil {
			t.Fatalf("Wait error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("unthrottled source blocked for %v", elapsed)
	}
}

func TestThrottleRespectsContextCancellation(t *testing.T) {
	th := NewSourceThrottle()
	src := Source{Name: "slow", MinInterval: time.Hour}

	if err := th.Wait(context.Background(), src); err != nil {
		t.Fatalf("first Wait error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := th.Wait(ctx, src); err == nil {
		t.Fatalf("expected an error once the context expires")
	}
}
