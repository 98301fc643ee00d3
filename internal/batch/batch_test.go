package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_PreservesOrderAndIsolatesFailures(t *testing.T) {
	items := []int{30, 10, 20, 0}
	out := Run(context.Background(), items, 0, func(ctx context.Context, i int, delay int) (int, error) {
		time.Sleep(time.Duration(delay) * time.Millisecond)
		if i == 1 {
			return 0, errors.New("boom")
		}
		return i * 10, nil
	})

	if len(out) != len(items) {
		t.Fatalf("got %d outcomes, want %d", len(out), len(items))
	}
	for i, o := range out {
		if i == 1 {
			if o.Err == nil {
				t.Error("item 1 should carry its error")
			}
			continue
		}
		if o.Err != nil || o.Value != i*10 {
			t.Errorf("item %d: got %+v", i, o)
		}
	}
	if Failed(out) != 1 {
		t.Errorf("Failed() = %d, want 1", Failed(out))
	}
}

func TestRun_Limit(t *testing.T) {
	var inFlight, peak int32
	items := make([]struct{}, 12)
	Run(context.Background(), items, 3, func(ctx context.Context, i int, _ struct{}) (struct{}, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}, nil
	})
	if peak > 3 {
		t.Errorf("peak concurrency %d exceeds limit 3", peak)
	}
}

func TestRun_PanicBecomesError(t *testing.T) {
	out := Run(context.Background(), []int{1, 2}, 0, func(ctx context.Context, i int, v int) (int, error) {
		if v == 2 {
			panic("bad page")
		}
		return v, nil
	})
	if out[0].Err != nil || out[1].Err == nil {
		t.Errorf("unexpected outcomes %+v", out)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	out := Run(ctx, []int{1, 2, 3}, 1, func(ctx context.Context, i int, v int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return v, nil
	})
	if calls != 0 {
		t.Errorf("fn called %d times after cancellation", calls)
	}
	for _, o := range out {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("want context.Canceled, got %v", o.Err)
		}
	}
}
