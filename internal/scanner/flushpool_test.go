package scanner

import (
	"sync"
	"testing"
	"time"
)

func TestClampFlushWorkers(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, minFlushWorkers},
		{1, minFlushWorkers},
		{minFlushWorkers, minFlushWorkers},
		{4, 4},
		{maxFlushWorkers, maxFlushWorkers},
		{64, maxFlushWorkers},
	}
	for _, c := range cases {
		if got := clampFlushWorkers(c.in); got != c.want {
			t.Errorf("clampFlushWorkers(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFlushPool_RunsSubmittedJobs(t *testing.T) {
	// Five workers give a ten-slot job queue, so submit drops none of the
	// ten jobs below however slowly the workers start.
	p := newFlushPool(5)
	defer p.stop()

	var mu sync.Mutex
	ran := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		p.submit(func() {
			defer wg.Done()
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for submitted jobs to run")
	}

	mu.Lock()
	defer mu.Unlock()
	if ran != 10 {
		t.Errorf("ran = %d, want 10", ran)
	}
}

func TestFlushPool_StopStopsWorkers(t *testing.T) {
	p := newFlushPool(1)
	p.stop()

	// A job submitted after stop may or may not be picked up depending on
	// scheduling, but submit itself must never block or panic.
	done := make(chan struct{})
	go func() {
		p.submit(func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submit blocked after stop")
	}
}
