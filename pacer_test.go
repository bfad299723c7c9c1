package wpclient

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestPacerSpacesIssuances(t *testing.T) {
	const interval = 50 * time.Millisecond

	var mu sync.Mutex
	var stamps []time.Time
	server := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	cfg := testConfig(server.URL)
	cfg.MinRequestInterval = interval
	e := newTestExecutor(t, cfg)

	for i := 0; i < 3; i++ {
		if _, err := e.Execute(context.Background(), NewRequest(http.MethodGet, "posts")); err != nil {
			t.Fatalf(unexpectedErrorMsg, err)
		}
	}

	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < interval-5*time.Millisecond {
			t.Errorf("Expected gap >= %v between calls %d and %d, got %v", interval, i-1, i, gap)
		}
	}
}

func TestPacerConcurrentReservations(t *testing.T) {
	const interval = 20 * time.Millisecond
	p := newPacer(interval, nil)

	var mu sync.Mutex
	var issued []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Wait(context.Background()); err != nil {
				t.Errorf(unexpectedErrorMsg, err)
				return
			}
			mu.Lock()
			issued = append(issued, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(issued, func(i, j int) bool { return issued[i].Before(issued[j]) })
	if total := issued[len(issued)-1].Sub(issued[0]); total < 4*interval-5*time.Millisecond {
		t.Errorf("Expected 5 issuances to span at least %v, got %v", 4*interval, total)
	}
}

func TestPacerReservationSlots(t *testing.T) {
	clock := newFakeClock()
	p := newPacer(time.Second, clock)

	if wait := p.reserve(); wait != 0 {
		t.Errorf("Expected first reservation immediately, got %v", wait)
	}
	if wait := p.reserve(); wait != time.Second {
		t.Errorf("Expected second reservation after 1s, got %v", wait)
	}
	if wait := p.reserve(); wait != 2*time.Second {
		t.Errorf("Expected third reservation after 2s, got %v", wait)
	}

	clock.Advance(10 * time.Second)
	if wait := p.reserve(); wait != 0 {
		t.Errorf("Expected idle pacer to admit immediately, got %v", wait)
	}
}

func TestPacerWaitCanceled(t *testing.T) {
	p := newPacer(time.Hour, nil)
	if _, err := p.Wait(context.Background()); err != nil {
		t.Fatalf(unexpectedErrorMsg, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Expected Wait to return promptly on cancellation")
	}
}

func TestPacerDisabled(t *testing.T) {
	p := newPacer(0, nil)
	for i := 0; i < 3; i++ {
		if wait, err := p.Wait(context.Background()); err != nil || wait != 0 {
			t.Errorf("Expected no wait, got %v, %v", wait, err)
		}
	}

	var nilPacer *pacer
	if _, err := nilPacer.Wait(context.Background()); err != nil {
		t.Errorf("Expected nil pacer to admit, got %v", err)
	}
}
