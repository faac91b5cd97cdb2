package game

import (
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// STRESS TEST SUITE: CONCURRENT ENGINE ACCESS
// Run with: go test -v -run=TestStress -race -timeout=60s ./internal/game/...
// =============================================================================

// -----------------------------------------------------------------------------
// STRESS TEST: CONCURRENT INTENTS AND READERS
// -----------------------------------------------------------------------------

func TestStress_ConcurrentIntents(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	e, err := NewEngine(EngineConfig{TickRate: 120, Sim: DefaultConfig(), Players: 2, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}

	var tickTimes []time.Duration
	var tickMu sync.Mutex
	e.SetOnTick(func(d time.Duration) {
		tickMu.Lock()
		tickTimes = append(tickTimes, d)
		tickMu.Unlock()
	})
	e.Start()

	var wg sync.WaitGroup
	var commands, errors int64

	// Simulated controllers hammering both slots
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(workerID)))
			slot := workerID%2 + 1
			for i := 0; i < 200; i++ {
				var err error
				dir := Directions[rng.Intn(4)]
				switch rng.Intn(4) {
				case 0:
					err = e.SetMove(slot, dir, true)
				case 1:
					err = e.SetMove(slot, dir, false)
				case 2:
					err = e.Rotate(slot, dir)
				case 3:
					err = e.Shoot(slot)
				}
				if err != nil {
					atomic.AddInt64(&errors, 1)
				}
				atomic.AddInt64(&commands, 1)
				if i%50 == 0 {
					time.Sleep(time.Millisecond)
				}
			}
		}(w)
	}

	// Readers standing in for the WebSocket broadcaster and renderer
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for i := 0; i < 200; i++ {
				snap := e.GetSnapshot()
				if snap.Sequence < last {
					atomic.AddInt64(&errors, 1)
				}
				last = snap.Sequence
				_ = e.GetStats()
			}
		}()
	}

	wg.Wait()
	e.Stop()

	tickMu.Lock()
	defer tickMu.Unlock()
	sort.Slice(tickTimes, func(i, j int) bool { return tickTimes[i] < tickTimes[j] })

	t.Logf("Concurrent Intents Test:")
	t.Logf("  Commands: %d", commands)
	t.Logf("  Ticks: %d", len(tickTimes))
	if n := len(tickTimes); n > 0 {
		t.Logf("  P99 Tick: %v", tickTimes[n*99/100])
	}

	if errors > 0 {
		t.Errorf("Had %d errors during concurrent access", errors)
	}
}
