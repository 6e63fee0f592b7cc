package server

import (
	"sync"
	"testing"
	"time"
)

func TestVersionedCellNewerWins(t *testing.T) {
	var cell VersionedCell[string]

	if !cell.Update(1, "one") {
		t.Fatal("first update must succeed")
	}
	if !cell.Update(3, "three") {
		t.Fatal("newer update must succeed")
	}
	if cell.Update(2, "two") {
		t.Error("older completion must be discarded")
	}

	version, value, ok := cell.Get()
	if !ok || version != 3 || value != "three" {
		t.Errorf("expected (3, three), got (%d, %s, %v)", version, value, ok)
	}
}

func TestVersionedCellEmpty(t *testing.T) {
	var cell VersionedCell[int]
	if _, _, ok := cell.Get(); ok {
		t.Error("empty cell must report not ok")
	}
}

func TestVersionedCellConcurrent(t *testing.T) {
	var cell VersionedCell[int]
	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			cell.Update(v, v)
		}(i)
	}
	wg.Wait()

	version, value, ok := cell.Get()
	if !ok || version != 100 || value != 100 {
		t.Errorf("expected the highest version to win, got (%d, %d)", version, value)
	}
}

func TestDebouncerAbandonsSuperseded(t *testing.T) {
	var deb Debouncer
	var mu sync.Mutex
	var ran []int

	record := func(v int) func() {
		return func() {
			mu.Lock()
			ran = append(ran, v)
			mu.Unlock()
		}
	}

	deb.Schedule(1, 30*time.Millisecond, record(1))
	deb.Schedule(2, 30*time.Millisecond, record(2))
	deb.Schedule(3, 30*time.Millisecond, record(3))

	time.Sleep(120 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 1 || ran[0] != 3 {
		t.Errorf("only the latest version may run, got %v", ran)
	}
}

func TestDebouncerRunsAfterDelay(t *testing.T) {
	var deb Debouncer
	done := make(chan struct{})
	deb.Schedule(1, 10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("debounced calculation never ran")
	}
}
