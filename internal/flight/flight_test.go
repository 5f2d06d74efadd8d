package flight

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestFlag(t *testing.T) {
	var f Flag
	if f.Busy() {
		t.Fatal("zero Flag is busy")
	}
	if !f.TryBegin() {
		t.Fatal("TryBegin() on idle flag = false")
	}
	if f.TryBegin() {
		t.Fatal("TryBegin() on busy flag = true")
	}
	f.End()
	if f.Busy() || !f.TryBegin() {
		t.Fatal("flag not reusable after End()")
	}
}

func TestFlagSingleWinner(t *testing.T) {
	var f Flag
	var winners atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.TryBegin() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("%d callers got the flag, want 1", winners.Load())
	}
}
