package garden

import (
	"sync"
	"testing"
)

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("u1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if n := k.size(); n != 0 {
		t.Errorf("size() = %d after release, want 0", n)
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		k.Lock("b")()
		close(done)
	}()
	<-done // "b" must not wait for "a"
	if n := k.size(); n != 1 {
		t.Errorf("size() = %d, want 1", n)
	}
	unlockA()
	if n := k.size(); n != 0 {
		t.Errorf("size() = %d, want 0", n)
	}
}
