package usecase

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	const workers = 8
	const iterations = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				unlock := km.lock("patient_1")
				counter++
				unlock()
			}
		}()
	}
	wg.Wait()

	if counter != workers*iterations {
		t.Fatalf("counter = %d, want %d", counter, workers*iterations)
	}
}

func TestKeyedMutexIndependentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := km.lock("b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.lock("a")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Fatalf("expected empty lock table, got %d entries", len(km.locks))
	}
}
