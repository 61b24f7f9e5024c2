package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotLocks_MutualExclusion(t *testing.T) {
	locks := newSlotLocks()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("1:2025-10-10:FM")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestSlotLocks_EntriesReleased(t *testing.T) {
	locks := newSlotLocks()

	unlock := locks.Lock("a")
	unlock()
	unlock2 := locks.Lock("b")
	unlock2()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks, "released keys must not accumulate")
}

func TestSlotLocks_IndependentKeys(t *testing.T) {
	locks := newSlotLocks()

	unlockA := locks.Lock("a")
	defer unlockA()

	// A different key must not block.
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
}
