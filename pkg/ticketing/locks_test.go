package ticketing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedLocksSerialisesSameKey(t *testing.T) {
	locks := newKeyedLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("c1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)

	// The entry is released once no one holds it.
	locks.mu.Lock()
	defer locks.mu.Unlock()
	require.Empty(t, locks.entries)
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	locks := newKeyedLocks()

	unlockA := locks.lock("a")

	// A different key must not block.
	done := make(chan struct{})
	go func() {
		unlockB := locks.lock("b")
		unlockB()
		close(done)
	}()

	<-done
	unlockA()
}
