package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedLock_SerializesSameKey(t *testing.T) {
	l := NewKeyedLock()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Lock("layers/l1")
			counter++
			l.Unlock("layers/l1")
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
}

func TestKeyedLock_IndependentKeys(t *testing.T) {
	l := NewKeyedLock()
	l.Lock("a")
	done := make(chan struct{})
	go func() {
		l.Lock("b")
		l.Unlock("b")
		close(done)
	}()
	<-done
	l.Unlock("a")
}

func TestKeyedLock_DropsUnreferencedEntries(t *testing.T) {
	l := NewKeyedLock()
	l.Lock("x")
	l.Unlock("x")
	l.mu.Lock()
	defer l.mu.Unlock()
	require.Empty(t, l.locks)
}
