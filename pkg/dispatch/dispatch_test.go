package dispatch

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSync_RunsInline(t *testing.T) {
	ran := false
	err := Sync{}.RunSync(func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestSerial_SingleGoroutine(t *testing.T) {
	s := NewSerial()
	defer s.Close()

	// Every submitted function must observe the same goroutine-local
	// state mutations in submission order.
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_ = s.RunSync(func() error {
				order = append(order, i)
				return nil
			})
		}()
	}
	wg.Wait()

	// No assertion on order across goroutines, but the append itself must
	// not race: all 20 writes land.
	assert.Len(t, order, 20)
}

func TestSerial_PropagatesError(t *testing.T) {
	s := NewSerial()
	defer s.Close()

	want := errors.New("setup failed")
	err := s.RunSync(func() error { return want })
	assert.ErrorIs(t, err, want)
}

func TestSerial_RunAfterClose(t *testing.T) {
	s := NewSerial()
	s.Close()
	s.Close() // idempotent

	err := s.RunSync(func() error { return nil })
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}
