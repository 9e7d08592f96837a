package callmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := newQueue[string]()
	for _, s := range []string{"a", "b", "c"} {
		require.True(t, q.push(s))
	}
	assert.Equal(t, 3, q.len())

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.len())
}

func TestQueue_CloseDrainsThenStops(t *testing.T) {
	q := newQueue[int]()
	q.push(1)
	q.close()

	assert.False(t, q.push(2), "push after close must be rejected")

	v, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = q.pop()
	assert.False(t, ok)
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := newQueue[int]()
	got := make(chan int, 1)
	go func() {
		v, _ := q.pop()
		got <- v
	}()

	select {
	case <-got:
		t.Fatal("pop returned before push")
	case <-time.After(20 * time.Millisecond):
	}

	q.push(42)
	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up")
	}
}

func TestQueue_CloseWakesWaiters(t *testing.T) {
	q := newQueue[int]()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("close did not wake the waiting pop")
	}
}
