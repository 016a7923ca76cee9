package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	q := New()
	require.True(t, q.Push(1))
	require.True(t, q.Push(2))
	require.True(t, q.Push(3))

	for _, want := range []int{1, 2, 3} {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New()
	done := make(chan struct{})
	var got interface{}
	go func() {
		v, ok := q.Pop()
		require.True(t, ok)
		got = v
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before any item was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push("late")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pop never unblocked after Push")
	}
	assert.Equal(t, "late", got)
}

func TestPushFailsAfterClose(t *testing.T) {
	q := New()
	q.Close()
	assert.False(t, q.Push("x"))
	assert.True(t, q.Closed())
}

func TestPopDrainsThenUnblocksOnClose(t *testing.T) {
	q := New()
	q.Push("a")
	q.Close()

	v, ok := q.Pop()
	require.True(t, ok, "a pushed item before Close must still be drainable")
	assert.Equal(t, "a", v)

	_, ok = q.Pop()
	assert.False(t, ok, "Pop on a closed, empty queue must report false")
}

func TestPopUnblocksBlockedWaitersOnClose(t *testing.T) {
	q := New()
	done := make(chan bool)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("blocked Pop never unblocked on Close")
	}
}

func TestLen(t *testing.T) {
	q := New()
	assert.Equal(t, 0, q.Len())
	q.Push(1)
	q.Push(2)
	assert.Equal(t, 2, q.Len())
	q.Pop()
	assert.Equal(t, 1, q.Len())
}
