package walletsynchronizer

import (
	"testing"
	"time"

	"github.com/kryptokrona/kryptokrona-sub002/node"
	"github.com/stretchr/testify/require"
)

func TestBlockQueuePushPopOrder(t *testing.T) {
	q := newBlockQueue(2)

	require.True(t, q.push(node.WalletBlock{Height: 1}))
	require.True(t, q.push(node.WalletBlock{Height: 2}))

	b, ok := q.pop()
	require.True(t, ok)
	require.Equal(t, uint64(1), b.Height)

	b, ok = q.pop()
	require.True(t, ok)
	require.Equal(t, uint64(2), b.Height)
}

func TestBlockQueuePushBlocksWhenFull(t *testing.T) {
	q := newBlockQueue(1)
	require.True(t, q.push(node.WalletBlock{Height: 1}))

	done := make(chan bool, 1)
	go func() {
		done <- q.push(node.WalletBlock{Height: 2})
	}()

	select {
	case <-done:
		t.Fatal("push should have blocked while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	_, ok := q.pop()
	require.True(t, ok)

	select {
	case res := <-done:
		require.True(t, res)
	case <-time.After(time.Second):
		t.Fatal("push did not unblock after a pop freed capacity")
	}
}

func TestBlockQueueCloseUnblocksBothSides(t *testing.T) {
	// A push can only park on a full queue and a pop only on an empty
	// one, so each side gets its own queue.
	q := newBlockQueue(1)
	require.True(t, q.push(node.WalletBlock{Height: 1}))
	empty := newBlockQueue(1)

	popDone := make(chan bool, 1)
	pushDone := make(chan bool, 1)
	go func() {
		// Second push blocks: capacity 1, already holding one item.
		pushDone <- q.push(node.WalletBlock{Height: 2})
	}()
	go func() {
		_, ok := empty.pop()
		popDone <- ok // blocks until close, then sees false
	}()

	time.Sleep(20 * time.Millisecond)
	q.close()
	empty.close()

	select {
	case res := <-pushDone:
		require.False(t, res)
	case <-time.After(time.Second):
		t.Fatal("push did not unblock on close")
	}

	select {
	case res := <-popDone:
		require.False(t, res)
	case <-time.After(time.Second):
		t.Fatal("pop did not unblock on close")
	}

	// A closed queue still hands out what it holds, then reports false.
	b, ok := q.pop()
	require.True(t, ok)
	require.Equal(t, uint64(1), b.Height)
	_, ok = q.pop()
	require.False(t, ok)
	require.False(t, q.push(node.WalletBlock{Height: 3}))
}
