package walletsynchronizer

import (
	"sync"

	"github.com/kryptokrona/kryptokrona-sub002/node"
)

// blockQueue is the bounded FIFO between the downloader and scanner.
// Push blocks the producer when
// the queue is full, giving the scanner backpressure over the
// downloader; pop blocks the consumer when empty. Both return false once
// the queue has been closed, unblocking whichever side was parked.
type blockQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items    []node.WalletBlock
	capacity int
	closed   bool
}

func newBlockQueue(capacity int) *blockQueue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &blockQueue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// push blocks until there is room, the queue is closed, or the block is
// accepted. Returns false if the queue was closed before the block could
// be accepted.
func (q *blockQueue) push(b node.WalletBlock) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}
	q.items = append(q.items, b)
	q.notEmpty.Signal()
	return true
}

// pop blocks until an item is available or the queue is closed. Returns
// false once the queue is closed and drained.
func (q *blockQueue) pop() (node.WalletBlock, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return node.WalletBlock{}, false
	}
	b := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return b, true
}

// close unblocks any parked push or pop; subsequent pushes are refused
// and pops of an already-empty queue return false.
func (q *blockQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
