package archive

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueDequeue(t *testing.T) {
	q := newQueue[Action]()

	ok := q.enqueue(Action{Kind: ActionNewRequest, Seq: 1})
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.tryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, ActionNewRequest, got.Kind)
	assert.Equal(t, int64(1), got.Seq)
}

func TestQueue_FIFO(t *testing.T) {
	q := newQueue[Action]()

	for i := int64(1); i <= 3; i++ {
		q.enqueue(Action{Kind: ActionNewRequest, Seq: i})
	}

	for i := int64(1); i <= 3; i++ {
		got, ok := q.tryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, got.Seq, "actions must dequeue in send order")
	}
}

func TestQueue_TryDequeue_Empty(t *testing.T) {
	q := newQueue[Action]()

	_, ok := q.tryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	q := newQueue[Action]()
	q.close()

	ok := q.enqueue(Action{Kind: ActionNewRequest})
	assert.False(t, ok, "enqueue after close should fail")
	assert.True(t, q.isClosed())
}

func TestQueue_CloseIdempotent(t *testing.T) {
	q := newQueue[Action]()
	q.close()
	q.close() // must not panic on double close
}

func TestQueue_SignalCoalesces(t *testing.T) {
	q := newQueue[Action]()

	q.enqueue(Action{Seq: 1})
	q.enqueue(Action{Seq: 2})
	q.enqueue(Action{Seq: 3})

	// Multiple enqueues coalesce into at most one pending signal.
	<-q.wait()
	select {
	case <-q.wait():
		t.Fatal("expected a single coalesced signal")
	default:
	}

	assert.Equal(t, 3, q.len())
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := newQueue[int]()

	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.enqueue(i)
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := q.tryDequeue(); !ok {
			break
		}
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}

func TestQueue_PerProducerOrderPreserved(t *testing.T) {
	q := newQueue[int]()

	for i := 0; i < 50; i++ {
		q.enqueue(i)
	}

	prev := -1
	for {
		v, ok := q.tryDequeue()
		if !ok {
			break
		}
		require.Greater(t, v, prev, "no action may be reordered ahead of an earlier one")
		prev = v
	}
}
