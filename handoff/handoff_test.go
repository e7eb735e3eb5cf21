package handoff

import (
	"runtime"
	"sync"
	"testing"
)

func TestQueueRoundsCapacityToPowerOfTwo(t *testing.T) {
	q := NewQueue[int](5)
	if q.Cap() != 8 {
		t.Fatalf("expected capacity 8, got %d", q.Cap())
	}
	if NewQueue[int](0).Cap() != 2 {
		t.Fatalf("expected minimum capacity 2")
	}
}

func TestQueueFIFOAndFull(t *testing.T) {
	q := NewQueue[int](4)
	for i := 0; i < 4; i++ {
		if !q.TryPush(i) {
			t.Fatalf("push %d failed", i)
		}
	}
	if q.TryPush(99) {
		t.Fatalf("expected push into full queue to fail")
	}
	if q.Len() != 4 {
		t.Fatalf("expected len 4, got %d", q.Len())
	}
	for i := 0; i < 4; i++ {
		v, ok := q.TryPop()
		if !ok || v != i {
			t.Fatalf("pop %d: got=%d ok=%v", i, v, ok)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestQueuePopClearsSlot(t *testing.T) {
	q := NewQueue[*int](2)
	v := 3
	q.TryPush(&v)
	q.TryPop()
	if q.buf[0] != nil {
		t.Fatalf("expected popped slot to be cleared")
	}
}

func TestQueueConcurrentProducerConsumer(t *testing.T) {
	const n = 100000
	q := NewQueue[int](64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if q.TryPush(i) {
				i++
			} else {
				runtime.Gosched()
			}
		}
	}()
	next := 0
	for next < n {
		v, ok := q.TryPop()
		if !ok {
			runtime.Gosched()
			continue
		}
		if v != next {
			t.Fatalf("out of order: got=%d want=%d", v, next)
		}
		next++
	}
	wg.Wait()
}

func TestTripleBufferLatestWins(t *testing.T) {
	b := NewTripleBuffer[int]()
	if _, fresh := b.Read(); fresh {
		t.Fatalf("expected no value before first publish")
	}
	b.Publish(1)
	b.Publish(2)
	v, fresh := b.Read()
	if !fresh || v != 2 {
		t.Fatalf("expected fresh 2, got=%d fresh=%v", v, fresh)
	}
	v, fresh = b.Read()
	if fresh || v != 2 {
		t.Fatalf("expected stale 2, got=%d fresh=%v", v, fresh)
	}
}

type pair struct{ a, b int }

func TestTripleBufferNoTornReads(t *testing.T) {
	b := NewTripleBuffer[pair]()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 50000; i++ {
			b.Publish(pair{a: i, b: -i})
		}
	}()
	last := 0
	for {
		select {
		case <-done:
			v, _ := b.Read()
			if v.a != 50000 {
				t.Fatalf("expected final value 50000, got %d", v.a)
			}
			return
		default:
		}
		v, fresh := b.Read()
		if !fresh {
			runtime.Gosched()
			continue
		}
		if v.a != -v.b {
			t.Fatalf("torn read: %+v", v)
		}
		if v.a < last {
			t.Fatalf("went backwards: %d after %d", v.a, last)
		}
		last = v.a
	}
}
