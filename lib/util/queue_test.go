package util

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMPSCPushRecv(t *testing.T) {
	q := NewMPSC[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		if !q.Push(&i) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case val := <-q.Recv():
			if *val != i {
				t.Errorf("Expected %d, got %d", i, *val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}

	select {
	case val := <-q.Recv():
		t.Errorf("Queue should be empty, but got %v", *val)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestMPSCRejectsNil(t *testing.T) {
	q := NewMPSC[int]()
	defer q.Close()

	if q.Push(nil) {
		t.Error("Push(nil) should be rejected")
	}
}

func TestMPSCConcurrentProducers(t *testing.T) {
	q := NewMPSC[int]()
	defer q.Close()

	const producers = 8
	const perProducer = 500
	total := producers * perProducer

	done := make(chan map[int]bool)
	go func() {
		seen := make(map[int]bool, total)
		for len(seen) < total {
			select {
			case val := <-q.Recv():
				if seen[*val] {
					t.Errorf("Duplicate item received: %d", *val)
				}
				seen[*val] = true
			case <-time.After(2 * time.Second):
				t.Errorf("Timeout, received %d of %d items", len(seen), total)
				done <- seen
				return
			}
		}
		done <- seen
	}()

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				val := p*perProducer + i
				if !q.Push(&val) {
					t.Errorf("Producer %d failed to push item %d", p, i)
				}
			}
		}(p)
	}
	wg.Wait()

	if seen := <-done; len(seen) != total {
		t.Errorf("Expected %d items, got %d", total, len(seen))
	}
}

func TestMPSCSingleProducerKeepsOrder(t *testing.T) {
	q := NewMPSC[int]()
	defer q.Close()

	const items = 5000
	go func() {
		for i := 0; i < items; i++ {
			q.Push(&i)
		}
	}()

	for i := 0; i < items; i++ {
		select {
		case val := <-q.Recv():
			if *val != i {
				t.Fatalf("Expected %d, got %d", i, *val)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}
}

func TestMPSCClose(t *testing.T) {
	q := NewMPSC[int]()

	for i := 0; i < 5; i++ {
		q.Push(&i)
	}
	q.Close()

	if !q.IsClosed() {
		t.Error("IsClosed should report true after Close")
	}

	val := 100
	if q.Push(&val) {
		t.Error("Should not be able to push after queue is closed")
	}

	for i := 0; i < 5; i++ {
		select {
		case val := <-q.Recv():
			if *val != i {
				t.Errorf("Expected %d, got %d", i, *val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d after close", i)
		}
	}

	select {
	case _, ok := <-q.Recv():
		if ok {
			t.Error("Channel should be closed but is still open")
		}
	case <-time.After(time.Second):
		t.Error("Channel was not closed after drain")
	}
}

func TestMPSCCloseDuringPushDeliversAccepted(t *testing.T) {
	for round := 0; round < 50; round++ {
		q := NewMPSC[int]()

		const producers = 8
		var accepted atomic.Int64
		var wg sync.WaitGroup
		wg.Add(producers)
		for p := 0; p < producers; p++ {
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					val := i
					if q.Push(&val) {
						accepted.Add(1)
					}
				}
			}()
		}

		received := make(chan int64)
		go func() {
			var n int64
			for range q.Recv() {
				n++
			}
			received <- n
		}()

		runtime.Gosched()
		q.Close()
		wg.Wait()

		select {
		case n := <-received:
			if n != accepted.Load() {
				t.Fatalf("Round %d: accepted %d items but delivered %d", round, accepted.Load(), n)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Round %d: channel was not closed after drain", round)
		}
	}
}

func BenchmarkMPSCMultiProducer(b *testing.B) {
	q := NewMPSC[int]()
	defer q.Close()

	go func() {
		for range q.Recv() {
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q.Push(&i)
			i++
		}
	})
}
