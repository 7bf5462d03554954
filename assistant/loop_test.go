package assistant

import (
	"testing"
	"time"
)

func TestLoopSerializesWork(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		l.Do(func() { order = append(order, i) })
	}
	l.DoWait(func() {})

	if len(order) != 10 {
		t.Fatalf("ran %d ops, want 10", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, submission order not preserved", i, v)
		}
	}
}

func TestLoopDoWaitReturnsResult(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var got int
	l.DoWait(func() { got = 7 })
	if got != 7 {
		t.Errorf("got = %d, want 7", got)
	}
}

func TestLoopDefer(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	done := make(chan struct{})
	l.Defer(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deferred op never ran")
	}
}

func TestLoopCloseDrains(t *testing.T) {
	l := NewLoop()
	ran := make(chan struct{}, 1)
	l.Do(func() { ran <- struct{}{} })
	l.Close()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued op dropped on close")
	}
}
