package assistant

import (
	"sync"
	"time"
)

// Loop serializes all document work onto one goroutine. The document tree
// and selection are not safe for concurrent mutation, so every entry point
// (websocket handlers, MCP tools, stream ticks) funnels through Do; no two
// mutations ever interleave their sub-steps.
type Loop struct {
	ops  chan func()
	once sync.Once
	done chan struct{}
}

// NewLoop starts the executor goroutine.
func NewLoop() *Loop {
	l := &Loop{
		ops:  make(chan func(), 64),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		select {
		case fn := <-l.ops:
			fn()
		case <-l.done:
			// Drain anything already queued before exiting.
			for {
				select {
				case fn := <-l.ops:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Do enqueues fn for execution on the loop goroutine and returns
// immediately.
func (l *Loop) Do(fn func()) {
	select {
	case l.ops <- fn:
	case <-l.done:
	}
}

// DoWait runs fn on the loop goroutine and blocks until it completes.
func (l *Loop) DoWait(fn func()) {
	ch := make(chan struct{})
	l.Do(func() {
		fn()
		close(ch)
	})
	select {
	case <-ch:
	case <-l.done:
	}
}

// Defer schedules fn to run on the loop after the given delay. This is the
// scheduler handed to the streamer and guardian so their timer callbacks
// re-enter the serialized flow instead of racing it.
func (l *Loop) Defer(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { l.Do(fn) })
}

// Close stops the loop after draining queued work.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}
