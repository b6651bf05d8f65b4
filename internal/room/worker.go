package room

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const inboxSize = 64

// worker runs every closure for one session, one at a time, in post order.
type worker struct {
	ctx     context.Context
	inbox   chan func(ctx context.Context)
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	logger  *logrus.Entry
}

func newWorker(ctx context.Context, logger *logrus.Entry) *worker {
	w := &worker{
		ctx:     ctx,
		inbox:   make(chan func(ctx context.Context), inboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}
	go w.run()
	return w
}

func (w *worker) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.done:
			return
		case fn := <-w.inbox:
			w.exec(fn)
		}
	}
}

func (w *worker) exec(fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorf("recovered from panic in session worker: %v", r)
		}
	}()
	fn(w.ctx)
}

// post queues fn. It reports false once the worker has stopped.
func (w *worker) post(fn func(ctx context.Context)) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.inbox <- fn:
		return true
	case <-w.done:
		return false
	}
}

// stop makes the run loop exit after the closure currently executing.
// Anything still queued is dropped.
func (w *worker) stop() {
	w.once.Do(func() { close(w.done) })
}

// After implements game.Scheduler: fn is posted to the inbox when d elapses.
func (w *worker) After(d time.Duration, fn func(ctx context.Context)) func() {
	t := time.AfterFunc(d, func() {
		w.post(fn)
	})
	return func() { t.Stop() }
}
