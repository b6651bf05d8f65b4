package historian

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARTFROST1/DuoLoveCursor/internal/cache"
)

type popResult struct {
	rec *cache.SessionActionRecord
	err error
}

// chanSource hands out queued results and times out like BLPOP.
type chanSource struct {
	ch chan popResult
}

func newChanSource() *chanSource {
	return &chanSource{ch: make(chan popResult, 16)}
}

func (s *chanSource) Pop(ctx context.Context, timeout time.Duration) (*cache.SessionActionRecord, error) {
	select {
	case r := <-s.ch:
		return r.rec, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

func (s *chanSource) push(rec cache.SessionActionRecord) {
	s.ch <- popResult{rec: &rec}
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]cache.SessionActionRecord
	fail    error
}

func (s *recordingSink) InsertSessionActions(_ context.Context, records []cache.SessionActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.batches = append(s.batches, records)
	return nil
}

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func (s *recordingSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func record(index int) cache.SessionActionRecord {
	return cache.SessionActionRecord{
		SessionID:   uuid.New(),
		ActionIndex: index,
		ActorUserID: uuid.New(),
		ActionType:  "react",
		Timestamp:   time.Now().UnixMilli(),
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func startService(t *testing.T, svc *Service) (cancel func()) {
	t.Helper()
	svc.popTimeout = 10 * time.Millisecond
	svc.retryDelay = 5 * time.Millisecond

	ctx, cancelFn := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancelFn()
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Error("historian did not stop")
			}
		})
	}
	t.Cleanup(stop)
	return stop
}

func TestFlushesWhenBatchIsFull(t *testing.T) {
	src := newChanSource()
	sink := &recordingSink{}
	svc := New(src, sink, 2, time.Hour, quietLogger())
	startService(t, svc)

	src.push(record(1))
	src.push(record(2))

	require.Eventually(t, func() bool { return sink.total() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, sink.batchCount())
}

func TestFlushesPartialBatchOnInterval(t *testing.T) {
	src := newChanSource()
	sink := &recordingSink{}
	svc := New(src, sink, 100, 20*time.Millisecond, quietLogger())
	startService(t, svc)

	src.push(record(1))

	require.Eventually(t, func() bool { return sink.total() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestFinalFlushOnStop(t *testing.T) {
	src := newChanSource()
	sink := &recordingSink{}
	svc := New(src, sink, 100, time.Hour, quietLogger())
	stop := startService(t, svc)

	src.push(record(1))
	require.Eventually(t, func() bool { return svc.Pending() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, sink.total())

	stop()
	assert.Equal(t, 1, sink.total())
}

func TestMalformedEntriesAreSkipped(t *testing.T) {
	src := newChanSource()
	sink := &recordingSink{}
	svc := New(src, sink, 1, time.Hour, quietLogger())
	startService(t, svc)

	src.ch <- popResult{err: cache.ErrMalformedRecord}
	src.ch <- popResult{err: errors.New("connection reset")}
	src.push(record(7))

	require.Eventually(t, func() bool { return sink.total() == 1 }, time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	assert.Equal(t, 7, sink.batches[0][0].ActionIndex)
	sink.mu.Unlock()
}

func TestFailedFlushDropsBatch(t *testing.T) {
	sink := &recordingSink{fail: errors.New("db down")}
	svc := New(newChanSource(), sink, 10, time.Hour, quietLogger())

	svc.append(record(1))
	require.Equal(t, 1, svc.Pending())

	err := svc.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, svc.Pending())
	assert.NoError(t, svc.Flush(context.Background()))
}
