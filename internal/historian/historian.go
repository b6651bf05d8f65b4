// Package historian drains the session action journal into Postgres.
//
// Records are popped off the Redis list one at a time and collected into a
// batch. A batch is written when it reaches the configured size, on a
// periodic flush job, and once more when the service stops.
package historian

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/ARTFROST1/DuoLoveCursor/internal/cache"
)

// Source yields journal records. Pop returns nil, nil when nothing arrived
// within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*cache.SessionActionRecord, error)
}

// Sink persists a batch of records.
type Sink interface {
	InsertSessionActions(ctx context.Context, records []cache.SessionActionRecord) error
}

// Service moves records from a Source to a Sink in batches.
type Service struct {
	source     Source
	sink       Sink
	batchSize  int
	flushEvery time.Duration
	popTimeout time.Duration
	retryDelay time.Duration
	logger     *logrus.Logger

	batchMu sync.Mutex
	batch   []cache.SessionActionRecord
}

// New returns a service writing batches of batchSize, with a partial batch
// flushed every flushEvery.
func New(source Source, sink Sink, batchSize int, flushEvery time.Duration, logger *logrus.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Service{
		source:     source,
		sink:       sink,
		batchSize:  batchSize,
		flushEvery: flushEvery,
		popTimeout: 3 * time.Second,
		retryDelay: time.Second,
		logger:     logger,
		batch:      make([]cache.SessionActionRecord, 0, batchSize),
	}
}

// Run consumes the source until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.flushEvery),
		gocron.NewTask(func() {
			_ = s.Flush(context.Background())
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule flush job: %w", err)
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			s.logger.Warnf("historian scheduler shutdown: %v", err)
		}
		_ = s.Flush(context.Background())
	}()

	s.logger.Info("historian started")
	for {
		if ctx.Err() != nil {
			s.logger.Info("historian shutting down")
			return nil
		}

		rec, err := s.source.Pop(ctx, s.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if errors.Is(err, cache.ErrMalformedRecord) {
				s.logger.Warnf("skipping journal entry: %v", err)
				continue
			}
			s.logger.Errorf("pop journal record: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(s.retryDelay):
			}
			continue
		}
		if rec == nil {
			continue
		}
		s.append(*rec)
	}
}

func (s *Service) append(rec cache.SessionActionRecord) {
	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()

	if full {
		_ = s.Flush(context.Background())
	}
}

// Flush writes the pending batch. A failed batch is logged and dropped.
func (s *Service) Flush(ctx context.Context) error {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return nil
	}
	pending := make([]cache.SessionActionRecord, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.InsertSessionActions(ctx, pending); err != nil {
		s.logger.WithField("records", len(pending)).Errorf("flush session actions: %v", err)
		return err
	}
	s.logger.Debugf("flushed %d session actions", len(pending))
	return nil
}

// Pending returns the number of records waiting for the next flush.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}
