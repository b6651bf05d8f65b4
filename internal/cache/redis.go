// Package cache publishes session action records to Redis for the historian.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list that carries session action records.
const DefaultQueueName = "duo_session_actions"

// SessionActionRecord holds the minimal info needed by the historian.
type SessionActionRecord struct {
	SessionID     uuid.UUID              `json:"session_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// ConnectRedis opens a client for addr and pings it.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// journalBuffer bounds the records waiting for the sender goroutine.
const journalBuffer = 1024

// Journal pushes action records onto a Redis list. One sender goroutine
// drains them, so list order matches publish order. A nil *Journal, or one
// without a client, drops every record.
type Journal struct {
	queue  string
	logger *logrus.Logger
	push   func(ctx context.Context, data []byte) error

	mu      sync.RWMutex
	closed  bool
	pending chan SessionActionRecord
	done    chan struct{}
}

// NewJournal returns a journal writing to queue. An empty queue uses DefaultQueueName.
func NewJournal(rdb *redis.Client, queue string, logger *logrus.Logger) *Journal {
	if queue == "" {
		queue = DefaultQueueName
	}
	j := &Journal{queue: queue, logger: logger}
	if rdb != nil {
		j.start(func(ctx context.Context, data []byte) error {
			return rdb.RPush(ctx, queue, data).Err()
		})
	}
	return j
}

func (j *Journal) start(push func(ctx context.Context, data []byte) error) {
	j.push = push
	j.pending = make(chan SessionActionRecord, journalBuffer)
	j.done = make(chan struct{})
	go j.send()
}

func (j *Journal) send() {
	defer close(j.done)
	for record := range j.pending {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := j.Publish(ctx, record)
		cancel()
		if err != nil {
			j.logger.Warnf("session %s action %d not journaled: %v", record.SessionID, record.ActionIndex, err)
		}
	}
}

// Publish serializes the record and pushes it to the queue.
func (j *Journal) Publish(ctx context.Context, record SessionActionRecord) error {
	if j == nil || j.push == nil {
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal SessionActionRecord: %w", err)
	}
	if err := j.push(ctx, data); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", j.queue, err)
	}
	return nil
}

// PublishAsync queues the record for the sender. It never blocks: a full
// buffer or a closed journal drops the record.
func (j *Journal) PublishAsync(record SessionActionRecord) {
	if j == nil || j.pending == nil {
		return
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.pending <- record:
	default:
		j.logger.Warnf("journal buffer full; session %s action %d dropped", record.SessionID, record.ActionIndex)
	}
}

// Close stops accepting records and waits until the queued ones are pushed.
func (j *Journal) Close() {
	if j == nil || j.pending == nil {
		return
	}
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.pending)
	}
	j.mu.Unlock()
	<-j.done
}

// SessionLog numbers the actions of one session. It is not safe for
// concurrent use; the owning session worker is its only caller.
type SessionLog struct {
	journal   *Journal
	sessionID uuid.UUID
	index     int
	now       func() time.Time
}

// NewSessionLog returns an action log for sessionID backed by j, which may be nil.
func NewSessionLog(j *Journal, sessionID uuid.UUID) *SessionLog {
	return &SessionLog{journal: j, sessionID: sessionID, now: time.Now}
}

// Log records one action.
func (l *SessionLog) Log(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	l.index++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	l.journal.PublishAsync(SessionActionRecord{
		SessionID:     l.sessionID,
		ActionIndex:   l.index,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     l.now().UnixMilli(),
	})
}

// Count returns how many actions were logged.
func (l *SessionLog) Count() int {
	return l.index
}

// ErrMalformedRecord is returned by Pop for list entries that are not records.
var ErrMalformedRecord = errors.New("malformed session action record")

// Queue is the consuming side of the journal list.
type Queue struct {
	rdb  *redis.Client
	name string
}

// NewQueue returns a consumer for the list name. An empty name uses DefaultQueueName.
func NewQueue(rdb *redis.Client, name string) *Queue {
	if name == "" {
		name = DefaultQueueName
	}
	return &Queue{rdb: rdb, name: name}
}

// Pop waits up to timeout for one record. It returns nil, nil when the wait
// times out with nothing queued.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*SessionActionRecord, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// res[0] is the list name and res[1] the payload.
	if len(res) < 2 {
		return nil, nil
	}
	var rec SessionActionRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return &rec, nil
}
