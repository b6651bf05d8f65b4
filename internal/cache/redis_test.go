package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilJournalDropsRecords(t *testing.T) {
	var j *Journal
	require.NoError(t, j.Publish(context.Background(), SessionActionRecord{ActionType: "react"}))
	j.PublishAsync(SessionActionRecord{ActionType: "react"})
	j.Close()
}

func TestJournalWithoutClientDropsRecords(t *testing.T) {
	j := NewJournal(nil, "", nil)
	assert.Equal(t, DefaultQueueName, j.queue)
	require.NoError(t, j.Publish(context.Background(), SessionActionRecord{ActionType: "answer"}))
	j.PublishAsync(SessionActionRecord{ActionType: "answer"})
	j.Close()
}

func TestSessionLogNumbersActions(t *testing.T) {
	l := NewSessionLog(nil, uuid.New())
	l.Log(uuid.Nil, "session_start", nil)
	l.Log(uuid.New(), "react", map[string]interface{}{"winner": true})
	assert.Equal(t, 2, l.Count())
}

type recordingPush struct {
	mu      sync.Mutex
	records []SessionActionRecord
	failAt  int
}

func (p *recordingPush) push(_ context.Context, data []byte) error {
	var rec SessionActionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	if rec.ActionIndex == p.failAt {
		return errors.New("connection refused")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestJournalKeepsPublishOrder(t *testing.T) {
	p := &recordingPush{failAt: -1}
	j := NewJournal(nil, "", quietLogger())
	j.start(p.push)

	sessionID := uuid.New()
	l := NewSessionLog(j, sessionID)
	for i := 0; i < 200; i++ {
		l.Log(uuid.Nil, "react", nil)
	}
	j.Close()

	require.Len(t, p.records, 200)
	for i, rec := range p.records {
		assert.Equal(t, i+1, rec.ActionIndex)
		assert.Equal(t, sessionID, rec.SessionID)
	}

	j.PublishAsync(SessionActionRecord{ActionIndex: 201})
	j.Close()
	assert.Len(t, p.records, 200, "records after Close are dropped")
}

func TestJournalSkipsFailedPush(t *testing.T) {
	p := &recordingPush{failAt: 2}
	j := NewJournal(nil, "", quietLogger())
	j.start(p.push)

	l := NewSessionLog(j, uuid.New())
	for i := 0; i < 3; i++ {
		l.Log(uuid.Nil, "answer", nil)
	}
	j.Close()

	require.Len(t, p.records, 2)
	assert.Equal(t, 1, p.records[0].ActionIndex)
	assert.Equal(t, 3, p.records[1].ActionIndex)
}
