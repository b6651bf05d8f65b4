package achievement

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
	"github.com/ARTFROST1/DuoLoveCursor/internal/store"
)

func newTestEngine() (*Engine, *store.Memory) {
	mem := store.NewMemory()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewEngine(mem, logger), mem
}

func completion(partnership uuid.UUID, winner *uuid.UUID) Completion {
	return Completion{
		SessionID:     uuid.New(),
		PartnershipID: partnership,
		Partner1ID:    uuid.New(),
		Partner2ID:    uuid.New(),
		WinnerID:      winner,
	}
}

func TestCatalogEntriesAreCoupleScoped(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range Catalog() {
		assert.False(t, seen[d.Slug], "duplicate slug %s", d.Slug)
		seen[d.Slug] = true
		assert.Equal(t, models.ScopeCouple, d.Scope)
		assert.NotEmpty(t, d.Emoji)
		assert.NotEmpty(t, d.Title)
	}
	for _, slug := range []string{SlugFirstGame, SlugGameDuo, SlugHardcoreMode, SlugFirstVictory} {
		_, ok := Lookup(slug)
		assert.True(t, ok, slug)
	}
}

func TestTriggers(t *testing.T) {
	assert.Equal(t, []string{SlugFirstGame, SlugGameDuo, SlugHardcoreMode}, Triggers(Completion{}))
	w := uuid.New()
	assert.Contains(t, Triggers(Completion{WinnerID: &w}), SlugFirstVictory)
}

func TestFirstCompletionUnlocksFirstGame(t *testing.T) {
	e, mem := newTestEngine()
	pid := uuid.New()
	w := uuid.New()

	unlocked, err := e.RecordSessionCompletion(context.Background(), completion(pid, &w))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{SlugFirstGame, SlugFirstVictory}, unlocked)

	p, ok := mem.Progress(models.CoupleScopeKey(pid), SlugGameDuo)
	require.True(t, ok)
	assert.Equal(t, 1, p.Progress)
	assert.Nil(t, p.AchievedAt)
}

func TestReplayedCompletionDoesNotDoubleCount(t *testing.T) {
	e, mem := newTestEngine()
	c := completion(uuid.New(), nil)

	first, err := e.RecordSessionCompletion(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{SlugFirstGame}, first)

	again, err := e.RecordSessionCompletion(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, again)

	p, _ := mem.Progress(models.CoupleScopeKey(c.PartnershipID), SlugFirstGame)
	assert.Equal(t, 1, p.Progress)
	require.NotNil(t, p.AchievedAt)
}

func TestGoalCrossedExactlyOnce(t *testing.T) {
	e, mem := newTestEngine()
	pid := uuid.New()
	ctx := context.Background()

	var unlockedAt []int
	for i := 1; i <= 12; i++ {
		unlocked, err := e.RecordSessionCompletion(ctx, completion(pid, nil))
		require.NoError(t, err)
		for _, s := range unlocked {
			if s == SlugGameDuo {
				unlockedAt = append(unlockedAt, i)
			}
		}
	}
	assert.Equal(t, []int{10}, unlockedAt)

	p, _ := mem.Progress(models.CoupleScopeKey(pid), SlugGameDuo)
	assert.Equal(t, 12, p.Progress)
	require.NotNil(t, p.AchievedAt)
}

func TestNoPartnershipAdvancesNothing(t *testing.T) {
	e, _ := newTestEngine()
	unlocked, err := e.RecordSessionCompletion(context.Background(), completion(uuid.Nil, nil))
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestPartnershipResolvedFromPair(t *testing.T) {
	e, mem := newTestEngine()
	c := completion(uuid.Nil, nil)
	pid := mem.SetPartners(c.Partner2ID, c.Partner1ID)

	unlocked, err := e.RecordSessionCompletion(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{SlugFirstGame}, unlocked)

	p, ok := mem.Progress(models.CoupleScopeKey(pid), SlugGameDuo)
	require.True(t, ok)
	assert.Equal(t, 1, p.Progress)
}
