package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/connect4-backend/internal/apperror"
	"github.com/rocketscienceinc/connect4-backend/internal/entity"
	"github.com/rocketscienceinc/connect4-backend/testing/suite"
)

var createdAt = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
}

func (that *recordingPublisher) Publish(_ context.Context, channel string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.channels = append(that.channels, channel)

	return nil
}

func (that *recordingPublisher) Channels() []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]string(nil), that.channels...)
}

func newSessionRepo(st *suite.Suite, publisher publisher) (SessionRepository, EventLog) {
	events := NewEventLog(st.Storage)

	return NewSessionRepository(SessionRepositoryConfig{
		Logger:     st.Logger,
		Client:     st.Storage,
		Events:     events,
		Publisher:  publisher,
		Clock:      func() time.Time { return createdAt.Add(time.Minute) },
		MaxRetries: 5,
	}), events
}

func TestSessionRepository_Create(t *testing.T) {
	ctx, st := suite.New(t)
	publisher := &recordingPublisher{}
	repo, events := newSessionRepo(st, publisher)

	// Given: a fresh game
	session := entity.NewSession("g1", "red", createdAt)

	// When: it is stored
	err := repo.Create(ctx, session)

	// Then: the document, the ADD event and the player index are written together
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, session, stored)

	pending, err := events.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, entity.ListingAdd, pending[0].Type)
	assert.Equal(t, "g1", pending[0].GameID)
	assert.True(t, createdAt.Equal(pending[0].CreatedAt))

	mine, err := repo.ListByPlayer(ctx, "red")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "g1", mine[0].ID)

	assert.Equal(t, []string{GameChannel("g1")}, publisher.Channels())
}

func TestSessionRepository_Update(t *testing.T) {
	t.Run("Join appends a DELETE event and indexes the second player", func(t *testing.T) {
		ctx, st := suite.New(t)
		repo, events := newSessionRepo(st, nil)
		require.NoError(t, repo.Create(ctx, entity.NewSession("g1", "red", createdAt)))

		// When: a second player joins
		session, outcome, err := repo.Update(ctx, "g1", func(session *entity.Session) (entity.Outcome, error) {
			return session.Join("yellow", createdAt)
		})

		// Then: the game is full and both the events are queued
		require.NoError(t, err)
		assert.Equal(t, "yellow", session.PlayerYellow)
		assert.Equal(t, entity.ListingDelete, outcome.Listing)

		pending, err := events.Pending(ctx, 0)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, entity.ListingDelete, pending[1].Type)

		mine, err := repo.ListByPlayer(ctx, "yellow")
		require.NoError(t, err)
		assert.Len(t, mine, 1)
	})

	t.Run("Abandon deletes the session and its index entry", func(t *testing.T) {
		ctx, st := suite.New(t)
		repo, events := newSessionRepo(st, nil)
		require.NoError(t, repo.Create(ctx, entity.NewSession("g1", "red", createdAt)))

		_, outcome, err := repo.Update(ctx, "g1", func(session *entity.Session) (entity.Outcome, error) {
			return session.Leave("red", createdAt)
		})

		require.NoError(t, err)
		assert.True(t, outcome.Deleted)

		_, err = repo.GetByID(ctx, "g1")
		require.ErrorIs(t, err, apperror.ErrGameNotFound)

		exists, err := st.Storage.Exists(ctx, playerGamesKey("red")).Result()
		require.NoError(t, err)
		assert.Zero(t, exists)

		pending, err := events.Pending(ctx, 0)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, entity.ListingDelete, pending[1].Type)
	})

	t.Run("Forfeit resolves the game and clears the open games of both players", func(t *testing.T) {
		ctx, st := suite.New(t)
		repo, _ := newSessionRepo(st, nil)
		require.NoError(t, repo.Create(ctx, entity.NewSession("g1", "red", createdAt)))
		_, _, err := repo.Update(ctx, "g1", func(session *entity.Session) (entity.Outcome, error) {
			return session.Join("yellow", createdAt)
		})
		require.NoError(t, err)

		// When: red leaves mid game
		session, _, err := repo.Update(ctx, "g1", func(session *entity.Session) (entity.Outcome, error) {
			return session.Leave("red", createdAt)
		})

		// Then: yellow wins and nobody lists the game as open
		require.NoError(t, err)
		assert.Equal(t, "yellow", session.Winner)
		assert.Empty(t, session.Turn)

		for _, playerID := range []string{"red", "yellow"} {
			mine, err := repo.ListByPlayer(ctx, playerID)
			require.NoError(t, err)
			assert.Empty(t, mine)
		}
	})

	t.Run("Rejected transition writes nothing", func(t *testing.T) {
		ctx, st := suite.New(t)
		publisher := &recordingPublisher{}
		repo, events := newSessionRepo(st, publisher)
		require.NoError(t, repo.Create(ctx, entity.NewSession("g1", "red", createdAt)))

		_, _, err := repo.Update(ctx, "g1", func(session *entity.Session) (entity.Outcome, error) {
			return session.Move("red", 0, createdAt)
		})

		require.ErrorIs(t, err, apperror.ErrNeedBothPlayers)

		pending, err := events.Pending(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
		assert.Len(t, publisher.Channels(), 1)
	})

	t.Run("Missing game is not found", func(t *testing.T) {
		ctx, st := suite.New(t)
		repo, _ := newSessionRepo(st, nil)

		_, _, err := repo.Update(ctx, "nope", func(session *entity.Session) (entity.Outcome, error) {
			return entity.Outcome{Changed: true}, nil
		})

		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})

	t.Run("Endless conflicts abort the transaction", func(t *testing.T) {
		ctx, st := suite.New(t)
		repo, _ := newSessionRepo(st, nil)
		require.NoError(t, repo.Create(ctx, entity.NewSession("g1", "red", createdAt)))

		// Given: another writer touches the document during every attempt
		attempts := 0
		_, _, err := repo.Update(ctx, "g1", func(session *entity.Session) (entity.Outcome, error) {
			attempts++
			require.NoError(t, st.Storage.Set(ctx, GameKey("g1"), mustJSON(t, session), 0).Err())
			return session.Join("yellow", createdAt)
		})

		// Then: the call gives up with a transient error after the retry budget
		require.ErrorIs(t, err, apperror.ErrTransactionAborted)
		assert.Equal(t, apperror.KindTransient, apperror.KindOf(err))
		assert.Equal(t, 5, attempts)
	})
}

func TestSessionRepository_ConcurrentDoubleSubmit(t *testing.T) {
	t.Run("In-process redis", func(t *testing.T) {
		ctx, st := suite.New(t)
		testConcurrentDoubleSubmit(ctx, st)
	})

	t.Run("Redis container", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping container test in short mode")
		}

		ctx, st := suite.NewDocker(t)
		testConcurrentDoubleSubmit(ctx, st)
	})
}

func testConcurrentDoubleSubmit(ctx context.Context, st *suite.Suite) {
	t := st.T
	repo, _ := newSessionRepo(st, nil)

	// Given: an ongoing game with red to move
	session := entity.NewSession("g1", "red", createdAt)
	_, err := session.Join("yellow", createdAt)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, session))

	// When: red submits the same move from several clients at once
	const submits = 8

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		okays  int
		errs   []error
		moveFn = func(session *entity.Session) (entity.Outcome, error) {
			return session.Move("red", 3, createdAt)
		}
	)

	for i := 0; i < submits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, _, err := repo.Update(ctx, "g1", moveFn)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				okays++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	// Then: exactly one move lands and the rest see yellow's turn
	assert.Equal(t, 1, okays)
	for _, err := range errs {
		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
	}

	stored, err := repo.GetByID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, entity.Red, stored.Board[0][3])
	assert.Equal(t, entity.Empty, stored.Board[1][3])
	assert.Equal(t, "yellow", stored.Turn)
}

func TestSessionRepository_ListByPlayer(t *testing.T) {
	ctx, st := suite.New(t)
	repo, _ := newSessionRepo(st, nil)

	// Given: one open game, one ongoing game and one index entry without a document
	require.NoError(t, repo.Create(ctx, entity.NewSession("open", "p1", createdAt)))

	ongoing := entity.NewSession("ongoing", "p2", createdAt)
	_, err := ongoing.Join("p1", createdAt)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, ongoing))

	require.NoError(t, st.Storage.SAdd(ctx, playerGamesKey("p1"), "ghost").Err())

	// When: the player's open games are listed
	sessions, err := repo.ListByPlayer(ctx, "p1")

	// Then: both live games come back and the stale entry is skipped
	require.NoError(t, err)

	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}
	assert.ElementsMatch(t, []string{"open", "ongoing"}, ids)
}

func mustJSON(t *testing.T, value any) []byte {
	t.Helper()

	data, err := json.Marshal(value)
	require.NoError(t, err)

	return data
}
