package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/connect4-backend/internal/apperror"
	"github.com/rocketscienceinc/connect4-backend/internal/entity"
	"github.com/rocketscienceinc/connect4-backend/internal/repository"
	"github.com/rocketscienceinc/connect4-backend/testing/suite"
)

func TestGameService_Lifecycle(t *testing.T) {
	ctx, st := suite.New(t)
	clock := func() time.Time { return base }

	sessions := repository.NewSessionRepository(repository.SessionRepositoryConfig{
		Logger: st.Logger,
		Client: st.Storage,
		Events: repository.NewEventLog(st.Storage),
		Clock:  clock,
	})
	games := NewGameService(sessions, clock)

	// Given: red created a game and yellow joined it
	session, err := games.CreateGame(ctx, "red")
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)

	_, outcome, err := games.JoinGame(ctx, session.ID, "yellow")
	require.NoError(t, err)
	assert.Equal(t, entity.ListingDelete, outcome.Listing)

	_, err = games.GetPlayerGames(ctx, "yellow")
	require.NoError(t, err)

	// When: they alternate, red stacking column 3
	for _, move := range []struct {
		player string
		column int
	}{
		{"red", 3}, {"yellow", 0}, {"red", 3}, {"yellow", 0}, {"red", 3}, {"yellow", 1},
	} {
		_, _, err = games.PlayMove(ctx, session.ID, move.player, move.column)
		require.NoError(t, err)
	}

	won, _, err := games.PlayMove(ctx, session.ID, "red", 3)

	// Then: red wins and the game is finished for everyone
	require.NoError(t, err)
	assert.Equal(t, "red", won.Winner)

	_, _, err = games.PlayMove(ctx, session.ID, "yellow", 4)
	require.ErrorIs(t, err, apperror.ErrAlreadyWon)

	stored, err := games.GetGameByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFinished, stored.Status())

	mine, err := games.GetPlayerGames(ctx, "red")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestGameService_Errors(t *testing.T) {
	ctx, st := suite.New(t)

	sessions := repository.NewSessionRepository(repository.SessionRepositoryConfig{
		Logger: st.Logger,
		Client: st.Storage,
		Events: repository.NewEventLog(st.Storage),
	})
	games := NewGameService(sessions, nil)

	_, _, err := games.JoinGame(ctx, "missing", "p1")
	require.ErrorIs(t, err, apperror.ErrGameNotFound)

	session, err := games.CreateGame(ctx, "p1")
	require.NoError(t, err)

	_, _, err = games.LeaveGame(ctx, session.ID, "stranger")
	require.ErrorIs(t, err, apperror.ErrNotInGame)

	_, err = games.GetGameByID(ctx, "missing")
	require.ErrorIs(t, err, apperror.ErrGameNotFound)
}
