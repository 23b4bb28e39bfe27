package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/connect4-backend/internal/entity"
	"github.com/rocketscienceinc/connect4-backend/internal/repository"
	"github.com/rocketscienceinc/connect4-backend/internal/service"
	"github.com/rocketscienceinc/connect4-backend/internal/usecase"
	"github.com/rocketscienceinc/connect4-backend/testing/suite"
)

type testServer struct {
	router *gin.Engine
	auth   service.AuthService
	events repository.EventLog
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	_, st := suite.New(t)

	events := repository.NewEventLog(st.Storage)
	sessions := repository.NewSessionRepository(repository.SessionRepositoryConfig{
		Logger: st.Logger,
		Client: st.Storage,
		Events: events,
	})
	markers := repository.NewRunMarkerRepository(st.Logger, st.Storage, nil, 0)
	listing := repository.NewListingRepository(st.Logger, st.Storage, nil)

	auth := service.NewAuthService(service.AuthConfig{SecretKey: "secret", Issuer: "test"})
	games := usecase.NewGameUseCase(st.Logger,
		service.NewGameService(sessions, nil),
		service.NewScheduler(st.Logger, markers, time.Second),
		listing,
	)

	return &testServer{
		router: NewRouter(Dependencies{
			Logger: st.Logger,
			Auth:   NewAuthHandler(st.Logger, auth),
			Games:  NewGameHandler(st.Logger, games),
		}),
		auth:   auth,
		events: events,
	}
}

func (that *testServer) token(t *testing.T, userID string) string {
	t.Helper()

	token, _, err := that.auth.GenerateToken(userID)
	require.NoError(t, err)

	return token
}

func (that *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	request := httptest.NewRequest(method, path, &payload)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	that.router.ServeHTTP(recorder, request)

	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var response errorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))

	return response.Error
}

func TestRouter_Ping(t *testing.T) {
	srv := newTestServer(t)

	recorder := srv.do(t, http.MethodGet, "/ping", "", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "pong", recorder.Body.String())
}

func TestRouter_Auth(t *testing.T) {
	t.Run("Anonymous sign in issues a working token", func(t *testing.T) {
		srv := newTestServer(t)

		recorder := srv.do(t, http.MethodPost, "/auth/anonymous", "", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		var signIn tokenResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &signIn))
		require.NotEmpty(t, signIn.UserID)

		recorder = srv.do(t, http.MethodPost, "/api/checkAuth", signIn.Token, nil)

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `{"callerId":"`+signIn.UserID+`"}`, recorder.Body.String())
	})

	t.Run("Missing token is 401", func(t *testing.T) {
		srv := newTestServer(t)

		recorder := srv.do(t, http.MethodPost, "/api/createGame", "", nil)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Equal(t, "unauthenticated", decodeError(t, recorder).Status)
	})

	t.Run("Garbage token is 401", func(t *testing.T) {
		srv := newTestServer(t)

		recorder := srv.do(t, http.MethodPost, "/api/checkAuth", "not-a-jwt", nil)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestRouter_GameFlow(t *testing.T) {
	srv := newTestServer(t)
	red := srv.token(t, "red")
	yellow := srv.token(t, "yellow")
	other := srv.token(t, "other")

	// Given: red creates a game
	recorder := srv.do(t, http.MethodPost, "/api/createGame", red, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var created createGameResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))
	require.NotEmpty(t, created.GameID)

	t.Run("Move before the opponent joins is a precondition failure", func(t *testing.T) {
		recorder := srv.do(t, http.MethodPost, "/api/playMove", red, moveBody(created.GameID, 0))

		assert.Equal(t, http.StatusPreconditionFailed, recorder.Code)
		assert.Equal(t, errorBody{Status: "failed-precondition", Message: "need both players for turn"}, decodeError(t, recorder))
	})

	t.Run("Yellow joins", func(t *testing.T) {
		recorder := srv.do(t, http.MethodPost, "/api/joinGame", yellow, gameRequest{GameID: created.GameID})

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `{}`, recorder.Body.String())
	})

	t.Run("Third player is rejected", func(t *testing.T) {
		recorder := srv.do(t, http.MethodPost, "/api/joinGame", other, gameRequest{GameID: created.GameID})

		assert.Equal(t, http.StatusPreconditionFailed, recorder.Code)
		assert.Equal(t, "game is full", decodeError(t, recorder).Message)
	})

	t.Run("Out of range column is an argument error", func(t *testing.T) {
		recorder := srv.do(t, http.MethodPost, "/api/playMove", red, moveBody(created.GameID, 7))

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "invalid-argument", decodeError(t, recorder).Status)
	})

	t.Run("Missing column is an argument error", func(t *testing.T) {
		recorder := srv.do(t, http.MethodPost, "/api/playMove", red, gameRequest{GameID: created.GameID})

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("Red moves and the board is readable", func(t *testing.T) {
		recorder := srv.do(t, http.MethodPost, "/api/playMove", red, moveBody(created.GameID, 3))
		require.Equal(t, http.StatusOK, recorder.Code)

		recorder = srv.do(t, http.MethodGet, "/api/games/"+created.GameID, "", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		var session entity.Session
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &session))
		assert.Equal(t, entity.Red, session.Board[0][3])
		assert.Equal(t, "yellow", session.Turn)
	})

	t.Run("Red cannot move twice", func(t *testing.T) {
		recorder := srv.do(t, http.MethodPost, "/api/playMove", red, moveBody(created.GameID, 3))

		assert.Equal(t, http.StatusPreconditionFailed, recorder.Code)
		assert.Equal(t, "it's not your turn", decodeError(t, recorder).Message)
	})

	t.Run("Open games of the caller", func(t *testing.T) {
		recorder := srv.do(t, http.MethodGet, "/api/games/mine", yellow, nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		var mine playerGamesResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &mine))
		require.Len(t, mine.List, 1)
		assert.Equal(t, created.GameID, mine.List[0].ID)
		assert.Equal(t, entity.StatusOngoing, mine.List[0].Status)
	})

	t.Run("Stranger cannot leave", func(t *testing.T) {
		recorder := srv.do(t, http.MethodPost, "/api/leaveGame", other, gameRequest{GameID: created.GameID})

		assert.Equal(t, http.StatusPreconditionFailed, recorder.Code)
	})

	t.Run("Red forfeits", func(t *testing.T) {
		recorder := srv.do(t, http.MethodPost, "/api/leaveGame", red, gameRequest{GameID: created.GameID})
		require.Equal(t, http.StatusOK, recorder.Code)

		recorder = srv.do(t, http.MethodPost, "/api/playMove", yellow, moveBody(created.GameID, 0))
		assert.Equal(t, http.StatusPreconditionFailed, recorder.Code)
		assert.Equal(t, "game is already won", decodeError(t, recorder).Message)
	})
}

func TestRouter_NotFound(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, "p1")

	recorder := srv.do(t, http.MethodPost, "/api/joinGame", token, gameRequest{GameID: "missing"})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, errorBody{Status: "not-found", Message: "game not found"}, decodeError(t, recorder))

	recorder = srv.do(t, http.MethodGet, "/api/games/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = srv.do(t, http.MethodPost, "/api/joinGame", token, gameRequest{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_GameList(t *testing.T) {
	srv := newTestServer(t)

	recorder := srv.do(t, http.MethodGet, "/api/game-list", "", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"list":{}}`, recorder.Body.String())
}

func moveBody(gameID string, column int) moveRequest {
	return moveRequest{GameID: gameID, MoveCol: &column}
}
