package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rocketscienceinc/connect4-backend/internal/apperror"
	"github.com/rocketscienceinc/connect4-backend/internal/entity"
)

type gameUseCase interface {
	CreateGame(ctx context.Context, playerID string) (string, error)
	JoinGame(ctx context.Context, playerID, gameID string) error
	LeaveGame(ctx context.Context, playerID, gameID string) error
	PlayMove(ctx context.Context, playerID, gameID string, column int) error

	GetGame(ctx context.Context, gameID string) (*entity.Session, error)
	GetPlayerGames(ctx context.Context, playerID string) ([]*entity.Session, error)
	GetGameList(ctx context.Context) (*entity.PublicListing, error)
}

type GameHandler interface {
	CreateGame(c *gin.Context)
	JoinGame(c *gin.Context)
	LeaveGame(c *gin.Context)
	PlayMove(c *gin.Context)

	GetGame(c *gin.Context)
	GetPlayerGames(c *gin.Context)
	GetGameList(c *gin.Context)
}

type gameHandler struct {
	logger *slog.Logger

	game gameUseCase
}

func NewGameHandler(logger *slog.Logger, game gameUseCase) GameHandler {
	return &gameHandler{
		logger: logger.With("component", "game-handler"),
		game:   game,
	}
}

type gameRequest struct {
	GameID string `json:"gameId"`
}

type moveRequest struct {
	GameID  string `json:"gameId"`
	MoveCol *int   `json:"moveCol"`
}

type createGameResponse struct {
	GameID string `json:"gameId"`
}

// playerGame - a game of the caller together with its derived status.
type playerGame struct {
	*entity.Session
	Status string `json:"status"`
}

type playerGamesResponse struct {
	List []playerGame `json:"list"`
}

type emptyResponse struct{}

func (that *gameHandler) CreateGame(c *gin.Context) {
	log := that.logger.With("method", "CreateGame")

	gameID, err := that.game.CreateGame(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, createGameResponse{GameID: gameID})
}

func (that *gameHandler) JoinGame(c *gin.Context) {
	log := that.logger.With("method", "JoinGame")

	var request gameRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		writeError(c, log, fmt.Errorf("%w: %w", apperror.ErrMissingArgument, err))
		return
	}

	if err := that.game.JoinGame(c.Request.Context(), callerID(c), request.GameID); err != nil {
		writeError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, emptyResponse{})
}

func (that *gameHandler) LeaveGame(c *gin.Context) {
	log := that.logger.With("method", "LeaveGame")

	var request gameRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		writeError(c, log, fmt.Errorf("%w: %w", apperror.ErrMissingArgument, err))
		return
	}

	if err := that.game.LeaveGame(c.Request.Context(), callerID(c), request.GameID); err != nil {
		writeError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, emptyResponse{})
}

func (that *gameHandler) PlayMove(c *gin.Context) {
	log := that.logger.With("method", "PlayMove")

	var request moveRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		writeError(c, log, fmt.Errorf("%w: %w", apperror.ErrMissingArgument, err))
		return
	}

	if request.MoveCol == nil {
		writeError(c, log, fmt.Errorf("%w: moveCol", apperror.ErrMissingArgument))
		return
	}

	if err := that.game.PlayMove(c.Request.Context(), callerID(c), request.GameID, *request.MoveCol); err != nil {
		writeError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, emptyResponse{})
}

func (that *gameHandler) GetGame(c *gin.Context) {
	log := that.logger.With("method", "GetGame")

	session, err := that.game.GetGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// GetPlayerGames - the caller's unresolved games.
func (that *gameHandler) GetPlayerGames(c *gin.Context) {
	log := that.logger.With("method", "GetPlayerGames")

	sessions, err := that.game.GetPlayerGames(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, log, err)
		return
	}

	list := make([]playerGame, 0, len(sessions))
	for _, session := range sessions {
		list = append(list, playerGame{Session: session, Status: session.Status()})
	}

	c.JSON(http.StatusOK, playerGamesResponse{List: list})
}

func (that *gameHandler) GetGameList(c *gin.Context) {
	log := that.logger.With("method", "GetGameList")

	listing, err := that.game.GetGameList(c.Request.Context())
	if err != nil {
		writeError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}
