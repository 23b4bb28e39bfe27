package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/connect4-backend/internal/apperror"
	"github.com/rocketscienceinc/connect4-backend/internal/entity"
	"github.com/rocketscienceinc/connect4-backend/internal/service"
)

type GameUseCase interface {
	CreateGame(ctx context.Context, playerID string) (string, error)
	JoinGame(ctx context.Context, playerID, gameID string) error
	LeaveGame(ctx context.Context, playerID, gameID string) error
	PlayMove(ctx context.Context, playerID, gameID string, column int) error

	GetGame(ctx context.Context, gameID string) (*entity.Session, error)
	GetPlayerGames(ctx context.Context, playerID string) ([]*entity.Session, error)
	GetGameList(ctx context.Context) (*entity.PublicListing, error)
}

type gameService interface {
	CreateGame(ctx context.Context, playerID string) (*entity.Session, error)
	JoinGame(ctx context.Context, gameID, playerID string) (*entity.Session, entity.Outcome, error)
	LeaveGame(ctx context.Context, gameID, playerID string) (*entity.Session, entity.Outcome, error)
	PlayMove(ctx context.Context, gameID, playerID string, column int) (*entity.Session, entity.Outcome, error)

	GetGameByID(ctx context.Context, id string) (*entity.Session, error)
	GetPlayerGames(ctx context.Context, playerID string) ([]*entity.Session, error)
}

type scheduler interface {
	EnsureRun(ctx context.Context, now time.Time) (service.RunResult, error)
}

type listingReader interface {
	Get(ctx context.Context) (*entity.PublicListing, error)
}

type gameUseCase struct {
	logger *slog.Logger

	gameService gameService
	scheduler   scheduler
	listing     listingReader
	clock       func() time.Time
}

func NewGameUseCase(logger *slog.Logger, gameService gameService, scheduler scheduler, listing listingReader) GameUseCase {
	return &gameUseCase{
		logger:      logger.With("component", "game-usecase"),
		gameService: gameService,
		scheduler:   scheduler,
		listing:     listing,
		clock:       time.Now,
	}
}

func (that *gameUseCase) CreateGame(ctx context.Context, playerID string) (string, error) {
	if playerID == "" {
		return "", apperror.ErrUnauthenticated
	}

	session, err := that.gameService.CreateGame(ctx, playerID)
	if err != nil {
		return "", fmt.Errorf("could not create game: %w", err)
	}

	that.ensureRun(ctx, session.ID)

	return session.ID, nil
}

func (that *gameUseCase) JoinGame(ctx context.Context, playerID, gameID string) error {
	if err := validate(playerID, gameID); err != nil {
		return err
	}

	_, outcome, err := that.gameService.JoinGame(ctx, gameID, playerID)
	if err != nil {
		return fmt.Errorf("could not join game: %w", err)
	}

	if outcome.Listing != "" {
		that.ensureRun(ctx, gameID)
	}

	return nil
}

func (that *gameUseCase) LeaveGame(ctx context.Context, playerID, gameID string) error {
	if err := validate(playerID, gameID); err != nil {
		return err
	}

	_, outcome, err := that.gameService.LeaveGame(ctx, gameID, playerID)
	if err != nil {
		return fmt.Errorf("could not leave game: %w", err)
	}

	if outcome.Listing != "" {
		that.ensureRun(ctx, gameID)
	}

	return nil
}

func (that *gameUseCase) PlayMove(ctx context.Context, playerID, gameID string, column int) error {
	if err := validate(playerID, gameID); err != nil {
		return err
	}

	if _, _, err := that.gameService.PlayMove(ctx, gameID, playerID, column); err != nil {
		return fmt.Errorf("could not play move: %w", err)
	}

	return nil
}

func (that *gameUseCase) GetGame(ctx context.Context, gameID string) (*entity.Session, error) {
	if gameID == "" {
		return nil, fmt.Errorf("%w: gameId", apperror.ErrMissingArgument)
	}

	session, err := that.gameService.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return session, nil
}

func (that *gameUseCase) GetPlayerGames(ctx context.Context, playerID string) ([]*entity.Session, error) {
	if playerID == "" {
		return nil, apperror.ErrUnauthenticated
	}

	sessions, err := that.gameService.GetPlayerGames(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player games: %w", err)
	}

	return sessions, nil
}

func (that *gameUseCase) GetGameList(ctx context.Context) (*entity.PublicListing, error) {
	listing, err := that.listing.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get game list: %w", err)
	}

	return listing, nil
}

// ensureRun - the listing event is already committed, so a scheduling failure only delays
// the listing until the next event and does not fail the call.
func (that *gameUseCase) ensureRun(ctx context.Context, gameID string) {
	log := that.logger.With("method", "ensureRun", "gameID", gameID)

	result, err := that.scheduler.EnsureRun(ctx, that.clock())
	if err != nil {
		log.Error("failed to schedule game list update", "error", err)
		return
	}

	log.Debug("game list update scheduled", "result", result.String())
}

func validate(playerID, gameID string) error {
	if playerID == "" {
		return apperror.ErrUnauthenticated
	}

	if gameID == "" {
		return fmt.Errorf("%w: gameId", apperror.ErrMissingArgument)
	}

	return nil
}
