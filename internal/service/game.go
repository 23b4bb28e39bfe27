package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/connect4-backend/internal/entity"
	"github.com/rocketscienceinc/connect4-backend/internal/repository"
)

type GameService interface {
	CreateGame(ctx context.Context, playerID string) (*entity.Session, error)
	JoinGame(ctx context.Context, gameID, playerID string) (*entity.Session, entity.Outcome, error)
	LeaveGame(ctx context.Context, gameID, playerID string) (*entity.Session, entity.Outcome, error)
	PlayMove(ctx context.Context, gameID, playerID string, column int) (*entity.Session, entity.Outcome, error)

	GetGameByID(ctx context.Context, id string) (*entity.Session, error)
	GetPlayerGames(ctx context.Context, playerID string) ([]*entity.Session, error)
}

type sessionRepo interface {
	Create(ctx context.Context, session *entity.Session) error
	Update(ctx context.Context, id string, mutate repository.Mutation) (*entity.Session, entity.Outcome, error)
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	ListByPlayer(ctx context.Context, playerID string) ([]*entity.Session, error)
}

type gameService struct {
	sessionRepo sessionRepo
	newID       func() string
	clock       func() time.Time
}

func NewGameService(sessionRepo sessionRepo, clock func() time.Time) GameService {
	if clock == nil {
		clock = time.Now
	}

	return &gameService{
		sessionRepo: sessionRepo,
		newID:       uuid.NewString,
		clock:       clock,
	}
}

func (that *gameService) CreateGame(ctx context.Context, playerID string) (*entity.Session, error) {
	session := entity.NewSession(that.newID(), playerID, that.clock().UTC())

	if err := that.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create game in storage: %w", err)
	}

	return session, nil
}

func (that *gameService) JoinGame(ctx context.Context, gameID, playerID string) (*entity.Session, entity.Outcome, error) {
	return that.update(ctx, gameID, func(session *entity.Session) (entity.Outcome, error) {
		return session.Join(playerID, that.clock().UTC())
	})
}

func (that *gameService) LeaveGame(ctx context.Context, gameID, playerID string) (*entity.Session, entity.Outcome, error) {
	return that.update(ctx, gameID, func(session *entity.Session) (entity.Outcome, error) {
		return session.Leave(playerID, that.clock().UTC())
	})
}

func (that *gameService) PlayMove(ctx context.Context, gameID, playerID string, column int) (*entity.Session, entity.Outcome, error) {
	return that.update(ctx, gameID, func(session *entity.Session) (entity.Outcome, error) {
		return session.Move(playerID, column, that.clock().UTC())
	})
}

func (that *gameService) GetGameByID(ctx context.Context, id string) (*entity.Session, error) {
	session, err := that.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve game from storage: %w", err)
	}

	return session, nil
}

func (that *gameService) GetPlayerGames(ctx context.Context, playerID string) ([]*entity.Session, error) {
	sessions, err := that.sessionRepo.ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve player games from storage: %w", err)
	}

	return sessions, nil
}

func (that *gameService) update(ctx context.Context, gameID string, mutate repository.Mutation) (*entity.Session, entity.Outcome, error) {
	session, outcome, err := that.sessionRepo.Update(ctx, gameID, mutate)
	if err != nil {
		return nil, entity.Outcome{}, fmt.Errorf("failed to update game: %w", err)
	}

	return session, outcome, nil
}
