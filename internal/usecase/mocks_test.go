package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/connect4-backend/internal/entity"
	"github.com/rocketscienceinc/connect4-backend/internal/service"
)

type mockGameService struct {
	mock.Mock
}

func (that *mockGameService) CreateGame(ctx context.Context, playerID string) (*entity.Session, error) {
	args := that.Called(ctx, playerID)
	session, _ := args.Get(0).(*entity.Session)
	return session, args.Error(1)
}

func (that *mockGameService) JoinGame(ctx context.Context, gameID, playerID string) (*entity.Session, entity.Outcome, error) {
	args := that.Called(ctx, gameID, playerID)
	session, _ := args.Get(0).(*entity.Session)
	return session, args.Get(1).(entity.Outcome), args.Error(2)
}

func (that *mockGameService) LeaveGame(ctx context.Context, gameID, playerID string) (*entity.Session, entity.Outcome, error) {
	args := that.Called(ctx, gameID, playerID)
	session, _ := args.Get(0).(*entity.Session)
	return session, args.Get(1).(entity.Outcome), args.Error(2)
}

func (that *mockGameService) PlayMove(ctx context.Context, gameID, playerID string, column int) (*entity.Session, entity.Outcome, error) {
	args := that.Called(ctx, gameID, playerID, column)
	session, _ := args.Get(0).(*entity.Session)
	return session, args.Get(1).(entity.Outcome), args.Error(2)
}

func (that *mockGameService) GetGameByID(ctx context.Context, id string) (*entity.Session, error) {
	args := that.Called(ctx, id)
	session, _ := args.Get(0).(*entity.Session)
	return session, args.Error(1)
}

func (that *mockGameService) GetPlayerGames(ctx context.Context, playerID string) ([]*entity.Session, error) {
	args := that.Called(ctx, playerID)
	sessions, _ := args.Get(0).([]*entity.Session)
	return sessions, args.Error(1)
}

type mockScheduler struct {
	mock.Mock
}

func (that *mockScheduler) EnsureRun(ctx context.Context, now time.Time) (service.RunResult, error) {
	args := that.Called(ctx, now)
	return args.Get(0).(service.RunResult), args.Error(1)
}

type mockListing struct {
	mock.Mock
}

func (that *mockListing) Get(ctx context.Context) (*entity.PublicListing, error) {
	args := that.Called(ctx)
	listing, _ := args.Get(0).(*entity.PublicListing)
	return listing, args.Error(1)
}
