package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/connect4-backend/internal/apperror"
	"github.com/rocketscienceinc/connect4-backend/internal/entity"
	"github.com/rocketscienceinc/connect4-backend/internal/repository/storage"
)

// Mutation - state transition applied to a freshly read session inside a transaction.
// It may run more than once when the transaction is retried.
type Mutation func(session *entity.Session) (entity.Outcome, error)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	Update(ctx context.Context, id string, mutate Mutation) (*entity.Session, entity.Outcome, error)
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	ListByPlayer(ctx context.Context, playerID string) ([]*entity.Session, error)
}

type dbSession struct {
	logger *slog.Logger

	client     *redis.Client
	events     EventLog
	publisher  publisher
	clock      func() time.Time
	maxRetries int
}

type SessionRepositoryConfig struct {
	Logger     *slog.Logger
	Client     *redis.Client
	Events     EventLog
	Publisher  publisher
	Clock      func() time.Time
	MaxRetries int
}

func NewSessionRepository(conf SessionRepositoryConfig) SessionRepository {
	clock := conf.Clock
	if clock == nil {
		clock = time.Now
	}

	return &dbSession{
		logger:     conf.Logger.With("component", "session-repository"),
		client:     conf.Client,
		events:     conf.Events,
		publisher:  conf.Publisher,
		clock:      clock,
		maxRetries: conf.MaxRetries,
	}
}

// Create - stores a new session together with its player index entry and ADD event.
func (that *dbSession) Create(ctx context.Context, session *entity.Session) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, GameKey(session.ID), sessionJSON, 0)
		for _, playerID := range session.Players() {
			pipe.SAdd(ctx, playerGamesKey(playerID), session.ID)
		}

		that.events.AppendTx(ctx, pipe, entity.ListingEvent{
			CreatedAt: session.CreatedAt,
			GameID:    session.ID,
			Type:      entity.ListingAdd,
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	that.notify(ctx, session.ID)

	return nil
}

// Update - read-modify-write of one session under optimistic locking.
func (that *dbSession) Update(ctx context.Context, id string, mutate Mutation) (*entity.Session, entity.Outcome, error) {
	key := GameKey(id)

	var (
		session *entity.Session
		outcome entity.Outcome
	)

	txFn := func(tx *redis.Tx) error {
		current, err := that.read(ctx, tx, id)
		if err != nil {
			return err
		}

		seated := current.Players()

		outcome, err = mutate(current)
		if err != nil {
			return err
		}

		session = current

		if !outcome.Changed && !outcome.Deleted {
			return nil
		}

		sessionJSON, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("could not marshal game: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if outcome.Deleted {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, sessionJSON, 0)
			}

			that.index(ctx, pipe, current, seated, outcome)

			if outcome.Listing != "" {
				that.events.AppendTx(ctx, pipe, entity.ListingEvent{
					CreatedAt: that.clock().UTC(),
					GameID:    id,
					Type:      outcome.Listing,
				})
			}

			return nil
		})

		return err
	}

	if err := storage.RunTx(ctx, that.client, that.maxRetries, txFn, key); err != nil {
		return nil, entity.Outcome{}, err
	}

	if outcome.Changed || outcome.Deleted {
		that.notify(ctx, id)
	}

	return session, outcome, nil
}

func (that *dbSession) GetByID(ctx context.Context, id string) (*entity.Session, error) {
	return that.read(ctx, that.client, id)
}

// ListByPlayer - unresolved sessions the player is seated in.
func (that *dbSession) ListByPlayer(ctx context.Context, playerID string) ([]*entity.Session, error) {
	ids, err := that.client.SMembers(ctx, playerGamesKey(playerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get player games: %w", err)
	}

	sessions := make([]*entity.Session, 0, len(ids))
	for _, id := range ids {
		session, err := that.GetByID(ctx, id)
		if errors.Is(err, apperror.ErrGameNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if session.IsResolved() || !session.HasPlayer(playerID) {
			continue
		}

		sessions = append(sessions, session)
	}

	return sessions, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (that *dbSession) read(ctx context.Context, conn getter, id string) (*entity.Session, error) {
	response, err := conn.Get(ctx, GameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrGameNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	var session entity.Session
	if err = json.Unmarshal(response, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	return &session, nil
}

// index - keeps player:<id>:games in step with the seats of unresolved sessions.
func (that *dbSession) index(ctx context.Context, pipe redis.Pipeliner, session *entity.Session, seated []string, outcome entity.Outcome) {
	if outcome.Deleted || session.IsResolved() {
		for _, playerID := range append(seated, session.Players()...) {
			pipe.SRem(ctx, playerGamesKey(playerID), session.ID)
		}

		return
	}

	for _, playerID := range session.Players() {
		pipe.SAdd(ctx, playerGamesKey(playerID), session.ID)
	}
}

func (that *dbSession) notify(ctx context.Context, id string) {
	if that.publisher == nil {
		return
	}

	if err := that.publisher.Publish(ctx, GameChannel(id)); err != nil {
		that.logger.Error("failed to publish game change", "gameID", id, "error", err)
	}
}
