package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/connect4-backend/internal/entity"
	"github.com/rocketscienceinc/connect4-backend/internal/repository/storage"
)

var ErrRunMarkerNotFound = errors.New("run marker not found")

// RunMarkerRepository - the single ratcheted runUntil document that schedules the aggregator.
type RunMarkerRepository interface {
	Get(ctx context.Context) (*entity.RunMarker, error)
	CreateIfAbsent(ctx context.Context, runUntil time.Time) (bool, error)
	Extend(ctx context.Context, runUntil time.Time) (bool, error)
}

type dbRunMarker struct {
	logger *slog.Logger

	client     *redis.Client
	publisher  publisher
	maxRetries int
}

func NewRunMarkerRepository(logger *slog.Logger, client *redis.Client, publisher publisher, maxRetries int) RunMarkerRepository {
	return &dbRunMarker{
		logger:     logger.With("component", "run-marker-repository"),
		client:     client,
		publisher:  publisher,
		maxRetries: maxRetries,
	}
}

func (that *dbRunMarker) Get(ctx context.Context) (*entity.RunMarker, error) {
	return readRunMarker(ctx, that.client)
}

// CreateIfAbsent - writes the marker only when no marker exists yet.
func (that *dbRunMarker) CreateIfAbsent(ctx context.Context, runUntil time.Time) (bool, error) {
	markerJSON, err := json.Marshal(entity.RunMarker{RunUntil: runUntil.UTC()})
	if err != nil {
		return false, fmt.Errorf("could not marshal run marker: %w", err)
	}

	created, err := that.client.SetNX(ctx, RunMarkerKey, markerJSON, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to create run marker: %w", err)
	}

	if created {
		that.notify(ctx)
	}

	return created, nil
}

// Extend - moves runUntil forward. Nothing is written unless runUntil is still later than
// the stored value when the transaction commits.
func (that *dbRunMarker) Extend(ctx context.Context, runUntil time.Time) (bool, error) {
	var extended bool

	txFn := func(tx *redis.Tx) error {
		extended = false

		current, err := readRunMarker(ctx, tx)
		if err != nil && !errors.Is(err, ErrRunMarkerNotFound) {
			return err
		}

		if current != nil && !runUntil.After(current.RunUntil) {
			return nil
		}

		markerJSON, err := json.Marshal(entity.RunMarker{RunUntil: runUntil.UTC()})
		if err != nil {
			return fmt.Errorf("could not marshal run marker: %w", err)
		}

		if _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, RunMarkerKey, markerJSON, 0)
			return nil
		}); err != nil {
			return err
		}

		extended = true

		return nil
	}

	if err := storage.RunTx(ctx, that.client, that.maxRetries, txFn, RunMarkerKey); err != nil {
		return false, fmt.Errorf("failed to extend run marker: %w", err)
	}

	if extended {
		that.notify(ctx)
	}

	return extended, nil
}

func (that *dbRunMarker) notify(ctx context.Context) {
	if that.publisher == nil {
		return
	}

	if err := that.publisher.Publish(ctx, RunMarkerChannel); err != nil {
		that.logger.Error("failed to publish run marker change", "error", err)
	}
}

func readRunMarker(ctx context.Context, conn getter) (*entity.RunMarker, error) {
	response, err := conn.Get(ctx, RunMarkerKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRunMarkerNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get run marker: %w", err)
	}

	var marker entity.RunMarker
	if err = json.Unmarshal(response, &marker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run marker: %w", err)
	}

	return &marker, nil
}
