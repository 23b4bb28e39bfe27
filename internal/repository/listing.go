package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/connect4-backend/internal/entity"
)

// ListingRepository - the public list of open games. Only the aggregator writes it.
type ListingRepository interface {
	Get(ctx context.Context) (*entity.PublicListing, error)
	Merge(ctx context.Context, update entity.ListingUpdate) error
}

type dbListing struct {
	logger *slog.Logger

	client    *redis.Client
	publisher publisher
}

func NewListingRepository(logger *slog.Logger, client *redis.Client, publisher publisher) ListingRepository {
	return &dbListing{
		logger:    logger.With("component", "listing-repository"),
		client:    client,
		publisher: publisher,
	}
}

func (that *dbListing) Get(ctx context.Context) (*entity.PublicListing, error) {
	log := that.logger.With("method", "Get")

	fields, err := that.client.HGetAll(ctx, ListingKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get game list: %w", err)
	}

	listing := &entity.PublicListing{List: make(map[string]time.Time, len(fields))}
	for gameID, raw := range fields {
		createdAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			log.Warn("skipping malformed listing entry", "gameID", gameID, "error", err)
			continue
		}

		listing.List[gameID] = createdAt
	}

	return listing, nil
}

// Merge - applies the whole update as one write and announces it.
func (that *dbListing) Merge(ctx context.Context, update entity.ListingUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	_, err := that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(update.Set) > 0 {
			values := make(map[string]interface{}, len(update.Set))
			for gameID, createdAt := range update.Set {
				values[gameID] = createdAt.UTC().Format(time.RFC3339Nano)
			}

			pipe.HSet(ctx, ListingKey, values)
		}

		if len(update.Remove) > 0 {
			pipe.HDel(ctx, ListingKey, update.Remove...)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to merge game list: %w", err)
	}

	if that.publisher != nil {
		if err = that.publisher.Publish(ctx, ListingChannel); err != nil {
			that.logger.Error("failed to publish game list change", "error", err)
		}
	}

	return nil
}
