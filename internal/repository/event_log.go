package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/connect4-backend/internal/entity"
)

var ErrMalformedEvent = errors.New("malformed listing event")

const (
	fieldCreatedAt = "createdAt"
	fieldGameID    = "gameId"
	fieldType      = "type"
)

// EventLog - append-only log of listing events, ordered by arrival in a Redis stream.
type EventLog interface {
	AppendTx(ctx context.Context, pipe redis.Pipeliner, event entity.ListingEvent)
	Pending(ctx context.Context, limit int64) ([]entity.ListingEvent, error)
	Delete(ctx context.Context, ids ...string) error
}

type dbEventLog struct {
	client *redis.Client
}

func NewEventLog(client *redis.Client) EventLog {
	return &dbEventLog{
		client: client,
	}
}

// AppendTx - queues the append on a transaction pipeline so it commits with the session write.
func (that *dbEventLog) AppendTx(ctx context.Context, pipe redis.Pipeliner, event entity.ListingEvent) {
	pipe.XAdd(ctx, eventArgs(event))
}

// Pending - oldest events first, ordered by createdAt. Entries that cannot be parsed come back
// with only their ID set so the drain deletes them instead of stalling on them.
func (that *dbEventLog) Pending(ctx context.Context, limit int64) ([]entity.ListingEvent, error) {
	var (
		messages []redis.XMessage
		err      error
	)

	if limit > 0 {
		messages, err = that.client.XRangeN(ctx, EventsKey, "-", "+", limit).Result()
	} else {
		messages, err = that.client.XRange(ctx, EventsKey, "-", "+").Result()
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read listing events: %w", err)
	}

	events := make([]entity.ListingEvent, 0, len(messages))
	for _, message := range messages {
		event, err := parseEvent(message)
		if err != nil {
			event = entity.ListingEvent{ID: message.ID}
		}

		events = append(events, event)
	}

	entity.SortListingEvents(events)

	return events, nil
}

func (that *dbEventLog) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := that.client.XDel(ctx, EventsKey, ids...).Err(); err != nil {
		return fmt.Errorf("failed to delete listing events: %w", err)
	}

	return nil
}

func eventArgs(event entity.ListingEvent) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: EventsKey,
		Values: map[string]interface{}{
			fieldCreatedAt: event.CreatedAt.UTC().Format(time.RFC3339Nano),
			fieldGameID:    event.GameID,
			fieldType:      string(event.Type),
		},
	}
}

func parseEvent(message redis.XMessage) (entity.ListingEvent, error) {
	createdAtRaw, _ := message.Values[fieldCreatedAt].(string)
	gameID, _ := message.Values[fieldGameID].(string)
	eventType, _ := message.Values[fieldType].(string)

	createdAt, err := time.Parse(time.RFC3339Nano, createdAtRaw)
	if err != nil {
		return entity.ListingEvent{}, fmt.Errorf("%w %s: %w", ErrMalformedEvent, message.ID, err)
	}

	if gameID == "" {
		return entity.ListingEvent{}, fmt.Errorf("%w %s: empty game id", ErrMalformedEvent, message.ID)
	}

	switch entity.ListingEventType(eventType) {
	case entity.ListingAdd, entity.ListingDelete:
	default:
		return entity.ListingEvent{}, fmt.Errorf("%w %s: unknown type %q", ErrMalformedEvent, message.ID, eventType)
	}

	return entity.ListingEvent{
		ID:        message.ID,
		CreatedAt: createdAt,
		GameID:    gameID,
		Type:      entity.ListingEventType(eventType),
	}, nil
}
