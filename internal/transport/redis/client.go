package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client - change notifications over Redis pub/sub. Payloads are informational only:
// subscribers re-read the document they watch, so a lost or coalesced message never
// leaves an observer on a stale value once a later message arrives.
type Client struct {
	logger *slog.Logger
	client *redis.Client
}

func New(logger *slog.Logger, client *redis.Client) *Client {
	return &Client{
		logger: logger.With("component", "notifier"),
		client: client,
	}
}

// Publish - announces that the document behind channel changed.
func (that *Client) Publish(ctx context.Context, channel string) error {
	payload := time.Now().UTC().Format(time.RFC3339Nano)

	if err := that.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	return nil
}

// Subscribe - delivers the channel name of every notification until ctx is done.
// The returned channel is closed when the subscription ends.
func (that *Client) Subscribe(ctx context.Context, channels ...string) (<-chan string, error) {
	log := that.logger.With("method", "Subscribe", "channels", channels)

	sub := that.client.Subscribe(ctx, channels...)

	// wait for the subscription confirmation so no publish after this call is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan string, 1)

	go func() {
		defer close(out)
		defer func() {
			if err := sub.Close(); err != nil {
				log.Error("failed to close subscription", "error", err)
			}
		}()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}

				select {
				case out <- msg.Channel:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
