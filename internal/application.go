package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/connect4-backend/internal/config"
	"github.com/rocketscienceinc/connect4-backend/internal/repository"
	"github.com/rocketscienceinc/connect4-backend/internal/repository/storage"
	"github.com/rocketscienceinc/connect4-backend/internal/service"
	notifier "github.com/rocketscienceinc/connect4-backend/internal/transport/redis"
	"github.com/rocketscienceinc/connect4-backend/internal/usecase"
	"github.com/rocketscienceinc/connect4-backend/transport/rest"
	"github.com/rocketscienceinc/connect4-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

type stack struct {
	client     *redis.Client
	pubsub     *notifier.Client
	events     repository.EventLog
	sessions   repository.SessionRepository
	markers    repository.RunMarkerRepository
	listing    repository.ListingRepository
	aggregator *service.Aggregator
}

// RunApp - runs the HTTP and websocket surface together with the game list aggregator.
func RunApp(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newStack(ctx, logger, conf)
	if err != nil {
		return err
	}
	defer st.close(log)

	auth := service.NewAuthService(service.AuthConfig{
		SecretKey: conf.Auth.JWTSecretKey,
		Issuer:    conf.Auth.Issuer,
		TokenTTL:  conf.Auth.TokenTTL,
	})
	gameService := service.NewGameService(st.sessions, nil)
	scheduler := service.NewScheduler(logger, st.markers, conf.GameList.RatchetGranularity)
	gameUseCase := usecase.NewGameUseCase(logger, gameService, scheduler, st.listing)

	router := rest.NewRouter(rest.Dependencies{
		Logger:        logger,
		Auth:          rest.NewAuthHandler(logger, auth),
		Games:         rest.NewGameHandler(logger, gameUseCase),
		Subscriptions: websocket.New(logger, gameUseCase, st.pubsub),
	})

	return runAll(ctx, log,
		component{name: "aggregator", run: st.aggregator.Run},
		component{name: "HTTP server", run: func(ctx context.Context) error {
			log.Info("Starting HTTP server", "port", conf.HTTPPort)
			return rest.Start(ctx, conf.HTTPPort, router)
		}},
	)
}

type component struct {
	name string
	run  func(ctx context.Context) error
}

// runAll - runs the components until the first one returns or ctx is done, then stops the
// rest and waits for every one of them. Shared resources are closed only after this returns.
func runAll(ctx context.Context, log *slog.Logger, components ...component) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(components))
	for _, c := range components {
		go func() {
			if err := c.run(ctx); err != nil {
				errCh <- fmt.Errorf("%s error: %w", c.name, err)
				return
			}
			errCh <- nil
		}()
	}

	var firstErr error
	for i := range components {
		err := <-errCh
		if i == 0 {
			log.Info("Shutting down")
			cancel()
		}

		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// RunAggregator - runs only the game list aggregator, for deployments that scale it apart
// from the HTTP surface.
func RunAggregator(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newStack(ctx, logger, conf)
	if err != nil {
		return err
	}
	defer st.close(log)

	if err = st.aggregator.Run(ctx); err != nil {
		return fmt.Errorf("aggregator error: %w", err)
	}

	return nil
}

func newStack(ctx context.Context, logger *slog.Logger, conf *config.Config) (*stack, error) {
	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return nil, ErrAddrNotFound
	}

	client, err := storage.NewRedisStorage(ctx, storage.RedisOptions{
		Addr:     redisAddrString,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	pubsub := notifier.New(logger, client)
	events := repository.NewEventLog(client)
	markers := repository.NewRunMarkerRepository(logger, client, pubsub, conf.Store.MaxTxRetries)
	listing := repository.NewListingRepository(logger, client, pubsub)

	return &stack{
		client: client,
		pubsub: pubsub,
		events: events,
		sessions: repository.NewSessionRepository(repository.SessionRepositoryConfig{
			Logger:     logger,
			Client:     client,
			Events:     events,
			Publisher:  pubsub,
			MaxRetries: conf.Store.MaxTxRetries,
		}),
		markers: markers,
		listing: listing,
		aggregator: service.NewAggregator(service.AggregatorConfig{
			Logger:     logger,
			Events:     events,
			Listing:    listing,
			Marker:     markers,
			Leases:     repository.NewLeaseRepository(client, repository.DrainLockKey),
			Subscriber: pubsub,
			Interval:   conf.GameList.DrainInterval,
			LeaseTTL:   conf.GameList.DrainLease,
		}),
	}, nil
}

func (that *stack) close(log *slog.Logger) {
	if err := that.client.Close(); err != nil {
		log.Error("could not close redis storage", "error", err)
	}
}
