package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rocketscienceinc/connect4-backend/pkg/handlers"
)

const shutdownTimeout = 10 * time.Second

type subscriptionHandler interface {
	GameUpdates(c *gin.Context)
	GameListUpdates(c *gin.Context)
}

type Dependencies struct {
	Logger        *slog.Logger
	Auth          AuthHandler
	Games         GameHandler
	Subscriptions subscriptionHandler
}

// NewRouter - every route of the public HTTP surface.
func NewRouter(deps Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(deps.Logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/ping", handlers.PingHandler)
	router.POST("/auth/anonymous", deps.Auth.SignInAnonymously)

	api := router.Group("/api")
	api.GET("/game-list", deps.Games.GetGameList)
	api.GET("/games/:id", deps.Games.GetGame)

	protected := api.Group("/")
	protected.Use(deps.Auth.Authorize)
	protected.POST("/checkAuth", deps.Auth.CheckAuth)
	protected.POST("/createGame", deps.Games.CreateGame)
	protected.POST("/joinGame", deps.Games.JoinGame)
	protected.POST("/leaveGame", deps.Games.LeaveGame)
	protected.POST("/playMove", deps.Games.PlayMove)
	protected.GET("/games/mine", deps.Games.GetPlayerGames)

	if deps.Subscriptions != nil {
		router.GET("/ws/games/:id", deps.Subscriptions.GameUpdates)
		router.GET("/ws/game-list", deps.Subscriptions.GameListUpdates)
	}

	return router
}

// Start - serves handler on port until ctx is done, then shuts down gracefully.
func Start(ctx context.Context, port string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	log := logger.With("component", "http")

	return func(c *gin.Context) {
		started := time.Now()

		c.Next()

		log.Debug("request served",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(started),
		)
	}
}
