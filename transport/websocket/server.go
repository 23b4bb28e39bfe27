package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/connect4-backend/internal/apperror"
	"github.com/rocketscienceinc/connect4-backend/internal/entity"
	"github.com/rocketscienceinc/connect4-backend/internal/repository"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
	handshakeTimeout = 10 * time.Second
)

type gameUseCase interface {
	GetGame(ctx context.Context, gameID string) (*entity.Session, error)
	GetGameList(ctx context.Context) (*entity.PublicListing, error)
}

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (<-chan string, error)
}

// loader - reads the current value of the watched document. A nil value means it is gone.
type loader func(ctx context.Context) (any, error)

// Server - pushes the latest game or game list document to websocket observers.
type Server struct {
	logger *slog.Logger

	game       gameUseCase
	subscriber subscriber
	upgrader   websocket.Upgrader
}

func New(logger *slog.Logger, game gameUseCase, subscriber subscriber) *Server {
	return &Server{
		logger:     logger.With("component", "websocket"),
		game:       game,
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}
}

// GameUpdates - streams one game document. The stream ends with null once the game is deleted.
func (that *Server) GameUpdates(c *gin.Context) {
	gameID := c.Param("id")

	that.serve(c, repository.GameChannel(gameID), func(ctx context.Context) (any, error) {
		session, err := that.game.GetGame(ctx, gameID)
		if errors.Is(err, apperror.ErrGameNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		return session, nil
	})
}

func (that *Server) GameListUpdates(c *gin.Context) {
	that.serve(c, repository.ListingChannel, func(ctx context.Context) (any, error) {
		return that.game.GetGameList(ctx)
	})
}

func (that *Server) serve(c *gin.Context, channel string, load loader) {
	log := that.logger.With("method", "serve", "channel", channel)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// subscribe before the first read so no change between the two is missed
	notifications, err := that.subscriber.Subscribe(ctx, channel)
	if err != nil {
		log.Error("failed to subscribe", "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	conn, err := that.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	log.Debug("observer connected")

	go that.readPump(conn, cancel)

	if done := that.push(ctx, conn, load, log); done {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notifications:
			if !ok {
				return
			}

			// only the latest value matters, skip notifications that piled up meanwhile
			drain(notifications)

			if done := that.push(ctx, conn, load, log); done {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err = conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// push - writes the current document. Reports whether the stream is over.
func (that *Server) push(ctx context.Context, conn *websocket.Conn, load loader, log *slog.Logger) bool {
	value, err := load(ctx)
	if err != nil {
		log.Error("failed to load document", "error", err)
		return ctx.Err() != nil
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err = conn.WriteJSON(value); err != nil {
		log.Debug("observer went away", "error", err)
		return true
	}

	if value == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "deleted"),
			time.Now().Add(writeWait))
		return true
	}

	return false
}

// readPump - observers only listen. Reading keeps pongs and close frames flowing.
func (that *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func drain(notifications <-chan string) {
	for {
		select {
		case _, ok := <-notifications:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
