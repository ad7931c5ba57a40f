package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"arcade_arena/internal/game"
	"arcade_arena/internal/logger"
	"arcade_arena/internal/protocol"
)

// Queue is the matchmaking side of the realtime API.
type Queue interface {
	Leaver
	HandleMessage(ctx context.Context, peer protocol.Peer, raw []byte)
}

// Matches is the match side of the realtime API.
type Matches interface {
	Disconnecter
	Connect(ctx context.Context, matchID string, peer protocol.Peer, wallet string) (game.Side, game.Kind, error)
	HandleMessage(matchID string, peer protocol.Peer, raw []byte)
}

type Handler struct {
	registry *Registry
	queue    Queue
	matches  Matches
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandler wires the websocket endpoints. An empty allowedOrigin accepts
// any origin.
func NewHandler(queue Queue, matches Matches, allowedOrigin string) *Handler {
	return &Handler{
		registry: NewRegistry(queue, matches),
		queue:    queue,
		matches:  matches,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
		log: logger.Component("ws"),
	}
}

func (h *Handler) Registry() *Registry { return h.registry }

// Matchmaking serves GET /matchmaking.
func (h *Handler) Matchmaking(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "path", c.FullPath(), "error", err)
		return
	}

	client := NewClient(conn)
	h.registry.Bind(client, Binding{Channel: ChannelMatchmaking})
	h.log.Debug("matchmaking client connected", "client", client.ID)

	go func() {
		defer h.registry.OnDisconnect(client)
		client.Start()
		client.Serve(func(raw []byte) {
			h.queue.HandleMessage(client.Context(), client, raw)
		})
	}()
}

// Game serves GET /game/:matchId. The optional wallet query parameter ties
// the seat to a player so the result can be settled.
func (h *Handler) Game(c *gin.Context) {
	matchID := c.Param("matchId")
	if matchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "matchId required"})
		return
	}
	wallet := c.Query("wallet")
	if wallet != "" && !common.IsHexAddress(wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "path", c.FullPath(), "error", err)
		return
	}

	client := NewClient(conn)
	h.registry.Bind(client, Binding{Channel: ChannelMatch, MatchID: matchID})

	go func() {
		defer h.registry.OnDisconnect(client)
		client.Start()

		side, kind, err := h.matches.Connect(client.Context(), matchID, client, wallet)
		if err != nil {
			h.log.Info("match connection refused", "match_id", matchID, "error", err)
			return
		}
		h.registry.Seat(client, side, kind)
		h.log.Debug("match client seated", "match_id", matchID, "side", side, "kind", kind)

		client.Serve(func(raw []byte) {
			h.matches.HandleMessage(matchID, client, raw)
		})
	}()
}
