package ws

import (
	"sync"

	"arcade_arena/internal/domain"
	"arcade_arena/internal/game"
	"arcade_arena/internal/metrics"
	"arcade_arena/internal/protocol"
)

// Channel is the kind of socket a client opened.
type Channel string

const (
	ChannelMatchmaking Channel = "matchmaking"
	ChannelMatch       Channel = "match"
)

// Binding is the responsibility a client holds: a queue ticket or a seat of
// a match room. Side and Kind are set once the seat is taken.
type Binding struct {
	Channel Channel
	MatchID string
	Side    game.Side
	Kind    game.Kind
}

// Leaver releases a matchmaking client.
type Leaver interface {
	Leave(peer protocol.Peer)
}

// Disconnecter releases a match seat.
type Disconnecter interface {
	Disconnect(matchID string, peer protocol.Peer)
}

// Registry maps every live client to its binding and cleans up exactly once
// when the client goes away. It also keeps the approximate per-game count of
// seated match players.
type Registry struct {
	queue   Leaver
	matches Disconnecter

	mu      sync.Mutex
	clients map[*Client]*Binding
	active  map[game.Kind]int
}

func NewRegistry(queue Leaver, matches Disconnecter) *Registry {
	return &Registry{
		queue:   queue,
		matches: matches,
		clients: make(map[*Client]*Binding),
		active:  make(map[game.Kind]int),
	}
}

// Bind associates c with b. It reports false if c is already bound.
func (r *Registry) Bind(c *Client, b Binding) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; ok {
		return false
	}
	r.clients[c] = &b
	return true
}

// Seat records the side and game of a match client and counts it as active.
func (r *Registry) Seat(c *Client, side game.Side, kind game.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.clients[c]
	if !ok || b.Kind != "" {
		return
	}
	b.Side, b.Kind = side, kind
	r.active[kind]++
	metrics.ActivePlayers.WithLabelValues(string(gameIDFor(kind))).Inc()
}

// Lookup returns a copy of c's binding.
func (r *Registry) Lookup(c *Client) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.clients[c]
	if !ok {
		return Binding{}, false
	}
	return *b, true
}

// OnDisconnect releases whatever c holds. Only the first call has an effect.
func (r *Registry) OnDisconnect(c *Client) {
	r.mu.Lock()
	b, ok := r.clients[c]
	if ok {
		delete(r.clients, c)
		if b.Kind != "" && r.active[b.Kind] > 0 {
			r.active[b.Kind]--
			metrics.ActivePlayers.WithLabelValues(string(gameIDFor(b.Kind))).Dec()
		}
	}
	r.mu.Unlock()
	defer c.Close()
	if !ok {
		return
	}

	switch b.Channel {
	case ChannelMatchmaking:
		r.queue.Leave(c)
	case ChannelMatch:
		r.matches.Disconnect(b.MatchID, c)
	}
}

// ActiveCounts returns the seated player count per lobby game id.
func (r *Registry) ActiveCounts() map[domain.GameID]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.GameID]int, len(game.Kinds))
	for _, k := range game.Kinds {
		out[gameIDFor(k)] = r.active[k]
	}
	return out
}

// Len is the number of bound clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func gameIDFor(kind game.Kind) domain.GameID {
	switch kind {
	case game.KindConnectFour:
		return domain.GameIDConnectFour
	case game.KindRPS:
		return domain.GameIDRockPaperScissors
	default:
		return domain.GameIDTicTacToe
	}
}
