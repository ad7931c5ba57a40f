// Package session runs the authoritative state machine of live matches.
package session

import (
	"sync"
	"time"

	"arcade_arena/internal/game"
	"arcade_arena/internal/protocol"
)

// State is the lifecycle phase of a room.
type State string

const (
	StateWaitingForPeer State = "WAITING_FOR_PEER"
	StateInProgress     State = "IN_PROGRESS"
	StateEnded          State = "ENDED"
)

var sides = [2]game.Side{game.SideA, game.SideB}

type slot struct {
	peer    protocol.Peer
	wallet  string
	forfeit *time.Timer
	gen     int
}

func (s *slot) stopForfeit() {
	s.gen++
	if s.forfeit != nil {
		s.forfeit.Stop()
		s.forfeit = nil
	}
}

// Room is the live state of one match. Everything below mu is guarded by it;
// kind is written once before resolved is closed.
type Room struct {
	ID       string
	kind     game.Kind
	resolved chan struct{}

	mu        sync.Mutex
	deleted   bool
	state     State
	slots     map[game.Side]*slot
	engine    game.Engine
	current   game.Side
	startedAt time.Time
	winner    game.Side
	reason    string
	lastMove  *protocol.OpponentMoveData
}

func newRoom(id string) *Room {
	return &Room{
		ID:       id,
		resolved: make(chan struct{}),
		state:    StateWaitingForPeer,
		slots: map[game.Side]*slot{
			game.SideA: {},
			game.SideB: {},
		},
	}
}

func (r *Room) resolve(kind game.Kind) {
	r.kind = kind
	close(r.resolved)
}

// Kind blocks until the room type has been resolved.
func (r *Room) Kind() game.Kind {
	<-r.resolved
	return r.kind
}

func (r *Room) sideOf(peer protocol.Peer) game.Side {
	for _, side := range sides {
		if r.slots[side].peer == peer {
			return side
		}
	}
	return ""
}

// freeSlot picks the slot a new connection binds to. An empty slot already
// claimed by the same wallet wins; otherwise the first empty unclaimed slot.
// A slot claimed by a wallet only rebinds to that wallet.
func (r *Room) freeSlot(wallet string) game.Side {
	if wallet != "" {
		for _, side := range sides {
			s := r.slots[side]
			if s.peer == nil && s.wallet == wallet {
				return side
			}
		}
	}
	for _, side := range sides {
		s := r.slots[side]
		if s.peer == nil && s.wallet == "" {
			return side
		}
	}
	return ""
}

func (r *Room) full() bool {
	return r.slots[game.SideA].peer != nil && r.slots[game.SideB].peer != nil
}

func (r *Room) empty() bool {
	return r.slots[game.SideA].peer == nil && r.slots[game.SideB].peer == nil
}

func (r *Room) broadcast(msg protocol.Outbound) {
	for _, side := range sides {
		if p := r.slots[side].peer; p != nil {
			p.Send(msg)
		}
	}
}

// Snapshot is a read-only copy of a room's state.
type Snapshot struct {
	ID      string
	Kind    game.Kind
	State   State
	Current game.Side
	Winner  game.Side
	Reason  string
	Bound   int
	Board   []any
}

func (r *Room) snapshot() Snapshot {
	s := Snapshot{
		ID:      r.ID,
		Kind:    r.kind,
		State:   r.state,
		Current: r.current,
		Winner:  r.winner,
		Reason:  r.reason,
	}
	for _, side := range sides {
		if r.slots[side].peer != nil {
			s.Bound++
		}
	}
	if r.engine != nil {
		s.Board = r.engine.Board()
	}
	return s
}

// Store is the match id → room table.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewStore() *Store {
	return &Store{rooms: make(map[string]*Room)}
}

// acquire returns the room for id, creating it in WAITING_FOR_PEER when
// absent. created reports whether the caller must resolve its kind.
func (s *Store) acquire(id string) (room *Room, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		return r, false
	}
	r := newRoom(id)
	s.rooms[id] = r
	return r, true
}

func (s *Store) Get(id string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// removeIfEmpty deletes the room once no socket is bound to it.
func (s *Store) removeIfEmpty(r *Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || !r.empty() || s.rooms[r.ID] != r {
		return false
	}
	r.deleted = true
	for _, side := range sides {
		r.slots[side].stopForfeit()
	}
	delete(s.rooms, r.ID)
	return true
}

// Len is the number of live rooms.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
