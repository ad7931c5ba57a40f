package session

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"arcade_arena/internal/domain"
	"arcade_arena/internal/game"
	"arcade_arena/internal/logger"
	"arcade_arena/internal/metrics"
	"arcade_arena/internal/protocol"
)

// ErrRoomFull is returned by Connect when both seats are taken.
var ErrRoomFull = errors.New("room full")

// errRoomGone means the room was deleted while the caller waited for it.
var errRoomGone = errors.New("room deleted")

const (
	lookupTimeout = 5 * time.Second
	reportTimeout = 30 * time.Second
)

// MatchFinder looks up the stored match record to learn its game.
type MatchFinder interface {
	FindByID(ctx context.Context, id string) (*domain.Match, error)
}

// ResultSink receives the outcome of every finished match whose players'
// wallets are known.
type ResultSink interface {
	Report(ctx context.Context, outcome domain.MatchOutcome) error
}

type Option func(*Runtime)

// WithResultSink hands terminal outcomes to sink.
func WithResultSink(sink ResultSink) Option {
	return func(rt *Runtime) { rt.results = sink }
}

// WithForfeitGrace sets how long a disconnected player of an in-progress
// match has to come back before the opponent wins. Zero disables it.
func WithForfeitGrace(d time.Duration) Option {
	return func(rt *Runtime) { rt.grace = d }
}

// WithStartPicker replaces the random choice of the starting side.
func WithStartPicker(pick func() game.Side) Option {
	return func(rt *Runtime) { rt.pickStart = pick }
}

func WithClock(now func() time.Time) Option {
	return func(rt *Runtime) { rt.now = now }
}

// Runtime drives every room in its Store. Rooms are addressed only by match
// id; each room serializes its own mutations.
type Runtime struct {
	store     *Store
	matches   MatchFinder
	results   ResultSink
	grace     time.Duration
	pickStart func() game.Side
	now       func() time.Time
	log       *slog.Logger
}

// NewRuntime builds a runtime. matches may be nil, in which case every room
// plays tic-tac-toe.
func NewRuntime(store *Store, matches MatchFinder, opts ...Option) *Runtime {
	rt := &Runtime{
		store:   store,
		matches: matches,
		pickStart: func() game.Side {
			if rand.Intn(2) == 0 {
				return game.SideA
			}
			return game.SideB
		},
		now: time.Now,
		log: logger.Component("session"),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Runtime) Store() *Store { return rt.store }

// Room returns a snapshot of the room for matchID.
func (rt *Runtime) Room(matchID string) (Snapshot, bool) {
	room, ok := rt.store.Get(matchID)
	if !ok {
		return Snapshot{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.snapshot(), true
}

func (rt *Runtime) resolveKind(ctx context.Context, matchID string) game.Kind {
	if rt.matches == nil {
		return game.KindTicTacToe
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
	defer cancel()

	m, err := rt.matches.FindByID(ctx, matchID)
	if err != nil {
		rt.log.Warn("match lookup failed, defaulting to tic-tac-toe", "match_id", matchID, "error", err)
		return game.KindTicTacToe
	}
	return game.KindFromCode(string(m.Game))
}

// Connect binds peer to a seat of matchID, creating the room on first
// arrival. The second binding starts the match; later bindings replay the
// current state to the newcomer. wallet may be empty.
func (rt *Runtime) Connect(ctx context.Context, matchID string, peer protocol.Peer, wallet string) (game.Side, game.Kind, error) {
	wallet = domain.NormalizeWallet(wallet)
	for {
		room, created := rt.store.acquire(matchID)
		if created {
			room.resolve(rt.resolveKind(ctx, matchID))
		}

		select {
		case <-room.resolved:
		case <-ctx.Done():
			rt.store.removeIfEmpty(room)
			return "", "", ctx.Err()
		}

		side, err := rt.bind(room, peer, wallet)
		if errors.Is(err, errRoomGone) {
			continue
		}
		if err != nil {
			peer.Send(protocol.ErrorMsg(string(game.ReasonRoomFull)))
			return "", room.kind, err
		}
		return side, room.kind, nil
	}
}

func (rt *Runtime) bind(room *Room, peer protocol.Peer, wallet string) (game.Side, error) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.deleted {
		return "", errRoomGone
	}
	if s := room.sideOf(peer); s != "" {
		return s, nil
	}
	side := room.freeSlot(wallet)
	if side == "" {
		return "", ErrRoomFull
	}

	s := room.slots[side]
	s.peer = peer
	if wallet != "" {
		s.wallet = wallet
	}
	s.stopForfeit()
	rt.log.Debug("seat bound", "match_id", room.ID, "side", side, "state", room.state)

	switch {
	case room.state == StateWaitingForPeer && room.full():
		rt.startLocked(room)
	case room.state != StateWaitingForPeer:
		rt.replayLocked(room, peer, side)
	}
	return side, nil
}

func (rt *Runtime) startLocked(room *Room) {
	engine, err := game.New(room.kind)
	if err != nil {
		rt.log.Error("cannot start match", "match_id", room.ID, "error", err)
		return
	}
	room.engine = engine
	room.state = StateInProgress
	room.current = rt.pickStart()
	room.startedAt = rt.now()
	metrics.MatchesStarted.WithLabelValues(string(room.kind)).Inc()
	rt.log.Info("match started", "match_id", room.ID, "kind", room.kind, "current", room.current)

	for _, side := range sides {
		room.slots[side].peer.Send(rt.startMsg(room, side))
	}
	if engine.Board() != nil {
		room.broadcast(rt.stateMsg(room))
	}
}

// replayLocked resynchronizes a peer joining a started room.
func (rt *Runtime) replayLocked(room *Room, peer protocol.Peer, side game.Side) {
	if room.engine != nil {
		peer.Send(rt.startMsg(room, side))
	}
	switch {
	case room.engine != nil && room.engine.Board() != nil:
		peer.Send(rt.stateMsg(room))
	case room.lastMove != nil:
		peer.Send(protocol.Outbound{Event: protocol.EventOpponentMove, Data: *room.lastMove})
	}
	if room.state == StateEnded {
		peer.Send(endMsg(room))
	}
}

func (rt *Runtime) startMsg(room *Room, side game.Side) protocol.Outbound {
	return protocol.Outbound{Event: protocol.EventStart, Data: protocol.StartData{
		StartAt: room.startedAt.UnixMilli(),
		Current: room.current,
		Side:    side,
	}}
}

func (rt *Runtime) stateMsg(room *Room) protocol.Outbound {
	return protocol.Outbound{Event: protocol.EventState, Data: protocol.StateData{
		Board:     room.engine.Board(),
		Current:   room.current,
		Timestamp: rt.now().UnixMilli(),
	}}
}

func endMsg(room *Room) protocol.Outbound {
	return protocol.Outbound{Event: protocol.EventGameEnd, Data: protocol.GameEndData{
		WinnerSide: protocol.SidePtr(room.winner),
		Reason:     room.reason,
	}}
}

func reject(peer protocol.Peer, reason game.Reason) {
	peer.Send(protocol.ErrorMsg(string(reason)))
}

// HandleMessage applies one raw message from peer to the room of matchID.
// Rule violations go back to the sender only.
func (rt *Runtime) HandleMessage(matchID string, peer protocol.Peer, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			rt.log.Error("match handler panic", "match_id", matchID, "panic", r)
			reject(peer, game.ReasonBadMessage)
		}
	}()

	var msg protocol.MatchMessage
	if err := protocol.Decode(raw, &msg); err != nil {
		reject(peer, game.ReasonBadMessage)
		return
	}

	switch msg.Action {
	case protocol.ActionMove:
		if msg.Position == nil || *msg.Position < 0 || *msg.Position > protocol.MaxPosition {
			reject(peer, game.ReasonBadMessage)
			return
		}
	case protocol.ActionChoice:
		if !msg.Choice.Valid() {
			reject(peer, game.ReasonBadMessage)
			return
		}
	case protocol.ActionEnd:
	default:
		reject(peer, game.ReasonBadMessage)
		return
	}

	room, ok := rt.store.Get(matchID)
	if !ok {
		return
	}
	<-room.resolved

	room.mu.Lock()
	defer room.mu.Unlock()

	side := room.sideOf(peer)
	switch msg.Action {
	case protocol.ActionMove:
		rt.moveLocked(room, peer, side, *msg.Position)
	case protocol.ActionChoice:
		rt.chooseLocked(room, peer, side, msg.Choice)
	case protocol.ActionEnd:
		reason := ""
		if msg.Data != nil {
			reason = msg.Data.Reason
		}
		rt.forfeitLocked(room, peer, side, reason)
	}
}

func (rt *Runtime) moveLocked(room *Room, peer protocol.Peer, side game.Side, position int) {
	switch {
	case room.state == StateEnded:
		reject(peer, game.ReasonGameEnded)
		return
	case room.kind == game.KindRPS:
		reject(peer, game.ReasonInvalidAction)
		return
	case room.state != StateInProgress || !side.Valid() || room.current != side:
		reject(peer, game.ReasonNotYourTurn)
		return
	}

	out, err := room.engine.Move(side, position)
	if err != nil {
		rejectErr(peer, err)
		return
	}
	room.lastMove = &protocol.OpponentMoveData{Position: position, Timestamp: rt.now().UTC().Format(time.RFC3339Nano)}
	if !out.Ended {
		room.current = side.Other()
	}
	room.broadcast(rt.stateMsg(room))
	if out.Ended {
		rt.finishLocked(room, out.Winner, out.Reason)
	}
}

func (rt *Runtime) chooseLocked(room *Room, peer protocol.Peer, side game.Side, choice game.Choice) {
	switch {
	case room.state == StateEnded:
		reject(peer, game.ReasonGameEnded)
		return
	case room.kind != game.KindRPS:
		reject(peer, game.ReasonInvalidAction)
		return
	case room.state != StateInProgress || !side.Valid():
		reject(peer, game.ReasonNotYourTurn)
		return
	}

	out, err := room.engine.Choose(side, choice)
	if err != nil {
		rejectErr(peer, err)
		return
	}
	if rv := out.Reveal; rv != nil {
		room.broadcast(protocol.Outbound{Event: protocol.EventRPSReveal, Data: protocol.RevealData{
			Round:      rv.Round,
			AChoice:    rv.AChoice,
			BChoice:    rv.BChoice,
			WinnerSide: protocol.SidePtr(rv.Winner),
		}})
	}
	if out.Ended {
		rt.finishLocked(room, out.Winner, out.Reason)
	}
}

// forfeitLocked ends the match in favour of the other side of the sender.
func (rt *Runtime) forfeitLocked(room *Room, peer protocol.Peer, side game.Side, reason string) {
	if !side.Valid() {
		return
	}
	if room.state == StateEnded {
		reject(peer, game.ReasonGameEnded)
		return
	}
	if reason == "" {
		reason = game.EndForfeit
	}
	rt.finishLocked(room, side.Other(), reason)
}

func rejectErr(peer protocol.Peer, err error) {
	var reason game.Reason
	if errors.As(err, &reason) {
		reject(peer, reason)
		return
	}
	reject(peer, game.ReasonBadMessage)
}

// finishLocked moves the room to ENDED and tells both sides. winner is empty
// for a draw.
func (rt *Runtime) finishLocked(room *Room, winner game.Side, reason string) {
	room.state = StateEnded
	room.winner = winner
	room.reason = reason
	for _, side := range sides {
		room.slots[side].stopForfeit()
	}
	room.broadcast(endMsg(room))

	metrics.MatchesEnded.WithLabelValues(string(room.kind), endLabel(reason)).Inc()
	rt.log.Info("match ended", "match_id", room.ID, "winner", winner, "reason", reason)
	rt.reportLocked(room)
}

// endLabel bounds the reason label to the server's own terminal reasons.
// Free text sent with an end action counts as a forfeit.
func endLabel(reason string) string {
	switch reason {
	case game.EndTicTacToeWin, game.EndConnectFourWin, game.EndConnectFourDraw,
		game.EndRPSFirstTo5, game.EndForfeit, game.EndOpponentLeft:
		return reason
	}
	return game.EndForfeit
}

func (rt *Runtime) reportLocked(room *Room) {
	if rt.results == nil {
		return
	}
	wa, wb := room.slots[game.SideA].wallet, room.slots[game.SideB].wallet
	if wa == "" || wb == "" {
		rt.log.Debug("wallets unknown, outcome not reported", "match_id", room.ID)
		return
	}

	outcome := domain.MatchOutcome{MatchID: room.ID, Reason: room.reason}
	if !room.startedAt.IsZero() {
		outcome.DurationSec = int64(rt.now().Sub(room.startedAt).Seconds())
	}
	switch room.winner {
	case game.SideA:
		outcome.WinnerWallet, outcome.LoserWallet = wa, wb
	case game.SideB:
		outcome.WinnerWallet, outcome.LoserWallet = wb, wa
	default:
		outcome.Draw = true
		outcome.WinnerWallet, outcome.LoserWallet = wa, wb
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		if err := rt.results.Report(ctx, outcome); err != nil {
			rt.log.Warn("reporting match outcome failed", "match_id", outcome.MatchID, "error", err)
		}
	}()
}

// Disconnect clears peer's seat. A room with no seats left is deleted; an
// in-progress room with one seat left arms the forfeit timer.
func (rt *Runtime) Disconnect(matchID string, peer protocol.Peer) {
	room, ok := rt.store.Get(matchID)
	if !ok {
		return
	}

	room.mu.Lock()
	side := room.sideOf(peer)
	if side == "" {
		room.mu.Unlock()
		return
	}
	s := room.slots[side]
	s.peer = nil
	empty := room.empty()
	if !empty && room.state == StateInProgress && rt.grace > 0 {
		s.stopForfeit()
		gen := s.gen
		s.forfeit = time.AfterFunc(rt.grace, func() { rt.abandon(room, side, gen) })
	}
	room.mu.Unlock()

	if empty && rt.store.removeIfEmpty(room) {
		rt.log.Debug("room deleted", "match_id", matchID)
	}
}

// abandon ends the match if side has not come back since disconnect gen.
func (rt *Runtime) abandon(room *Room, side game.Side, gen int) {
	room.mu.Lock()
	defer room.mu.Unlock()

	s := room.slots[side]
	if s.gen != gen {
		return
	}
	s.forfeit = nil
	if room.deleted || room.state != StateInProgress || s.peer != nil {
		return
	}
	rt.finishLocked(room, side.Other(), game.EndOpponentLeft)
}
