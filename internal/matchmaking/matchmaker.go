// Package matchmaking pairs waiting players into matches and relays the
// escrow coordination signals exchanged by the two players of a fresh match.
package matchmaking

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"arcade_arena/internal/domain"
	"arcade_arena/internal/logger"
	"arcade_arena/internal/metrics"
	"arcade_arena/internal/protocol"
)

// DefaultTimeout is how long a ticket waits for an opponent.
const DefaultTimeout = 30 * time.Second

// storeTimeout bounds every storage call made while pairing.
const storeTimeout = 5 * time.Second

var digitsRe = regexp.MustCompile(`^[0-9]+$`)

// UserStore resolves the persisted player record for a wallet, creating it
// when missing.
type UserStore interface {
	UpsertByWallet(ctx context.Context, wallet string, xp int64) (*domain.User, error)
}

// MatchStore persists new match records. Create fills in m.ID.
type MatchStore interface {
	Create(ctx context.Context, m *domain.Match) error
}

// Ticket is one player waiting in a bucket.
type Ticket struct {
	Peer     protocol.Peer
	Key      string
	GameID   domain.GameID
	Mode     domain.PlayMode
	Stake    float64
	Wallet   string
	UserID   string
	Name     string
	XP       int64
	EscrowID string

	timer *time.Timer
}

type pair struct {
	matchID string
	p1, p2  protocol.Peer
}

// other returns the counterpart of sender, or nil if sender is not a party.
func (p *pair) other(sender protocol.Peer) protocol.Peer {
	switch sender {
	case p.p1:
		return p.p2
	case p.p2:
		return p.p1
	}
	return nil
}

type Option func(*Matchmaker)

// WithTimeout overrides the queue timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Matchmaker) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithIDGenerator replaces the generator used for match ids when storage is
// unavailable.
func WithIDGenerator(gen func() string) Option {
	return func(m *Matchmaker) { m.newID = gen }
}

// Matchmaker owns the queue buckets and the relay pairs. All state is keyed by
// bucket key, peer or match id and guarded by mu; storage calls run outside
// the lock and every continuation re-reads state after them.
type Matchmaker struct {
	users   UserStore
	matches MatchStore
	timeout time.Duration
	newID   func() string
	log     *slog.Logger

	mu      sync.Mutex
	buckets map[string][]*Ticket
	queued  map[protocol.Peer]*Ticket
	joining map[protocol.Peer]struct{}
	pairing map[protocol.Peer]int
	pairs   map[string]*pair
	pairsOf map[protocol.Peer][]string
}

// New builds a matchmaker. users and matches may be nil, in which case
// pairing always uses locally generated identifiers.
func New(users UserStore, matches MatchStore, opts ...Option) *Matchmaker {
	m := &Matchmaker{
		users:   users,
		matches: matches,
		timeout: DefaultTimeout,
		newID:   func() string { return "m_" + uuid.NewString() },
		log:     logger.Component("matchmaking"),
		buckets: make(map[string][]*Ticket),
		queued:  make(map[protocol.Peer]*Ticket),
		joining: make(map[protocol.Peer]struct{}),
		pairing: make(map[protocol.Peer]int),
		pairs:   make(map[string]*pair),
		pairsOf: make(map[protocol.Peer][]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BucketKey is the partition a ticket waits in. Stakes must match exactly.
func BucketKey(gameID domain.GameID, mode domain.PlayMode, stake protocol.Number) string {
	return string(gameID) + "|" + string(mode) + "|" + stake.String()
}

// HandleMessage routes one raw message received on a matchmaking channel.
func (m *Matchmaker) HandleMessage(ctx context.Context, peer protocol.Peer, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("matchmaking handler panic", "panic", r)
			peer.Send(protocol.ErrorMsg(protocol.ReasonBadRequest))
		}
	}()

	var env protocol.Envelope
	if err := protocol.Decode(raw, &env); err != nil {
		peer.Send(protocol.ErrorMsg(protocol.ReasonBadRequest))
		return
	}

	switch env.Action {
	case protocol.ActionJoin:
		var req protocol.JoinRequest
		if err := protocol.Decode(raw, &req); err != nil {
			m.log.Debug("undecodable join", "error", err)
			peer.Send(protocol.ErrorMsg(protocol.ReasonBadRequest))
			return
		}
		m.Join(ctx, peer, req)
	case protocol.ActionEscrow, protocol.ActionReady, protocol.ActionSignedCreate,
		protocol.ActionSignedJoin, protocol.ActionCancel:
		var msg protocol.Coordination
		if err := protocol.Decode(raw, &msg); err != nil {
			return
		}
		m.Relay(peer, msg)
	default:
		peer.Send(protocol.ErrorMsg(protocol.ReasonBadRequest))
	}
}

var (
	errBadWallet = errors.New("wallet must be a 0x prefixed 20 byte hex address")
	errBadGame   = errors.New("unknown gameId")
	errBadMode   = errors.New("unknown playMode")
	errNegative  = errors.New("stakeAmount and playerXP must not be negative")
	errBadEscrow = errors.New("escrowId must be a decimal string")
	errNotFinite = errors.New("stakeAmount and playerXP must be finite")
)

func validateJoin(req protocol.JoinRequest) error {
	if !domain.ValidWallet(req.Wallet) {
		return errBadWallet
	}
	if !domain.GameID(req.GameID).Valid() {
		return errBadGame
	}
	if !domain.PlayMode(req.PlayMode).Valid() {
		return errBadMode
	}
	if !req.StakeAmount.Finite() || !req.PlayerXP.Finite() {
		return errNotFinite
	}
	if req.StakeAmount < 0 || req.PlayerXP < 0 {
		return errNegative
	}
	if req.EscrowID != "" && !digitsRe.MatchString(req.EscrowID) {
		return errBadEscrow
	}
	return nil
}

// Join enqueues the peer or pairs it with the longest waiting compatible
// ticket of the same bucket.
func (m *Matchmaker) Join(ctx context.Context, peer protocol.Peer, req protocol.JoinRequest) {
	if err := validateJoin(req); err != nil {
		m.log.Debug("rejected join", "error", err)
		peer.Send(protocol.ErrorMsg(protocol.ReasonBadRequest))
		return
	}

	m.mu.Lock()
	_, queued := m.queued[peer]
	_, inFlight := m.joining[peer]
	if queued || inFlight {
		m.mu.Unlock()
		peer.Send(protocol.ErrorMsg(protocol.ReasonAlreadyQueued))
		return
	}
	m.joining[peer] = struct{}{}
	m.mu.Unlock()

	wallet := domain.NormalizeWallet(req.Wallet)
	t := &Ticket{
		Peer:     peer,
		Key:      BucketKey(domain.GameID(req.GameID), domain.PlayMode(req.PlayMode), req.StakeAmount),
		GameID:   domain.GameID(req.GameID),
		Mode:     domain.PlayMode(req.PlayMode),
		Stake:    float64(req.StakeAmount),
		Wallet:   wallet,
		Name:     domain.ShortWallet(wallet),
		XP:       int64(req.PlayerXP),
		EscrowID: req.EscrowID,
	}
	m.resolvePlayer(ctx, t)

	m.mu.Lock()
	if _, ok := m.joining[peer]; !ok {
		// the peer left while its record was being resolved
		m.mu.Unlock()
		return
	}
	delete(m.joining, peer)

	opponent := m.takeOpponentLocked(t)
	if opponent == nil {
		m.enqueueLocked(t)
		m.mu.Unlock()
		m.log.Debug("ticket queued", "bucket", t.Key, "wallet", t.Wallet)
		return
	}
	m.pairing[opponent.Peer]++
	m.pairing[t.Peer]++
	m.mu.Unlock()

	m.pair(ctx, opponent, t)
}

func (m *Matchmaker) resolvePlayer(ctx context.Context, t *Ticket) {
	if m.users == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	u, err := m.users.UpsertByWallet(ctx, t.Wallet, t.XP)
	if err != nil {
		m.log.Warn("user upsert failed, using client values", "wallet", t.Wallet, "error", err)
		return
	}
	t.UserID = u.ID
	t.XP = u.XP
	t.Name = u.DisplayName()
}

// takeOpponentLocked removes and returns the oldest ticket in t's bucket that
// belongs to another wallet.
func (m *Matchmaker) takeOpponentLocked(t *Ticket) *Ticket {
	q := m.buckets[t.Key]
	for i, c := range q {
		if c.Wallet == t.Wallet {
			continue
		}
		m.removeLocked(c, i)
		return c
	}
	return nil
}

func (m *Matchmaker) enqueueLocked(t *Ticket) {
	m.buckets[t.Key] = append(m.buckets[t.Key], t)
	m.queued[t.Peer] = t
	metrics.QueueDepth.WithLabelValues(string(t.GameID)).Inc()
	t.timer = time.AfterFunc(m.timeout, func() { m.expire(t) })
}

// removeLocked drops t from its bucket and stops its timer. i is t's index in
// the bucket, or -1 if unknown.
func (m *Matchmaker) removeLocked(t *Ticket, i int) bool {
	q := m.buckets[t.Key]
	if i < 0 {
		for j, c := range q {
			if c == t {
				i = j
				break
			}
		}
	}
	if i < 0 || i >= len(q) || q[i] != t {
		return false
	}
	q = append(q[:i:i], q[i+1:]...)
	if len(q) == 0 {
		delete(m.buckets, t.Key)
	} else {
		m.buckets[t.Key] = q
	}
	if m.queued[t.Peer] == t {
		delete(m.queued, t.Peer)
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	metrics.QueueDepth.WithLabelValues(string(t.GameID)).Dec()
	return true
}

func (m *Matchmaker) expire(t *Ticket) {
	m.mu.Lock()
	removed := m.removeLocked(t, -1)
	m.mu.Unlock()
	if !removed {
		return
	}
	metrics.QueueTimeouts.WithLabelValues(string(t.GameID)).Inc()
	m.log.Debug("ticket timed out", "bucket", t.Key, "wallet", t.Wallet)
	t.Peer.Send(protocol.Outbound{Event: protocol.EventMatchTimeout, Data: protocol.Empty{}})
}

// pair records the match and notifies both players. waiting becomes p1.
func (m *Matchmaker) pair(ctx context.Context, waiting, joiner *Ticket) {
	matchID, p1ID, p2ID, stored := m.createMatch(ctx, waiting, joiner)

	var escrowID *string
	if id := pairEscrow(waiting, joiner); id != "" {
		escrowID = &id
	}

	m.mu.Lock()
	// a peer that left during createMatch must not be registered for relay
	waitingAlive := m.releasePairingLocked(waiting.Peer)
	joinerAlive := m.releasePairingLocked(joiner.Peer)
	if waitingAlive && joinerAlive {
		m.pairs[matchID] = &pair{matchID: matchID, p1: waiting.Peer, p2: joiner.Peer}
		m.pairsOf[waiting.Peer] = append(m.pairsOf[waiting.Peer], matchID)
		m.pairsOf[joiner.Peer] = append(m.pairsOf[joiner.Peer], matchID)
	}
	m.mu.Unlock()

	storage := "ok"
	if !stored {
		storage = "fallback"
	}
	metrics.MatchesCreated.WithLabelValues(string(joiner.GameID), string(joiner.Mode), storage).Inc()
	m.log.Info("match found", "match_id", matchID, "bucket", joiner.Key, "p1", waiting.Wallet, "p2", joiner.Wallet)

	waiting.Peer.Send(protocol.Outbound{Event: protocol.EventMatchFound, Data: protocol.MatchFoundData{
		MatchID:        matchID,
		EscrowID:       escrowID,
		OpponentID:     p2ID,
		OpponentName:   joiner.Name,
		OpponentWallet: joiner.Wallet,
		Role:           "p1",
	}})
	joiner.Peer.Send(protocol.Outbound{Event: protocol.EventMatchFound, Data: protocol.MatchFoundData{
		MatchID:        matchID,
		EscrowID:       escrowID,
		OpponentID:     p1ID,
		OpponentName:   waiting.Name,
		OpponentWallet: waiting.Wallet,
		Role:           "p2",
	}})
}

// releasePairingLocked drops one in-flight pairing reference and reports
// whether the peer was still connected.
func (m *Matchmaker) releasePairingLocked(peer protocol.Peer) bool {
	n, ok := m.pairing[peer]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(m.pairing, peer)
	} else {
		m.pairing[peer] = n - 1
	}
	return true
}

// pairEscrow is the escrow id of a pair: the joiner's, else the waiting
// player's.
func pairEscrow(waiting, joiner *Ticket) string {
	if joiner.EscrowID != "" {
		return joiner.EscrowID
	}
	return waiting.EscrowID
}

// createMatch stores the match record. When storage fails the match still
// proceeds with a generated id and ephemeral participant ids.
func (m *Matchmaker) createMatch(ctx context.Context, p1, p2 *Ticket) (matchID, p1ID, p2ID string, stored bool) {
	fallback := func() (string, string, string, bool) {
		return m.newID(), "p1", "p2", false
	}
	if m.matches == nil || m.users == nil {
		return fallback()
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	for _, t := range []*Ticket{p1, p2} {
		if t.UserID != "" {
			continue
		}
		u, err := m.users.UpsertByWallet(ctx, t.Wallet, t.XP)
		if err != nil {
			m.log.Warn("user upsert failed, pairing without storage", "wallet", t.Wallet, "error", err)
			return fallback()
		}
		t.UserID = u.ID
	}

	match := &domain.Match{
		Game:   p2.GameID.Code(),
		P1ID:   p1.UserID,
		P2ID:   p2.UserID,
		Result: domain.MatchResultDraw,
	}
	if p2.Mode == domain.PlayModeStake {
		match.ArkStaked = int64(p2.Stake)
	}
	if id := pairEscrow(p1, p2); id != "" {
		match.EscrowID = &id
	}
	if err := m.matches.Create(ctx, match); err != nil {
		m.log.Warn("match create failed, pairing without storage", "p1", p1.Wallet, "p2", p2.Wallet, "error", err)
		return fallback()
	}
	return match.ID, p1.UserID, p2.UserID, true
}

// Relay forwards a coordination signal to the other party of msg.MatchID.
// Unknown matches and senders outside the pair are ignored.
func (m *Matchmaker) Relay(sender protocol.Peer, msg protocol.Coordination) {
	if msg.MatchID == "" {
		return
	}

	m.mu.Lock()
	var target protocol.Peer
	if p, ok := m.pairs[msg.MatchID]; ok {
		target = p.other(sender)
	}
	m.mu.Unlock()
	if target == nil {
		return
	}

	switch msg.Action {
	case protocol.ActionEscrow:
		escrowID := escrowString(msg.EscrowID)
		if escrowID == "" {
			return
		}
		target.Send(protocol.Outbound{Event: protocol.EventEscrow, Data: protocol.RelayData{MatchID: msg.MatchID, EscrowID: escrowID}})
	case protocol.ActionReady:
		target.Send(protocol.Outbound{Event: protocol.EventReady, Data: protocol.RelayData{MatchID: msg.MatchID}})
	case protocol.ActionSignedCreate:
		target.Send(protocol.Outbound{Event: protocol.EventSignedCreate, Data: protocol.RelayData{MatchID: msg.MatchID}})
	case protocol.ActionSignedJoin:
		target.Send(protocol.Outbound{Event: protocol.EventSignedJoin, Data: protocol.RelayData{MatchID: msg.MatchID}})
	case protocol.ActionCancel:
		reason := msg.Reason
		if reason == "" {
			reason = "cancelled"
		}
		target.Send(protocol.Outbound{Event: protocol.EventMatchCancel, Data: protocol.CancelData{MatchID: msg.MatchID, Reason: reason}})
	}
}

// Leave releases everything the peer holds: its queue ticket, an in-flight
// join and its relay pairs.
func (m *Matchmaker) Leave(peer protocol.Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.joining, peer)
	delete(m.pairing, peer)
	if t, ok := m.queued[peer]; ok {
		m.removeLocked(t, -1)
	}
	for _, id := range m.pairsOf[peer] {
		p, ok := m.pairs[id]
		if !ok {
			continue
		}
		delete(m.pairs, id)
		if other := p.other(peer); other != nil {
			m.pairsOf[other] = dropID(m.pairsOf[other], id)
			if len(m.pairsOf[other]) == 0 {
				delete(m.pairsOf, other)
			}
		}
	}
	delete(m.pairsOf, peer)
}

// Waiting reports how many tickets are queued under key.
func (m *Matchmaker) Waiting(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets[key])
}

func dropID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func escrowString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case interface{ String() string }:
		return x.String()
	default:
		return ""
	}
}
