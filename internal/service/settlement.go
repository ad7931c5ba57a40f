package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"arcade_arena/internal/chain"
	"arcade_arena/internal/domain"
	"arcade_arena/internal/logger"
	"arcade_arena/internal/repository"
)

var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrAlreadySettled = repository.ErrAlreadySettled
	ErrUnknownPlayer  = errors.New("wallet is not a player of this match")
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// SettlementMatches stores an outcome and its XP changes atomically.
type SettlementMatches interface {
	FindByID(ctx context.Context, id string) (*domain.Match, error)
	Settle(ctx context.Context, m *domain.Match, deltas ...repository.XPDelta) ([]*domain.User, error)
}

type SettlementUsers interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type SettlementBadges interface {
	Create(ctx context.Context, userID string, tier domain.Tier) error
}

// SettlementService records match results: XP and tiers in storage, then
// escrow payout, XP mirror and badge mint on the ledger.
type SettlementService struct {
	matches SettlementMatches
	users   SettlementUsers
	badges  SettlementBadges
	ledger  chain.Ledger
	log     *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewSettlementService(matches SettlementMatches, users SettlementUsers, badges SettlementBadges, ledger chain.Ledger) *SettlementService {
	if ledger == nil {
		ledger = chain.Nop{}
	}
	return &SettlementService{
		matches:  matches,
		users:    users,
		badges:   badges,
		ledger:   ledger,
		log:      logger.Component("settlement"),
		inflight: make(map[string]struct{}),
	}
}

// SettlementResult is what a settled match changed.
type SettlementResult struct {
	Match  *domain.Match
	Winner *domain.User
	Loser  *domain.User
}

// Report implements the match runtime's result sink.
func (s *SettlementService) Report(ctx context.Context, outcome domain.MatchOutcome) error {
	_, err := s.Settle(ctx, outcome)
	return err
}

// Settle applies a match outcome once. A second call for the same match
// returns ErrAlreadySettled.
func (s *SettlementService) Settle(ctx context.Context, outcome domain.MatchOutcome) (*SettlementResult, error) {
	if !s.begin(outcome.MatchID) {
		return nil, ErrAlreadySettled
	}
	defer s.done(outcome.MatchID)

	m, err := s.matches.FindByID(ctx, outcome.MatchID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}
	if m.SettledAt != nil {
		return nil, ErrAlreadySettled
	}

	p1, err := s.users.GetByID(ctx, m.P1ID)
	if err != nil {
		return nil, fmt.Errorf("load p1: %w", err)
	}
	p2, err := s.users.GetByID(ctx, m.P2ID)
	if err != nil {
		return nil, fmt.Errorf("load p2: %w", err)
	}

	res := &SettlementResult{Match: m}
	m.DurationSec = outcome.DurationSec

	if outcome.Draw {
		m.Result = domain.MatchResultDraw
		m.WinnerID = nil
		m.XPWinner, m.XPLoser = 0, 0
		if _, err := s.matches.Settle(ctx, m); err != nil {
			return nil, settleErr(err)
		}
		s.settleEscrow(ctx, m, zeroAddress)
		return res, nil
	}

	winner, loser := p2, p1
	switch domain.NormalizeWallet(outcome.WinnerWallet) {
	case domain.NormalizeWallet(p1.WalletAddress):
		winner, loser = p1, p2
	case domain.NormalizeWallet(p2.WalletAddress):
	default:
		return nil, ErrUnknownPlayer
	}

	xpW := domain.XPChange(true, winner.XP, loser.XP)
	xpL := domain.XPChange(false, loser.XP, winner.XP)

	m.Result = domain.MatchResultWin
	m.WinnerID = &winner.ID
	m.XPWinner = xpW
	m.XPLoser = -xpL
	updated, err := s.matches.Settle(ctx, m,
		repository.XPDelta{UserID: winner.ID, Delta: xpW},
		repository.XPDelta{UserID: loser.ID, Delta: xpL},
	)
	if err != nil {
		return nil, settleErr(err)
	}
	res.Winner, res.Loser = updated[0], updated[1]

	s.settleEscrow(ctx, m, res.Winner.WalletAddress)
	for _, u := range []*domain.User{res.Winner, res.Loser} {
		s.mirror(ctx, u)
	}

	s.log.Info("match settled",
		"match_id", m.ID,
		"winner", res.Winner.WalletAddress,
		"xp_winner", xpW,
		"xp_loser", xpL,
	)
	return res, nil
}

func settleErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrAlreadySettled):
		return ErrAlreadySettled
	case errors.Is(err, repository.ErrNotFound):
		return ErrMatchNotFound
	}
	return fmt.Errorf("settle match: %w", err)
}

func (s *SettlementService) begin(matchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[matchID]; busy {
		return false
	}
	s.inflight[matchID] = struct{}{}
	return true
}

func (s *SettlementService) done(matchID string) {
	s.mu.Lock()
	delete(s.inflight, matchID)
	s.mu.Unlock()
}

// Ledger calls below are best effort: failures are logged, never returned.

func (s *SettlementService) settleEscrow(ctx context.Context, m *domain.Match, winner string) {
	if m.EscrowID == nil {
		return
	}
	if _, err := s.ledger.Settle(ctx, *m.EscrowID, winner); err != nil {
		s.log.Warn("escrow settle failed", "match_id", m.ID, "escrow_id", *m.EscrowID, "error", err)
	}
}

// mirror copies the user's XP on chain and unlocks the badges of every
// tier reached above bronze.
func (s *SettlementService) mirror(ctx context.Context, u *domain.User) {
	if _, err := s.ledger.SetXP(ctx, u.WalletAddress, u.XP); err != nil {
		s.log.Warn("xp mirror failed", "wallet", u.WalletAddress, "error", err)
	}

	idx := u.Tier.Index()
	if idx == 0 {
		return
	}
	// the contract rejects a second mint of the same tier
	if _, err := s.ledger.MintBadge(ctx, u.WalletAddress, idx); err != nil {
		s.log.Debug("badge mint skipped", "wallet", u.WalletAddress, "tier", u.Tier, "error", err)
	}
	for _, t := range domain.Tiers[1 : idx+1] {
		if err := s.badges.Create(ctx, u.ID, t.Tier); err != nil {
			s.log.Warn("badge record failed", "user_id", u.ID, "tier", t.Tier, "error", err)
		}
	}
}
