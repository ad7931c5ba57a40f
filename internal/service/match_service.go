package service

import (
	"context"
	"fmt"

	"arcade_arena/internal/domain"
	"arcade_arena/internal/logger"
)

type MatchRecords interface {
	FindByID(ctx context.Context, id string) (*domain.Match, error)
	Create(ctx context.Context, m *domain.Match) error
	Update(ctx context.Context, m *domain.Match) error
}

type MatchPlayers interface {
	UpsertByWallet(ctx context.Context, wallet string, xp int64) (*domain.User, error)
}

// MatchService registers matches whose escrow was opened by the players.
type MatchService struct {
	matches MatchRecords
	users   MatchPlayers
}

func NewMatchService(matches MatchRecords, users MatchPlayers) *MatchService {
	return &MatchService{matches: matches, users: users}
}

type StartRequest struct {
	MatchID     string
	P1Wallet    string
	P2Wallet    string
	GameID      domain.GameID
	StakeAmount int64
	EscrowID    *string
}

// Start updates the record created by matchmaking with the players, stake
// and escrow, or creates a fresh one when it does not exist. A settled
// record is returned unchanged.
func (s *MatchService) Start(ctx context.Context, req StartRequest) (*domain.Match, error) {
	p1, err := s.users.UpsertByWallet(ctx, req.P1Wallet, 0)
	if err != nil {
		return nil, fmt.Errorf("upsert p1: %w", err)
	}
	p2, err := s.users.UpsertByWallet(ctx, req.P2Wallet, 0)
	if err != nil {
		return nil, fmt.Errorf("upsert p2: %w", err)
	}

	m := &domain.Match{
		ID:        req.MatchID,
		Game:      req.GameID.Code(),
		P1ID:      p1.ID,
		P2ID:      p2.ID,
		Result:    domain.MatchResultDraw,
		ArkStaked: req.StakeAmount,
		EscrowID:  req.EscrowID,
	}

	if req.MatchID != "" {
		if existing, err := s.matches.FindByID(ctx, req.MatchID); err == nil {
			if existing.SettledAt != nil {
				// a late start must not reopen a settled match
				return existing, nil
			}
			m.CreatedAt = existing.CreatedAt
			err := s.matches.Update(ctx, m)
			if err == nil {
				return m, nil
			}
			logger.Warn("match start update failed, creating", "match_id", req.MatchID, "error", err)
		}
	}

	if err := s.matches.Create(ctx, m); err != nil {
		if req.MatchID == "" {
			return nil, fmt.Errorf("create match: %w", err)
		}
		// the id may collide with a row we failed to update
		m.ID = ""
		if err := s.matches.Create(ctx, m); err != nil {
			return nil, fmt.Errorf("create match: %w", err)
		}
	}
	return m, nil
}
