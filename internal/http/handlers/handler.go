package handlers

import (
	"context"

	"arcade_arena/internal/domain"
	"arcade_arena/internal/repository"
	"arcade_arena/internal/service"
)

type UserStore interface {
	UpsertByWallet(ctx context.Context, wallet string, xp int64) (*domain.User, error)
	GetByWallet(ctx context.Context, wallet string) (*domain.User, error)
	UpdateNickname(ctx context.Context, wallet, nickname string) (*domain.User, error)
	TopByXP(ctx context.Context, limit int) ([]*domain.User, error)
}

type MatchHistory interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]repository.HistoryEntry, error)
	StatsForUser(ctx context.Context, userID string) (repository.UserStats, error)
}

type BadgeStore interface {
	FindByUser(ctx context.Context, userID string) ([]*domain.Badge, error)
}

type MatchStarter interface {
	Start(ctx context.Context, req service.StartRequest) (*domain.Match, error)
}

type Settler interface {
	Settle(ctx context.Context, outcome domain.MatchOutcome) (*service.SettlementResult, error)
}

type FaucetClaimer interface {
	Claim(ctx context.Context, wallet string) (string, error)
}

// ActiveCounter reports live players per game.
type ActiveCounter interface {
	ActiveCounts() map[domain.GameID]int
}

type Handler struct {
	Users      UserStore
	Matches    MatchHistory
	Badges     BadgeStore
	MatchSvc   MatchStarter
	Settlement Settler
	Faucet     FaucetClaimer
	Active     ActiveCounter
}

// walletQuery is the common ?wallet= parameter.
type walletQuery struct {
	Wallet string `form:"wallet"`
}

func (q walletQuery) valid() bool {
	return domain.ValidWallet(q.Wallet)
}
