package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"arcade_arena/internal/domain"
	"arcade_arena/internal/logger"
	"arcade_arena/internal/repository"

	"github.com/gin-gonic/gin"
)

type ProfileStats struct {
	GamesPlayed int64 `json:"gamesPlayed"`
	GamesWon    int64 `json:"gamesWon"`
	WinRate     int64 `json:"winRate"`
}

type ProfileResponse struct {
	ID             string       `json:"id"`
	WalletAddress  string       `json:"walletAddress"`
	Nickname       string       `json:"nickname"`
	Avatar         string       `json:"avatar"`
	XP             int64        `json:"xp"`
	Tier           domain.Tier  `json:"tier"`
	ArkBalance     int64        `json:"arkBalance"`
	Stats          ProfileStats `json:"stats"`
	TotalArkEarned int64        `json:"totalArkEarned"`
	Fallback       bool         `json:"fallback,omitempty"`
}

// GetProfile returns the player's profile, creating the record on first
// visit. Storage failures yield a default profile so the client never blocks.
func (h *Handler) GetProfile(c *gin.Context) {
	var q walletQuery
	if err := c.ShouldBindQuery(&q); err != nil || !q.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.Users.UpsertByWallet(ctx, q.Wallet, 0)
	if err != nil {
		logger.Warn("profile lookup failed, serving fallback", "wallet", q.Wallet, "error", err)
		c.JSON(http.StatusOK, ProfileResponse{
			ID:            "unknown",
			WalletAddress: q.Wallet,
			Tier:          domain.TierBronze,
			Fallback:      true,
		})
		return
	}

	stats, err := h.Matches.StatsForUser(ctx, user.ID)
	if err != nil {
		logger.Warn("profile stats failed", "user_id", user.ID, "error", err)
	}

	c.JSON(http.StatusOK, ProfileResponse{
		ID:            user.ID,
		WalletAddress: user.WalletAddress,
		Nickname:      user.Nickname,
		Avatar:        user.Avatar,
		XP:            user.XP,
		Tier:          user.Tier,
		Stats: ProfileStats{
			GamesPlayed: stats.GamesPlayed,
			GamesWon:    stats.GamesWon,
			WinRate:     stats.WinRate(),
		},
		TotalArkEarned: stats.TotalArkEarned,
	})
}

type UpdateProfileRequest struct {
	Wallet   string `json:"wallet"`
	Nickname string `json:"nickname"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	req.Nickname = strings.TrimSpace(req.Nickname)
	if !domain.ValidWallet(req.Wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet"})
		return
	}
	if !domain.ValidNickname(req.Nickname) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nickname must be 3-20 letters, digits, underscores or spaces"})
		return
	}

	user, err := h.Users.UpdateNickname(c.Request.Context(), req.Wallet, req.Nickname)
	if err != nil {
		logger.Error("nickname update failed", "wallet", req.Wallet, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       user.ID,
		"nickname": user.Nickname,
	})
}

type BadgeResponse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Tier       domain.Tier `json:"tier"`
	Unlocked   bool        `json:"unlocked"`
	UnlockedAt *time.Time  `json:"unlockedAt"`
	RequiredXP int64       `json:"requiredXP"`
}

// NFTBadges lists every tier badge with its unlock state for the player.
func (h *Handler) NFTBadges(c *gin.Context) {
	var q walletQuery
	if err := c.ShouldBindQuery(&q); err != nil || !q.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet"})
		return
	}

	ctx := c.Request.Context()
	user, ok := h.userByWallet(c, q.Wallet)
	if !ok {
		return
	}

	unlocked, err := h.Badges.FindByUser(ctx, user.ID)
	if err != nil {
		logger.Error("badge lookup failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get badges"})
		return
	}
	byTier := make(map[domain.Tier]*domain.Badge, len(unlocked))
	for _, b := range unlocked {
		byTier[b.Tier] = b
	}

	res := make([]BadgeResponse, 0, len(domain.Tiers))
	for _, t := range domain.Tiers {
		br := BadgeResponse{
			ID:         strings.ToLower(string(t.Tier)),
			Name:       string(t.Tier) + " Badge",
			Tier:       t.Tier,
			RequiredXP: t.Threshold,
		}
		if b, ok := byTier[t.Tier]; ok {
			br.Unlocked = true
			at := b.UnlockedAt
			br.UnlockedAt = &at
		}
		res = append(res, br)
	}
	c.JSON(http.StatusOK, res)
}

type HistoryResponse struct {
	ID           string `json:"id"`
	Game         string `json:"game"`
	OpponentName string `json:"opponentName"`
	Result       string `json:"result"`
	ArkEarned    int64  `json:"arkEarned"`
	XPChange     int64  `json:"xpChange"`
	Date         string `json:"date"`
}

type historyQuery struct {
	walletQuery
	Limit *int `form:"limit"`
}

func (h *Handler) MatchHistory(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if !q.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet"})
		return
	}
	limit := 10
	if q.Limit != nil {
		if *q.Limit < 1 || *q.Limit > 50 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 50"})
			return
		}
		limit = *q.Limit
	}

	user, ok := h.userByWallet(c, q.Wallet)
	if !ok {
		return
	}

	entries, err := h.Matches.ListByUser(c.Request.Context(), user.ID, limit)
	if err != nil {
		logger.Error("match history failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get match history"})
		return
	}

	res := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		m := e.Match
		opponent := e.OpponentName
		if opponent == "" {
			opponent = "Anon"
		}
		res = append(res, HistoryResponse{
			ID:           m.ID,
			Game:         m.Game.DisplayName(),
			OpponentName: opponent,
			Result:       m.OutcomeFor(user.ID),
			ArkEarned:    m.ArkDeltaFor(user.ID),
			XPChange:     m.XPDeltaFor(user.ID),
			Date:         m.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	c.JSON(http.StatusOK, res)
}

// userByWallet writes a 404 or 500 and reports false when the user cannot
// be loaded.
func (h *Handler) userByWallet(c *gin.Context, wallet string) (*domain.User, bool) {
	user, err := h.Users.GetByWallet(c.Request.Context(), wallet)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return nil, false
	}
	if err != nil {
		logger.Error("user lookup failed", "wallet", wallet, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return nil, false
	}
	return user, true
}
