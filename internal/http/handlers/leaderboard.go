package handlers

import (
	"net/http"

	"arcade_arena/internal/domain"
	"arcade_arena/internal/logger"

	"github.com/gin-gonic/gin"
)

type LeaderboardEntry struct {
	Rank     int         `json:"rank"`
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Avatar   string      `json:"avatar"`
	XP       int64       `json:"xp"`
	Tier     domain.Tier `json:"tier"`
	GamesWon int64       `json:"gamesWon"`
}

type leaderboardQuery struct {
	TimeFilter string `form:"timeFilter"`
	Limit      *int   `form:"limit"`
}

// GetLeaderboard returns the all-time top players by XP. The timeFilter
// values daily and weekly are accepted and currently rank all time.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	var q leaderboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	switch q.TimeFilter {
	case "", "daily", "weekly", "alltime":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeFilter"})
		return
	}
	limit := 100
	if q.Limit != nil {
		if *q.Limit < 1 || *q.Limit > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = *q.Limit
	}

	users, err := h.Users.TopByXP(c.Request.Context(), limit)
	if err != nil {
		logger.Error("leaderboard failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	res := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		res = append(res, LeaderboardEntry{
			Rank:   i + 1,
			ID:     u.ID,
			Name:   u.DisplayName(),
			Avatar: u.Avatar,
			XP:     u.XP,
			Tier:   u.Tier,
		})
	}
	c.JSON(http.StatusOK, res)
}

// ActivePlayers reports the sockets seated in live matches per game.
func (h *Handler) ActivePlayers(c *gin.Context) {
	counts := h.Active.ActiveCounts()
	c.JSON(http.StatusOK, gin.H{
		string(domain.GameIDTicTacToe):         counts[domain.GameIDTicTacToe],
		string(domain.GameIDConnectFour):       counts[domain.GameIDConnectFour],
		string(domain.GameIDRockPaperScissors): counts[domain.GameIDRockPaperScissors],
	})
}
