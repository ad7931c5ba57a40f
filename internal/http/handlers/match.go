package handlers

import (
	"errors"
	"net/http"

	"arcade_arena/internal/domain"
	"arcade_arena/internal/logger"
	"arcade_arena/internal/protocol"
	"arcade_arena/internal/service"

	"github.com/gin-gonic/gin"
)

type StartMatchRequest struct {
	MatchID     string          `json:"matchId"`
	P1Wallet    string          `json:"p1Wallet"`
	P2Wallet    string          `json:"p2Wallet"`
	GameID      domain.GameID   `json:"gameId"`
	StakeAmount protocol.Number `json:"stakeAmount"`
	EscrowID    *string         `json:"escrowId"`
}

// StartMatch records the escrow and stake of a match the players opened.
func (h *Handler) StartMatch(c *gin.Context) {
	var req StartMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if !domain.ValidWallet(req.P1Wallet) || !domain.ValidWallet(req.P2Wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet"})
		return
	}
	if !req.GameID.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gameId"})
		return
	}
	if req.StakeAmount < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stakeAmount"})
		return
	}
	if req.EscrowID != nil && *req.EscrowID == "" {
		req.EscrowID = nil
	}
	if req.EscrowID != nil && !isDigits(*req.EscrowID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid escrowId"})
		return
	}

	m, err := h.MatchSvc.Start(c.Request.Context(), service.StartRequest{
		MatchID:     req.MatchID,
		P1Wallet:    req.P1Wallet,
		P2Wallet:    req.P2Wallet,
		GameID:      req.GameID,
		StakeAmount: int64(req.StakeAmount),
		EscrowID:    req.EscrowID,
	})
	if err != nil {
		logger.Error("match start failed", "match_id", req.MatchID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start match"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"matchId": m.ID})
}

type MatchResultRequest struct {
	MatchID      string          `json:"matchId"`
	WinnerWallet *string         `json:"winnerWallet"`
	LoserWallet  *string         `json:"loserWallet"`
	Result       string          `json:"result"`
	DurationSec  protocol.Number `json:"durationSec"`
}

// MatchResult settles a finished match reported by a client.
func (h *Handler) MatchResult(c *gin.Context) {
	var req MatchResultRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MatchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if req.DurationSec < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid durationSec"})
		return
	}

	outcome := domain.MatchOutcome{
		MatchID:     req.MatchID,
		DurationSec: int64(req.DurationSec),
	}
	switch req.Result {
	case "draw":
		outcome.Draw = true
	case "win", "loss":
		if req.WinnerWallet == nil || !domain.ValidWallet(*req.WinnerWallet) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid winnerWallet"})
			return
		}
		outcome.WinnerWallet = *req.WinnerWallet
		if req.LoserWallet != nil {
			outcome.LoserWallet = *req.LoserWallet
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid result"})
		return
	}

	_, err := h.Settlement.Settle(c.Request.Context(), outcome)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, service.ErrAlreadySettled):
		c.JSON(http.StatusOK, gin.H{"ok": true, "alreadySettled": true})
	case errors.Is(err, service.ErrMatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
	case errors.Is(err, service.ErrUnknownPlayer):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("match settlement failed", "match_id", req.MatchID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record result"})
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
