package handlers

import (
	"errors"
	"net/http"
	"time"

	"arcade_arena/internal/domain"
	"arcade_arena/internal/http/middleware"
	"arcade_arena/internal/logger"
	"arcade_arena/internal/service"

	"github.com/gin-gonic/gin"
)

// LoginMessage hands out the text a wallet must sign to log in.
func (h *Handler) LoginMessage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": service.LoginMessage(time.Now())})
}

type LoginRequest struct {
	Wallet    string `json:"wallet"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// Login exchanges a signed login message for a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	if !service.ValidateWalletLogin(req.Wallet, req.Message, req.Signature, time.Now()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	token, err := service.GenerateJWT(req.Wallet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type FaucetRequest struct {
	WalletAddress string `json:"walletAddress"`
}

// ClaimFaucet mints test tokens to the authenticated wallet.
func (h *Handler) ClaimFaucet(c *gin.Context) {
	var req FaucetRequest
	if err := c.ShouldBindJSON(&req); err != nil || !domain.ValidWallet(req.WalletAddress) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "invalid walletAddress"})
		return
	}
	if c.GetString(middleware.WalletKey) != domain.NormalizeWallet(req.WalletAddress) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "reason": "wallet mismatch"})
		return
	}

	hash, err := h.Faucet.Claim(c.Request.Context(), req.WalletAddress)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "txHash": hash})
	case errors.Is(err, service.ErrFaucetCooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "reason": "cooldown"})
	case errors.Is(err, service.ErrFaucetDisabled):
		c.JSON(http.StatusNotImplemented, gin.H{"success": false, "reason": "not configured"})
	default:
		logger.Error("faucet claim failed", "wallet", req.WalletAddress, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "reason": "mint failed"})
	}
}
