package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// @Summary      Wallet balance
// @Tags         wallet
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  map[string]int64
// @Router       /v1/wallet [get]
func (s *Server) WalletBalance(c *gin.Context) {
	wallet, err := s.wallets.Ensure(c.Request.Context(), s.currentUser(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"balance": wallet.Balance}})
}

// @Summary      Wallet transactions
// @Tags         wallet
// @Produce      json
// @Security     ApiKeyAuth
// @Param        limit  query  int  false  "Max entries"
// @Success      200  {object}  []walletdomain.Transaction
// @Router       /v1/wallet/transactions [get]
func (s *Server) WalletTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := s.wallets.Transactions(c.Request.Context(), s.currentUser(c), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

type setPINRequest struct {
	PIN string `json:"pin"`
}

// @Summary      Set transaction pin
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body setPINRequest true "Set PIN Request"
// @Success      200  {object}  map[string]string
// @Router       /v1/wallet/pin [put]
func (s *Server) SetWalletPIN(c *gin.Context) {
	var req setPINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.wallets.SetPIN(c.Request.Context(), s.currentUser(c), req.PIN); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
