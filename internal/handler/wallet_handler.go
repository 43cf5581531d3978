// internal/handler/wallet_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crypto-swap/internal/service"
	"crypto-swap/internal/wallet"
)

type WalletHandler struct {
	service *service.ExchangeService
	logger  *zap.Logger
}

func NewWalletHandler(service *service.ExchangeService, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		service: service,
		logger:  logger,
	}
}

type walletRowsRequest struct {
	Balances []wallet.Balance `json:"balances" binding:"required"`
}

// RankBalances handles POST /api/v1/wallet/rows. Balances are valued with
// whatever price table is current; while prices are unavailable every
// row is worth zero.
func (h *WalletHandler) RankBalances(c *gin.Context) {
	var req walletRowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows := wallet.Rank(req.Balances, h.service.Table())
	h.logger.Debug("ranked wallet balances",
		zap.Int("balances", len(req.Balances)),
		zap.Int("rows", len(rows)))

	c.JSON(http.StatusOK, gin.H{"rows": rows})
}
