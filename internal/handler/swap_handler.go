// internal/handler/swap_handler.go
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crypto-swap/internal/exchange"
	"crypto-swap/internal/models"
	"crypto-swap/internal/service"
)

const IdempotencyHeader = "Idempotency-Key"

type SwapHandler struct {
	service *service.ExchangeService
	logger  *zap.Logger
}

func NewSwapHandler(service *service.ExchangeService, logger *zap.Logger) *SwapHandler {
	return &SwapHandler{
		service: service,
		logger:  logger,
	}
}

// Ready handles GET /ready
func (h *SwapHandler) Ready(c *gin.Context) {
	status := h.service.Status()
	if status.State != models.FeedReady {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListCurrencies handles GET /api/v1/currencies
func (h *SwapHandler) ListCurrencies(c *gin.Context) {
	currencies, err := h.service.Currencies(c.Query("q"))
	if err != nil {
		h.writeError(c, err, "Failed to list currencies")
		return
	}

	c.JSON(http.StatusOK, gin.H{"currencies": currencies})
}

// GetRate handles GET /api/v1/rates/:from/:to
func (h *SwapHandler) GetRate(c *gin.Context) {
	rate, err := h.service.GetRate(c.Param("from"), c.Param("to"))
	if err != nil {
		h.writeError(c, err, "Failed to get exchange rate")
		return
	}

	c.JSON(http.StatusOK, rate)
}

// GetPriceHistory handles GET /api/v1/prices/:symbol/history
func (h *SwapHandler) GetPriceHistory(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 || days > 365 {
		days = 30
	}

	points, err := h.service.History(c.Request.Context(), c.Param("symbol"), days)
	if err != nil {
		h.writeError(c, err, "Failed to get price history")
		return
	}

	c.JSON(http.StatusOK, gin.H{"prices": points})
}

// RefreshPrices handles POST /api/v1/prices/refresh
func (h *SwapHandler) RefreshPrices(c *gin.Context) {
	if err := h.service.Refresh(c.Request.Context(), true); err != nil {
		h.logger.Error("manual price refresh failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "Failed to refresh prices",
			"status": h.service.Status(),
		})
		return
	}

	c.JSON(http.StatusOK, h.service.Status())
}

// Quote handles POST /api/v1/quote
func (h *SwapHandler) Quote(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.service.Quote(&req)
	if err != nil {
		h.writeError(c, err, "Failed to compute quote")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SubmitSwap handles POST /api/v1/swaps
func (h *SwapHandler) SubmitSwap(c *gin.Context) {
	var req models.SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Submit(c.Request.Context(), &req, c.GetHeader(IdempotencyHeader))
	if err != nil {
		h.writeError(c, err, "Failed to submit swap")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"swap": result})
}

func (h *SwapHandler) writeError(c *gin.Context, err error, msg string) {
	var fe *exchange.FieldError
	switch {
	case errors.As(err, &fe):
		c.JSON(http.StatusBadRequest, gin.H{"error": fe.Err.Error(), "field": fe.Field})
	case errors.Is(err, exchange.ErrRateUnavailable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": exchange.ErrRateUnavailable.Error()})
	case errors.Is(err, service.ErrPricesUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": service.ErrPricesUnavailable.Error(), "status": h.service.Status()})
	case errors.Is(err, service.ErrIdempotencyMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": service.ErrIdempotencyMismatch.Error()})
	case errors.Is(err, service.ErrSubmitInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": service.ErrSubmitInProgress.Error()})
	case errors.Is(err, service.ErrUnknownEvent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrHistoryUnsupported):
		c.JSON(http.StatusNotImplemented, gin.H{"error": service.ErrHistoryUnsupported.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "Request cancelled"})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
