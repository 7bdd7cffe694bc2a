package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/callback-engine/internal/interfaces"
	"github.com/akylbek/payment-system/callback-engine/internal/models"
	"github.com/akylbek/payment-system/callback-engine/internal/telemetry"
)

type PaymentHandler struct {
	repo     interfaces.PaymentRepository
	registry map[string]struct{}
}

func NewPaymentHandler(repo interfaces.PaymentRepository, processorNames []string) *PaymentHandler {
	registry := make(map[string]struct{}, len(processorNames))
	for _, name := range processorNames {
		registry[name] = struct{}{}
	}
	return &PaymentHandler{repo: repo, registry: registry}
}

type createPaymentRequest struct {
	ReferenceID  string `json:"reference_id" binding:"required"`
	AmountCents  int64  `json:"amount_cents" binding:"required"`
	CurrencyCode string `json:"currency_code" binding:"required"`
	Processor    string `json:"processor" binding:"required"`
}

// CreatePayment registers a pending payment at checkout time so later
// notifications have something to correlate against.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if _, ok := h.registry[req.Processor]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown processor"})
		return
	}

	payment := &models.Payment{
		ReferenceID:  req.ReferenceID,
		AmountCents:  req.AmountCents,
		CurrencyCode: req.CurrencyCode,
		Processor:    req.Processor,
		Status:       models.StatusPendingAuthorization,
	}

	if err := h.repo.Create(c.Request.Context(), payment); err != nil {
		telemetry.Logger.Error("failed to create payment",
			zap.String("reference_id", req.ReferenceID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create payment"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"reference_id": payment.ReferenceID,
		"status":       payment.Status,
	})
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	referenceID := c.Param("ref")

	payment, err := h.repo.GetByReferenceID(c.Request.Context(), referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch payment"})
		return
	}

	c.JSON(http.StatusOK, payment)
}
