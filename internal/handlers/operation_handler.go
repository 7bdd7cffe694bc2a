package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/callback-engine/internal/interfaces"
	"github.com/akylbek/payment-system/callback-engine/internal/processors"
	"github.com/akylbek/payment-system/callback-engine/internal/service"
	"github.com/akylbek/payment-system/callback-engine/internal/telemetry"
)

type OperationHandler struct {
	repo     interfaces.PaymentRepository
	registry map[string]processors.Processor
	executor *service.OperationExecutor
}

func NewOperationHandler(repo interfaces.PaymentRepository, registry map[string]processors.Processor, executor *service.OperationExecutor) *OperationHandler {
	return &OperationHandler{repo: repo, registry: registry, executor: executor}
}

type operationRequest struct {
	Operation string `json:"operation" binding:"required"`
}

// ExecuteOperation runs a merchant-initiated cancel/acquire/refund against
// the processor that owns the payment.
func (h *OperationHandler) ExecuteOperation(c *gin.Context) {
	referenceID := c.Param("ref")

	var req operationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var op service.Operation
	switch service.Operation(req.Operation) {
	case service.OperationCancel, service.OperationAcquire, service.OperationRefund:
		op = service.Operation(req.Operation)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown operation"})
		return
	}

	payment, err := h.repo.GetByReferenceID(c.Request.Context(), referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch payment"})
		return
	}

	proc, ok := h.registry[payment.Processor]
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "payment belongs to an unconfigured processor"})
		return
	}

	outcome, err := h.executor.Execute(c.Request.Context(), proc, referenceID, op)
	if err != nil {
		telemetry.Logger.Error("operation execution failed",
			zap.String("reference_id", referenceID),
			zap.String("operation", string(op)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
		return
	}

	status := http.StatusOK
	if !outcome.Applied {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{
		"applied":   outcome.Applied,
		"reason":    outcome.Reason,
		"status":    outcome.Status,
		"raw_value": outcome.RawValue,
	})
}
