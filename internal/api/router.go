package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/callback-engine/internal/handlers"
	"github.com/akylbek/payment-system/callback-engine/internal/interfaces"
	"github.com/akylbek/payment-system/callback-engine/internal/processors"
	"github.com/akylbek/payment-system/callback-engine/internal/service"
	"github.com/akylbek/payment-system/callback-engine/internal/telemetry"
)

func NewRouter(
	repo interfaces.PaymentRepository,
	registry map[string]processors.Processor,
	processor *service.CallbackProcessor,
	executor *service.OperationExecutor,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "callback-engine"})
	})

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	callbackHandler := handlers.NewCallbackHandler(registry, processor)
	paymentHandler := handlers.NewPaymentHandler(repo, names)
	operationHandler := handlers.NewOperationHandler(repo, registry, executor)

	r.POST("/callbacks/:processor", callbackHandler.HandleCallback)
	r.GET("/callbacks/:processor", callbackHandler.HandleCallback)
	r.POST("/payments", paymentHandler.CreatePayment)
	r.GET("/payments/:ref", paymentHandler.GetPayment)
	r.POST("/payments/:ref/operations", operationHandler.ExecuteOperation)

	return r
}
