package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/callback-engine/internal/processors"
	"github.com/akylbek/payment-system/callback-engine/internal/service"
	"github.com/akylbek/payment-system/callback-engine/internal/signature"
	"github.com/akylbek/payment-system/callback-engine/internal/telemetry"
)

// CallbackHandler is the inbound notification surface. It normalizes the
// processor-specific wire shape (query string, form body, or flat JSON)
// into the field map the engine consumes, and acknowledges the
// notification with 200 on every expected outcome so processors stop
// re-delivering.
type CallbackHandler struct {
	registry  map[string]processors.Processor
	processor *service.CallbackProcessor
}

func NewCallbackHandler(registry map[string]processors.Processor, processor *service.CallbackProcessor) *CallbackHandler {
	return &CallbackHandler{registry: registry, processor: processor}
}

func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	name := c.Param("processor")
	proc, ok := h.registry[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown processor"})
		return
	}

	telemetry.CallbacksReceived.WithLabelValues(name).Inc()

	fields := extractFields(c, proc.Profile.Scheme)

	outcome, err := h.processor.Process(c.Request.Context(), proc, fields)
	if err != nil {
		telemetry.Logger.Error("callback processing failed",
			zap.String("processor", name),
			zap.Error(err),
		)
		// Infrastructure failure: let the processor re-deliver.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	if !outcome.Applied {
		telemetry.CallbacksRejected.WithLabelValues(name, string(outcome.Reason)).Inc()
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted": true,
		"applied":  outcome.Applied,
		"reason":   outcome.Reason,
		"status":   outcome.Status,
	})
}

// extractFields flattens query parameters, form values, and a flat JSON
// body into one field map, and copies transport-level credentials and
// header-borne signatures to the keys the verifier reads.
func extractFields(c *gin.Context, scheme signature.Scheme) map[string]string {
	fields := make(map[string]string)

	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}

	contentType := c.ContentType()
	switch {
	case strings.Contains(contentType, "json"):
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err == nil {
			for key, value := range body {
				fields[key] = stringifyJSONValue(value)
			}
		}
	default:
		if err := c.Request.ParseForm(); err == nil {
			for key, values := range c.Request.PostForm {
				if len(values) > 0 {
					fields[key] = values[0]
				}
			}
		}
	}

	// Credentials are only surfaced to basic-auth schemes. For signature
	// schemes that canonicalize all fields, injecting synthetic keys would
	// corrupt the signed string when a proxy attaches basic auth.
	if scheme.Mode == signature.ModeBasicAuth {
		if user, pass, ok := c.Request.BasicAuth(); ok {
			fields[signature.BasicAuthUserField] = user
			fields[signature.BasicAuthPasswordField] = pass
		}
	}

	if scheme.HeaderName != "" {
		if sig := c.GetHeader(scheme.HeaderName); sig != "" {
			fields[scheme.SignatureField] = sig
		}
	}

	return fields
}

func stringifyJSONValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case nil:
		return ""
	default:
		// Nested objects are not part of any signed vocabulary.
		return ""
	}
}
