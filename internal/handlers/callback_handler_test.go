package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/callback-engine/internal/interfaces"
	"github.com/akylbek/payment-system/callback-engine/internal/models"
	"github.com/akylbek/payment-system/callback-engine/internal/processors"
	"github.com/akylbek/payment-system/callback-engine/internal/reconcile"
	"github.com/akylbek/payment-system/callback-engine/internal/service"
	"github.com/akylbek/payment-system/callback-engine/internal/signature"
)

type memoryRepo struct {
	payments  map[string]*models.Payment
	signalled map[string]bool
}

func newMemoryRepo(payments ...*models.Payment) *memoryRepo {
	r := &memoryRepo{payments: make(map[string]*models.Payment), signalled: make(map[string]bool)}
	for _, p := range payments {
		r.payments[p.ReferenceID] = p
	}
	return r
}

func (r *memoryRepo) Create(ctx context.Context, p *models.Payment) error {
	r.payments[p.ReferenceID] = p
	return nil
}

func (r *memoryRepo) GetByReferenceID(ctx context.Context, referenceID string) (*models.Payment, error) {
	p, ok := r.payments[referenceID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (r *memoryRepo) TransitionStatus(ctx context.Context, referenceID string, from, to models.PaymentStatus) (int64, error) {
	return 1, nil
}

func (r *memoryRepo) SetTransactionID(ctx context.Context, referenceID, transactionID string) error {
	return nil
}

func (r *memoryRepo) SaveProperties(ctx context.Context, referenceID string, properties map[string]string) error {
	return nil
}

func (r *memoryRepo) MarkCompletionSignalled(ctx context.Context, referenceID string) (bool, error) {
	if r.signalled[referenceID] {
		return false, nil
	}
	r.signalled[referenceID] = true
	return true, nil
}

type noopLocker struct{}

func (noopLocker) Acquire(ctx context.Context, referenceID string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (noopLocker) Release(ctx context.Context, referenceID string) error { return nil }

type noopEvents struct{}

func (noopEvents) PublishStateChanged(ctx context.Context, event models.StateChangedEvent) error {
	return nil
}

type noopCompletion struct{}

func (noopCompletion) SignalCompletion(ctx context.Context, event models.CompletionEvent) error {
	return nil
}

func testRouter(t *testing.T, repo *memoryRepo, registry map[string]processors.Processor) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := service.NewCallbackProcessor(
		repo, noopLocker{}, noopEvents{}, noopCompletion{},
		reconcile.NewPoller(zap.NewNop()), zap.NewNop(),
	)
	handler := NewCallbackHandler(registry, engine)

	r := gin.New()
	r.POST("/callbacks/:processor", handler.HandleCallback)
	r.GET("/callbacks/:processor", handler.HandleCallback)
	return r
}

func basicAuthRegistry(t *testing.T) map[string]processors.Processor {
	t.Helper()
	profile, err := processors.Resolve("basic-auth")
	require.NoError(t, err)
	return map[string]processors.Processor{
		"invoice": {Profile: profile, Secret: "merchant:hunter2"},
	}
}

func TestCallbackBasicAuthFormBody(t *testing.T) {
	repo := newMemoryRepo(&models.Payment{
		ReferenceID: "ORDER-5",
		Processor:   "invoice",
		Status:      models.StatusPendingAuthorization,
	})
	router := testRouter(t, repo, basicAuthRegistry(t))

	form := url.Values{}
	form.Set("referenceId", "ORDER-5")
	form.Set("transactionId", "TX-5")
	form.Set("status", "paid")

	req := httptest.NewRequest(http.MethodPost, "/callbacks/invoice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("merchant", "hunter2")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["applied"])
	require.Equal(t, string(models.StatusAcquired), body["status"])
	require.Equal(t, models.StatusAcquired, repo.payments["ORDER-5"].Status)
}

func TestCallbackBadCredentialsStillAcknowledged(t *testing.T) {
	repo := newMemoryRepo(&models.Payment{
		ReferenceID: "ORDER-5",
		Processor:   "invoice",
		Status:      models.StatusPendingAuthorization,
	})
	router := testRouter(t, repo, basicAuthRegistry(t))

	form := url.Values{}
	form.Set("referenceId", "ORDER-5")
	form.Set("status", "paid")

	req := httptest.NewRequest(http.MethodPost, "/callbacks/invoice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("merchant", "wrong")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Acknowledged so the processor stops re-delivering, but nothing moved.
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["applied"])
	require.Equal(t, string(models.ReasonAuthenticationFailure), body["reason"])
	require.Equal(t, models.StatusPendingAuthorization, repo.payments["ORDER-5"].Status)
}

func TestCallbackUnknownProcessor(t *testing.T) {
	router := testRouter(t, newMemoryRepo(), basicAuthRegistry(t))

	req := httptest.NewRequest(http.MethodPost, "/callbacks/nonexistent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallbackJSONBodyWithHeaderSignature(t *testing.T) {
	repo := newMemoryRepo(&models.Payment{
		ReferenceID: "ORDER-9",
		Processor:   "hosted",
		Status:      models.StatusPendingAuthorization,
	})

	profile, err := processors.Resolve("header-hmac")
	require.NoError(t, err)
	registry := map[string]processors.Processor{
		"hosted": {
			Profile:              profile,
			Secret:               "s3cr3t",
			ReconcileMaxAttempts: 1,
			Query: func(ctx context.Context, ref string) (interfaces.QueryResult, error) {
				return interfaces.QueryResult{Found: true, Status: "authorized"}, nil
			},
		},
	}
	router := testRouter(t, repo, registry)

	fields := map[string]string{"referenceId": "ORDER-9", "transactionId": "TX-9"}
	sig, ok := signature.Compute(profile.Scheme, fields, "s3cr3t")
	require.True(t, ok)

	payload, err := json.Marshal(map[string]string{
		"referenceId":   "ORDER-9",
		"transactionId": "TX-9",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/callbacks/hosted", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", sig)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["applied"])
	require.Equal(t, models.StatusAuthorized, repo.payments["ORDER-9"].Status)
}

func TestExtractFieldsIgnoresBasicAuthForSignatureSchemes(t *testing.T) {
	scheme := signature.Scheme{
		Selection:      signature.SelectAllSorted,
		Join:           signature.JoinKeysValues,
		Separator:      ":",
		Digest:         signature.DigestHMAC,
		Hash:           signature.HashSHA256,
		Output:         signature.EncodeBase64,
		SignatureField: "hmacSignature",
	}
	fields := map[string]string{"referenceId": "ORDER-1", "status": "AUTHORISED"}
	sig, ok := signature.Compute(scheme, fields, "s3cr3t")
	require.True(t, ok)

	// An upstream proxy attaching basic auth must not corrupt the signed
	// field set of an all-fields-sorted scheme.
	req := httptest.NewRequest(http.MethodGet,
		"/callbacks/x?referenceId=ORDER-1&status=AUTHORISED&hmacSignature="+url.QueryEscape(sig), nil)
	req.SetBasicAuth("gateway", "whatever")

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	extracted := extractFields(c, scheme)
	require.NotContains(t, extracted, signature.BasicAuthUserField)
	require.NotContains(t, extracted, signature.BasicAuthPasswordField)
	require.True(t, signature.Verify(scheme, extracted, "s3cr3t"))
}

func TestExtractFieldsSurfacesBasicAuthForBasicAuthSchemes(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/callbacks/x", nil)
	req.SetBasicAuth("merchant", "hunter2")

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	extracted := extractFields(c, signature.Scheme{Mode: signature.ModeBasicAuth})
	require.Equal(t, "merchant", extracted[signature.BasicAuthUserField])
	require.Equal(t, "hunter2", extracted[signature.BasicAuthPasswordField])
}

func TestExtractFieldsMergesQueryAndForm(t *testing.T) {
	form := url.Values{}
	form.Set("status", "paid")

	req := httptest.NewRequest(http.MethodPost, "/callbacks/x?referenceId=ORDER-1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	fields := extractFields(c, signature.Scheme{})
	require.Equal(t, "ORDER-1", fields["referenceId"])
	require.Equal(t, "paid", fields["status"])
}
