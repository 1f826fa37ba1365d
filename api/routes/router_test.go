package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/payrecon/api/middleware"
	"github.com/learnhub/payrecon/internal/fulfillment"
	"github.com/learnhub/payrecon/internal/ledger"
	"github.com/learnhub/payrecon/internal/orders"
	"github.com/learnhub/payrecon/internal/reconcile"
	"github.com/learnhub/payrecon/pkg/auth"
	"github.com/learnhub/payrecon/pkg/config"
	"github.com/learnhub/payrecon/pkg/db/dbtest"
	"github.com/learnhub/payrecon/pkg/db/models"
	"github.com/learnhub/payrecon/pkg/enums"
	"github.com/learnhub/payrecon/pkg/logger"
	"github.com/learnhub/payrecon/pkg/metrics"
)

type app struct {
	handler http.Handler
	cfg     *config.Config
	orders  orders.Repository
}

func newApp(t *testing.T) *app {
	t.Helper()

	cfg := &config.Config{
		App:      config.AppConfig{Env: "dev"},
		JWT:      config.JWTConfig{Secret: "jwt-secret", Issuer: "learnhub"},
		Webhook:  config.WebhookConfig{Secret: "whsec", MaxBodyBytes: 1 << 20},
		Merchant: config.MerchantConfig{AccountNumber: "0123456789"},
	}
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	client := dbtest.Open(t)
	reg := prometheus.NewRegistry()
	recMetrics := metrics.NewReconcileMetrics(reg)

	ordersRepo := orders.NewRepository(client.DB())
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()))
	require.NoError(t, err)
	dispatcher, err := fulfillment.NewDispatcher(fulfillment.DispatcherParams{
		Repo:              fulfillment.NewRepository(client.DB()),
		Orders:            ordersRepo,
		TransactionRunner: client,
	})
	require.NoError(t, err)
	svc, err := reconcile.NewService(reconcile.ServiceParams{
		Settings:          reconcile.SettingsFromConfig(cfg),
		Ledger:            ledgerSvc,
		Orders:            ordersRepo,
		Fulfiller:         dispatcher,
		TransactionRunner: client,
		Metrics:           recMetrics,
		Logger:            logg,
	})
	require.NoError(t, err)

	return &app{
		cfg:    cfg,
		orders: ordersRepo,
		handler: NewRouter(RouterParams{
			Config:   cfg,
			Logger:   logg,
			Webhooks: svc,
			Payments: svc,
			Metrics:  recMetrics,
			Gatherer: reg,
			DBPinger: client,
		}),
	}
}

func (a *app) seedOrder(t *testing.T, orderID string) *models.PendingOrder {
	t.Helper()
	now := time.Now().UTC()
	order := &models.PendingOrder{
		OrderID:        orderID,
		UserID:         uuid.New(),
		OrderType:      enums.OrderTypeDocument,
		OrderData:      json.RawMessage(`{"documentId":"doc-7","title":"Physics 101"}`),
		Amount:         decimal.NewFromInt(50000),
		PaymentContent: "LH" + orderID,
		ExpiresAt:      now.Add(time.Hour),
		CreatedAt:      now.Add(-time.Minute),
	}
	require.NoError(t, a.orders.Create(context.Background(), order))
	return order
}

func (a *app) do(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *app) bearer(t *testing.T, userID uuid.UUID) map[string]string {
	t.Helper()
	token, err := auth.MintAccessToken(a.cfg.JWT, time.Now(), time.Hour, auth.AccessTokenPayload{UserID: userID})
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestWebhookThenPoll(t *testing.T) {
	a := newApp(t)
	order := a.seedOrder(t, "DOC123456789")
	payload := []byte(`{"data":[{"id":"tx-9","accountNumber":"0123456789","transferType":"in","transferAmount":50000,"content":"Thanh toan DOC123456789"}]}`)

	for _, path := range []string{"/bank-webhook", "/api/v1/webhooks/bank"} {
		rec := a.do(t, http.MethodPost, path, payload, map[string]string{middleware.WebhookSecretHeader: "whsec"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Success   bool               `json:"success"`
			Processed int                `json:"processed"`
			Results   []reconcile.Result `json:"results"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.Equal(t, 1, resp.Processed)
		assert.Equal(t, reconcile.StatusVerified, resp.Results[0].Status)
		assert.Equal(t, "DOC123456789", resp.Results[0].OrderID)
	}

	for _, path := range []string{"/verify-payment", "/api/v1/payments/verify"} {
		rec := a.do(t, http.MethodPost, path, []byte(`{"orderId":"DOC123456789"}`), a.bearer(t, order.UserID))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got reconcile.Verification
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.True(t, got.Verified)
		assert.Equal(t, "tx-9", got.TransactionID)
	}

	rec := a.do(t, http.MethodPost, "/verify-payment", []byte(`{"orderId":"DOC123456789","action":"cancel"}`), a.bearer(t, order.UserID))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodPost, "/bank-webhook", []byte(`{}`), map[string]string{middleware.WebhookSecretHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/bank-webhook", []byte(`{}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookMalformedIsAcknowledged(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodPost, "/bank-webhook", []byte(`{"data":[`), map[string]string{middleware.WebhookSecretHeader: "whsec"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"processed":0,"results":[],"message":"malformed payload"}`, rec.Body.String())
}

func TestVerifyRequiresAuthAndOwnership(t *testing.T) {
	a := newApp(t)
	order := a.seedOrder(t, "DOC123456789")

	rec := a.do(t, http.MethodPost, "/verify-payment", []byte(`{"orderId":"DOC123456789"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/verify-payment", []byte(`{"orderId":"DOC123456789"}`), a.bearer(t, uuid.New()))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, "/verify-payment", []byte(`{"orderId":"DOC123456789"}`), a.bearer(t, order.UserID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)

	rec = a.do(t, http.MethodPost, "/verify-payment", []byte(`{"orderId":"DOC123456789","action":"cancel"}`), a.bearer(t, order.UserID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health/live", nil, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health/ready", nil, nil).Code)

	a.do(t, http.MethodPost, "/bank-webhook", []byte(`{"data":[`), map[string]string{middleware.WebhookSecretHeader: "whsec"})
	rec := a.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payrecon_webhook_deliveries_total")
}
