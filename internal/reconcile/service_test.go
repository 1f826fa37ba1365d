package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/payrecon/internal/alerts"
	"github.com/learnhub/payrecon/internal/bankapi"
	"github.com/learnhub/payrecon/internal/fulfillment"
	"github.com/learnhub/payrecon/internal/ledger"
	"github.com/learnhub/payrecon/internal/orders"
	"github.com/learnhub/payrecon/pkg/db"
	"github.com/learnhub/payrecon/pkg/db/dbtest"
	"github.com/learnhub/payrecon/pkg/db/models"
	"github.com/learnhub/payrecon/pkg/enums"
	"github.com/learnhub/payrecon/pkg/logger"
	"github.com/learnhub/payrecon/pkg/metrics"
)

const merchantAccount = "0123456789"

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	client    *db.Client
	orders    orders.Repository
	grants    fulfillment.Repository
	ledger    ledger.Repository
	notifier  *recordingNotifier
	provider  *fakeProvider
	fulfiller *countingFulfiller
	svc       *Service
	clock     *clock
}

type harnessOption func(*ServiceParams, *harness)

func withProvider(p *fakeProvider) harnessOption {
	return func(params *ServiceParams, h *harness) {
		h.provider = p
		params.Provider = p
	}
}

func withFulfiller(f Fulfiller) harnessOption {
	return func(params *ServiceParams, _ *harness) {
		params.Fulfiller = f
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	client := dbtest.Open(t)
	h := &harness{
		client:   client,
		orders:   orders.NewRepository(client.DB()),
		grants:   fulfillment.NewRepository(client.DB()),
		ledger:   ledger.NewRepository(client.DB()),
		notifier: &recordingNotifier{},
		clock:    &clock{now: baseTime},
	}

	ledgerSvc, err := ledger.NewService(h.ledger)
	require.NoError(t, err)
	dispatcher, err := fulfillment.NewDispatcher(fulfillment.DispatcherParams{
		Repo:              h.grants,
		Orders:            h.orders,
		TransactionRunner: client,
		Now:               h.clock.Now,
	})
	require.NoError(t, err)
	h.fulfiller = &countingFulfiller{next: dispatcher}

	params := ServiceParams{
		Settings: Settings{
			MerchantAccount: merchantAccount,
			BankLookback:    6 * time.Hour,
			BankTimeout:     time.Second,
		},
		Ledger:            ledgerSvc,
		Orders:            h.orders,
		Fulfiller:         h.fulfiller,
		Notifier:          h.notifier,
		TransactionRunner: client,
		Metrics:           metrics.NewReconcileMetrics(prometheus.NewRegistry()),
		Logger:            logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:               h.clock.Now,
	}
	for _, opt := range opts {
		opt(&params, h)
	}

	svc, err := NewService(params)
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) seedDocumentOrder(t *testing.T, orderID string, amount int64) *models.PendingOrder {
	t.Helper()
	return h.seedOrder(t, &models.PendingOrder{
		OrderID:        orderID,
		UserID:         uuid.New(),
		OrderType:      enums.OrderTypeDocument,
		OrderData:      json.RawMessage(`{"documentId":"doc-42","title":"Calculus II notes"}`),
		Amount:         decimal.NewFromInt(amount),
		PaymentContent: "LH" + orderID,
	})
}

func (h *harness) seedCartOrder(t *testing.T, orderID string, amount int64) *models.PendingOrder {
	t.Helper()
	return h.seedOrder(t, &models.PendingOrder{
		OrderID:   orderID,
		UserID:    uuid.New(),
		OrderType: enums.OrderTypeCart,
		OrderData: json.RawMessage(`{"items":[
			{"programId":"prog-1","programName":"IELTS 7.0","duration":6,"price":"30000"},
			{"programId":"prog-2","programName":"TOEIC 800","duration":3,"price":"20000"}
		]}`),
		Amount:         decimal.NewFromInt(amount),
		PaymentContent: "LH" + orderID,
	})
}

func (h *harness) seedOrder(t *testing.T, order *models.PendingOrder) *models.PendingOrder {
	t.Helper()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = h.clock.Now().Add(-10 * time.Minute)
	}
	if order.ExpiresAt.IsZero() {
		order.ExpiresAt = h.clock.Now().Add(time.Hour)
	}
	require.NoError(t, h.orders.Create(context.Background(), order))
	return order
}

func (h *harness) reload(t *testing.T, order *models.PendingOrder) *models.PendingOrder {
	t.Helper()
	current, err := h.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	return current
}

func (h *harness) grantCount(t *testing.T, order *models.PendingOrder) int64 {
	t.Helper()
	n, err := h.grants.CountGrants(context.Background(), order.ID)
	require.NoError(t, err)
	return n
}

// incoming builds a flat SePay-style webhook record.
func incoming(id string, amount int64, content string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id":%q,"gateway":"VCB","transactionDate":"2026-03-01 09:05:00","accountNumber":%q,"transferType":"in","transferAmount":%d,"content":%q}`,
		id, merchantAccount, amount, content,
	))
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []alerts.Alert
}

func (n *recordingNotifier) Notify(_ context.Context, alert alerts.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func (n *recordingNotifier) sent() []alerts.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]alerts.Alert(nil), n.alerts...)
}

type countingFulfiller struct {
	next  Fulfiller
	calls atomic.Int32
}

func (f *countingFulfiller) Fulfill(ctx context.Context, order *models.PendingOrder) error {
	f.calls.Add(1)
	return f.next.Fulfill(ctx, order)
}

type failingFulfiller struct{}

func (failingFulfiller) Fulfill(context.Context, *models.PendingOrder) error {
	return errors.New("purchase_history insert failed")
}

type fakeProvider struct {
	mu      sync.Mutex
	payload json.RawMessage
	err     error
	windows []bankapi.Window
}

func (p *fakeProvider) Name() string { return "sepay" }

func (p *fakeProvider) ListTransactions(_ context.Context, window bankapi.Window) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.windows = append(p.windows, window)
	if p.err != nil {
		return nil, p.err
	}
	return p.payload, nil
}

func (p *fakeProvider) calls() []bankapi.Window {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bankapi.Window(nil), p.windows...)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected missing dependencies to fail")
	}

	h := newHarness(t)
	ledgerSvc, err := ledger.NewService(h.ledger)
	require.NoError(t, err)
	_, err = NewService(ServiceParams{
		Ledger:            ledgerSvc,
		Orders:            h.orders,
		Fulfiller:         h.fulfiller,
		TransactionRunner: h.client,
		Logger:            logger.New(logger.Options{Output: io.Discard}),
	})
	if err == nil {
		t.Fatal("expected missing merchant account to fail")
	}
}
