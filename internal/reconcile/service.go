// Package reconcile matches bank transactions to pending orders and drives
// the order lifecycle. Both the webhook and the polling path go through it.
package reconcile

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/learnhub/payrecon/internal/alerts"
	"github.com/learnhub/payrecon/internal/bankapi"
	"github.com/learnhub/payrecon/internal/ledger"
	"github.com/learnhub/payrecon/internal/orders"
	"github.com/learnhub/payrecon/pkg/config"
	"github.com/learnhub/payrecon/pkg/db/models"
	pkgerrors "github.com/learnhub/payrecon/pkg/errors"
	"github.com/learnhub/payrecon/pkg/logger"
	"github.com/learnhub/payrecon/pkg/metrics"
)

// Status is the per-transaction outcome reported to callers.
type Status string

const (
	StatusVerified       Status = "verified"
	StatusNoOrderID      Status = "no_order_id"
	StatusNoMatch        Status = "no_match"
	StatusAmountMismatch Status = "amount_mismatch"
	StatusConflict       Status = "conflict"
	StatusExpired        Status = "expired"
	StatusIgnored        Status = "ignored"
	StatusInvalid        Status = "invalid"
	StatusError          Status = "error"
)

// Result is the outcome of reconciling one transaction.
type Result struct {
	TransactionID string `json:"transactionId"`
	OrderID       string `json:"orderId,omitempty"`
	Status        Status `json:"status"`
	Message       string `json:"message"`
}

// Settings is the immutable configuration the reconciler runs with.
type Settings struct {
	MerchantAccount string
	BankLookback    time.Duration
	BankTimeout     time.Duration
}

// SettingsFromConfig extracts reconciler settings from the loaded config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MerchantAccount: cfg.Merchant.AccountNumber,
		BankLookback:    cfg.BankAPI.Lookback,
		BankTimeout:     cfg.BankAPI.Timeout,
	}
}

// Fulfiller applies the side effects of a verified order.
type Fulfiller interface {
	Fulfill(ctx context.Context, order *models.PendingOrder) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Settings          Settings
	Ledger            ledger.Service
	Orders            orders.Repository
	Fulfiller         Fulfiller
	Notifier          alerts.Notifier
	Provider          bankapi.Provider
	TransactionRunner txRunner
	Metrics           *metrics.ReconcileMetrics
	Logger            *logger.Logger
	Now               func() time.Time
}

type Service struct {
	settings  Settings
	ledger    ledger.Service
	orders    orders.Repository
	fulfiller Fulfiller
	notifier  alerts.Notifier
	provider  bankapi.Provider
	txRunner  txRunner
	metrics   *metrics.ReconcileMetrics
	logg      *logger.Logger
	now       func() time.Time

	// lookups collapses concurrent polls for the same order into one bank call.
	lookups singleflight.Group
}

// NewService validates dependencies. Provider may be nil, in which case the
// polling path only reports stored state.
func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Fulfiller == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fulfiller required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if strings.TrimSpace(params.Settings.MerchantAccount) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "merchant account required")
	}

	notifier := params.Notifier
	if notifier == nil {
		notifier = alerts.NewLogNotifier(params.Logger)
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	settings := params.Settings
	if settings.BankTimeout <= 0 {
		settings.BankTimeout = 5 * time.Second
	}
	if settings.BankLookback <= 0 {
		settings.BankLookback = 24 * time.Hour
	}

	return &Service{
		settings:  settings,
		ledger:    params.Ledger,
		orders:    params.Orders,
		fulfiller: params.Fulfiller,
		notifier:  notifier,
		provider:  params.Provider,
		txRunner:  params.TransactionRunner,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}
