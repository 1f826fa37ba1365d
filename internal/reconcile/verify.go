package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/payrecon/internal/bankapi"
	"github.com/learnhub/payrecon/pkg/db/models"
	"github.com/learnhub/payrecon/pkg/enums"
	pkgerrors "github.com/learnhub/payrecon/pkg/errors"
)

// Verification is the polling answer for one order.
type Verification struct {
	Verified      bool              `json:"verified"`
	Status        enums.OrderStatus `json:"status"`
	Message       string            `json:"message"`
	TransactionID string            `json:"transactionId,omitempty"`
}

const (
	msgVerified    = "payment verified"
	msgPending     = "waiting for bank transfer"
	msgUnavailable = "bank lookup unavailable, retry shortly"
	msgCancelled   = "order was cancelled"
	msgExpired     = "order expired"
)

// VerifyForUser checks an order owned by userID against the bank. Terminal
// orders answer from storage; pending ones trigger a bounded lookup whose
// records go through the same pipeline as webhook deliveries.
func (s *Service) VerifyForUser(ctx context.Context, orderID string, userID uuid.UUID) (*Verification, error) {
	order, err := s.ownedOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.OrderID)

	if order.IsOverdue(s.now()) {
		if order, err = s.Expire(ctx, order); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expire order")
		}
	}
	if order.Status.IsTerminal() || s.provider == nil {
		return verificationFor(order, msgPending), nil
	}

	ok, _, _ := s.lookups.Do(order.ID.String(), func() (any, error) {
		return s.lookup(ctx, order), nil
	})
	if !ok.(bool) {
		return verificationFor(order, msgUnavailable), nil
	}

	current, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	return verificationFor(current, msgPending), nil
}

// lookup fetches recent transactions from the provider and reconciles them.
// It reports false when the provider could not be queried.
func (s *Service) lookup(ctx context.Context, order *models.PendingOrder) bool {
	now := s.now()
	window := bankapi.Window{
		From: timeMax(order.CreatedAt, now.Add(-s.settings.BankLookback)),
		To:   now,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.settings.BankTimeout)
	defer cancel()

	started := time.Now()
	raw, err := s.provider.ListTransactions(callCtx, window)
	s.metrics.ObserveBankAPI(s.provider.Name(), time.Since(started), err)
	if err != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"provider":  s.provider.Name(),
			"retryable": bankapi.IsRetryable(err),
			"error":     err.Error(),
		})
		s.logg.Warn(ctx, "reconcile.bank_lookup_failed")
		return false
	}

	results, err := s.ProcessBatch(ctx, s.provider.Name(), raw)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "reconcile.bank_lookup_malformed")
		return false
	}
	s.logg.Info(s.logg.WithField(ctx, "records", len(results)), "reconcile.bank_lookup_complete")
	return true
}

func verificationFor(order *models.PendingOrder, pendingMessage string) *Verification {
	v := &Verification{
		Status:        order.Status,
		TransactionID: order.BankTransactionIDValue(),
	}
	switch order.Status {
	case enums.OrderStatusVerified:
		v.Verified = true
		v.Message = msgVerified
	case enums.OrderStatusCancelled:
		v.Message = msgCancelled
	case enums.OrderStatusExpired:
		v.Message = msgExpired
	default:
		v.Message = pendingMessage
	}
	return v
}
