package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub/payrecon/internal/alerts"
	"github.com/learnhub/payrecon/internal/banktx"
	"github.com/learnhub/payrecon/internal/orderref"
	"github.com/learnhub/payrecon/pkg/db"
	"github.com/learnhub/payrecon/pkg/db/models"
	"github.com/learnhub/payrecon/pkg/enums"
)

var (
	errLostRace      = errors.New("order no longer pending")
	errLedgerBound   = errors.New("transaction bound to another order")
	errTxnReassigned = errors.New("transaction already verifies another order")
)

// ProcessBatch normalizes a raw payload and reconciles every record in it.
// Records the normalizer skipped are reported as invalid. A payload that is
// not JSON returns banktx.ErrMalformedPayload.
func (s *Service) ProcessBatch(ctx context.Context, source string, raw json.RawMessage) ([]Result, error) {
	batch, err := banktx.Normalize(raw)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, batch.Len())
	for _, skipped := range batch.Skipped {
		results = append(results, s.record(source, Result{
			TransactionID: skipped.ID,
			Status:        StatusInvalid,
			Message:       skipped.Reason,
		}))
	}
	for _, txn := range batch.Transactions {
		results = append(results, s.ProcessTransaction(ctx, source, txn))
	}
	return results, nil
}

// ProcessTransaction reconciles one normalized transaction. It never returns
// an error: storage failures surface as StatusError so the rest of a batch
// still runs.
func (s *Service) ProcessTransaction(ctx context.Context, source string, txn banktx.Transaction) Result {
	ctx = s.logg.WithTransactionID(ctx, txn.ID)
	res := s.process(ctx, source, txn)
	res.TransactionID = txn.ID

	ctx = s.logg.WithFields(ctx, map[string]any{
		"source":           source,
		"reconcile_status": string(res.Status),
	})
	if res.OrderID != "" {
		ctx = s.logg.WithOrderID(ctx, res.OrderID)
	}
	if res.Status == StatusError {
		s.logg.Error(ctx, "reconcile.transaction_failed", errors.New(res.Message))
	} else {
		s.logg.Info(ctx, "reconcile.transaction_processed")
	}
	return s.record(source, res)
}

func (s *Service) record(source string, res Result) Result {
	s.metrics.IncOutcome(source, string(res.Status))
	return res
}

func (s *Service) process(ctx context.Context, source string, txn banktx.Transaction) Result {
	entry, err := s.ledger.Record(ctx, source, txn)
	if err != nil {
		return failed(err)
	}

	if matched, ok := entry.MatchedOrder(); ok {
		return s.replay(ctx, txn, matched)
	}

	if txn.Direction != enums.DirectionCredit {
		return Result{Status: StatusIgnored, Message: "debit transaction"}
	}
	if !sameAccount(txn.AccountNumber, s.settings.MerchantAccount) {
		return Result{Status: StatusIgnored, Message: "transaction is not for the merchant account"}
	}

	order, res, ok := s.locate(ctx, txn)
	if !ok {
		return res
	}
	ctx = s.logg.WithOrderID(ctx, order.OrderID)

	if order.IsOverdue(s.now()) {
		expired, err := s.Expire(ctx, order)
		if err != nil {
			return failedFor(order, err)
		}
		order = expired
	}
	if res, done := terminalResult(order, txn.ID); done {
		return res
	}

	if txn.Amount.LessThan(order.Amount) {
		return Result{
			OrderID: order.OrderID,
			Status:  StatusAmountMismatch,
			Message: fmt.Sprintf("received %s, expected at least %s", txn.Amount.StringFixed(2), order.Amount.StringFixed(2)),
		}
	}

	return s.verify(ctx, order, txn)
}

// replay answers a transaction the ledger has already bound to an order.
func (s *Service) replay(ctx context.Context, txn banktx.Transaction, orderID uuid.UUID) Result {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return failed(fmt.Errorf("loading bound order: %w", err))
	}
	if order.Status == enums.OrderStatusVerified && order.BankTransactionIDValue() == txn.ID {
		return Result{OrderID: order.OrderID, Status: StatusVerified, Message: "already verified"}
	}
	return Result{OrderID: order.OrderID, Status: StatusConflict, Message: "transaction already matched to another order"}
}

// locate resolves the order a transaction pays for. The extracted order id
// wins; payment content containment is the fallback and must be unambiguous.
func (s *Service) locate(ctx context.Context, txn banktx.Transaction) (*models.PendingOrder, Result, bool) {
	extracted, hasRef := orderref.Extract(txn.Description)
	if hasRef {
		order, err := s.orders.FindByOrderID(ctx, extracted)
		switch {
		case err == nil:
			if orderref.Matches(order.OrderID, order.PaymentContent, txn.Description, extracted) {
				return order, Result{}, true
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, failed(fmt.Errorf("finding order %s: %w", extracted, err)), false
		}
	}

	candidates, err := s.orders.FindPendingByContent(ctx, txn.Description)
	if err != nil {
		return nil, failed(fmt.Errorf("searching payment content: %w", err)), false
	}
	switch len(candidates) {
	case 1:
		order := candidates[0]
		return &order, Result{}, true
	case 0:
		if hasRef {
			return nil, Result{OrderID: extracted, Status: StatusNoMatch, Message: "no order with this id"}, false
		}
		return nil, Result{Status: StatusNoOrderID, Message: "no order reference in description"}, false
	default:
		return nil, Result{OrderID: extracted, Status: StatusNoMatch, Message: "ambiguous payment content"}, false
	}
}

// verify runs the compare-and-swap and the ledger binding in one transaction.
// Only the caller that wins the swap fulfills the order.
func (s *Service) verify(ctx context.Context, order *models.PendingOrder, txn banktx.Transaction) Result {
	now := s.now()
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := s.orders.WithTx(tx).Transition(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusVerified, map[string]any{
			"bank_transaction_id": txn.ID,
			"verified_at":         now,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "idx_pending_orders_bank_transaction_id") {
				return errTxnReassigned
			}
			return err
		}
		if !won {
			return errLostRace
		}

		bound, err := s.ledger.Bind(ctx, tx, txn.ID, order.ID, now)
		if err != nil {
			return err
		}
		if !bound {
			return errLedgerBound
		}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, errLostRace):
		return s.observe(ctx, order, txn.ID)
	case errors.Is(err, errLedgerBound), errors.Is(err, errTxnReassigned):
		return Result{OrderID: order.OrderID, Status: StatusConflict, Message: "transaction already matched to another order"}
	default:
		return failedFor(order, fmt.Errorf("verifying order: %w", err))
	}

	verified := *order
	verified.Status = enums.OrderStatusVerified
	verified.BankTransactionID = &txn.ID
	verified.VerifiedAt = &now
	s.fulfill(ctx, &verified)

	return Result{OrderID: order.OrderID, Status: StatusVerified, Message: "payment verified"}
}

// observe reports the state another caller left the order in.
func (s *Service) observe(ctx context.Context, order *models.PendingOrder, transactionID string) Result {
	current, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return failedFor(order, fmt.Errorf("reloading order: %w", err))
	}
	if res, done := terminalResult(current, transactionID); done {
		return res
	}
	return failedFor(order, errors.New("order still pending after lost swap"))
}

func (s *Service) fulfill(ctx context.Context, order *models.PendingOrder) {
	err := s.fulfiller.Fulfill(ctx, order)
	if err == nil {
		return
	}

	s.logg.Error(ctx, "reconcile.fulfillment_failed", err)
	s.metrics.IncFulfillmentFailure(string(order.OrderType))

	if recErr := s.orders.RecordFulfillmentError(ctx, order.ID, err.Error()); recErr != nil {
		s.logg.Error(ctx, "reconcile.record_fulfillment_error_failed", recErr)
	}
	alert := alerts.Alert{
		Title:         "Fulfillment failed",
		OrderID:       order.OrderID,
		TransactionID: order.BankTransactionIDValue(),
		Detail:        err.Error(),
	}
	if notifyErr := s.notifier.Notify(ctx, alert); notifyErr != nil {
		s.logg.Error(ctx, "reconcile.alert_failed", notifyErr)
	}
}

// terminalResult maps a non-pending order onto the result for transactionID.
func terminalResult(order *models.PendingOrder, transactionID string) (Result, bool) {
	switch order.Status {
	case enums.OrderStatusVerified:
		if order.BankTransactionIDValue() == transactionID {
			return Result{OrderID: order.OrderID, Status: StatusVerified, Message: "already verified"}, true
		}
		return Result{OrderID: order.OrderID, Status: StatusConflict, Message: "order already paid by another transaction"}, true
	case enums.OrderStatusCancelled:
		return Result{OrderID: order.OrderID, Status: StatusConflict, Message: "order was cancelled"}, true
	case enums.OrderStatusExpired:
		return Result{OrderID: order.OrderID, Status: StatusExpired, Message: "order expired"}, true
	default:
		return Result{}, false
	}
}

func sameAccount(got, want string) bool {
	return accountDigits(got) != "" && accountDigits(got) == accountDigits(want)
}

func accountDigits(v string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return -1
	}, v)
}

func failed(err error) Result {
	return Result{Status: StatusError, Message: err.Error()}
}

func failedFor(order *models.PendingOrder, err error) Result {
	res := failed(err)
	if order != nil {
		res.OrderID = order.OrderID
	}
	return res
}
