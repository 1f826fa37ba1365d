// Package fulfillment grants access to what a verified order paid for.
package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub/payrecon/internal/orders"
	"github.com/learnhub/payrecon/pkg/db"
	"github.com/learnhub/payrecon/pkg/db/models"
	"github.com/learnhub/payrecon/pkg/enums"
	pkgerrors "github.com/learnhub/payrecon/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type DispatcherParams struct {
	Repo              Repository
	Orders            orders.Repository
	TransactionRunner txRunner
	Now               func() time.Time
}

// Dispatcher writes purchase rows for verified orders.
type Dispatcher struct {
	repo     Repository
	orders   orders.Repository
	txRunner txRunner
	now      func() time.Time
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment repo required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Dispatcher{
		repo:     params.Repo,
		orders:   params.Orders,
		txRunner: params.TransactionRunner,
		now:      now,
	}, nil
}

// Fulfill writes the access rows for order and stamps fulfilled_at in one
// transaction. Orders already fulfilled are left alone.
func (d *Dispatcher) Fulfill(ctx context.Context, order *models.PendingOrder) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if order.Status != enums.OrderStatusVerified {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order %s is %s, not verified", order.OrderID, order.Status))
	}
	if order.FulfilledAt != nil {
		return nil
	}

	data, err := Decode(order.OrderType, order.OrderData)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order data")
	}

	now := d.now()
	err = d.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := d.write(ctx, d.repo.WithTx(tx), order, data, now); err != nil {
			return err
		}
		return d.orders.WithTx(tx).MarkFulfilled(ctx, order.ID, now)
	})
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err, "") {
		// grants from an earlier attempt already exist
		return d.orders.MarkFulfilled(ctx, order.ID, now)
	}
	return fmt.Errorf("fulfilling order %s: %w", order.OrderID, err)
}

func (d *Dispatcher) write(ctx context.Context, repo Repository, order *models.PendingOrder, data OrderData, now time.Time) error {
	switch v := data.(type) {
	case CartOrder:
		rows := make([]models.PurchaseHistory, 0, len(v.Items))
		for _, item := range v.Items {
			name := item.ProgramName
			if name == "" {
				name = item.ProgramID
			}
			rows = append(rows, models.PurchaseHistory{
				ID:             uuid.New(),
				PendingOrderID: order.ID,
				UserID:         order.UserID,
				ProgramID:      item.ProgramID,
				ProgramName:    name,
				Duration:       item.Duration,
				Price:          item.Price,
				PaymentMethod:  enums.PaymentMethodBankTransfer,
				PurchasedAt:    now,
			})
		}
		return repo.CreatePurchaseHistory(ctx, rows)
	case DocumentOrder:
		price := v.Price
		if price.IsZero() {
			price = order.Amount
		}
		return repo.CreatePurchasedDocument(ctx, &models.PurchasedDocument{
			ID:             uuid.New(),
			PendingOrderID: order.ID,
			UserID:         order.UserID,
			DocumentID:     v.DocumentID,
			Title:          v.Title,
			Price:          price,
			PaymentMethod:  enums.PaymentMethodBankTransfer,
			PurchasedAt:    now,
		})
	default:
		return fmt.Errorf("unhandled order data %T", data)
	}
}
