package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/learnhub/payrecon/pkg/db/models"
	"github.com/learnhub/payrecon/pkg/enums"
	pkgerrors "github.com/learnhub/payrecon/pkg/errors"
)

// Expire moves an overdue pending order to expired and returns its current
// state. Losing the swap is not an error; the row is re-read instead.
func (s *Service) Expire(ctx context.Context, order *models.PendingOrder) (*models.PendingOrder, error) {
	if !order.IsOverdue(s.now()) {
		return order, nil
	}

	now := s.now()
	won, err := s.orders.Transition(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusExpired, map[string]any{
		"expired_at": now,
	})
	if err != nil {
		return nil, fmt.Errorf("expiring order %s: %w", order.OrderID, err)
	}
	if !won {
		current, err := s.orders.FindByID(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("reloading order %s: %w", order.OrderID, err)
		}
		return current, nil
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.OrderID), "reconcile.order_expired")
	expired := *order
	expired.Status = enums.OrderStatusExpired
	expired.ExpiredAt = &now
	return &expired, nil
}

// ExpireOverdue sweeps up to limit overdue pending orders. It keeps going past
// individual failures and returns them combined.
func (s *Service) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	rows, err := s.orders.FindOverduePending(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("listing overdue orders: %w", err)
	}

	var (
		expired int
		errs    error
	)
	for i := range rows {
		if ctx.Err() != nil {
			return expired, multierr.Append(errs, ctx.Err())
		}
		current, err := s.Expire(ctx, &rows[i])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if current.Status == enums.OrderStatusExpired {
			expired++
		}
	}
	return expired, errs
}

// Cancel abandons a pending order owned by userID. Cancelling an already
// cancelled order succeeds without change.
func (s *Service) Cancel(ctx context.Context, orderID string, userID uuid.UUID) (*models.PendingOrder, error) {
	order, err := s.ownedOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.IsOverdue(s.now()) {
		if order, err = s.Expire(ctx, order); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expire order")
		}
	}

	if order.Status == enums.OrderStatusPending {
		now := s.now()
		won, err := s.orders.Transition(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled, map[string]any{
			"cancelled_at": now,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}
		if won {
			s.logg.Info(s.logg.WithOrderID(ctx, order.OrderID), "reconcile.order_cancelled")
			cancelled := *order
			cancelled.Status = enums.OrderStatusCancelled
			cancelled.CancelledAt = &now
			return &cancelled, nil
		}
		if order, err = s.orders.FindByID(ctx, order.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
	}

	switch order.Status {
	case enums.OrderStatusCancelled:
		return order, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s and cannot be cancelled", order.Status))
	}
}

func (s *Service) ownedOrder(ctx context.Context, orderID string, userID uuid.UUID) (*models.PendingOrder, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.orders.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

func timeMax(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
