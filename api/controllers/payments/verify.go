package payments

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/learnhub/payrecon/api/middleware"
	"github.com/learnhub/payrecon/api/responses"
	"github.com/learnhub/payrecon/api/validators"
	"github.com/learnhub/payrecon/internal/reconcile"
	"github.com/learnhub/payrecon/pkg/db/models"
	pkgerrors "github.com/learnhub/payrecon/pkg/errors"
	"github.com/learnhub/payrecon/pkg/logger"
)

const (
	ActionCancel     = "cancel"
	maxOrderIDLength = 64
)

// PaymentVerifier is the polling and cancellation surface of the reconciler.
type PaymentVerifier interface {
	VerifyForUser(ctx context.Context, orderID string, userID uuid.UUID) (*reconcile.Verification, error)
	Cancel(ctx context.Context, orderID string, userID uuid.UUID) (*models.PendingOrder, error)
}

type VerifyRequest struct {
	OrderID string `json:"orderId" validate:"required,max=64"`
	Action  string `json:"action,omitempty" validate:"omitempty,oneof=cancel"`
}

// VerifyPayment answers a client poll for one order, or cancels it when
// action is "cancel".
func VerifyPayment(svc PaymentVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var body VerifyRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		orderID := validators.SanitizeString(body.OrderID, maxOrderIDLength)
		if orderID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required"))
			return
		}
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID)
		}

		if body.Action == ActionCancel {
			order, err := svc.Cancel(ctx, orderID, userID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			responses.WriteJSON(w, http.StatusOK, &reconcile.Verification{
				Verified: false,
				Status:   order.Status,
				Message:  "order cancelled",
			})
			return
		}

		result, err := svc.VerifyForUser(ctx, orderID, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, result)
	}
}
