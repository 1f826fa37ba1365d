package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/learnhub/payrecon/api/responses"
	"github.com/learnhub/payrecon/internal/banktx"
	"github.com/learnhub/payrecon/internal/ledger"
	"github.com/learnhub/payrecon/internal/reconcile"
	"github.com/learnhub/payrecon/pkg/logger"
)

const (
	deliveryOK        = "ok"
	deliveryPartial   = "partial_failure"
	deliveryMalformed = "malformed"
	deliveryTooLarge  = "too_large"
	deliveryReadError = "read_error"
)

// BankProcessor reconciles a raw delivery.
type BankProcessor interface {
	ProcessBatch(ctx context.Context, source string, raw json.RawMessage) ([]reconcile.Result, error)
}

type deliveryRecorder interface {
	IncDelivery(result string)
}

type BankWebhookResponse struct {
	Success   bool               `json:"success"`
	Processed int                `json:"processed"`
	Results   []reconcile.Result `json:"results"`
	Message   string             `json:"message,omitempty"`
}

// BankWebhook ingests bank deliveries. The secret is checked by middleware, so
// every response here is 200: a delivery we cannot parse will not parse on
// redelivery either.
func BankWebhook(svc BankProcessor, maxBodyBytes int64, recorder deliveryRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				reject(ctx, w, recorder, logg, deliveryTooLarge, "payload too large")
				return
			}
			reject(ctx, w, recorder, logg, deliveryReadError, "could not read payload")
			return
		}

		results, err := svc.ProcessBatch(ctx, ledger.SourceWebhook, payload)
		if err != nil {
			if errors.Is(err, banktx.ErrMalformedPayload) {
				reject(ctx, w, recorder, logg, deliveryMalformed, "malformed payload")
				return
			}
			if logg != nil {
				logg.Error(ctx, "webhook.process_failed", err)
			}
			reject(ctx, w, recorder, logg, deliveryPartial, "processing failed")
			return
		}

		resp := BankWebhookResponse{Success: true, Processed: len(results), Results: results}
		for _, res := range results {
			if res.Status == reconcile.StatusError {
				resp.Success = false
				resp.Message = "some transactions could not be processed"
				break
			}
		}

		outcome := deliveryOK
		if !resp.Success {
			outcome = deliveryPartial
		}
		if recorder != nil {
			recorder.IncDelivery(outcome)
		}
		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"processed": resp.Processed,
				"outcome":   outcome,
			}), "webhook.delivery_processed")
		}
		responses.WriteJSON(w, http.StatusOK, resp)
	}
}

func reject(ctx context.Context, w http.ResponseWriter, recorder deliveryRecorder, logg *logger.Logger, outcome, message string) {
	if recorder != nil {
		recorder.IncDelivery(outcome)
	}
	if logg != nil {
		logg.Warn(logg.WithField(ctx, "outcome", outcome), "webhook.delivery_rejected")
	}
	responses.WriteJSON(w, http.StatusOK, BankWebhookResponse{
		Success: false,
		Results: []reconcile.Result{},
		Message: message,
	})
}
