package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/learnhub/payrecon/api/responses"
	pkgerrors "github.com/learnhub/payrecon/pkg/errors"
	"github.com/learnhub/payrecon/pkg/logger"
)

const WebhookSecretHeader = "x-webhook-secret"

// WebhookSecret rejects deliveries whose shared secret does not match before
// the body is read. With no secret configured every delivery is rejected.
func WebhookSecret(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(secret))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := []byte(strings.TrimSpace(r.Header.Get(WebhookSecretHeader)))
			if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
				if logg != nil {
					ctx := logg.WithFields(r.Context(), map[string]any{
						"secret_present":    len(provided) > 0,
						"secret_configured": len(expected) > 0,
					})
					logg.Warn(ctx, "webhook.unauthorized")
				}
				responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
