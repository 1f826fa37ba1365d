package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/learnhub/payrecon/api/controllers"
	paymentcontrollers "github.com/learnhub/payrecon/api/controllers/payments"
	webhookcontrollers "github.com/learnhub/payrecon/api/controllers/webhooks"
	"github.com/learnhub/payrecon/api/middleware"
	"github.com/learnhub/payrecon/pkg/config"
	"github.com/learnhub/payrecon/pkg/logger"
	"github.com/learnhub/payrecon/pkg/metrics"
	"github.com/learnhub/payrecon/pkg/redis"
)

// RouterParams carries the collaborators mounted by NewRouter. RateLimiter and
// RedisPinger may be nil when redis is not configured.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Webhooks    webhookcontrollers.BankProcessor
	Payments    paymentcontrollers.PaymentVerifier
	Metrics     *metrics.ReconcileMetrics
	Gatherer    prometheus.Gatherer
	RateLimiter redis.RateLimiter
	DBPinger    redis.Pinger
	RedisPinger redis.Pinger
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.Dependency{Name: "db", Pinger: p.DBPinger},
			controllers.Dependency{Name: "redis", Pinger: p.RedisPinger},
		))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	webhook := webhookcontrollers.BankWebhook(p.Webhooks, cfg.Webhook.MaxBodyBytes, p.Metrics, logg)
	r.Group(func(r chi.Router) {
		r.Use(middleware.WebhookSecret(cfg.Webhook.Secret, logg))
		r.Post("/bank-webhook", webhook)
		r.Post("/api/v1/webhooks/bank", webhook)
	})

	verify := paymentcontrollers.VerifyPayment(p.Payments, logg)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.PollRateLimit(p.RateLimiter, cfg.Polling.RateLimitPerKey, cfg.Polling.RateLimitWindow, logg))
		r.Post("/verify-payment", verify)
		r.Post("/api/v1/payments/verify", verify)
	})

	return r
}
