package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/transport/http/middleware"
)

type RouterConfig struct {
	ServiceName       string
	JWTSecret         string
	JWTIssuer         string
	JWTAudience       string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func NewRouter(cfg RouterConfig, attachments *AttachmentHandler, messages *MessageHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(observability.MetricsMiddleware(cfg.ServiceName))
	r.Use(middleware.Recovery())
	r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

	r.Get("/health/live", observability.HealthLiveHandler)

	r.Group(func(p chi.Router) {
		p.Use(middleware.JWT(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience))

		p.Get("/identity", messages.Identity)

		p.Post("/attachments", attachments.Upload)
		p.Get("/attachments/{hash}", attachments.Download)

		p.Post("/messages", messages.Send)
		p.Get("/messages", messages.List)
		p.Post("/messages/{linearID}/reply", messages.Reply)

		p.Get("/transactions/{id}", messages.Transaction)
		p.Get("/flows/{id}", messages.Flow)
	})

	return otelhttp.NewHandler(r, cfg.ServiceName)
}
