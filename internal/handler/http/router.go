// Package http exposes the storefront session operations over HTTP.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterConfig holds the router settings that come from configuration.
type RouterConfig struct {
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
	// RateLimitRPS is the per-session request rate. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates the chi router with every storefront route registered.
func NewRouter(svc *service.SessionService, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.Tracing)
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	h := NewSessionHandler(svc, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))

		r.Get("/currencies", h.ListCurrencies)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session)
			r.Use(middleware.RequestLogger(logger))
			r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Post("/items", h.AddCartItem)
				r.Post("/items/{productID}/increment", h.IncrementCartItem)
				r.Post("/items/{productID}/decrement", h.DecrementCartItem)
				r.Delete("/items/{productID}", h.RemoveCartItem)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", h.GetWishlist)
				r.Post("/items", h.AddWishlistItem)
				r.Delete("/items/{productID}", h.RemoveWishlistItem)
				r.Post("/items/{productID}/move-to-cart", h.MoveToCart)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", h.GetCheckout)
				r.Delete("/", h.AbandonCheckout)
				r.Put("/shipping-address", h.SetShippingAddress)
				r.Put("/payment-method", h.SetPaymentMethod)
				r.Put("/items", h.ReplaceCheckoutItems)
				r.Post("/items/{productID}/increment", h.IncrementCheckoutItem)
				r.Post("/items/{productID}/decrement", h.DecrementCheckoutItem)
				r.Delete("/items/{productID}", h.RemoveCheckoutItem)
				r.Post("/orders", h.PlaceOrder)
			})
		})
	})

	return r
}
