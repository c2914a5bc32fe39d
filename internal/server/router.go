package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/handlers"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/services"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, svc *services.Services) http.Handler {
	// RequireAuth rejects sessions whose user was deleted since login.
	auth.SetUserVerifier(func(ctx context.Context, uid uint) bool {
		var count int64
		if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", uid).Limit(1).Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	})

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(auth.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
			logger.FromRequest(r).Warn().Err(err).Msg("health check failed")
			httpx.JSONError(w, http.StatusServiceUnavailable, "degraded", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	ah := handlers.NewAuthHandler(db)
	r.Post("/login", ah.Login)
	r.Post("/logout", ah.Logout)

	quotes := handlers.NewQuoteHandler(svc.Quotes)
	r.Route("/public/quotes", quotes.PublicRoutes)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/me", ah.Me)
		r.Route("/customers", handlers.NewCustomerHandler(svc.Customers).Routes)
		r.Route("/catalog", handlers.NewCatalogHandler(svc.Catalog).Routes)
		r.Route("/quotes", quotes.Routes)
		r.Route("/invoices", handlers.NewInvoiceHandler(svc.Invoices).Routes)
		r.Route("/recurring", handlers.NewRecurringHandler(svc.Recurring).Routes)
		r.Route("/numbers", handlers.NewNumberHandler(svc.Numbers).Routes)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	return r
}
