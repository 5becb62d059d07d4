package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ovenly/api/internal/config"
	"github.com/ovenly/api/internal/enum"
	"github.com/ovenly/api/internal/handler"
	"github.com/ovenly/api/internal/logger"
	mw "github.com/ovenly/api/internal/middleware"
	"github.com/ovenly/api/internal/service"
	"github.com/ovenly/api/internal/ws"
	"go.uber.org/zap"
)

// Services are the application services the HTTP surface delegates to.
type Services struct {
	InternalOrders *service.InternalOrderService
	Locks          *service.LockService
	Demand         *service.DemandService
	Recipes        *service.RecipeService
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, tenant scoping, and role-based middleware as needed.
func New(cfg *config.Config, users handler.AuthStore, svc Services, hub *ws.Hub, log *zap.Logger) chi.Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger(logger.Named(log, "http")))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	authHandler := handler.NewAuthHandler(users, cfg.JWTSecret, logger.Named(log, "handler.auth"))
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/tenants/{tid}/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/tenants/{tid}", func(r chi.Router) {
			r.Use(mw.RequireTenant)

			orderHandler := handler.NewInternalOrderHandler(svc.InternalOrders, svc.Locks, logger.Named(log, "handler.internal_orders"))
			r.Route("/internal-orders", orderHandler.RegisterRoutes)

			lockHandler := handler.NewLockHandler(svc.Locks, logger.Named(log, "handler.locks"))
			r.Route("/locks", lockHandler.RegisterRoutes)

			recipeHandler := handler.NewRecipeHandler(svc.Recipes, logger.Named(log, "handler.recipes"))
			r.Route("/recipes", recipeHandler.RegisterRoutes)

			// Production planning is kitchen-only.
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager, enum.UserRoleBaker))
				productionHandler := handler.NewProductionHandler(svc.Demand, svc.InternalOrders, logger.Named(log, "handler.production"))
				r.Route("/production", productionHandler.RegisterRoutes)
			})
		})
	})

	log.Info("router initialized")
	return r
}
