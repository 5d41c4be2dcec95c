package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/balcaopos/balcao-backend/api/controllers"
	"github.com/balcaopos/balcao-backend/api/middleware"
	"github.com/balcaopos/balcao-backend/internal/audit"
	"github.com/balcaopos/balcao-backend/internal/inventory"
	"github.com/balcaopos/balcao-backend/internal/quota"
	"github.com/balcaopos/balcao-backend/internal/sales"
	"github.com/balcaopos/balcao-backend/internal/users"
	"github.com/balcaopos/balcao-backend/pkg/config"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	"github.com/balcaopos/balcao-backend/pkg/logger"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               controllers.Pinger
	Redis            controllers.Pinger
	MetricsGatherer  prometheus.Gatherer
	UsersService     users.Service
	InventoryService inventory.Service
	SalesService     sales.Service
	AuditService     audit.Service
	QuotaTracker     quota.Tracker
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.AuthLogin(deps.UsersService, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/quota", controllers.QuotaRemaining(deps.QuotaTracker, logg))

		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ItemList(deps.InventoryService, logg))
			r.Get("/{itemId}", controllers.ItemGet(deps.InventoryService, logg))
			r.Post("/", controllers.ItemCreate(deps.InventoryService, logg))
			r.Patch("/{itemId}", controllers.ItemUpdate(deps.InventoryService, logg))
			r.Post("/batch-delete", controllers.ItemBatchDelete(deps.InventoryService, logg))
			r.Post("/import", controllers.ItemImport(deps.InventoryService, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Post("/", controllers.SaleCreate(deps.SalesService, logg))
			r.Get("/{saleId}", controllers.SaleGet(deps.SalesService, logg))
			r.Post("/{saleId}/return", controllers.SaleReturn(deps.SalesService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, enums.UserRoleAdmin, enums.UserRoleManager))
			r.Get("/audit", controllers.AuditQuery(deps.AuditService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Route("/users", func(r chi.Router) {
				r.Get("/", controllers.UserList(deps.UsersService, logg))
				r.Post("/", controllers.UserCreate(deps.UsersService, logg))
				r.Get("/{userId}", controllers.UserGet(deps.UsersService, logg))
				r.Post("/batch-delete", controllers.UserBatchDelete(deps.UsersService, logg))
			})
		})
	})

	return r
}
