package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/replenish-backend/api/controllers"
	"github.com/angelmondragon/replenish-backend/api/middleware"
	"github.com/angelmondragon/replenish-backend/pkg/config"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/replenish-backend/pkg/redis"
)

// Deps is everything the HTTP surface needs. Gatherer and HTTPMetrics may be
// nil, in which case /metrics and request metrics are skipped.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Readiness     map[string]controllers.Pinger
	Idempotency   pkgredis.IdempotencyStore
	Replenishment controllers.ReplenishmentService
	Inventory     controllers.InventoryService
	Stats         controllers.StatsService
	Gatherer      prometheus.Gatherer
	HTTPMetrics   *metrics.HTTPMetrics
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
		middleware.Metrics(d.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Readiness))
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.Idempotency(d.Idempotency, cfg.HTTP.IdempotencyTTL, logg),
		)

		r.Route("/replenishments", func(r chi.Router) {
			r.Post("/", controllers.CreateReplenishment(d.Replenishment, logg))
			r.Get("/", controllers.ListReplenishments(d.Replenishment, logg, cfg.Replenishment.ListPageSize))
			r.Route("/{requestId}", func(r chi.Router) {
				r.Get("/", controllers.GetReplenishment(d.Replenishment, logg))
				r.Post("/status", controllers.AdvanceReplenishmentStatus(d.Replenishment, logg))
				r.Put("/fulfillment", controllers.RecordReplenishmentFulfillment(d.Replenishment, logg))
			})
		})

		r.Route("/dcs/{dcId}", func(r chi.Router) {
			r.Get("/inventory", controllers.ListInventory(d.Inventory, logg))
			r.Get("/stats", controllers.GetDCStats(d.Stats, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireInventoryRole(logg))
				r.Put("/inventory", controllers.UpsertInventory(d.Inventory, logg))
				r.Post("/inventory/adjust", controllers.AdjustInventory(d.Inventory, logg))
			})
		})
	})

	return r
}
