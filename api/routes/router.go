package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mavilaortega/caja-backend/api/controllers"
	"github.com/mavilaortega/caja-backend/api/middleware"
	"github.com/mavilaortega/caja-backend/internal/catalog"
	"github.com/mavilaortega/caja-backend/internal/restock"
	"github.com/mavilaortega/caja-backend/internal/session"
	"github.com/mavilaortega/caja-backend/pkg/config"
	"github.com/mavilaortega/caja-backend/pkg/db"
	"github.com/mavilaortega/caja-backend/pkg/logger"
	pkgredis "github.com/mavilaortega/caja-backend/pkg/redis"
)

// RouterParams carry everything the HTTP surface depends on.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *pkgredis.Client
	Catalog  *catalog.Cache
	Sessions *session.Registry
	Advisor  restock.Advisor
	Gatherer prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	readyChecks := []controllers.Pinger{}
	if params.DB != nil {
		readyChecks = append(readyChecks, params.DB)
	}
	if params.Redis != nil {
		readyChecks = append(readyChecks, params.Redis)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyChecks...))
	})

	if params.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", controllers.GetCatalog(params.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.TerminalID(logg))
			if params.Redis != nil {
				r.Use(middleware.Idempotency(params.Redis, logg))
			}

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(params.Sessions, logg))
				r.Delete("/", controllers.CartCancel(params.Sessions, logg))
				r.Post("/lines", controllers.CartAddLine(params.Sessions, logg))
				r.Delete("/lines/{index}", controllers.CartRemoveLine(params.Sessions, logg))
				r.Post("/lines/{index}/increment", controllers.CartIncrementLine(params.Sessions, logg))
				r.Post("/lines/{index}/decrement", controllers.CartDecrementLine(params.Sessions, logg))
			})

			r.Post("/checkout/verify", controllers.CheckoutVerify(params.Sessions, logg))
			r.Post("/checkout", controllers.CheckoutCommit(params.Sessions, params.Advisor, logg))
		})
	})

	return r
}
