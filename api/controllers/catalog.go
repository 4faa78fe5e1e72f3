package controllers

import (
	"net/http"
	"time"

	"github.com/mavilaortega/caja-backend/api/responses"
	"github.com/mavilaortega/caja-backend/internal/catalog"
	"github.com/mavilaortega/caja-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type catalogResponse struct {
	Products      []catalog.ProductView `json:"products"`
	SalesAverages map[string]string     `json:"salesAverages"`
	CapturedAt    time.Time             `json:"capturedAt"`
	Stale         bool                  `json:"stale"`
}

// GetCatalog serves the last published snapshot immediately and kicks off a
// background refresh when it has gone stale.
func GetCatalog(cache *catalog.Cache, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := cache.Get()
		stale := cache.Stale()
		cache.RefreshIfStale(r.Context())

		responses.WriteSuccess(w, catalogResponse{
			Products:      snapshot.Products,
			SalesAverages: formatAverages(snapshot.SalesAverages),
			CapturedAt:    snapshot.CapturedAt,
			Stale:         stale,
		})
	}
}

func formatAverages(averages map[uuid.UUID]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(averages))
	for productID, avg := range averages {
		out[productID.String()] = avg.String()
	}
	return out
}
