package controllers

import (
	"net/http"
	"time"

	"github.com/mavilaortega/caja-backend/api/responses"
	"github.com/mavilaortega/caja-backend/api/validators"
	"github.com/mavilaortega/caja-backend/internal/restock"
	"github.com/mavilaortega/caja-backend/internal/sales"
	"github.com/mavilaortega/caja-backend/internal/session"
	"github.com/mavilaortega/caja-backend/pkg/logger"
	"github.com/google/uuid"
)

type commitRequest struct {
	ReceivedCents int64 `json:"receivedCents" validate:"min=0"`
}

type restockAlert struct {
	ProductID uuid.UUID `json:"productId"`
	Stock     int       `json:"stock"`
	Threshold string    `json:"threshold"`
}

type saleLineView struct {
	ProductID      uuid.UUID `json:"productId"`
	Name           string    `json:"name"`
	UnitPriceCents int       `json:"unitPriceCents"`
	Qty            int       `json:"qty"`
	SubtotalCents  int64     `json:"subtotalCents"`
}

type saleView struct {
	ID         uuid.UUID      `json:"id"`
	SoldAt     time.Time      `json:"soldAt"`
	TotalCents int64          `json:"totalCents"`
	Lines      []saleLineView `json:"lines"`
}

type commitResponse struct {
	Sale          saleView       `json:"sale"`
	ChangeCents   int64          `json:"changeCents"`
	RestockAlerts []restockAlert `json:"restockAlerts"`
}

// CheckoutVerify re-checks every cart line against live stock and arms the
// checkout for payment.
func CheckoutVerify(registry *session.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkout, err := resolveCheckout(r, registry)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := checkout.Verify(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(checkout))
	}
}

// CheckoutCommit takes payment and runs the atomic sale transaction. The
// restock advisor is consulted only after the commit succeeded and never
// blocks it.
func CheckoutCommit(registry *session.Registry, advisor restock.Advisor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkout, err := resolveCheckout(r, registry)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload commitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if payload.ReceivedCents > 0 {
			if err := checkout.SetReceived(payload.ReceivedCents); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := checkout.Commit(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		changeCents := int64(0)
		if payload.ReceivedCents > 0 {
			changeCents = payload.ReceivedCents - result.Sale.TotalCents
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, commitResponse{
			Sale:          newSaleView(result),
			ChangeCents:   changeCents,
			RestockAlerts: collectAlerts(r, advisor, result),
		})
	}
}

func newSaleView(result *sales.CommitResult) saleView {
	view := saleView{
		ID:         result.Sale.ID,
		SoldAt:     result.Sale.SoldAt,
		TotalCents: result.Sale.TotalCents,
		Lines:      make([]saleLineView, 0, len(result.Sale.Lines)),
	}
	for _, line := range result.Sale.Lines {
		view.Lines = append(view.Lines, saleLineView{
			ProductID:      line.ProductID,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Qty,
			SubtotalCents:  line.SubtotalCents,
		})
	}
	return view
}

func collectAlerts(r *http.Request, advisor restock.Advisor, result *sales.CommitResult) []restockAlert {
	alerts := []restockAlert{}
	if advisor == nil {
		return alerts
	}
	for productID, stock := range result.PostCommitStock {
		if !advisor.ShouldAlert(r.Context(), productID, stock) {
			continue
		}
		alerts = append(alerts, restockAlert{
			ProductID: productID,
			Stock:     stock,
			Threshold: advisor.ThresholdFor(r.Context(), productID).String(),
		})
	}
	return alerts
}
