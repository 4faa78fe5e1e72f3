package controllers

import (
	"net/http"

	"github.com/mavilaortega/caja-backend/api/middleware"
	"github.com/mavilaortega/caja-backend/api/responses"
	"github.com/mavilaortega/caja-backend/api/validators"
	"github.com/mavilaortega/caja-backend/internal/sales"
	"github.com/mavilaortega/caja-backend/internal/session"
	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/mavilaortega/caja-backend/pkg/logger"
	"github.com/google/uuid"
)

type addLineRequest struct {
	ProductID      uuid.UUID `json:"productId" validate:"required"`
	Name           string    `json:"name" validate:"required,max=200"`
	UnitPriceCents int       `json:"unitPriceCents" validate:"min=0"`
	Qty            int       `json:"qty" validate:"required,min=1"`
}

type cartLineView struct {
	ProductID      uuid.UUID `json:"productId"`
	Name           string    `json:"name"`
	UnitPriceCents int       `json:"unitPriceCents"`
	Qty            int       `json:"qty"`
	SubtotalCents  int64     `json:"subtotalCents"`
}

type cartView struct {
	State      sales.State    `json:"state"`
	Lines      []cartLineView `json:"lines"`
	TotalCents int64          `json:"totalCents"`
}

func newCartView(checkout *sales.Checkout) cartView {
	lines := checkout.Lines()
	view := cartView{
		State:      checkout.State(),
		Lines:      make([]cartLineView, 0, len(lines)),
		TotalCents: checkout.TotalCents(),
	}
	for _, line := range lines {
		view.Lines = append(view.Lines, cartLineView{
			ProductID:      line.ProductID,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Qty,
			SubtotalCents:  line.SubtotalCents(),
		})
	}
	return view
}

func resolveCheckout(r *http.Request, registry *session.Registry) (*sales.Checkout, error) {
	terminalID := middleware.TerminalIDFromContext(r.Context())
	if terminalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "terminal context missing")
	}
	return registry.Resolve(terminalID)
}

func CartFetch(registry *session.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkout, err := resolveCheckout(r, registry)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(checkout))
	}
}

// CartAddLine appends a line, merging quantity into an existing line with the
// same product, price and name.
func CartAddLine(registry *session.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkout, err := resolveCheckout(r, registry)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := checkout.AddLine(payload.ProductID, payload.Name, payload.UnitPriceCents, payload.Qty); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartView(checkout))
	}
}

func CartRemoveLine(registry *session.Registry, logg *logger.Logger) http.HandlerFunc {
	return cartIndexOp(registry, logg, func(checkout *sales.Checkout, index int) error {
		return checkout.RemoveLine(index)
	})
}

func CartIncrementLine(registry *session.Registry, logg *logger.Logger) http.HandlerFunc {
	return cartIndexOp(registry, logg, func(checkout *sales.Checkout, index int) error {
		return checkout.IncrementLine(index)
	})
}

// CartDecrementLine lowers a line's quantity; at quantity one the line is
// removed instead.
func CartDecrementLine(registry *session.Registry, logg *logger.Logger) http.HandlerFunc {
	return cartIndexOp(registry, logg, func(checkout *sales.Checkout, index int) error {
		return checkout.DecrementLine(index)
	})
}

func cartIndexOp(registry *session.Registry, logg *logger.Logger, op func(*sales.Checkout, int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkout, err := resolveCheckout(r, registry)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		index, err := validators.ParsePathIndex(r, "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := op(checkout, index); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(checkout))
	}
}

// CartCancel abandons the checkout, emptying the cart.
func CartCancel(registry *session.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkout, err := resolveCheckout(r, registry)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := checkout.Cancel(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(checkout))
	}
}
