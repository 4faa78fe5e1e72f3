package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
)

// ParsePathIndex reads a non-negative integer path parameter, used for cart
// line positions.
func ParsePathIndex(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "path parameter is required").
			WithDetails(map[string]any{"field": key})
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a non-negative integer").
			WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
