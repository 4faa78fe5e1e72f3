package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mavilaortega/caja-backend/api/responses"
	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/mavilaortega/caja-backend/pkg/logger"
)

const terminalIDHeader = "X-Terminal-Id"

type terminalIDKey struct{}

// TerminalID requires the X-Terminal-Id header on every request under the
// group and places it on the context. Each till identifies itself so the
// session registry can hand back its own checkout.
func TerminalID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			terminalID := strings.TrimSpace(r.Header.Get(terminalIDHeader))
			if terminalID == "" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "X-Terminal-Id header required"))
				return
			}

			ctx := context.WithValue(r.Context(), terminalIDKey{}, terminalID)
			if logg != nil {
				ctx = logg.WithTerminalID(ctx, terminalID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TerminalIDFromContext returns the terminal id set by TerminalID, or "".
func TerminalIDFromContext(ctx context.Context) string {
	if value, ok := ctx.Value(terminalIDKey{}).(string); ok {
		return value
	}
	return ""
}
