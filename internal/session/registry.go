package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mavilaortega/caja-backend/internal/sales"
	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/mavilaortega/caja-backend/pkg/logger"
)

// Factory builds a fresh checkout for a newly seen terminal.
type Factory func() (*sales.Checkout, error)

// Registry maps terminal ids to their live checkout session. Each terminal
// owns exactly one checkout at a time; the registry lock only guards the map,
// the checkout serializes its own operations.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*sales.Checkout

	factory Factory
	logg    *logger.Logger
	idleTTL time.Duration
}

func NewRegistry(factory Factory, logg *logger.Logger, idleTTL time.Duration) (*Registry, error) {
	if factory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session registry requires a checkout factory")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session registry requires a logger")
	}
	if idleTTL <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session idle TTL must be positive")
	}
	return &Registry{
		sessions: map[string]*sales.Checkout{},
		factory:  factory,
		logg:     logg,
		idleTTL:  idleTTL,
	}, nil
}

// Resolve returns the terminal's checkout, creating one on first use.
func (r *Registry) Resolve(terminalID string) (*sales.Checkout, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "terminal id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if checkout, ok := r.sessions[terminalID]; ok {
		return checkout, nil
	}
	checkout, err := r.factory()
	if err != nil {
		return nil, err
	}
	r.sessions[terminalID] = checkout
	return checkout, nil
}

// Drop removes a terminal's session outright.
func (r *Registry) Drop(terminalID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, terminalID)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// SweepIdle drops sessions with no operator activity past the idle TTL,
// freeing abandoned carts. A session mid-commit is never swept. Returns the
// number of sessions removed.
func (r *Registry) SweepIdle(ctx context.Context, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for terminalID, checkout := range r.sessions {
		if checkout.State() == sales.StateCommitting {
			continue
		}
		if now.Sub(checkout.LastTouched()) <= r.idleTTL {
			continue
		}
		delete(r.sessions, terminalID)
		removed++
		r.logg.Info(r.logg.WithTerminalID(ctx, terminalID), "idle checkout session dropped")
	}
	return removed
}
