package sales

import (
	"context"
	"sync"
	"time"

	"github.com/mavilaortega/caja-backend/internal/cart"
	"github.com/mavilaortega/caja-backend/internal/stock"
	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/google/uuid"
)

// State tracks where a checkout is in its lifecycle.
type State string

const (
	StateCartOpen        State = "CART_OPEN"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StateCommitting      State = "COMMITTING"
	StateCommitted       State = "COMMITTED"
	StateFailed          State = "FAILED"
)

// Checkout owns one cart and walks it through verification, payment and
// commit. Stock verification only counts for the current attempt: any cart
// mutation, and any failed commit, drops the marks and the operator verifies
// again.
type Checkout struct {
	mu       sync.Mutex
	cart     *cart.Cart
	state    State
	verified bool
	touched  time.Time

	gate      stock.Gate
	committer *Committer
}

func NewCheckout(gate stock.Gate, committer *Committer) (*Checkout, error) {
	if gate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout requires a stock gate")
	}
	if committer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout requires a committer")
	}
	return &Checkout{
		cart:      cart.New(),
		state:     StateCartOpen,
		touched:   time.Now(),
		gate:      gate,
		committer: committer,
	}, nil
}

func (c *Checkout) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Lines returns a copy of the current cart lines.
func (c *Checkout) Lines() []cart.LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.Lines()
}

func (c *Checkout) TotalCents() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.TotalCents()
}

// LastTouched reports the last operator activity, used by the idle sweep.
func (c *Checkout) LastTouched() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched
}

func (c *Checkout) AddLine(productID uuid.UUID, name string, unitPriceCents, qty int) error {
	return c.mutate(func() error {
		return c.cart.AddLine(productID, name, unitPriceCents, qty)
	})
}

func (c *Checkout) RemoveLine(index int) error {
	return c.mutate(func() error {
		return c.cart.RemoveLine(index)
	})
}

func (c *Checkout) IncrementLine(index int) error {
	return c.mutate(func() error {
		return c.cart.IncrementLine(index)
	})
}

func (c *Checkout) DecrementLine(index int) error {
	return c.mutate(func() error {
		return c.cart.DecrementLine(index)
	})
}

// mutate applies a cart edit and drops any verification marks. Editing after
// a committed sale starts the next one on the already-cleared cart.
func (c *Checkout) mutate(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCommitting {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is locked while the sale is committing")
	}
	if err := fn(); err != nil {
		return err
	}
	c.state = StateCartOpen
	c.verified = false
	c.touched = time.Now()
	return nil
}

// Verify re-checks every line against live stock and, when all pass, arms the
// checkout for payment. A single shortfall fails the whole verification.
func (c *Checkout) Verify(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCommitting {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "sale is already committing")
	}
	if c.cart.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot verify an empty cart")
	}

	for _, line := range c.cart.Lines() {
		ok, err := c.gate.Verify(ctx, line.ProductID, line.Qty)
		if err != nil {
			c.verified = false
			return err
		}
		if !ok {
			c.verified = false
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for cart line").
				WithDetails(map[string]any{
					"productId": line.ProductID,
					"requested": line.Qty,
				})
		}
	}

	c.verified = true
	c.state = StateAwaitingPayment
	c.touched = time.Now()
	return nil
}

// SetReceived records the amount tendered. Requires a verified cart.
func (c *Checkout) SetReceived(cents int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingPayment {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment can only be taken after verification")
	}
	if err := c.cart.SetReceived(cents); err != nil {
		return err
	}
	c.touched = time.Now()
	return nil
}

// Commit runs the atomic sale transaction. On failure the cart is preserved
// and the checkout moves to FAILED; the operator re-verifies to try again.
func (c *Checkout) Commit(ctx context.Context) (*CommitResult, error) {
	c.mu.Lock()
	if c.state != StateAwaitingPayment || !c.verified {
		c.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is not verified for commit")
	}
	c.state = StateCommitting
	c.touched = time.Now()
	crt := c.cart
	c.mu.Unlock()

	result, err := c.committer.Commit(ctx, crt)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.verified = false
	if err != nil {
		c.state = StateFailed
		return nil, err
	}
	// Cleared here rather than in the committer so the cart is only ever
	// written under this lock.
	c.cart.Clear()
	c.state = StateCommitted
	return result, nil
}

// Cancel abandons the checkout and empties the cart. Refused once the commit
// transaction has started.
func (c *Checkout) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCommitting {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot cancel while the sale is committing")
	}
	c.cart.Clear()
	c.state = StateCartOpen
	c.verified = false
	c.touched = time.Now()
	return nil
}
