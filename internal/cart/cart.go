package cart

import (
	"fmt"

	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/google/uuid"
)

// LineItem is one product entry in the ticket being assembled. Lines merge
// when they agree on product, unit price and name; a price change mid-ticket
// produces a second line instead of silently repricing the first.
type LineItem struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Qty            int       `json:"qty"`
}

// SubtotalCents returns qty times unit price for this line.
func (l LineItem) SubtotalCents() int64 {
	return int64(l.UnitPriceCents) * int64(l.Qty)
}

func (l LineItem) sameIdentity(other LineItem) bool {
	return l.ProductID == other.ProductID &&
		l.UnitPriceCents == other.UnitPriceCents &&
		l.Name == other.Name
}

// Cart is the in-progress order for one checkout session. It performs no I/O
// and holds no locks; exactly one session owns and mutates it.
type Cart struct {
	lines         []LineItem
	receivedCents int64
	changeCents   int64
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// AddLine appends a line or merges the quantity into an existing line with
// the same identity triple.
func (c *Cart) AddLine(productID uuid.UUID, name string, unitPriceCents, qty int) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
	}
	if unitPriceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}

	candidate := LineItem{ProductID: productID, Name: name, UnitPriceCents: unitPriceCents, Qty: qty}
	for i := range c.lines {
		if c.lines[i].sameIdentity(candidate) {
			c.lines[i].Qty += qty
			return nil
		}
	}
	c.lines = append(c.lines, candidate)
	return nil
}

// RemoveLine deletes the line at index.
func (c *Cart) RemoveLine(index int) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

// IncrementLine raises the quantity of the line at index by one.
func (c *Cart) IncrementLine(index int) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	c.lines[index].Qty++
	return nil
}

// DecrementLine lowers the quantity of the line at index by one; a line
// already at quantity one is removed.
func (c *Cart) DecrementLine(index int) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	if c.lines[index].Qty <= 1 {
		return c.RemoveLine(index)
	}
	c.lines[index].Qty--
	return nil
}

// Lines returns a copy of the current lines in order.
func (c *Cart) Lines() []LineItem {
	out := make([]LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// TotalCents returns the sum of line subtotals. Pure, no side effects.
func (c *Cart) TotalCents() int64 {
	var total int64
	for _, line := range c.lines {
		total += line.SubtotalCents()
	}
	return total
}

// SetReceived records the cash tendered and computes change.
func (c *Cart) SetReceived(cents int64) error {
	if c.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no lines")
	}
	total := c.TotalCents()
	if cents < total {
		return pkgerrors.New(pkgerrors.CodeValidation, "received amount is below the cart total").
			WithDetails(map[string]any{"total_cents": total, "received_cents": cents})
	}
	c.receivedCents = cents
	c.changeCents = cents - total
	return nil
}

// ReceivedCents returns the cash tendered so far.
func (c *Cart) ReceivedCents() int64 {
	return c.receivedCents
}

// ChangeCents returns the change owed for the recorded payment.
func (c *Cart) ChangeCents() int64 {
	return c.changeCents
}

// Clear empties the line list and resets the payment-tracking fields.
func (c *Cart) Clear() {
	c.lines = nil
	c.receivedCents = 0
	c.changeCents = 0
}

func (c *Cart) checkIndex(index int) error {
	if index < 0 || index >= len(c.lines) {
		return pkgerrors.New(pkgerrors.CodeValidation, "line index out of range").
			WithDetails(map[string]any{"index": index, "lines": len(c.lines)})
	}
	return nil
}

// String renders a short summary for logs.
func (c *Cart) String() string {
	return fmt.Sprintf("cart{lines=%d total_cents=%d}", len(c.lines), c.TotalCents())
}
