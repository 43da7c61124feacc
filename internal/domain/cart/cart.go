// Package cart holds the session shopping cart: line items keyed by product
// ID and the aggregates derived from them.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/agrihub-cart/internal/domain/product"
)

// MaxQuantity bounds the quantity of a single line item. Stored quantities
// saturate at this value.
const MaxQuantity = 10_000

// LineItem is a product together with the quantity held in the cart.
type LineItem struct {
	Product  product.Product
	Quantity int
}

// Subtotal returns price × quantity for the line.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Product.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Store is the set of operations cart consumers depend on.
type Store interface {
	AddItem(p product.Product, quantity int)
	SetQuantity(productID string, quantity int)
	RemoveItem(productID string)
	Clear()
	TotalItems() int
	TotalAmount() decimal.Decimal
}

var _ Store = (*Cart)(nil)

// Cart is an in-memory collection of line items. At most one line item
// exists per product ID and every stored quantity is positive.
//
// A Cart has a single owner and is not safe for concurrent use; the
// Registry serializes access when carts are shared between requests.
type Cart struct {
	items []LineItem
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// AddItem merges quantity units of p into the cart. An existing line item
// for p.ID is incremented, otherwise a new one is appended. The resulting
// quantity is capped at MaxQuantity.
//
// Input validation is the caller's job: an empty product ID or a
// non-positive quantity leaves the cart unchanged.
func (c *Cart) AddItem(p product.Product, quantity int) {
	if p.ID == "" || quantity <= 0 {
		return
	}
	if i := c.index(p.ID); i >= 0 {
		c.items[i].Quantity = capped(c.items[i].Quantity, quantity)
		return
	}
	c.items = append(c.items, LineItem{Product: p, Quantity: min(quantity, MaxQuantity)})
}

// capped adds n to a stored quantity without exceeding MaxQuantity.
func capped(stored, n int) int {
	if n >= MaxQuantity-stored {
		return MaxQuantity
	}
	return stored + n
}

// SetQuantity overwrites the quantity of an existing line item. A quantity
// of zero or less removes the item, one above MaxQuantity stores
// MaxQuantity. Unknown IDs are ignored.
func (c *Cart) SetQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(productID)
		return
	}
	if i := c.index(productID); i >= 0 {
		c.items[i].Quantity = min(quantity, MaxQuantity)
	}
}

// RemoveItem deletes the line item for productID if present.
func (c *Cart) RemoveItem(productID string) {
	if i := c.index(productID); i >= 0 {
		c.items = slices.Delete(c.items, i, i+1)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// TotalItems returns the sum of all quantities.
func (c *Cart) TotalItems() int {
	total := 0
	for _, li := range c.items {
		total += li.Quantity
	}
	return total
}

// TotalAmount returns the sum of price × quantity over all line items.
func (c *Cart) TotalAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range c.items {
		sum = sum.Add(li.Subtotal())
	}
	return sum
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	return slices.Clone(c.items)
}

// Item returns the line item for productID.
func (c *Cart) Item(productID string) (LineItem, bool) {
	if i := c.index(productID); i >= 0 {
		return c.items[i], true
	}
	return LineItem{}, false
}

// Len returns the number of distinct products in the cart.
func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) index(productID string) int {
	return slices.IndexFunc(c.items, func(li LineItem) bool {
		return li.Product.ID == productID
	})
}
