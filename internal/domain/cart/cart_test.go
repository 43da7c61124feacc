package cart

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/agrihub-cart/internal/domain/product"
)

func newTestProduct(id string, price int64) product.Product {
	return product.Product{
		ID:        id,
		Name:      "Product " + id,
		NameLocal: "ఉత్పత్తి " + id,
		Price:     decimal.NewFromInt(price),
		Unit:      "kg",
		Origin:    "Guntur",
	}
}

func requireAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.NewFromInt(want).Equal(got), "expected amount %d, got %s", want, got)
}

func TestCart_Empty(t *testing.T) {
	c := New()

	assert.Equal(t, 0, c.TotalItems())
	requireAmount(t, 0, c.TotalAmount())
	assert.Empty(t, c.Items())

	c.RemoveItem("nonexistent")
	assert.Equal(t, 0, c.Len())
}

func TestCart_AddItemMergesQuantities(t *testing.T) {
	a := newTestProduct("A", 100)
	c := New()

	c.AddItem(a, 2)
	c.AddItem(a, 3)

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].Product.ID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 5, c.TotalItems())
	requireAmount(t, 500, c.TotalAmount())
}

func TestCart_SetQuantityZeroRemoves(t *testing.T) {
	c := New()
	c.AddItem(newTestProduct("A", 100), 2)
	c.AddItem(newTestProduct("B", 50), 1)

	c.SetQuantity("A", 0)

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].Product.ID)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, 1, c.TotalItems())
	requireAmount(t, 50, c.TotalAmount())
}

func TestCart_SetQuantity(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		quantity int
		wantQty  int
		wantOK   bool
	}{
		{name: "overwrites rather than increments", id: "A", quantity: 7, wantQty: 7, wantOK: true},
		{name: "zero removes", id: "A", quantity: 0},
		{name: "negative removes", id: "A", quantity: -1},
		{name: "large negative removes", id: "A", quantity: -1000},
		{name: "unknown id has no effect", id: "Z", quantity: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.AddItem(newTestProduct("A", 10), 3)

			c.SetQuantity(tt.id, tt.quantity)

			li, ok := c.Item(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantQty, li.Quantity)
			}
			if tt.id == "Z" {
				a, ok := c.Item("A")
				require.True(t, ok)
				assert.Equal(t, 3, a.Quantity)
			}
		})
	}
}

func TestCart_RemoveItemIdempotent(t *testing.T) {
	once := New()
	once.AddItem(newTestProduct("A", 10), 1)
	once.AddItem(newTestProduct("B", 20), 2)
	once.RemoveItem("A")

	twice := New()
	twice.AddItem(newTestProduct("A", 10), 1)
	twice.AddItem(newTestProduct("B", 20), 2)
	twice.RemoveItem("A")
	twice.RemoveItem("A")

	assert.Equal(t, once.Items(), twice.Items())
	assert.Equal(t, 2, twice.TotalItems())
}

func TestCart_Clear(t *testing.T) {
	c := New()
	c.AddItem(newTestProduct("A", 10), 1)
	c.AddItem(newTestProduct("B", 20), 4)

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.TotalItems())
	requireAmount(t, 0, c.TotalAmount())

	// Empty cart accepts new items.
	c.AddItem(newTestProduct("C", 5), 2)
	assert.Equal(t, 2, c.TotalItems())
}

func TestCart_AddItemIgnoresIllFormedInput(t *testing.T) {
	c := New()

	c.AddItem(product.Product{Price: decimal.NewFromInt(1)}, 1)
	c.AddItem(newTestProduct("A", 10), 0)
	c.AddItem(newTestProduct("A", 10), -2)

	assert.Equal(t, 0, c.Len())
}

func TestCart_QuantitySaturates(t *testing.T) {
	a := newTestProduct("A", 240)
	b := newTestProduct("B", 1)
	c := New()

	c.AddItem(a, math.MaxInt)
	c.AddItem(a, 1)
	c.AddItem(b, MaxQuantity-1)
	c.AddItem(b, math.MaxInt)

	got, ok := c.Item("A")
	require.True(t, ok)
	assert.Equal(t, MaxQuantity, got.Quantity)
	got, ok = c.Item("B")
	require.True(t, ok)
	assert.Equal(t, MaxQuantity, got.Quantity)
	assert.Equal(t, 2*MaxQuantity, c.TotalItems())
	requireAmount(t, 241*MaxQuantity, c.TotalAmount())

	c.SetQuantity("A", math.MaxInt)
	got, _ = c.Item("A")
	assert.Equal(t, MaxQuantity, got.Quantity)

	c.SetQuantity("A", 3)
	c.AddItem(a, MaxQuantity-3)
	got, _ = c.Item("A")
	assert.Equal(t, MaxQuantity, got.Quantity)
}

func TestCart_PreservesInsertionOrder(t *testing.T) {
	c := New()
	for _, id := range []string{"rice", "chilli", "turmeric"} {
		c.AddItem(newTestProduct(id, 1), 1)
	}
	c.AddItem(newTestProduct("rice", 1), 1)

	var ids []string
	for _, li := range c.Items() {
		ids = append(ids, li.Product.ID)
	}
	assert.Equal(t, []string{"rice", "chilli", "turmeric"}, ids)
}

func TestCart_ItemsReturnsCopy(t *testing.T) {
	c := New()
	c.AddItem(newTestProduct("A", 10), 1)

	items := c.Items()
	items[0].Quantity = 99

	li, ok := c.Item("A")
	require.True(t, ok)
	assert.Equal(t, 1, li.Quantity)
}

func TestCart_FractionalPrices(t *testing.T) {
	c := New()
	c.AddItem(product.Product{ID: "okra", Price: decimal.RequireFromString("42.50")}, 3)
	c.AddItem(product.Product{ID: "mint", Price: decimal.RequireFromString("0.99")}, 2)

	assert.True(t, decimal.RequireFromString("129.48").Equal(c.TotalAmount()), c.TotalAmount().String())
}

// TestCart_AggregatesMatchContents drives random operation sequences and
// checks invariants after every step.
func TestCart_AggregatesMatchContents(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	catalog := []product.Product{
		newTestProduct("A", 100),
		newTestProduct("B", 50),
		newTestProduct("C", 7),
		newTestProduct("D", 1),
	}

	c := New()
	for step := range 2000 {
		p := catalog[rng.IntN(len(catalog))]
		switch rng.IntN(5) {
		case 0, 1:
			c.AddItem(p, rng.IntN(5)+1)
		case 2:
			c.SetQuantity(p.ID, rng.IntN(7)-2)
		case 3:
			c.RemoveItem(p.ID)
		case 4:
			if rng.IntN(10) == 0 {
				c.Clear()
			}
		}

		seen := make(map[string]bool)
		wantItems := 0
		wantAmount := decimal.Zero
		for _, li := range c.Items() {
			require.Positive(t, li.Quantity, "step %d", step)
			require.False(t, seen[li.Product.ID], "duplicate %s at step %d", li.Product.ID, step)
			seen[li.Product.ID] = true
			wantItems += li.Quantity
			wantAmount = wantAmount.Add(li.Product.Price.Mul(decimal.NewFromInt(int64(li.Quantity))))
		}
		require.Equal(t, wantItems, c.TotalItems(), "step %d", step)
		require.True(t, wantAmount.Equal(c.TotalAmount()), "step %d", step)
	}
}
