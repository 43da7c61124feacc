package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/agrihub-cart/internal/domain/cart"
	"github.com/xenking/agrihub-cart/internal/domain/product"
)

// GetCart returns the session cart. Unknown sessions see an empty cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	id := h.sessionID(w, r)
	h.carts.View(id, func(c *cart.Cart) {
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCart(e, id, c) })
	})
}

// AddItem adds quantity units of a catalog product to the session cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := h.sessionID(w, r)

	var req addItemRequest
	if err := decodeBody(w, r, req.decode); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID == "" {
		writeError(w, r, &validationError{msg: "productId is required"})
		return
	}
	if req.Quantity <= 0 {
		writeError(w, r, &validationError{msg: "quantity must be positive"})
		return
	}
	if req.Quantity > cart.MaxQuantity {
		writeError(w, r, errQuantityTooLarge)
		return
	}

	p, err := h.products.GetByID(ctx, req.ProductID)
	if err != nil {
		writeError(w, r, unknownProduct(err))
		return
	}

	h.update(w, r, id, "add", func(c *cart.Cart) error {
		if li, ok := c.Item(p.ID); ok && li.Quantity+req.Quantity > cart.MaxQuantity {
			return errQuantityTooLarge
		}
		c.AddItem(*p, req.Quantity)
		return nil
	})
}

// SetQuantity replaces the quantity of a line item. A non-positive
// quantity removes it.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id := h.sessionID(w, r)
	productID := r.PathValue("productId")

	var req setQuantityRequest
	if err := decodeBody(w, r, req.decode); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.set {
		writeError(w, r, &validationError{msg: "quantity is required"})
		return
	}

	if req.Quantity > cart.MaxQuantity {
		writeError(w, r, errQuantityTooLarge)
		return
	}

	op := "set"
	if req.Quantity <= 0 {
		op = "remove"
	}
	h.update(w, r, id, op, func(c *cart.Cart) error {
		if _, ok := c.Item(productID); !ok {
			return errNotInCart
		}
		c.SetQuantity(productID, req.Quantity)
		return nil
	})
}

// RemoveItem deletes a line item. Removing an absent product succeeds.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	h.update(w, r, h.sessionID(w, r), "remove", func(c *cart.Cart) error {
		c.RemoveItem(productID)
		return nil
	})
}

// ClearCart empties the session cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.sessionID(w, r), "clear", func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

// update applies fn to the session cart and responds with the resulting
// cart view.
func (h *Handler) update(w http.ResponseWriter, r *http.Request, id, op string, fn func(c *cart.Cart) error) {
	err := h.carts.Update(id, func(c *cart.Cart) error {
		if err := fn(c); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCart(e, id, c) })
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.mutation(r.Context(), op)
}

// unknownProduct reports a missing catalog product as a validation error:
// the request names a product the cart cannot hold.
func unknownProduct(err error) error {
	if errors.Is(err, product.ErrNotFound) {
		return &validationError{msg: "product not found"}
	}
	return errors.Wrap(err, "get product")
}
