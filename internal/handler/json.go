package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/agrihub-cart/internal/domain/cart"
	"github.com/xenking/agrihub-cart/internal/domain/order"
	"github.com/xenking/agrihub-cart/internal/domain/product"
)

const maxBodyBytes = 64 << 10

// errBadJSON marks request bodies that are not the expected JSON object.
var errBadJSON = errors.New("malformed JSON body")

type addItemRequest struct {
	ProductID string
	Quantity  int
}

type setQuantityRequest struct {
	Quantity int
	set      bool
}

type checkoutRequest struct {
	CouponCode string
}

// decodeBody reads a JSON object from r and calls field for every key.
// An empty body is an empty object.
func decodeBody(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(errBadJSON, err.Error())
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	if err := jx.DecodeBytes(data).Obj(field); err != nil {
		return errors.Wrap(errBadJSON, err.Error())
	}
	return nil
}

func (req *addItemRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "productId":
		req.ProductID, err = d.Str()
	case "quantity":
		req.Quantity, err = d.Int()
	default:
		err = d.Skip()
	}
	return err
}

func (req *setQuantityRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "quantity":
		req.Quantity, err = d.Int()
		req.set = err == nil
	default:
		err = d.Skip()
	}
	return err
}

func (req *checkoutRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "couponCode":
		if d.Next() == jx.Null {
			return d.Null()
		}
		req.CouponCode, err = d.Str()
	default:
		err = d.Skip()
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func (h *Handler) imageURL(path string) string {
	if path == "" || strings.Contains(path, "://") {
		return path
	}
	return h.imageBaseURL + path
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("nameLocal", func(e *jx.Encoder) { e.Str(p.NameLocal) })
		e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
		e.Field("unit", func(e *jx.Encoder) { e.Str(p.Unit) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("origin", func(e *jx.Encoder) { e.Str(p.Origin) })
		e.Field("originLocal", func(e *jx.Encoder) { e.Str(p.OriginLocal) })
		e.Field("image", func(e *jx.Encoder) { e.Str(h.imageURL(p.Image)) })
	})
}

// encodeCart writes the cart view: line items in insertion order and the
// derived totals.
func (h *Handler) encodeCart(e *jx.Encoder, sessionID string, c *cart.Cart) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("sessionId", func(e *jx.Encoder) { e.Str(sessionID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, li := range c.Items() {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product", func(e *jx.Encoder) { h.encodeProduct(e, li.Product) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
						e.Field("subtotal", func(e *jx.Encoder) { money(e, li.Subtotal()) })
					})
				}
			})
		})
		e.Field("totalItems", func(e *jx.Encoder) { e.Int(c.TotalItems()) })
		e.Field("totalAmount", func(e *jx.Encoder) { money(e, c.TotalAmount()) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("unit", func(e *jx.Encoder) { e.Str(it.Unit) })
						e.Field("unitPrice", func(e *jx.Encoder) { money(e, it.UnitPrice) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, o.Subtotal) })
		e.Field("discounts", func(e *jx.Encoder) { money(e, o.Discounts) })
		e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
		if o.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(o.CouponCode) })
		}
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}
