package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// DecodeCatalog parses a JSON array of products. Prices may be JSON
// strings or numbers. Every product needs an ID, a name and a positive price.
func DecodeCatalog(data []byte) ([]Product, error) {
	var out []Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			return decodeField(d, key, &p)
		}); err != nil {
			return err
		}
		if p.ID == "" || p.Name == "" {
			return errors.Errorf("product #%d: id and name are required", len(out)+1)
		}
		if !p.Price.IsPositive() {
			return errors.Errorf("product %s: price must be positive", p.ID)
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return out, nil
}

func decodeField(d *jx.Decoder, key string, p *Product) (err error) {
	str := func(dst *string) {
		*dst, err = d.Str()
	}
	switch key {
	case "id":
		str(&p.ID)
	case "name":
		str(&p.Name)
	case "nameLocal":
		str(&p.NameLocal)
	case "unit":
		str(&p.Unit)
	case "category":
		str(&p.Category)
	case "origin":
		str(&p.Origin)
	case "originLocal":
		str(&p.OriginLocal)
	case "image":
		str(&p.Image)
	case "price":
		var raw string
		if d.Next() == jx.String {
			raw, err = d.Str()
		} else {
			var n jx.Num
			n, err = d.Num()
			raw = n.String()
		}
		if err != nil {
			return err
		}
		p.Price, err = decimal.NewFromString(raw)
		if err != nil {
			return errors.Wrapf(err, "price of %q", p.ID)
		}
	default:
		err = d.Skip()
	}
	return err
}
