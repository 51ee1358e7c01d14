package models

import (
	"math"
	"sort"
)

type Product struct {
	ID            string   `json:"_id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	OriginalPrice float64  `json:"originalPrice,omitempty"`
	Discount      int      `json:"discount,omitempty"`
	Image         string   `json:"image"`
	Category      string   `json:"category"`
	Features      []string `json:"features,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	InStock       bool     `json:"inStock"`
	Quantity      int      `json:"quantity"`
}

// DiscountPercent prefers the backend-provided discount and otherwise derives
// it from the original price, rounded to the nearest whole percent.
func (p Product) DiscountPercent() int {
	if p.Discount > 0 {
		return p.Discount
	}
	if p.OriginalPrice <= 0 || p.OriginalPrice <= p.Price {
		return 0
	}
	return int(math.Round((p.OriginalPrice - p.Price) / p.OriginalPrice * 100))
}

type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func (l CartLine) Subtotal() float64 {
	return l.Product.Price * float64(l.Quantity)
}

// CartSnapshot is a point-in-time view of a cart. Mutating methods return a
// new snapshot and leave the receiver untouched.
type CartSnapshot struct {
	ID    string     `json:"_id,omitempty"`
	Lines []CartLine `json:"items"`
}

func EmptyCart() CartSnapshot {
	return CartSnapshot{Lines: []CartLine{}}
}

func (s CartSnapshot) Total() float64 {
	var total float64
	for _, l := range s.Lines {
		total += l.Subtotal()
	}
	return total
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

func (s CartSnapshot) Clone() CartSnapshot {
	lines := make([]CartLine, len(s.Lines))
	copy(lines, s.Lines)
	return CartSnapshot{ID: s.ID, Lines: lines}
}

func (s CartSnapshot) Quantity(productID string) int {
	for _, l := range s.Lines {
		if l.Product.ID == productID {
			return l.Quantity
		}
	}
	return 0
}

func (s CartSnapshot) Line(productID string) (CartLine, bool) {
	for _, l := range s.Lines {
		if l.Product.ID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Normalize coalesces lines sharing a product id into one line with the summed
// quantity and drops lines with no product id or a non-positive quantity.
// First-seen order is kept.
func (s CartSnapshot) Normalize() CartSnapshot {
	out := CartSnapshot{ID: s.ID, Lines: make([]CartLine, 0, len(s.Lines))}
	index := make(map[string]int, len(s.Lines))
	for _, l := range s.Lines {
		if l.Product.ID == "" || l.Quantity < 1 {
			continue
		}
		if i, ok := index[l.Product.ID]; ok {
			out.Lines[i].Quantity += l.Quantity
			continue
		}
		index[l.Product.ID] = len(out.Lines)
		out.Lines = append(out.Lines, l)
	}
	return out
}

// WithAdded increments the line for p, creating it when absent.
func (s CartSnapshot) WithAdded(p Product, qty int) CartSnapshot {
	out := s.Normalize()
	for i := range out.Lines {
		if out.Lines[i].Product.ID == p.ID {
			out.Lines[i].Quantity += qty
			return out
		}
	}
	out.Lines = append(out.Lines, CartLine{Product: p, Quantity: qty})
	return out.Normalize()
}

// WithQuantity sets the quantity of an existing line; quantities below one remove it.
func (s CartSnapshot) WithQuantity(productID string, qty int) CartSnapshot {
	out := s.Normalize()
	for i := range out.Lines {
		if out.Lines[i].Product.ID == productID {
			out.Lines[i].Quantity = qty
		}
	}
	return out.Normalize()
}

func (s CartSnapshot) Without(productID string) CartSnapshot {
	return s.WithQuantity(productID, 0)
}

// WishlistSet is a sorted, duplicate-free list of product ids.
type WishlistSet []string

func NewWishlistSet(ids ...string) WishlistSet {
	seen := make(map[string]struct{}, len(ids))
	out := make(WishlistSet, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (w WishlistSet) Contains(id string) bool {
	i := sort.SearchStrings(w, id)
	return i < len(w) && w[i] == id
}

func (w WishlistSet) With(id string) WishlistSet {
	if w.Contains(id) {
		return w
	}
	return NewWishlistSet(append(append([]string{}, w...), id)...)
}

func (w WishlistSet) Without(id string) WishlistSet {
	out := make(WishlistSet, 0, len(w))
	for _, v := range w {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (w WishlistSet) Union(other WishlistSet) WishlistSet {
	return NewWishlistSet(append(append([]string{}, w...), other...)...)
}
