package domain

import (
	"math"
	"strings"
	"time"
)

// CartLine is one product entry in a cart. Name, price and image are
// denormalized from the catalog at add time so the cart renders without a
// catalog lookup.
type CartLine struct {
	ID        int64     `json:"id"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Image     string    `json:"image,omitempty"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Cart struct {
	Lines    []CartLine `json:"lines"`
	Subtotal float64    `json:"subtotal"`
	Count    int        `json:"count"`
}

// BuildCart derives the totals view from a set of lines.
func BuildCart(lines []CartLine) *Cart {
	c := &Cart{Lines: lines}
	if c.Lines == nil {
		c.Lines = []CartLine{}
	}
	for _, l := range lines {
		c.Subtotal += l.Price * float64(l.Quantity)
		c.Count += l.Quantity
	}
	c.Subtotal = Round2(c.Subtotal)
	return c
}

type AddLineRequest struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
}

func (r *AddLineRequest) Normalize() {
	r.ProductID = strings.TrimSpace(r.ProductID)
	r.Name = strings.TrimSpace(r.Name)
	if r.Quantity == 0 {
		r.Quantity = 1
	}
}

func (r *AddLineRequest) Validate() error {
	if r.ProductID == "" {
		return NewValidationError("product_id is required")
	}
	if r.Name == "" {
		return NewValidationError("name is required")
	}
	if r.Price < 0 {
		return NewValidationError("price must not be negative")
	}
	if r.Quantity < 1 {
		return NewValidationError("quantity must be at least 1")
	}
	return nil
}

// Round2 rounds a money amount to cents. All totals pass through here so
// float noise never reaches a stored amount.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
