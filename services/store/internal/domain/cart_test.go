package domain_test

import (
	"testing"

	"github.com/miyomint/storefront/services/store/internal/domain"
)

func TestBuildCart(t *testing.T) {
	cart := domain.BuildCart([]domain.CartLine{
		{ProductID: "choco-tart", Price: 4.99, Quantity: 3},
		{ProductID: "yuzu-cake", Price: 12.50, Quantity: 1},
	})

	if cart.Subtotal != 27.47 {
		t.Errorf("subtotal = %v, want 27.47", cart.Subtotal)
	}
	if cart.Count != 4 {
		t.Errorf("count = %v, want 4", cart.Count)
	}
}

func TestBuildCartEmpty(t *testing.T) {
	cart := domain.BuildCart(nil)

	if cart.Lines == nil {
		t.Error("lines must marshal as [], not null")
	}
	if cart.Subtotal != 0 || cart.Count != 0 {
		t.Errorf("empty cart totals = %v / %v", cart.Subtotal, cart.Count)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{1.005, 1.0}, // binary 1.005 sits just below the midpoint
		{2.675, 2.67},
		{2.685, 2.69},
		{19.999, 20},
		{-1.255, -1.25},
	}
	for _, tc := range cases {
		if got := domain.Round2(tc.in); got != tc.want {
			t.Errorf("Round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAddLineRequestNormalize(t *testing.T) {
	req := &domain.AddLineRequest{ProductID: " choco-tart ", Name: " Choco Tart ", Price: 4.99}
	req.Normalize()

	if req.ProductID != "choco-tart" || req.Name != "Choco Tart" {
		t.Errorf("trim failed: %+v", req)
	}
	if req.Quantity != 1 {
		t.Errorf("zero quantity should default to 1, got %d", req.Quantity)
	}
}

func TestAddLineRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  domain.AddLineRequest
		ok   bool
	}{
		{"valid", domain.AddLineRequest{ProductID: "choco-tart", Name: "Choco Tart", Price: 4.99, Quantity: 1}, true},
		{"free item", domain.AddLineRequest{ProductID: "sample", Name: "Sample", Price: 0, Quantity: 1}, true},
		{"no product id", domain.AddLineRequest{Name: "Choco Tart", Price: 4.99, Quantity: 1}, false},
		{"no name", domain.AddLineRequest{ProductID: "choco-tart", Price: 4.99, Quantity: 1}, false},
		{"negative price", domain.AddLineRequest{ProductID: "choco-tart", Name: "Choco Tart", Price: -1, Quantity: 1}, false},
		{"negative quantity", domain.AddLineRequest{ProductID: "choco-tart", Name: "Choco Tart", Price: 4.99, Quantity: -2}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
