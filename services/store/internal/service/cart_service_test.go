package service

import (
	"context"
	"testing"

	"github.com/miyomint/storefront/services/store/internal/domain"
)

func TestAddToCartValidatesBeforeRepo(t *testing.T) {
	carts := newMockCartRepo()
	svc := NewCartService(carts)

	_, err := svc.AddToCart(context.Background(), CartOwner{UserID: 1}, &domain.AddLineRequest{
		Name: "Choco Tart", Price: 4.99,
	})
	if err == nil {
		t.Fatal("missing product_id must be rejected")
	}
	if carts.addCalls != 0 {
		t.Error("invalid add must not reach the repository")
	}
}

func TestAddToCartDefaultsQuantity(t *testing.T) {
	carts := newMockCartRepo()
	svc := NewCartService(carts)

	cart, err := svc.AddToCart(context.Background(), CartOwner{UserID: 1}, &domain.AddLineRequest{
		ProductID: "choco-tart", Name: "Choco Tart", Price: 4.99,
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if cart.Count != 1 {
		t.Errorf("count = %d, want 1", cart.Count)
	}
	if cart.Subtotal != 4.99 {
		t.Errorf("subtotal = %v, want 4.99", cart.Subtotal)
	}
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	carts := newMockCartRepo()
	carts.userLines[1] = []domain.CartLine{
		{ProductID: "choco-tart", Name: "Choco Tart", Price: 4.99, Quantity: 2},
	}
	svc := NewCartService(carts)

	cart, err := svc.UpdateQuantity(context.Background(), CartOwner{UserID: 1}, "choco-tart", 0)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if carts.setCalls != 0 {
		t.Error("zero quantity must remove the line, not overwrite it")
	}
	if len(carts.removeCalls) != 1 || carts.removeCalls[0] != "choco-tart" {
		t.Errorf("remove calls = %v", carts.removeCalls)
	}
	if cart.Count != 0 {
		t.Errorf("count = %d, want 0", cart.Count)
	}
}

func TestUpdateQuantityNegativeRemovesLine(t *testing.T) {
	carts := newMockCartRepo()
	carts.guestLines["g-1"] = []domain.CartLine{
		{ProductID: "choco-tart", Name: "Choco Tart", Price: 4.99, Quantity: 2},
	}
	svc := NewCartService(carts)

	if _, err := svc.UpdateQuantity(context.Background(), CartOwner{GuestKey: "g-1"}, "choco-tart", -3); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if carts.setCalls != 0 || len(carts.removeCalls) != 1 {
		t.Errorf("set=%d remove=%v, want removal only", carts.setCalls, carts.removeCalls)
	}
}

func TestUpdateQuantityOverwrites(t *testing.T) {
	carts := newMockCartRepo()
	carts.userLines[1] = []domain.CartLine{
		{ProductID: "choco-tart", Name: "Choco Tart", Price: 4.99, Quantity: 2},
	}
	svc := NewCartService(carts)

	cart, err := svc.UpdateQuantity(context.Background(), CartOwner{UserID: 1}, "choco-tart", 5)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if cart.Count != 5 {
		t.Errorf("count = %d, want 5 (overwrite, not increment)", cart.Count)
	}
}

func TestClearCartTwiceIsNoOp(t *testing.T) {
	carts := newMockCartRepo()
	carts.userLines[1] = []domain.CartLine{
		{ProductID: "choco-tart", Name: "Choco Tart", Price: 4.99, Quantity: 1},
	}
	svc := NewCartService(carts)
	owner := CartOwner{UserID: 1}

	if err := svc.ClearCart(context.Background(), owner); err != nil {
		t.Fatalf("first clear failed: %v", err)
	}
	if err := svc.ClearCart(context.Background(), owner); err != nil {
		t.Fatalf("clearing an empty cart must succeed: %v", err)
	}
}

func TestMergeOnLoginGuards(t *testing.T) {
	carts := newMockCartRepo()
	svc := NewCartService(carts)

	if _, err := svc.MergeOnLogin(context.Background(), "", 1); err == nil {
		t.Error("empty guest key must be rejected")
	}
	if _, err := svc.MergeOnLogin(context.Background(), "g-1", 0); err == nil {
		t.Error("zero user id must be rejected")
	}
	if carts.mergeCalls != 0 {
		t.Error("guard failures must not reach the repository")
	}
}

func TestMergeOnLoginReturnsUserCart(t *testing.T) {
	carts := newMockCartRepo()
	carts.userLines[1] = []domain.CartLine{
		{ProductID: "choco-tart", Name: "Choco Tart", Price: 4.99, Quantity: 1},
	}
	carts.guestLines["g-1"] = []domain.CartLine{
		{ProductID: "yuzu-cake", Name: "Yuzu Cake", Price: 12.50, Quantity: 2},
	}
	svc := NewCartService(carts)

	cart, err := svc.MergeOnLogin(context.Background(), "g-1", 1)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if carts.mergeCalls != 1 {
		t.Errorf("merge called %d times, want 1", carts.mergeCalls)
	}
	if cart.Count != 3 {
		t.Errorf("merged count = %d, want 3", cart.Count)
	}
	if len(carts.guestLines["g-1"]) != 0 {
		t.Error("guest lines must be gone after merge")
	}
}
