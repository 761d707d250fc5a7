package service

import (
	"context"
	"fmt"

	"github.com/miyomint/storefront/pkg/logger"
	"github.com/miyomint/storefront/services/store/internal/domain"
	"github.com/miyomint/storefront/services/store/internal/repository"
)

// CartOwner names whose cart an operation touches. Exactly one of UserID or
// GuestKey is set; the two worlds never mix outside Merge.
type CartOwner struct {
	UserID   int64
	GuestKey string
}

func (o CartOwner) IsUser() bool {
	return o.UserID != 0
}

type CartService interface {
	GetCart(ctx context.Context, owner CartOwner) (*domain.Cart, error)
	AddToCart(ctx context.Context, owner CartOwner, req *domain.AddLineRequest) (*domain.Cart, error)

	// UpdateQuantity overwrites a line's quantity; zero or below removes the
	// line instead.
	UpdateQuantity(ctx context.Context, owner CartOwner, productID string, quantity int) (*domain.Cart, error)
	RemoveFromCart(ctx context.Context, owner CartOwner, productID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, owner CartOwner) error

	// MergeOnLogin folds the guest cart into the user's cart. Called once when
	// a guest signs in; an empty guest cart is a no-op.
	MergeOnLogin(ctx context.Context, guestKey string, userID int64) (*domain.Cart, error)
}

type cartService struct {
	cartRepo repository.CartRepository
}

func NewCartService(cartRepo repository.CartRepository) CartService {
	return &cartService{cartRepo: cartRepo}
}

func (s *cartService) GetCart(ctx context.Context, owner CartOwner) (*domain.Cart, error) {
	lines, err := s.fetchLines(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return domain.BuildCart(lines), nil
}

func (s *cartService) AddToCart(ctx context.Context, owner CartOwner, req *domain.AddLineRequest) (*domain.Cart, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var err error
	if owner.IsUser() {
		_, err = s.cartRepo.AddUserLine(ctx, owner.UserID, req)
	} else {
		_, err = s.cartRepo.AddGuestLine(ctx, owner.GuestKey, req)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}

	return s.GetCart(ctx, owner)
}

func (s *cartService) UpdateQuantity(ctx context.Context, owner CartOwner, productID string, quantity int) (*domain.Cart, error) {
	if productID == "" {
		return nil, domain.NewValidationError("product_id is required")
	}

	if quantity <= 0 {
		return s.RemoveFromCart(ctx, owner, productID)
	}

	var err error
	if owner.IsUser() {
		_, err = s.cartRepo.SetUserQuantity(ctx, owner.UserID, productID, quantity)
	} else {
		_, err = s.cartRepo.SetGuestQuantity(ctx, owner.GuestKey, productID, quantity)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update quantity: %w", err)
	}

	return s.GetCart(ctx, owner)
}

func (s *cartService) RemoveFromCart(ctx context.Context, owner CartOwner, productID string) (*domain.Cart, error) {
	if productID == "" {
		return nil, domain.NewValidationError("product_id is required")
	}

	var err error
	if owner.IsUser() {
		err = s.cartRepo.RemoveUserLine(ctx, owner.UserID, productID)
	} else {
		err = s.cartRepo.RemoveGuestLine(ctx, owner.GuestKey, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove from cart: %w", err)
	}

	return s.GetCart(ctx, owner)
}

func (s *cartService) ClearCart(ctx context.Context, owner CartOwner) error {
	var err error
	if owner.IsUser() {
		err = s.cartRepo.ClearUserCart(ctx, owner.UserID)
	} else {
		err = s.cartRepo.ClearGuestCart(ctx, owner.GuestKey)
	}
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (s *cartService) MergeOnLogin(ctx context.Context, guestKey string, userID int64) (*domain.Cart, error) {
	if guestKey == "" || userID == 0 {
		return nil, domain.NewValidationError("guest key and user id are required")
	}

	if err := s.cartRepo.MergeGuestCart(ctx, guestKey, userID); err != nil {
		return nil, fmt.Errorf("failed to merge guest cart: %w", err)
	}

	logger.InfoContext(ctx, "Merged guest cart", "user_id", userID)
	return s.GetCart(ctx, CartOwner{UserID: userID})
}

func (s *cartService) fetchLines(ctx context.Context, owner CartOwner) ([]domain.CartLine, error) {
	if owner.IsUser() {
		return s.cartRepo.GetUserCart(ctx, owner.UserID)
	}
	return s.cartRepo.GetGuestCart(ctx, owner.GuestKey)
}
