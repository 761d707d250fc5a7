package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/miyomint/storefront/pkg/config"
	"github.com/miyomint/storefront/pkg/events"
	"github.com/miyomint/storefront/pkg/logger"
	"github.com/miyomint/storefront/services/store/internal/domain"
	"github.com/miyomint/storefront/services/store/internal/payments"
	"github.com/miyomint/storefront/services/store/internal/repository"
)

// CheckoutResult is a submitted order plus the optional payment intent.
type CheckoutResult struct {
	Order  *domain.Order    `json:"order"`
	Intent *payments.Intent `json:"payment_intent,omitempty"`
}

type CheckoutService interface {
	// Checkout validates the form and the cart before any write or remote
	// call, then submits the order atomically and clears the cart.
	Checkout(ctx context.Context, owner CartOwner, req *domain.CheckoutRequest, idempotencyKey string) (*CheckoutResult, error)

	// ImportGuestOrder ingests an order pushed by a connected sales channel.
	// The header and lines are written in two steps; rows already written
	// stay in place when a later one fails.
	ImportGuestOrder(ctx context.Context, req *domain.GuestOrderImport) (*domain.Order, error)

	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)

	// LookupGuestOrder finds a guest order by number plus the checkout email.
	LookupGuestOrder(ctx context.Context, orderNumber, email string) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID int64, limit, offset int) ([]domain.Order, error)
	ListOrders(ctx context.Context, limit, offset int, status *domain.OrderStatus) ([]domain.Order, error)

	// MoveOrderStatus applies an admin transition; illegal moves are refused.
	MoveOrderStatus(ctx context.Context, id int64, to domain.OrderStatus) (*domain.Order, error)
}

type checkoutService struct {
	cartRepo        repository.CartRepository
	orderRepo       repository.OrderRepository
	idempotencyRepo repository.IdempotencyRepository
	provider        payments.Provider
	eventBus        events.Publisher
	config          *config.Config
	now             func() time.Time
}

func NewCheckoutService(
	cartRepo repository.CartRepository,
	orderRepo repository.OrderRepository,
	idempotencyRepo repository.IdempotencyRepository,
	provider payments.Provider,
	eventBus events.Publisher,
	config *config.Config,
) CheckoutService {
	return &checkoutService{
		cartRepo:        cartRepo,
		orderRepo:       orderRepo,
		idempotencyRepo: idempotencyRepo,
		provider:        provider,
		eventBus:        eventBus,
		config:          config,
		now:             time.Now,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, owner CartOwner, req *domain.CheckoutRequest, idempotencyKey string) (*CheckoutResult, error) {
	// Form validation comes first; an incomplete form never reaches the
	// database or the payment provider.
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.CouponCode != "" && domain.CouponRate(req.CouponCode) == 0 {
		return nil, domain.NewValidationError("coupon code %q is not recognized", req.CouponCode)
	}

	lines, err := s.cartLines(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, domain.NewValidationError("cart is empty")
	}

	if idempotencyKey != "" {
		existingID, err := s.idempotencyRepo.CheckOrCreate(ctx, idempotencyKey, 0)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if existingID > 0 {
			order, err := s.orderRepo.GetByID(ctx, existingID)
			if err != nil {
				return nil, err
			}
			return &CheckoutResult{Order: order}, nil
		}
	}

	var subtotal float64
	orderLines := make([]domain.OrderLine, len(lines))
	for i, l := range lines {
		subtotal += l.Price * float64(l.Quantity)
		orderLines[i] = domain.OrderLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price,
			Image:     l.Image,
			Quantity:  l.Quantity,
		}
	}
	subtotal = domain.Round2(subtotal)

	var discount float64
	couponCode := ""
	if rate := domain.CouponRate(req.CouponCode); rate > 0 {
		discount = domain.Round2(subtotal * rate)
		couponCode = req.CouponCode
	}
	total := domain.Round2(subtotal - discount)

	order := &domain.Order{
		OrderNumber:      uuid.NewString(),
		UserID:           owner.UserID,
		TotalAmount:      total,
		CouponCode:       couponCode,
		DiscountAmount:   discount,
		DeliveryEstimate: s.now().AddDate(0, 0, domain.DeliveryEstimateDays),
		ContactName:      req.Name,
		ContactEmail:     req.Email,
		ContactPhone:     req.Phone,
		ShipAddress:      req.Address,
		ShipCity:         req.City,
		ShipNotes:        req.Notes,
	}

	var saved *domain.Order
	if owner.IsUser() {
		saved, err = s.orderRepo.SubmitOrder(ctx, order, orderLines)
	} else {
		saved, err = s.orderRepo.SubmitGuestOrder(ctx, order, orderLines)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to submit order: %w", err)
	}

	if idempotencyKey != "" {
		if _, err := s.idempotencyRepo.CheckOrCreate(ctx, idempotencyKey, saved.ID); err != nil {
			logger.ErrorContext(ctx, "Failed to store idempotency record", "error", err, "order_id", saved.ID)
		}
	}

	// The order is committed; a failed cart clear leaves stale lines behind
	// but never undoes the order.
	if err := s.clearCart(ctx, owner); err != nil {
		logger.ErrorContext(ctx, "Failed to clear cart after checkout", "error", err, "order_id", saved.ID)
	}

	itemCount := 0
	for _, l := range orderLines {
		itemCount += l.Quantity
	}
	event := events.OrderCreatedEvent{
		OrderID:     saved.ID,
		OrderNumber: saved.OrderNumber,
		UserID:      saved.UserID,
		Email:       saved.ContactEmail,
		TotalAmount: saved.TotalAmount,
		ItemCount:   itemCount,
		CreatedAt:   saved.CreatedAt,
	}
	subject := events.OrderCreated
	if !owner.IsUser() {
		subject = events.GuestOrderCreated
	}
	if err := s.eventBus.Publish(ctx, subject, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish order created event", "error", err, "order_id", saved.ID)
	}

	confirmation := events.NotificationEvent{
		Type:      "order_confirmation",
		Recipient: saved.ContactEmail,
		Subject:   fmt.Sprintf("Your MiyoMint order %s", saved.OrderNumber),
		Data: map[string]interface{}{
			"body": fmt.Sprintf(
				"Hi %s,\r\n\r\nThanks for your order %s. Total: %.2f. Estimated delivery: %s.\r\n\r\nThe MiyoMint team",
				saved.ContactName, saved.OrderNumber, saved.TotalAmount, saved.DeliveryEstimate.Format("Monday, Jan 2"),
			),
		},
	}
	if err := s.eventBus.Publish(ctx, events.NotifySend, confirmation); err != nil {
		logger.ErrorContext(ctx, "Failed to publish order confirmation", "error", err, "order_id", saved.ID)
	}

	result := &CheckoutResult{Order: saved}
	if s.provider != nil {
		intent, err := s.provider.CreateIntent(ctx, saved.OrderNumber, saved.TotalAmount, "usd")
		if err != nil {
			// The order stands; payment is collected out of band when the
			// provider is down.
			logger.ErrorContext(ctx, "Failed to create payment intent", "error", err, "order_number", saved.OrderNumber)
		} else {
			result.Intent = intent
			intentEvent := events.PaymentIntentCreatedEvent{
				OrderNumber:  saved.OrderNumber,
				IntentID:     intent.ID,
				Amount:       intent.Amount,
				Currency:     intent.Currency,
				ClientSecret: intent.ClientSecret,
			}
			if err := s.eventBus.Publish(ctx, events.PaymentIntentCreated, intentEvent); err != nil {
				logger.ErrorContext(ctx, "Failed to publish payment intent event", "error", err, "order_number", saved.OrderNumber)
			}
		}
	}

	return result, nil
}

func (s *checkoutService) ImportGuestOrder(ctx context.Context, req *domain.GuestOrderImport) (*domain.Order, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var subtotal float64
	itemCount := 0
	for _, l := range req.Lines {
		subtotal += l.Price * float64(l.Quantity)
		itemCount += l.Quantity
	}

	order := &domain.Order{
		OrderNumber:      uuid.NewString(),
		TotalAmount:      domain.Round2(subtotal),
		DeliveryEstimate: s.now().AddDate(0, 0, domain.DeliveryEstimateDays),
		ContactName:      req.ContactName,
		ContactEmail:     req.ContactEmail,
		ContactPhone:     req.ContactPhone,
		ShipAddress:      req.ShipAddress,
		ShipCity:         req.ShipCity,
		ShipNotes:        req.ShipNotes,
	}

	saved, err := s.orderRepo.SubmitGuestOrder(ctx, order, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to write imported order: %w", err)
	}

	// Lines go in row by row after the header. Rows already written stay put
	// when a later one fails; nothing compensates.
	if err := s.orderRepo.SubmitGuestOrderLines(ctx, saved.ID, req.Lines); err != nil {
		return nil, fmt.Errorf("failed to write imported order lines: %w", err)
	}
	saved.Lines = req.Lines

	event := events.OrderCreatedEvent{
		OrderID:     saved.ID,
		OrderNumber: saved.OrderNumber,
		Email:       saved.ContactEmail,
		TotalAmount: saved.TotalAmount,
		ItemCount:   itemCount,
		CreatedAt:   saved.CreatedAt,
	}
	if err := s.eventBus.Publish(ctx, events.GuestOrderCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish order created event", "error", err, "order_id", saved.ID)
	}

	return saved, nil
}

func (s *checkoutService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return s.orderRepo.GetByID(ctx, id)
}

func (s *checkoutService) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.orderRepo.GetByNumber(ctx, orderNumber)
}

func (s *checkoutService) LookupGuestOrder(ctx context.Context, orderNumber, email string) (*domain.Order, error) {
	if orderNumber == "" || email == "" {
		return nil, fmt.Errorf("order number and email are required")
	}
	return s.orderRepo.GetGuestByNumber(ctx, orderNumber, strings.ToLower(strings.TrimSpace(email)))
}

func (s *checkoutService) ListUserOrders(ctx context.Context, userID int64, limit, offset int) ([]domain.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID, limit, offset)
}

func (s *checkoutService) ListOrders(ctx context.Context, limit, offset int, status *domain.OrderStatus) ([]domain.Order, error) {
	return s.orderRepo.List(ctx, limit, offset, status)
}

func (s *checkoutService) MoveOrderStatus(ctx context.Context, id int64, to domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, fmt.Errorf("order not found")
	}

	if !order.Status.CanMoveTo(to) {
		return nil, fmt.Errorf("cannot move order from %s to %s", order.Status, to)
	}

	moved, err := s.orderRepo.MoveStatus(ctx, id, order.Status, to)
	if err != nil {
		return nil, fmt.Errorf("failed to move order status: %w", err)
	}
	if !moved {
		// Lost the race against a concurrent transition
		return nil, fmt.Errorf("order status changed concurrently, retry")
	}

	event := events.OrderStatusMovedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		From:        string(order.Status),
		To:          string(to),
		MovedAt:     s.now(),
	}
	if err := s.eventBus.Publish(ctx, events.OrderStatusMoved, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish order status event", "error", err, "order_id", order.ID)
	}

	return s.orderRepo.GetByID(ctx, id)
}

func (s *checkoutService) cartLines(ctx context.Context, owner CartOwner) ([]domain.CartLine, error) {
	if owner.IsUser() {
		return s.cartRepo.GetUserCart(ctx, owner.UserID)
	}
	return s.cartRepo.GetGuestCart(ctx, owner.GuestKey)
}

func (s *checkoutService) clearCart(ctx context.Context, owner CartOwner) error {
	if owner.IsUser() {
		return s.cartRepo.ClearUserCart(ctx, owner.UserID)
	}
	return s.cartRepo.ClearGuestCart(ctx, owner.GuestKey)
}
