package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// statusTransitions is the allowed forward edges. Cancelled and delivered are
// terminal.
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func (s OrderStatus) CanMoveTo(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch OrderStatus(raw) {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return OrderStatus(raw), nil
	}
	return "", fmt.Errorf("unknown order status %q", raw)
}

// DeliveryEstimateDays is how far out the tentative delivery date lands.
const DeliveryEstimateDays = 2

// coupons maps code to discount rate. A single hardcoded campaign for now.
var coupons = map[string]float64{
	"MIYO10": 0.10,
}

// CouponRate returns the discount rate for a code, 0 when the code is not
// recognized. Matching is case insensitive.
func CouponRate(code string) float64 {
	return coupons[strings.ToUpper(strings.TrimSpace(code))]
}

type Order struct {
	ID               int64       `json:"id"`
	OrderNumber      string      `json:"order_number"`
	UserID           int64       `json:"user_id,omitempty"`
	Status           OrderStatus `json:"status"`
	TotalAmount      float64     `json:"total_amount"`
	CouponCode       string      `json:"coupon_code,omitempty"`
	DiscountAmount   float64     `json:"discount_amount"`
	DeliveryEstimate time.Time   `json:"delivery_estimate"`
	ContactName      string      `json:"contact_name"`
	ContactEmail     string      `json:"contact_email"`
	ContactPhone     string      `json:"contact_phone"`
	ShipAddress      string      `json:"ship_address"`
	ShipCity         string      `json:"ship_city"`
	ShipNotes        string      `json:"ship_notes,omitempty"`
	Lines            []OrderLine `json:"lines,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

type OrderLine struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

var checkoutEmailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CheckoutRequest is the buyer-entered form. Validation happens before any
// repository or remote call.
type CheckoutRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Notes      string `json:"notes"`
	CouponCode string `json:"coupon_code"`
}

func (r *CheckoutRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.Notes = strings.TrimSpace(r.Notes)
	r.CouponCode = strings.ToUpper(strings.TrimSpace(r.CouponCode))
}

func (r *CheckoutRequest) Validate() error {
	if r.Name == "" {
		return NewValidationError("name is required")
	}
	if r.Email == "" {
		return NewValidationError("email is required")
	}
	if !checkoutEmailRe.MatchString(r.Email) {
		return NewValidationError("email is not valid")
	}
	if r.Phone == "" {
		return NewValidationError("phone is required")
	}
	if r.Address == "" {
		return NewValidationError("address is required")
	}
	if r.City == "" {
		return NewValidationError("city is required")
	}
	return nil
}

// ValidationError marks input the buyer can correct. Handlers show its
// message verbatim; every other failure is reported generically.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// GuestOrderImport is an order pushed in by a connected sales channel. The
// header and lines land in two steps; lines already written stay put when a
// later row fails.
type GuestOrderImport struct {
	ContactName  string      `json:"contact_name"`
	ContactEmail string      `json:"contact_email"`
	ContactPhone string      `json:"contact_phone"`
	ShipAddress  string      `json:"ship_address"`
	ShipCity     string      `json:"ship_city"`
	ShipNotes    string      `json:"ship_notes"`
	Lines        []OrderLine `json:"lines"`
}

func (r *GuestOrderImport) Normalize() {
	r.ContactName = strings.TrimSpace(r.ContactName)
	r.ContactEmail = strings.ToLower(strings.TrimSpace(r.ContactEmail))
	r.ContactPhone = strings.TrimSpace(r.ContactPhone)
	r.ShipAddress = strings.TrimSpace(r.ShipAddress)
	r.ShipCity = strings.TrimSpace(r.ShipCity)
	r.ShipNotes = strings.TrimSpace(r.ShipNotes)
}

func (r *GuestOrderImport) Validate() error {
	if r.ContactName == "" {
		return NewValidationError("contact_name is required")
	}
	if !checkoutEmailRe.MatchString(r.ContactEmail) {
		return NewValidationError("contact_email is not valid")
	}
	if len(r.Lines) == 0 {
		return NewValidationError("at least one line is required")
	}
	for i, l := range r.Lines {
		if l.ProductID == "" || l.Name == "" {
			return NewValidationError("line %d is missing product data", i)
		}
		if l.Quantity < 1 {
			return NewValidationError("line %d quantity must be at least 1", i)
		}
		if l.Price < 0 {
			return NewValidationError("line %d price must not be negative", i)
		}
	}
	return nil
}

// PartialWriteError reports an order whose header landed but whose lines only
// partially did. The order id is kept so the damage can be inspected.
type PartialWriteError struct {
	OrderID int64
	Written int
	Total   int
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("order %d: wrote %d of %d lines: %v", e.OrderID, e.Written, e.Total, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
