package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/miyomint/storefront/pkg/config"
	"github.com/miyomint/storefront/services/store/internal/domain"
	"github.com/miyomint/storefront/services/store/internal/handlers"
	"github.com/miyomint/storefront/services/store/internal/service"
)

// ---------- Mocks ----------

type mockCheckoutService struct {
	checkoutResult *service.CheckoutResult
	checkoutErr    error
	importOrder    *domain.Order
	importErr      error
}

func (m *mockCheckoutService) Checkout(context.Context, service.CartOwner, *domain.CheckoutRequest, string) (*service.CheckoutResult, error) {
	return m.checkoutResult, m.checkoutErr
}

func (m *mockCheckoutService) ImportGuestOrder(context.Context, *domain.GuestOrderImport) (*domain.Order, error) {
	return m.importOrder, m.importErr
}

func (m *mockCheckoutService) GetOrder(context.Context, int64) (*domain.Order, error) {
	return nil, nil
}

func (m *mockCheckoutService) GetOrderByNumber(context.Context, string) (*domain.Order, error) {
	return nil, nil
}

func (m *mockCheckoutService) LookupGuestOrder(context.Context, string, string) (*domain.Order, error) {
	return nil, nil
}

func (m *mockCheckoutService) ListUserOrders(context.Context, int64, int, int) ([]domain.Order, error) {
	return nil, nil
}

func (m *mockCheckoutService) ListOrders(context.Context, int, int, *domain.OrderStatus) ([]domain.Order, error) {
	return nil, nil
}

func (m *mockCheckoutService) MoveOrderStatus(context.Context, int64, domain.OrderStatus) (*domain.Order, error) {
	return nil, nil
}

type mockCartService struct {
	cart *domain.Cart
	err  error
}

func (m *mockCartService) GetCart(context.Context, service.CartOwner) (*domain.Cart, error) {
	return m.cart, m.err
}

func (m *mockCartService) AddToCart(context.Context, service.CartOwner, *domain.AddLineRequest) (*domain.Cart, error) {
	return m.cart, m.err
}

func (m *mockCartService) UpdateQuantity(context.Context, service.CartOwner, string, int) (*domain.Cart, error) {
	return m.cart, m.err
}

func (m *mockCartService) RemoveFromCart(context.Context, service.CartOwner, string) (*domain.Cart, error) {
	return m.cart, m.err
}

func (m *mockCartService) ClearCart(context.Context, service.CartOwner) error { return m.err }

func (m *mockCartService) MergeOnLogin(context.Context, string, int64) (*domain.Cart, error) {
	return m.cart, m.err
}

// ---------- Tests ----------

const checkoutBody = `{"name":"Mina Park","email":"mina@example.com","phone":"010-1234-5678","address":"12 Petal Lane","city":"Seoul"}`

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("response not decodable: %v", err)
	}
	return resp
}

func TestCheckoutValidationErrorReturnsMessage(t *testing.T) {
	checkout := &mockCheckoutService{checkoutErr: domain.NewValidationError("email is not valid")}
	h := handlers.New(&mockCartService{}, checkout, &config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutBody))
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp["error"] != "email is not valid" || resp["code"] != "INVALID_INPUT" {
		t.Errorf("response = %+v", resp)
	}
}

func TestCheckoutRepositoryFailureIsGeneric(t *testing.T) {
	checkout := &mockCheckoutService{
		checkoutErr: fmt.Errorf("failed to submit order: %w", errors.New("pq: connection refused")),
	}
	h := handlers.New(&mockCartService{}, checkout, &config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutBody))
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp["error"] != "Something went wrong. Please try again." {
		t.Errorf("error = %q, want the generic message", resp["error"])
	}
	if strings.Contains(resp["error"], "pq:") {
		t.Error("internal detail leaked to the client")
	}
}

func TestAddToCartRepositoryFailureIsGeneric(t *testing.T) {
	cart := &mockCartService{err: fmt.Errorf("failed to add to cart: %w", errors.New("dial tcp: refused"))}
	h := handlers.New(cart, &mockCheckoutService{}, &config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":"mint-tin","name":"Mint Tin","price":12.5}`))
	rec := httptest.NewRecorder()
	h.AddToCart(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeError(t, rec)
	if strings.Contains(resp["error"], "dial tcp") {
		t.Errorf("internal detail leaked: %q", resp["error"])
	}
}

func TestAddToCartValidationErrorReturnsMessage(t *testing.T) {
	cart := &mockCartService{err: domain.NewValidationError("product_id is required")}
	h := handlers.New(cart, &mockCheckoutService{}, &config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"name":"Mint Tin"}`))
	rec := httptest.NewRecorder()
	h.AddToCart(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec); resp["error"] != "product_id is required" {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestImportGuestOrderCreated(t *testing.T) {
	checkout := &mockCheckoutService{importOrder: &domain.Order{ID: 4, OrderNumber: "n-4"}}
	h := handlers.New(&mockCartService{}, checkout, &config.Config{})

	body := `{"contact_name":"Mina Park","contact_email":"mina@example.com","lines":[{"product_id":"mint-tin","name":"Mint Tin","price":12.5,"quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ImportGuestOrder(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
}

func TestImportGuestOrderPartialWriteIsGeneric(t *testing.T) {
	checkout := &mockCheckoutService{
		importErr: fmt.Errorf("failed to write imported order lines: %w",
			&domain.PartialWriteError{OrderID: 4, Written: 1, Total: 3, Err: errors.New("connection reset")}),
	}
	h := handlers.New(&mockCartService{}, checkout, &config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", strings.NewReader(`{"contact_name":"Mina Park"}`))
	rec := httptest.NewRecorder()
	h.ImportGuestOrder(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeError(t, rec)
	if strings.Contains(resp["error"], "wrote") || strings.Contains(resp["error"], "connection reset") {
		t.Errorf("partial write detail leaked: %q", resp["error"])
	}
}
