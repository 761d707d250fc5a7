package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/miyomint/storefront/pkg/config"
	"github.com/miyomint/storefront/pkg/events"
	"github.com/miyomint/storefront/services/store/internal/domain"
	"github.com/miyomint/storefront/services/store/internal/payments"
)

// ---------- Mocks ----------

type mockCartRepo struct {
	userLines  map[int64][]domain.CartLine
	guestLines map[string][]domain.CartLine

	addCalls    int
	setCalls    int
	removeCalls []string
	clearCalls  int
	clearErr    error
	mergeCalls  int
	mergeErr    error
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{
		userLines:  make(map[int64][]domain.CartLine),
		guestLines: make(map[string][]domain.CartLine),
	}
}

func (m *mockCartRepo) GetUserCart(_ context.Context, userID int64) ([]domain.CartLine, error) {
	return m.userLines[userID], nil
}

func (m *mockCartRepo) GetGuestCart(_ context.Context, guestKey string) ([]domain.CartLine, error) {
	return m.guestLines[guestKey], nil
}

func (m *mockCartRepo) AddUserLine(_ context.Context, userID int64, req *domain.AddLineRequest) (*domain.CartLine, error) {
	m.addCalls++
	line := domain.CartLine{ProductID: req.ProductID, Name: req.Name, Price: req.Price, Quantity: req.Quantity}
	m.userLines[userID] = append(m.userLines[userID], line)
	return &line, nil
}

func (m *mockCartRepo) AddGuestLine(_ context.Context, guestKey string, req *domain.AddLineRequest) (*domain.CartLine, error) {
	m.addCalls++
	line := domain.CartLine{ProductID: req.ProductID, Name: req.Name, Price: req.Price, Quantity: req.Quantity}
	m.guestLines[guestKey] = append(m.guestLines[guestKey], line)
	return &line, nil
}

func (m *mockCartRepo) SetUserQuantity(_ context.Context, userID int64, productID string, quantity int) (*domain.CartLine, error) {
	m.setCalls++
	for i, l := range m.userLines[userID] {
		if l.ProductID == productID {
			m.userLines[userID][i].Quantity = quantity
			return &m.userLines[userID][i], nil
		}
	}
	return nil, nil
}

func (m *mockCartRepo) SetGuestQuantity(_ context.Context, guestKey, productID string, quantity int) (*domain.CartLine, error) {
	m.setCalls++
	for i, l := range m.guestLines[guestKey] {
		if l.ProductID == productID {
			m.guestLines[guestKey][i].Quantity = quantity
			return &m.guestLines[guestKey][i], nil
		}
	}
	return nil, nil
}

func (m *mockCartRepo) RemoveUserLine(_ context.Context, userID int64, productID string) error {
	m.removeCalls = append(m.removeCalls, productID)
	kept := m.userLines[userID][:0]
	for _, l := range m.userLines[userID] {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	m.userLines[userID] = kept
	return nil
}

func (m *mockCartRepo) RemoveGuestLine(_ context.Context, guestKey, productID string) error {
	m.removeCalls = append(m.removeCalls, productID)
	kept := m.guestLines[guestKey][:0]
	for _, l := range m.guestLines[guestKey] {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	m.guestLines[guestKey] = kept
	return nil
}

func (m *mockCartRepo) ClearUserCart(_ context.Context, userID int64) error {
	m.clearCalls++
	if m.clearErr != nil {
		return m.clearErr
	}
	delete(m.userLines, userID)
	return nil
}

func (m *mockCartRepo) ClearGuestCart(_ context.Context, guestKey string) error {
	m.clearCalls++
	if m.clearErr != nil {
		return m.clearErr
	}
	delete(m.guestLines, guestKey)
	return nil
}

func (m *mockCartRepo) MergeGuestCart(_ context.Context, guestKey string, userID int64) error {
	m.mergeCalls++
	if m.mergeErr != nil {
		return m.mergeErr
	}
	m.userLines[userID] = append(m.userLines[userID], m.guestLines[guestKey]...)
	delete(m.guestLines, guestKey)
	return nil
}

type mockOrderRepo struct {
	orders map[int64]*domain.Order
	nextID int64

	submitCalls      int
	guestSubmitCalls int
	guestLineCalls   int
	guestLineErr     error
	moveCalls        int
	moveResult       bool
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[int64]*domain.Order), nextID: 1, moveResult: true}
}

func (m *mockOrderRepo) submit(order *domain.Order, lines []domain.OrderLine) *domain.Order {
	saved := *order
	saved.ID = m.nextID
	saved.Status = domain.StatusPending
	saved.Lines = lines
	saved.CreatedAt = time.Now()
	m.nextID++
	m.orders[saved.ID] = &saved
	return &saved
}

func (m *mockOrderRepo) SubmitOrder(_ context.Context, order *domain.Order, lines []domain.OrderLine) (*domain.Order, error) {
	m.submitCalls++
	return m.submit(order, lines), nil
}

func (m *mockOrderRepo) SubmitGuestOrder(_ context.Context, order *domain.Order, lines []domain.OrderLine) (*domain.Order, error) {
	m.guestSubmitCalls++
	return m.submit(order, lines), nil
}

func (m *mockOrderRepo) SubmitGuestOrderLines(_ context.Context, orderID int64, lines []domain.OrderLine) error {
	m.guestLineCalls++
	if m.guestLineErr != nil {
		return m.guestLineErr
	}
	if o, ok := m.orders[orderID]; ok {
		o.Lines = append(o.Lines, lines...)
	}
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	// Return a copy, like the real repository's freshly scanned row, so
	// MoveStatus mutating the stored order cannot alias the caller's view.
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepo) GetGuestByNumber(_ context.Context, orderNumber, email string) (*domain.Order, error) {
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber && o.ContactEmail == email {
			return o, nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepo) ListByUser(context.Context, int64, int, int) ([]domain.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) List(context.Context, int, int, *domain.OrderStatus) ([]domain.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) MoveStatus(_ context.Context, id int64, from, to domain.OrderStatus) (bool, error) {
	m.moveCalls++
	if !m.moveResult {
		return false, nil
	}
	m.orders[id].Status = to
	return true, nil
}

type mockIdempotencyRepo struct {
	records    map[string]int64
	checkCalls int
}

func newMockIdempotencyRepo() *mockIdempotencyRepo {
	return &mockIdempotencyRepo{records: make(map[string]int64)}
}

func (m *mockIdempotencyRepo) CheckOrCreate(_ context.Context, key string, orderID int64) (int64, error) {
	m.checkCalls++
	if existing, ok := m.records[key]; ok && existing > 0 {
		return existing, nil
	}
	m.records[key] = orderID
	return 0, nil
}

func (m *mockIdempotencyRepo) CleanupExpired(context.Context) (int64, error) { return 0, nil }

type mockEventBus struct {
	subjects []string
	payloads []interface{}
}

func (m *mockEventBus) Publish(_ context.Context, subject string, data interface{}) error {
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	return nil
}

func (m *mockEventBus) Close() error { return nil }

type mockPaymentProvider struct {
	calls  int
	intent *payments.Intent
	err    error
}

func (m *mockPaymentProvider) CreateIntent(_ context.Context, orderNumber string, amount float64, currency string) (*payments.Intent, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.intent != nil {
		return m.intent, nil
	}
	return &payments.Intent{ID: "pi_test", ClientSecret: "cs_test", Amount: int64(amount * 100), Currency: currency}, nil
}

// ---------- Helpers ----------

type checkoutFixture struct {
	svc      *checkoutService
	carts    *mockCartRepo
	orders   *mockOrderRepo
	idem     *mockIdempotencyRepo
	eventBus *mockEventBus
	now      time.Time
}

func newCheckoutFixture(provider payments.Provider) *checkoutFixture {
	carts := newMockCartRepo()
	orders := newMockOrderRepo()
	idem := newMockIdempotencyRepo()
	eventBus := &mockEventBus{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	svc := NewCheckoutService(carts, orders, idem, provider, eventBus, &config.Config{}).(*checkoutService)
	svc.now = func() time.Time { return now }

	return &checkoutFixture{svc: svc, carts: carts, orders: orders, idem: idem, eventBus: eventBus, now: now}
}

func checkoutForm() *domain.CheckoutRequest {
	return &domain.CheckoutRequest{
		Name:    "Mina Park",
		Email:   "mina@example.com",
		Phone:   "010-1234-5678",
		Address: "12 Dessert Lane",
		City:    "Seoul",
	}
}

func stockUserCart(f *checkoutFixture, userID int64) {
	f.carts.userLines[userID] = []domain.CartLine{
		{ProductID: "choco-tart", Name: "Choco Tart", Price: 50.00, Quantity: 2},
		{ProductID: "yuzu-cake", Name: "Yuzu Cake", Price: 100.00, Quantity: 1},
	}
}

// ---------- Tests ----------

func TestCheckoutInvalidFormTouchesNothing(t *testing.T) {
	f := newCheckoutFixture(nil)
	stockUserCart(f, 1)

	req := checkoutForm()
	req.Email = "not-an-email"

	_, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, req, "key-1")
	if err == nil || err.Error() != "email is not valid" {
		t.Fatalf("error = %v, want email validation failure", err)
	}
	if f.orders.submitCalls != 0 || f.orders.guestSubmitCalls != 0 {
		t.Error("invalid form must not reach the order repository")
	}
	if f.idem.checkCalls != 0 {
		t.Error("invalid form must not reach the idempotency store")
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newCheckoutFixture(nil)

	_, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, checkoutForm(), "")
	if err == nil || err.Error() != "cart is empty" {
		t.Fatalf("error = %v, want cart is empty", err)
	}
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("empty cart should be a validation failure, got %T", err)
	}
	if f.orders.submitCalls != 0 {
		t.Error("empty cart must not submit an order")
	}
}

func TestCheckoutTotals(t *testing.T) {
	f := newCheckoutFixture(nil)
	stockUserCart(f, 1) // subtotal 200.00

	req := checkoutForm()
	req.CouponCode = "miyo10"

	result, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, req, "")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	order := result.Order
	if order.DiscountAmount != 20.00 {
		t.Errorf("discount = %v, want 20.00", order.DiscountAmount)
	}
	if order.TotalAmount != 180.00 {
		t.Errorf("total = %v, want 180.00", order.TotalAmount)
	}
	if order.CouponCode != "MIYO10" {
		t.Errorf("coupon code = %q, want MIYO10", order.CouponCode)
	}
	if order.OrderNumber == "" {
		t.Error("order number missing")
	}

	wantDelivery := f.now.AddDate(0, 0, 2)
	if !order.DeliveryEstimate.Equal(wantDelivery) {
		t.Errorf("delivery estimate = %v, want %v", order.DeliveryEstimate, wantDelivery)
	}
}

func TestCheckoutUnknownCouponRejected(t *testing.T) {
	f := newCheckoutFixture(nil)
	stockUserCart(f, 1)

	req := checkoutForm()
	req.CouponCode = "MIYO99"

	_, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, req, "")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want a validation rejection", err)
	}
	if !strings.Contains(ve.Message, "MIYO99") {
		t.Errorf("rejection does not name the code: %q", ve.Message)
	}
	if f.orders.submitCalls != 0 {
		t.Error("rejected coupon must not submit an order")
	}
}

func TestCheckoutClearsCartAfterSubmit(t *testing.T) {
	f := newCheckoutFixture(nil)
	stockUserCart(f, 1)

	if _, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, checkoutForm(), ""); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if f.carts.clearCalls != 1 {
		t.Errorf("clear called %d times, want 1", f.carts.clearCalls)
	}
	if len(f.carts.userLines[1]) != 0 {
		t.Error("cart still has lines after checkout")
	}
}

func TestCheckoutSurvivesCartClearFailure(t *testing.T) {
	f := newCheckoutFixture(nil)
	stockUserCart(f, 1)
	f.carts.clearErr = context.DeadlineExceeded

	result, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, checkoutForm(), "")
	if err != nil {
		t.Fatalf("checkout must stand when the cart clear fails: %v", err)
	}
	if result.Order == nil || result.Order.ID == 0 {
		t.Error("order missing from result")
	}
}

func TestCheckoutGuestPath(t *testing.T) {
	f := newCheckoutFixture(nil)
	f.carts.guestLines["g-123"] = []domain.CartLine{
		{ProductID: "choco-tart", Name: "Choco Tart", Price: 9.99, Quantity: 1},
	}

	result, err := f.svc.Checkout(context.Background(), CartOwner{GuestKey: "g-123"}, checkoutForm(), "")
	if err != nil {
		t.Fatalf("guest checkout failed: %v", err)
	}
	if f.orders.guestSubmitCalls != 1 || f.orders.submitCalls != 0 {
		t.Errorf("guest checkout used wrong submit path: user=%d guest=%d", f.orders.submitCalls, f.orders.guestSubmitCalls)
	}
	if result.Order.UserID != 0 {
		t.Errorf("guest order carries a user id: %d", result.Order.UserID)
	}
	if len(f.eventBus.subjects) == 0 || f.eventBus.subjects[0] != events.GuestOrderCreated {
		t.Errorf("published subjects = %v, want %s first", f.eventBus.subjects, events.GuestOrderCreated)
	}
}

func TestCheckoutPublishesOrderCreated(t *testing.T) {
	f := newCheckoutFixture(nil)
	stockUserCart(f, 1)

	if _, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, checkoutForm(), ""); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	wantSubjects := []string{events.OrderCreated, events.NotifySend}
	if len(f.eventBus.subjects) != 2 || f.eventBus.subjects[0] != wantSubjects[0] || f.eventBus.subjects[1] != wantSubjects[1] {
		t.Fatalf("published subjects = %v, want %v", f.eventBus.subjects, wantSubjects)
	}
	event, ok := f.eventBus.payloads[0].(events.OrderCreatedEvent)
	if !ok {
		t.Fatalf("payload type = %T", f.eventBus.payloads[0])
	}
	if event.ItemCount != 3 {
		t.Errorf("item count = %d, want 3", event.ItemCount)
	}
	if event.Email != "mina@example.com" {
		t.Errorf("event email = %q", event.Email)
	}

	confirmation, ok := f.eventBus.payloads[1].(events.NotificationEvent)
	if !ok {
		t.Fatalf("confirmation payload type = %T", f.eventBus.payloads[1])
	}
	if confirmation.Recipient != "mina@example.com" || confirmation.Type != "order_confirmation" {
		t.Errorf("confirmation = %+v", confirmation)
	}
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	f := newCheckoutFixture(nil)
	stockUserCart(f, 1)

	first, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, checkoutForm(), "key-1")
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}

	// Same key again; the cart is empty now but the recorded order replays
	// before the cart is consulted for a second submit.
	stockUserCart(f, 1)
	second, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, checkoutForm(), "key-1")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if second.Order.ID != first.Order.ID {
		t.Errorf("replay returned order %d, want %d", second.Order.ID, first.Order.ID)
	}
	if f.orders.submitCalls != 1 {
		t.Errorf("submit called %d times, want 1", f.orders.submitCalls)
	}
}

func TestCheckoutPaymentIntent(t *testing.T) {
	provider := &mockPaymentProvider{}
	f := newCheckoutFixture(provider)
	stockUserCart(f, 1)

	result, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, checkoutForm(), "")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
	if result.Intent == nil || result.Intent.ID != "pi_test" {
		t.Errorf("intent = %+v", result.Intent)
	}

	if last := f.eventBus.subjects[len(f.eventBus.subjects)-1]; last != events.PaymentIntentCreated {
		t.Errorf("last published subject = %q, want %s", last, events.PaymentIntentCreated)
	}
}

func TestCheckoutSurvivesPaymentProviderFailure(t *testing.T) {
	provider := &mockPaymentProvider{err: context.DeadlineExceeded}
	f := newCheckoutFixture(provider)
	stockUserCart(f, 1)

	result, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, checkoutForm(), "")
	if err != nil {
		t.Fatalf("checkout must stand when the provider is down: %v", err)
	}
	if result.Intent != nil {
		t.Error("result carries an intent despite the provider failure")
	}
	if result.Order == nil {
		t.Error("order missing from result")
	}
}

func TestLookupGuestOrder(t *testing.T) {
	f := newCheckoutFixture(nil)
	f.carts.guestLines["g-1"] = []domain.CartLine{
		{ProductID: "choco-tart", Name: "Choco Tart", Price: 9.99, Quantity: 1},
	}

	result, err := f.svc.Checkout(context.Background(), CartOwner{GuestKey: "g-1"}, checkoutForm(), "")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	found, err := f.svc.LookupGuestOrder(context.Background(), result.Order.OrderNumber, " MINA@example.com ")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found == nil || found.ID != result.Order.ID {
		t.Errorf("lookup returned %+v, want order %d", found, result.Order.ID)
	}

	if _, err := f.svc.LookupGuestOrder(context.Background(), "", "mina@example.com"); err == nil {
		t.Error("empty order number must be rejected")
	}

	wrong, err := f.svc.LookupGuestOrder(context.Background(), result.Order.OrderNumber, "someone@else.com")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if wrong != nil {
		t.Error("mismatched email must not find the order")
	}
}

func importPayload() *domain.GuestOrderImport {
	return &domain.GuestOrderImport{
		ContactName:  "Mina Park",
		ContactEmail: "mina@example.com",
		ContactPhone: "010-1234-5678",
		ShipAddress:  "12 Petal Lane",
		ShipCity:     "Seoul",
		Lines: []domain.OrderLine{
			{ProductID: "mint-tin", Name: "Mint Tin", Price: 12.50, Quantity: 2},
			{ProductID: "herb-soap", Name: "Herb Soap", Price: 5.00, Quantity: 1},
		},
	}
}

func TestImportGuestOrder(t *testing.T) {
	f := newCheckoutFixture(nil)

	order, err := f.svc.ImportGuestOrder(context.Background(), importPayload())
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if order.TotalAmount != 30.00 {
		t.Errorf("total = %v, want 30.00", order.TotalAmount)
	}
	if f.orders.guestSubmitCalls != 1 || f.orders.guestLineCalls != 1 {
		t.Errorf("header writes = %d, line writes = %d, want 1 and 1",
			f.orders.guestSubmitCalls, f.orders.guestLineCalls)
	}
	if len(order.Lines) != 2 {
		t.Errorf("lines = %d, want 2", len(order.Lines))
	}
	if last := f.eventBus.subjects[len(f.eventBus.subjects)-1]; last != events.GuestOrderCreated {
		t.Errorf("last subject = %q, want %q", last, events.GuestOrderCreated)
	}
}

func TestImportGuestOrderPartialWrite(t *testing.T) {
	f := newCheckoutFixture(nil)
	f.orders.guestLineErr = &domain.PartialWriteError{
		OrderID: 1, Written: 1, Total: 2, Err: errors.New("connection reset"),
	}

	_, err := f.svc.ImportGuestOrder(context.Background(), importPayload())
	if err == nil {
		t.Fatal("partial line write must fail the import")
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		t.Error("a partial write must not read as buyer input")
	}
	var pw *domain.PartialWriteError
	if !errors.As(err, &pw) {
		t.Errorf("partial write detail lost from %v", err)
	}
	// The header stays; nothing compensates for the written rows
	if len(f.orders.orders) != 1 {
		t.Errorf("orders kept = %d, want the header to remain", len(f.orders.orders))
	}
	if len(f.eventBus.subjects) != 0 {
		t.Error("a failed import must not announce an order")
	}
}

func TestImportGuestOrderValidation(t *testing.T) {
	f := newCheckoutFixture(nil)

	req := importPayload()
	req.Lines = nil

	_, err := f.svc.ImportGuestOrder(context.Background(), req)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want a validation rejection", err)
	}
	if f.orders.guestSubmitCalls != 0 {
		t.Error("invalid payload must not reach the order repository")
	}
}

func TestMoveOrderStatus(t *testing.T) {
	f := newCheckoutFixture(nil)
	stockUserCart(f, 1)

	result, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, checkoutForm(), "")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	id := result.Order.ID

	moved, err := f.svc.MoveOrderStatus(context.Background(), id, domain.StatusProcessing)
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if moved.Status != domain.StatusProcessing {
		t.Errorf("status = %s, want processing", moved.Status)
	}

	event, ok := f.eventBus.payloads[len(f.eventBus.payloads)-1].(events.OrderStatusMovedEvent)
	if !ok {
		t.Fatalf("last payload type = %T", f.eventBus.payloads[len(f.eventBus.payloads)-1])
	}
	if event.From != "pending" || event.To != "processing" {
		t.Errorf("event transition = %s -> %s", event.From, event.To)
	}
}

func TestMoveOrderStatusIllegalTransition(t *testing.T) {
	f := newCheckoutFixture(nil)
	stockUserCart(f, 1)

	result, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, checkoutForm(), "")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	_, err = f.svc.MoveOrderStatus(context.Background(), result.Order.ID, domain.StatusDelivered)
	if err == nil || !strings.Contains(err.Error(), "cannot move order") {
		t.Fatalf("error = %v, want transition refusal", err)
	}
	if f.orders.moveCalls != 0 {
		t.Error("illegal transition must not reach the repository")
	}
}

func TestMoveOrderStatusLostRace(t *testing.T) {
	f := newCheckoutFixture(nil)
	stockUserCart(f, 1)

	result, err := f.svc.Checkout(context.Background(), CartOwner{UserID: 1}, checkoutForm(), "")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	f.orders.moveResult = false
	_, err = f.svc.MoveOrderStatus(context.Background(), result.Order.ID, domain.StatusProcessing)
	if err == nil || !strings.Contains(err.Error(), "concurrently") {
		t.Fatalf("error = %v, want concurrent-change refusal", err)
	}
}

func TestMoveOrderStatusUnknownOrder(t *testing.T) {
	f := newCheckoutFixture(nil)

	_, err := f.svc.MoveOrderStatus(context.Background(), 404, domain.StatusProcessing)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error = %v, want not found", err)
	}
}
