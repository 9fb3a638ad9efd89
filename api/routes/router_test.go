package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jemi-ng/pickup-backend/internal/cart"
	"github.com/jemi-ng/pickup-backend/internal/checkout"
	"github.com/jemi-ng/pickup-backend/internal/orders"
	"github.com/jemi-ng/pickup-backend/internal/payments"
	"github.com/jemi-ng/pickup-backend/internal/products"
	"github.com/jemi-ng/pickup-backend/internal/users"
	paystackwebhook "github.com/jemi-ng/pickup-backend/internal/webhooks/paystack"
	"github.com/jemi-ng/pickup-backend/pkg/auth"
	"github.com/jemi-ng/pickup-backend/pkg/config"
	"github.com/jemi-ng/pickup-backend/pkg/db/dbtest"
	"github.com/jemi-ng/pickup-backend/pkg/db/models"
	"github.com/jemi-ng/pickup-backend/pkg/enums"
	"github.com/jemi-ng/pickup-backend/pkg/outbox"
	"github.com/jemi-ng/pickup-backend/pkg/paystack"
)

const webhookSecret = "sk_test_router"

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type memoryStore struct{ data map[string]string }

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

type stubGateway struct{}

func (stubGateway) Initialize(_ context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error) {
	return &paystack.InitializeResult{AuthorizationURL: "https://checkout.paystack.com/x", AccessCode: "x", Reference: req.Reference}, nil
}

func (stubGateway) Verify(_ context.Context, reference string) (*paystack.VerifyResult, error) {
	return &paystack.VerifyResult{Reference: reference, Status: paystack.StatusSuccess, AmountMinor: 2500000}, nil
}

type harness struct {
	conn    *gorm.DB
	handler http.Handler
	cfg     *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, conn := dbtest.Client(t)
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", FrontendURL: "https://jemi.ng"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "jemi"},
	}

	catalog := products.NewRepository(conn)
	ledger, err := products.NewLedger(catalog)
	require.NoError(t, err)
	carts := cart.NewRepository(conn)
	builder, err := checkout.NewBuilder(carts, catalog)
	require.NoError(t, err)
	orderRepo := orders.NewRepository(conn)
	events := outbox.NewService(outbox.NewRepository(conn), nil)

	orderSvc, err := orders.NewService(orders.Deps{
		Tx:        client,
		Orders:    orderRepo,
		Users:     users.NewRepository(conn),
		Carts:     carts,
		Snapshots: builder,
		Ledger:    ledger,
		Outbox:    events,
		Codes:     orders.NewCodeGenerator("JM"),
		Settings: orders.Settings{
			DeliveryFee:         decimal.Zero,
			OrderNumberAttempts: 5,
			DirectMethods:       []enums.PaymentMethod{enums.PaymentMethodCashOnPickup, enums.PaymentMethodTransferOnPickup},
		},
	})
	require.NoError(t, err)
	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Tx: client, Orders: orderRepo, Ledger: ledger, Carts: carts, Outbox: events,
	})
	require.NoError(t, err)
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Orders: orderSvc, Reconciler: reconciler, Gateway: stubGateway{},
		Settings: payments.Settings{ReferencePrefix: "JEMI", CallbackURL: "https://jemi.ng/checkout/verify"},
	})
	require.NoError(t, err)
	webhookSvc, err := paystackwebhook.NewService(paystackwebhook.ServiceParams{
		Reconciler: reconciler, SecretKey: webhookSecret, ReferencePrefix: "JEMI",
	})
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:           cfg,
		DB:               stubPinger{},
		Redis:            stubPinger{},
		IdempotencyStore: &memoryStore{data: map[string]string{}},
		Orders:           orderSvc,
		Payments:         paymentSvc,
		PaystackWebhooks: webhookSvc,
	})
	return &harness{conn: conn, handler: handler, cfg: cfg}
}

func (h *harness) token(t *testing.T, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	token, err := auth.SignAccessToken(h.cfg.JWT, auth.AccessTokenClaims{UserID: userID, Role: role}, time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

func (h *harness) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func data(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data  map[string]any `json:"data"`
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	if envelope.Data == nil {
		return envelope.Error
	}
	return envelope.Data
}

func seedCart(t *testing.T, conn *gorm.DB) (models.User, models.Product) {
	t.Helper()
	user := dbtest.SeedUser(t, conn)
	product := dbtest.SeedProduct(t, conn, "Jollof Rice", "12500", 10)
	dbtest.SeedCart(t, conn, user.ID, dbtest.CartLine{ProductID: product.ID, Quantity: 2})
	return user, product
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/ready", "", nil).Code)
}

func TestOrderEndpointsRequireAuth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateDirectOrderOverHTTP(t *testing.T) {
	h := newHarness(t)
	user, product := seedCart(t, h.conn)
	token := h.token(t, user.ID, enums.RoleCustomer)

	rec := h.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"payment_method":  "cash_on_pickup",
		"pickup_location": "Hall 3 lobby",
	}, "Idempotency-Key", "create-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := data(t, rec)
	assert.Equal(t, "25000", created["total"])
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, 8, dbtest.ReloadProduct(t, h.conn, product.ID).StockQuantity)

	replay := h.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"payment_method":  "cash_on_pickup",
		"pickup_location": "Hall 3 lobby",
	}, "Idempotency-Key", "create-1")
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, created["order_number"], data(t, replay)["order_number"])

	list := data(t, h.do(t, http.MethodGet, "/api/v1/orders", token, nil))
	assert.Len(t, list["orders"], 1)
	assert.Equal(t, map[string]any{"total": float64(1), "page": float64(1), "limit": float64(10), "totalPages": float64(1)}, list["pagination"])

	secondPage := data(t, h.do(t, http.MethodGet, "/api/v1/orders?page=2&limit=5", token, nil))
	assert.Empty(t, secondPage["orders"])
	assert.Equal(t, float64(2), secondPage["pagination"].(map[string]any)["page"])
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/v1/orders?page=0", token, nil).Code)

	orderID := created["id"].(string)
	track := data(t, h.do(t, http.MethodGet, "/api/v1/orders/"+orderID+"/track", token, nil))
	assert.Len(t, track["timeline"], 1)

	cancel := h.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", token, nil, "Idempotency-Key", "cancel-1")
	require.Equal(t, http.StatusOK, cancel.Code, cancel.Body.String())
	assert.Equal(t, "cancelled", data(t, cancel)["status"])
	assert.Equal(t, 10, dbtest.ReloadProduct(t, h.conn, product.ID).StockQuantity)
}

func TestStateChangingCallsNeedIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	user, product := seedCart(t, h.conn)
	token := h.token(t, user.ID, enums.RoleCustomer)

	rec := h.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"payment_method":  "cash_on_pickup",
		"pickup_location": "Hall 3 lobby",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 10, dbtest.ReloadProduct(t, h.conn, product.ID).StockQuantity)

	rec = h.do(t, http.MethodPost, "/api/v1/payment/initialize", token, map[string]any{"pickup_location": "Main gate"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDirectOrderInsufficientStock(t *testing.T) {
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.conn)
	product := dbtest.SeedProduct(t, h.conn, "Jollof Rice", "12500", 1)
	dbtest.SeedCart(t, h.conn, user.ID, dbtest.CartLine{ProductID: product.ID, Quantity: 3})

	rec := h.do(t, http.MethodPost, "/api/v1/orders", h.token(t, user.ID, enums.RoleCustomer), map[string]any{
		"payment_method":  "cash_on_pickup",
		"pickup_location": "Hall 3 lobby",
	}, "Idempotency-Key", "create-short")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := data(t, rec)
	assert.Equal(t, "INSUFFICIENT_STOCK", body["code"])
	assert.Equal(t, map[string]any{"product": "Jollof Rice", "available": float64(1), "requested": float64(3)}, body["details"])
}

func TestOrderDetailOfAnotherUserIsNotFound(t *testing.T) {
	h := newHarness(t)
	owner, _ := seedCart(t, h.conn)
	created := data(t, h.do(t, http.MethodPost, "/api/v1/orders", h.token(t, owner.ID, enums.RoleCustomer), map[string]any{
		"payment_method":  "cash_on_pickup",
		"pickup_location": "Hall 3 lobby",
	}, "Idempotency-Key", "create-owner"))

	stranger := dbtest.SeedUser(t, h.conn)
	rec := h.do(t, http.MethodGet, "/api/v1/orders/"+created["id"].(string), h.token(t, stranger.ID, enums.RoleCustomer), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", h.token(t, stranger.ID, enums.RoleCustomer), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaystackCheckoutOverHTTP(t *testing.T) {
	h := newHarness(t)
	user, product := seedCart(t, h.conn)
	token := h.token(t, user.ID, enums.RoleCustomer)

	rec := h.do(t, http.MethodPost, "/api/v1/payment/initialize", token, map[string]any{
		"pickup_location": "Main gate",
	}, "Idempotency-Key", "init-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reference := data(t, rec)["reference"].(string)
	assert.Equal(t, 10, dbtest.ReloadProduct(t, h.conn, product.ID).StockQuantity)

	verify := h.do(t, http.MethodPost, "/api/v1/payment/verify", token, map[string]any{"reference": reference})
	require.Equal(t, http.StatusOK, verify.Code, verify.Body.String())
	receipt := data(t, verify)
	assert.Equal(t, "₦25,000", receipt["total"])
	assert.Equal(t, "success", receipt["status"])
	assert.Equal(t, 8, dbtest.ReloadProduct(t, h.conn, product.ID).StockQuantity)

	body := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"amount":2500000,"status":"success"}}`, reference))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook", bytes.NewReader(body))
	req.Header.Set(paystack.SignatureHeader, paystack.Sign(body, webhookSecret))
	webhook := httptest.NewRecorder()
	h.handler.ServeHTTP(webhook, req)
	assert.Equal(t, http.StatusOK, webhook.Code)
	assert.JSONEq(t, `{"status":"success"}`, webhook.Body.String())
	assert.Equal(t, 8, dbtest.ReloadProduct(t, h.conn, product.ID).StockQuantity)
}

func TestPaystackWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook", bytes.NewReader([]byte(`{"event":"charge.success"}`)))
	req.Header.Set(paystack.SignatureHeader, "deadbeef")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminStatusRequiresRole(t *testing.T) {
	h := newHarness(t)
	user, _ := seedCart(t, h.conn)
	created := data(t, h.do(t, http.MethodPost, "/api/v1/orders", h.token(t, user.ID, enums.RoleCustomer), map[string]any{
		"payment_method":  "transfer_on_pickup",
		"pickup_location": "Hall 3 lobby",
	}, "Idempotency-Key", "create-admin"))
	path := "/api/admin/v1/orders/" + created["id"].(string) + "/status"

	rec := h.do(t, http.MethodPatch, path, h.token(t, user.ID, enums.RoleCustomer), map[string]any{"status": "confirmed"}, "Idempotency-Key", "a1")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := h.token(t, uuid.New(), enums.RoleAdmin)
	rec = h.do(t, http.MethodPatch, path, admin, map[string]any{"status": "confirmed"}, "Idempotency-Key", "a2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", data(t, rec)["status"])

	rec = h.do(t, http.MethodPatch, path, admin, map[string]any{"status": "completed"}, "Idempotency-Key", "a3")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(t, http.MethodPatch, path, admin, map[string]any{"status": "shipped"}, "Idempotency-Key", "a4")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
