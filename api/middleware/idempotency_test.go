package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jemi-ng/pickup-backend/pkg/enums"
	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

var caller = uuid.New()

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	return req.WithContext(WithIdentity(ctx, caller, enums.RoleCustomer))
}

func createOrderRequest(key, body string) *http.Request {
	req := requestWithPattern(http.MethodPost, "/api/v1/orders", "/api/v1/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"create order", http.MethodPost, "/api/v1/orders", criticalIdempotencyTTL, true},
		{"create order via sub-router", http.MethodPost, "/api/v1/orders/", criticalIdempotencyTTL, true},
		{"payment initialize", http.MethodPost, "/api/v1/payment/initialize", criticalIdempotencyTTL, true},
		{"order cancel", http.MethodPost, "/api/v1/orders/{orderId}/cancel", defaultIdempotencyTTL, true},
		{"admin status", http.MethodPatch, "/api/admin/v1/orders/{orderId}/status", defaultIdempotencyTTL, true},
		{"verify is naturally idempotent", http.MethodPost, "/api/v1/payment/verify", 0, false},
		{"reads", http.MethodGet, "/api/v1/orders", 0, false},
	}
	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		assert.Equal(t, tt.ok, ok, tt.name)
		if ok {
			assert.Equal(t, tt.want, ttl, tt.name)
		}
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without idempotency key")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, createOrderRequest("", `{"pickup_location":"Hall 3"}`))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	var calls int
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"order_number":"JM202610190001"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, createOrderRequest("abc", `{"pickup_location":"Hall 3"}`))
	require.Equal(t, http.StatusCreated, first.Code)

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, createOrderRequest("abc", `{"pickup_location":"Hall 3"}`))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	var calls int
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))

	for range 2 {
		handler.ServeHTTP(httptest.NewRecorder(), createOrderRequest("retry-me", `{}`))
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), createOrderRequest("xyz", `{"pickup_location":"Hall 3"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, createOrderRequest("xyz", `{"pickup_location":"Main gate"}`))

	assert.Equal(t, http.StatusConflict, resp.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
}

func TestIdempotencyUnderSubRouter(t *testing.T) {
	var creates, cancels int
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(WithIdentity(req.Context(), caller, enums.RoleCustomer)))
			})
		})
		r.Use(Idempotency(newFakeStore(), nil))
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", func(w http.ResponseWriter, _ *http.Request) {
				creates++
				w.WriteHeader(http.StatusCreated)
			})
			r.Post("/{orderId}/cancel", func(w http.ResponseWriter, _ *http.Request) {
				cancels++
				w.WriteHeader(http.StatusOK)
			})
		})
	})

	send := func(path, key string) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, send("/api/v1/orders", ""))
	assert.Equal(t, http.StatusCreated, send("/api/v1/orders", "k1"))
	assert.Equal(t, http.StatusCreated, send("/api/v1/orders", "k1"))
	assert.Equal(t, 1, creates)

	cancelPath := "/api/v1/orders/" + uuid.NewString() + "/cancel"
	assert.Equal(t, http.StatusOK, send(cancelPath, "c1"))
	assert.Equal(t, http.StatusOK, send(cancelPath, "c1"))
	assert.Equal(t, 1, cancels)
}

func TestRoutePatternFallsBackToPathForWildcards(t *testing.T) {
	req := requestWithPattern(http.MethodPost, "/api/v1/payment/initialize", "/api/v1/*", nil)
	assert.Equal(t, "/api/v1/payment/initialize", routePattern(req))

	req = requestWithPattern(http.MethodPost, "/api/v1/orders/abc/cancel", "/api/v1/orders/{orderId}/cancel", nil)
	assert.Equal(t, "/api/v1/orders/{orderId}/cancel", routePattern(req))
}
