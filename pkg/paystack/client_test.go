package paystack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
)

func TestInitializeSendsWireContract(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"JEMI-JM202610190001"}}`))
	}))
	defer srv.Close()

	client, err := NewClient("sk_test_123", WithBaseURL(srv.URL))
	require.NoError(t, err)

	result, err := client.Initialize(context.Background(), InitializeRequest{
		Email:       "ada@unilag.edu.ng",
		Amount:      2500000,
		Reference:   "JEMI-JM202610190001",
		CallbackURL: "http://localhost:3000/checkout/verify",
		Metadata:    map[string]any{"order_number": "JM202610190001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", result.AuthorizationURL)
	assert.Equal(t, "abc", result.AccessCode)
	assert.Equal(t, "JEMI-JM202610190001", result.Reference)

	assert.Equal(t, "ada@unilag.edu.ng", captured["email"])
	assert.EqualValues(t, 2500000, captured["amount"])
	assert.Equal(t, "http://localhost:3000/checkout/verify", captured["callback_url"])
	assert.Equal(t, "JM202610190001", captured["metadata"].(map[string]any)["order_number"])
}

func TestInitializeFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"non-2xx":        {status: http.StatusBadRequest, body: `{"status":false,"message":"Invalid key"}`},
		"status false":   {status: http.StatusOK, body: `{"status":false,"message":"Duplicate Transaction Reference"}`},
		"garbage body":   {status: http.StatusOK, body: `<html>`},
		"gateway outage": {status: http.StatusBadGateway, body: `upstream`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client, err := NewClient("sk_test_123", WithBaseURL(srv.URL))
			require.NoError(t, err)
			_, err = client.Initialize(context.Background(), InitializeRequest{Email: "a@b.ng", Amount: 100, Reference: "JEMI-1"})
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentGateway))
		})
	}
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/transaction/verify/JEMI-OK":
			_, _ = w.Write([]byte(`{"status":true,"data":{"reference":"JEMI-OK","status":"success","amount":2500000,"currency":"NGN","paid_at":"2026-10-19T09:00:00.000Z"}}`))
		case "/transaction/verify/JEMI-ABANDONED":
			_, _ = w.Write([]byte(`{"status":true,"data":{"reference":"JEMI-ABANDONED","status":"abandoned","amount":2500000}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
		}
	}))
	defer srv.Close()

	client, err := NewClient("sk_test_123", WithBaseURL(srv.URL), WithTimeout(5*time.Second))
	require.NoError(t, err)

	ok, err := client.Verify(context.Background(), "JEMI-OK")
	require.NoError(t, err)
	assert.Equal(t, int64(2500000), ok.AmountMinor)
	assert.Equal(t, StatusSuccess, ok.Status)
	require.NotNil(t, ok.PaidAt)

	_, err = client.Verify(context.Background(), "JEMI-ABANDONED")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentGateway))
	assert.Equal(t, "Payment status: abandoned", pkgerrors.As(err).Message())

	_, err = client.Verify(context.Background(), "JEMI-MISSING")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentGateway))

	_, err = client.Verify(context.Background(), "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestBreakerOpensOnOutagesOnly(t *testing.T) {
	var hits atomic.Int32
	var outage atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if outage.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":false}`))
	}))
	defer srv.Close()

	client, err := NewClient("sk_test_123", WithBaseURL(srv.URL), WithBreaker(BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute}))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.Verify(context.Background(), "JEMI-X")
		require.Error(t, err)
	}
	assert.Equal(t, int32(3), hits.Load(), "4xx answers keep the breaker closed")

	outage.Store(true)
	for i := 0; i < 2; i++ {
		_, _ = client.Verify(context.Background(), "JEMI-X")
	}
	assert.Equal(t, int32(5), hits.Load())

	_, err = client.Verify(context.Background(), "JEMI-X")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentGateway))
	assert.Equal(t, int32(5), hits.Load(), "open breaker short-circuits the call")
}

func TestNewClientRequiresSecret(t *testing.T) {
	_, err := NewClient(" ")
	assert.Error(t, err)
}

func TestWithTimeoutLeavesCallerClientAlone(t *testing.T) {
	for name, order := range map[string]func(*http.Client) []Option{
		"timeout first": func(hc *http.Client) []Option { return []Option{WithTimeout(3 * time.Second), WithHTTPClient(hc)} },
		"timeout last":  func(hc *http.Client) []Option { return []Option{WithHTTPClient(hc), WithTimeout(3 * time.Second)} },
	} {
		shared := &http.Client{Timeout: time.Minute}
		client, err := NewClient("sk_test_123", order(shared)...)
		require.NoError(t, err, name)
		assert.Equal(t, 3*time.Second, client.httpClient.Timeout, name)
		assert.NotSame(t, shared, client.httpClient, name)
		assert.Equal(t, time.Minute, shared.Timeout, name)
	}

	shared := &http.Client{Timeout: time.Minute}
	client, err := NewClient("sk_test_123", WithHTTPClient(shared))
	require.NoError(t, err)
	assert.Same(t, shared, client.httpClient)
}
