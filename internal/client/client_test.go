package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logpkg "github.com/stationkit/redeemq/pkg/log"
)

func testLogger() logpkg.Logger {
	return logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel))
}

func testRequest() RedeemRequest {
	return RedeemRequest{VoucherCode: "12345", StationID: "st-001", Method: MethodManual}
}

func TestRedeemCarriesIdempotencyKey(t *testing.T) {
	var gotKey string
	var gotReq RedeemRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(IdempotencyKeyHeader)
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(RedeemResult{Status: StatusRedeemed, Amount: 50, Currency: "RWF"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	res, err := c.Redeem(context.Background(), testRequest(), "key-abc")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if gotKey != "key-abc" {
		t.Fatalf("idempotency key header: %q", gotKey)
	}
	if gotReq.VoucherCode != "12345" || gotReq.StationID != "st-001" {
		t.Fatalf("request body: %+v", gotReq)
	}
	if res.Status != StatusRedeemed || res.Amount != 50 {
		t.Fatalf("result: %+v", res)
	}
}

func TestRedeemClassifiedFailureBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(RedeemResult{Status: StatusNotFound, Message: "no such voucher", Retryable: false})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	res, err := c.Redeem(context.Background(), testRequest(), "key-abc")
	if err != nil {
		t.Fatalf("a parseable failure body is not a transport error: %v", err)
	}
	if res.Status != StatusNotFound || res.Retryable {
		t.Fatalf("result: %+v", res)
	}
}

func TestRedeemUnparseableServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	res, err := c.Redeem(context.Background(), testRequest(), "key-abc")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Status != StatusUnknownError || !res.Retryable {
		t.Fatalf("5xx without a classified body must be retryable unknown_error: %+v", res)
	}
}

func TestRedeemUnparseableClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	res, err := c.Redeem(context.Background(), testRequest(), "key-abc")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Status != StatusUnknownError || res.Retryable {
		t.Fatalf("4xx without a classified body must not be retryable: %+v", res)
	}
}

func TestRedeemMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"not-a-status"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	if _, err := c.Redeem(context.Background(), testRequest(), "key-abc"); err == nil {
		t.Fatalf("expected a transport error for a malformed 200 body")
	}
}

func TestRedeemTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewHTTPClient(srv.URL, time.Second, testLogger())
	if _, err := c.Redeem(context.Background(), testRequest(), "key-abc"); err == nil {
		t.Fatalf("expected a transport error for a closed server")
	}
}

func TestRedeemValidatesRequest(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:0", time.Second, testLogger())
	if _, err := c.Redeem(context.Background(), RedeemRequest{StationID: "st-001", Method: MethodManual}, "key-abc"); err == nil {
		t.Fatalf("expected validation error for missing voucher code")
	}
}
