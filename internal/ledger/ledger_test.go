package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stationkit/redeemq/internal/client"
	pebblestore "github.com/stationkit/redeemq/internal/storage/pebble"
)

func newLedgerForTest(t *testing.T) *Ledger {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	l := Open(db, nil)
	l.nowMs = func() int64 { return 1_700_000_000_000 }
	return l
}

func mustCreate(t *testing.T, l *Ledger, v Voucher) Voucher {
	t.Helper()
	created, err := l.CreateVoucher(context.Background(), v)
	if err != nil {
		t.Fatalf("create voucher %s: %v", v.Code, err)
	}
	return created
}

func redeemReq(code, station string) client.RedeemRequest {
	return client.RedeemRequest{VoucherCode: code, StationID: station, Method: client.MethodManual}
}

func TestRedeemOncePerIdempotencyKey(t *testing.T) {
	l := newLedgerForTest(t)
	mustCreate(t, l, Voucher{Code: "12345", Amount: 50, Currency: "RWF", Msisdn: "250788123456"})

	first, err := l.Redeem(context.Background(), redeemReq("12345", "st-001"), "key-1")
	if err != nil {
		t.Fatalf("redeem1: %v", err)
	}
	if first.Status != client.StatusRedeemed || first.Amount != 50 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.MaskedMsisdn != "*********456" {
		t.Fatalf("msisdn not masked: %q", first.MaskedMsisdn)
	}

	second, err := l.Redeem(context.Background(), redeemReq("12345", "st-001"), "key-1")
	if err != nil {
		t.Fatalf("redeem2: %v", err)
	}
	if second.Status != client.StatusAlreadyRedeemed {
		t.Fatalf("replayed key did not resolve to stored row: %+v", second)
	}
	if second.Reference != first.Reference {
		t.Fatalf("replay produced a different reference: %s vs %s", second.Reference, first.Reference)
	}

	rows, err := l.ListRedemptions(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 persisted row, got %d", len(rows))
	}
}

func TestRedeemReplayedKeyDifferentVoucher(t *testing.T) {
	l := newLedgerForTest(t)
	mustCreate(t, l, Voucher{Code: "11111", Amount: 10, Currency: "RWF"})
	mustCreate(t, l, Voucher{Code: "22222", Amount: 20, Currency: "RWF"})

	if _, err := l.Redeem(context.Background(), redeemReq("11111", "st-001"), "key-1"); err != nil {
		t.Fatalf("redeem1: %v", err)
	}
	res, err := l.Redeem(context.Background(), redeemReq("22222", "st-001"), "key-1")
	if err != nil {
		t.Fatalf("redeem2: %v", err)
	}
	if res.Status != client.StatusReplay || res.Retryable {
		t.Fatalf("expected non-retryable replay, got %+v", res)
	}
}

func TestRedeemUnknownVoucher(t *testing.T) {
	l := newLedgerForTest(t)
	res, err := l.Redeem(context.Background(), redeemReq("nope", "st-001"), "key-1")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Status != client.StatusNotFound || res.Retryable {
		t.Fatalf("expected non-retryable not_found, got %+v", res)
	}
}

func TestRedeemStationAllowlist(t *testing.T) {
	l := newLedgerForTest(t)
	mustCreate(t, l, Voucher{Code: "12345", Amount: 50, Currency: "RWF", Stations: []string{"st-002"}})

	res, err := l.Redeem(context.Background(), redeemReq("12345", "st-001"), "key-1")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Status != client.StatusInvalidStation || res.Retryable {
		t.Fatalf("expected non-retryable invalid_station, got %+v", res)
	}

	allowed, err := l.Redeem(context.Background(), redeemReq("12345", "st-002"), "key-2")
	if err != nil {
		t.Fatalf("redeem allowed: %v", err)
	}
	if allowed.Status != client.StatusRedeemed {
		t.Fatalf("allowlisted station rejected: %+v", allowed)
	}
}

func TestRedeemConsumedVoucherDifferentKey(t *testing.T) {
	l := newLedgerForTest(t)
	mustCreate(t, l, Voucher{Code: "12345", Amount: 50, Currency: "RWF"})

	first, err := l.Redeem(context.Background(), redeemReq("12345", "st-001"), "key-1")
	if err != nil {
		t.Fatalf("redeem1: %v", err)
	}
	res, err := l.Redeem(context.Background(), redeemReq("12345", "st-002"), "key-2")
	if err != nil {
		t.Fatalf("redeem2: %v", err)
	}
	if res.Status != client.StatusAlreadyRedeemed {
		t.Fatalf("consumed voucher produced a second effect: %+v", res)
	}
	if res.Reference != first.Reference {
		t.Fatalf("expected the original redemption row, got %+v", res)
	}

	rows, err := l.ListRedemptions(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}

func TestCreateVoucherDuplicateCode(t *testing.T) {
	l := newLedgerForTest(t)
	mustCreate(t, l, Voucher{Code: "12345", Amount: 50, Currency: "RWF"})
	if _, err := l.CreateVoucher(context.Background(), Voucher{Code: "12345", Amount: 99, Currency: "RWF"}); !errors.Is(err, ErrVoucherExists) {
		t.Fatalf("expected ErrVoucherExists, got %v", err)
	}
}

func TestListRedemptionsFilter(t *testing.T) {
	l := newLedgerForTest(t)
	mustCreate(t, l, Voucher{Code: "11111", Amount: 10, Currency: "RWF"})
	mustCreate(t, l, Voucher{Code: "22222", Amount: 20, Currency: "RWF"})
	if _, err := l.Redeem(context.Background(), redeemReq("11111", "st-001"), "key-1"); err != nil {
		t.Fatalf("redeem1: %v", err)
	}
	if _, err := l.Redeem(context.Background(), redeemReq("22222", "st-002"), "key-2"); err != nil {
		t.Fatalf("redeem2: %v", err)
	}

	rows, err := l.ListRedemptions(context.Background(), `station_id == "st-002" && amount > 15.0`)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].VoucherCode != "22222" {
		t.Fatalf("filter mismatch: %+v", rows)
	}

	if _, err := l.ListRedemptions(context.Background(), "amount >"); err == nil {
		t.Fatalf("expected compile error for malformed filter")
	}
}

func TestMaskMsisdn(t *testing.T) {
	if got := maskMsisdn("250788123456"); got != "*********456" {
		t.Fatalf("mask: %q", got)
	}
	if got := maskMsisdn("123"); got != "123" {
		t.Fatalf("short msisdn should pass through, got %q", got)
	}
	if got := maskMsisdn(""); got != "" {
		t.Fatalf("empty msisdn, got %q", got)
	}
}
