package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/stationkit/redeemq/internal/client"
	pebblestore "github.com/stationkit/redeemq/internal/storage/pebble"
	logpkg "github.com/stationkit/redeemq/pkg/log"
)

// ErrVoucherExists is returned when creating a voucher whose code is taken.
var ErrVoucherExists = errors.New("ledger: voucher already exists")

// Voucher is a redeemable value record.
type Voucher struct {
	ID       string   `json:"id"`
	Code     string   `json:"code"`
	Amount   float64  `json:"amount"`
	Currency string   `json:"currency"`
	// Msisdn is the beneficiary's phone number; only its masked form ever
	// leaves the ledger.
	Msisdn string `json:"msisdn"`
	// Stations is an allowlist of station IDs permitted to redeem this
	// voucher; empty means any station.
	Stations []string `json:"stations,omitempty"`
	// RedeemedKey is the idempotency key of the redemption that consumed
	// this voucher, empty while unredeemed.
	RedeemedKey string `json:"redeemedKey,omitempty"`
}

// Redemption is one persisted redemption row, at most one per idempotency key.
type Redemption struct {
	IdempotencyKey string            `json:"idempotencyKey"`
	VoucherCode    string            `json:"voucherCode"`
	VoucherID      string            `json:"voucherId"`
	StationID      string            `json:"stationId"`
	Method         client.Method     `json:"method"`
	Amount         float64           `json:"amount"`
	Currency       string            `json:"currency"`
	MaskedMsisdn   string            `json:"maskedMsisdn"`
	Reference      string            `json:"reference"`
	RedeemedAtMs   int64             `json:"redeemedAtMs"`
	Context        map[string]string `json:"context,omitempty"`
}

// Ledger applies redemptions at most once per idempotency key.
type Ledger struct {
	db     *pebblestore.DB
	logger logpkg.Logger

	// mu serializes read-modify-write across voucher and idem keys.
	mu sync.Mutex

	nowMs func() int64
}

// Open creates a Ledger over the given store.
func Open(db *pebblestore.DB, logger logpkg.Logger) *Ledger {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel))
	}
	return &Ledger{
		db:     db,
		logger: logger.With(logpkg.Component("ledger")),
		nowMs:  func() int64 { return time.Now().UnixMilli() },
	}
}

// CreateVoucher persists a new voucher, assigning an ID when absent.
func (l *Ledger) CreateVoucher(ctx context.Context, v Voucher) (Voucher, error) {
	if strings.TrimSpace(v.Code) == "" {
		return Voucher{}, errors.New("ledger: voucher code is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.db.Get(VoucherKey(v.Code)); err == nil {
		return Voucher{}, ErrVoucherExists
	} else if !errors.Is(err, pebblestore.ErrNotFound) {
		return Voucher{}, err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Voucher{}, err
	}
	if err := l.db.Set(VoucherKey(v.Code), raw); err != nil {
		return Voucher{}, err
	}
	l.logger.Info("voucher created", logpkg.Str("code", v.Code), logpkg.Str("voucher_id", v.ID))
	return v, nil
}

// GetVoucher returns the voucher for the given code.
func (l *Ledger) GetVoucher(code string) (Voucher, bool, error) {
	raw, err := l.db.Get(VoucherKey(code))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return Voucher{}, false, nil
		}
		return Voucher{}, false, err
	}
	var v Voucher
	if err := json.Unmarshal(raw, &v); err != nil {
		return Voucher{}, false, err
	}
	return v, true, nil
}

// Redeem applies one redemption under the given idempotency key and returns
// the wire result. The same key always resolves to the same persisted row.
func (l *Ledger) Redeem(ctx context.Context, req client.RedeemRequest, idempotencyKey string) (client.RedeemResult, error) {
	if idempotencyKey == "" {
		return client.RedeemResult{}, errors.New("ledger: idempotency key is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	// Replayed key: resolve to the stored row, never a second effect.
	if row, found, err := l.getRedemption(idempotencyKey); err != nil {
		return client.RedeemResult{}, err
	} else if found {
		if row.VoucherCode != req.VoucherCode {
			return client.RedeemResult{
				Status:    client.StatusReplay,
				Message:   "idempotency key already used for a different voucher",
				Retryable: false,
			}, nil
		}
		return successResult(client.StatusAlreadyRedeemed, row), nil
	}

	v, found, err := l.GetVoucher(req.VoucherCode)
	if err != nil {
		return client.RedeemResult{}, err
	}
	if !found {
		return client.RedeemResult{
			Status:    client.StatusNotFound,
			Message:   fmt.Sprintf("voucher %q does not exist", req.VoucherCode),
			Retryable: false,
		}, nil
	}
	if !v.allowsStation(req.StationID) {
		return client.RedeemResult{
			Status:    client.StatusInvalidStation,
			Message:   fmt.Sprintf("station %q may not redeem this voucher", req.StationID),
			Retryable: false,
		}, nil
	}

	// Redeemed earlier under a different key: idempotent success outcome.
	if v.RedeemedKey != "" {
		row, found, err := l.getRedemption(v.RedeemedKey)
		if err != nil {
			return client.RedeemResult{}, err
		}
		if found {
			return successResult(client.StatusAlreadyRedeemed, row), nil
		}
		// Voucher marked redeemed but the row is gone; refuse a second effect.
		return client.RedeemResult{
			Status:    client.StatusUnknownError,
			Message:   "voucher already redeemed",
			Retryable: false,
		}, nil
	}

	row := Redemption{
		IdempotencyKey: idempotencyKey,
		VoucherCode:    v.Code,
		VoucherID:      v.ID,
		StationID:      req.StationID,
		Method:         req.Method,
		Amount:         v.Amount,
		Currency:       v.Currency,
		MaskedMsisdn:   maskMsisdn(v.Msisdn),
		Reference:      uuid.NewString(),
		RedeemedAtMs:   l.nowMs(),
		Context:        req.Context,
	}
	rowRaw, err := json.Marshal(row)
	if err != nil {
		return client.RedeemResult{}, err
	}
	v.RedeemedKey = idempotencyKey
	voucherRaw, err := json.Marshal(v)
	if err != nil {
		return client.RedeemResult{}, err
	}

	// One atomic commit covers the row and the voucher mark.
	b := l.db.NewBatch()
	defer b.Close()
	if err := b.Set(IdemKey(idempotencyKey), rowRaw, nil); err != nil {
		return client.RedeemResult{}, err
	}
	if err := b.Set(VoucherKey(v.Code), voucherRaw, nil); err != nil {
		return client.RedeemResult{}, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return client.RedeemResult{}, err
	}

	l.logger.Info("voucher redeemed",
		logpkg.Str("code", v.Code),
		logpkg.Str("station", req.StationID),
		logpkg.Str("idempotency_key", idempotencyKey),
		logpkg.Str("reference", row.Reference),
	)
	return successResult(client.StatusRedeemed, row), nil
}

// ListRedemptions returns persisted rows matching the optional CEL filter.
func (l *Ledger) ListRedemptions(ctx context.Context, filterExpr string) ([]Redemption, error) {
	filter, err := NewFilter(filterExpr)
	if err != nil {
		return nil, err
	}
	lo, hi := IdemRange()
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Redemption
	for ok := iter.First(); ok; ok = iter.Next() {
		var row Redemption
		if err := json.Unmarshal(iter.Value(), &row); err != nil {
			l.logger.Warn("skipping undecodable redemption row", logpkg.Err(err))
			continue
		}
		if filter.Match(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (l *Ledger) getRedemption(idempotencyKey string) (Redemption, bool, error) {
	raw, err := l.db.Get(IdemKey(idempotencyKey))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return Redemption{}, false, nil
		}
		return Redemption{}, false, err
	}
	var row Redemption
	if err := json.Unmarshal(raw, &row); err != nil {
		return Redemption{}, false, err
	}
	return row, true, nil
}

func (v Voucher) allowsStation(stationID string) bool {
	if len(v.Stations) == 0 {
		return true
	}
	for _, s := range v.Stations {
		if s == stationID {
			return true
		}
	}
	return false
}

func successResult(status client.Status, row Redemption) client.RedeemResult {
	return client.RedeemResult{
		Status:       status,
		Amount:       row.Amount,
		Currency:     row.Currency,
		MaskedMsisdn: row.MaskedMsisdn,
		RedeemedAt:   time.UnixMilli(row.RedeemedAtMs).UTC(),
		VoucherID:    row.VoucherID,
		Reference:    row.Reference,
	}
}

// maskMsisdn hides all but the last three digits.
func maskMsisdn(msisdn string) string {
	if len(msisdn) <= 3 {
		return msisdn
	}
	return strings.Repeat("*", len(msisdn)-3) + msisdn[len(msisdn)-3:]
}
