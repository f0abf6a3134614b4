package client

import "time"

// IdempotencyKeyHeader is the request header carrying the idempotency key.
const IdempotencyKeyHeader = "Idempotency-Key"

// Method describes how a voucher code was captured.
type Method string

const (
	MethodScan   Method = "scan"
	MethodManual Method = "manual"
)

// RedeemRequest is the wire request for one redemption.
type RedeemRequest struct {
	VoucherCode string            `json:"voucherCode" validate:"required"`
	StationID   string            `json:"stationId" validate:"required"`
	Method      Method            `json:"method" validate:"required,oneof=scan manual"`
	Context     map[string]string `json:"context,omitempty"`
}

// Status is the discriminator of a RedeemResult.
type Status string

const (
	// Success statuses
	StatusRedeemed        Status = "redeemed"
	StatusAlreadyRedeemed Status = "already_redeemed"

	// Failure statuses
	StatusNotFound       Status = "not_found"
	StatusInvalidStation Status = "invalid_station"
	StatusNetworkError   Status = "network_error"
	StatusReplay         Status = "replay"
	StatusUnknownError   Status = "unknown_error"
)

// RedeemResult is the tagged wire response for one redemption attempt.
// Success responses carry the amount/currency/reference fields; failure
// responses carry Message and Retryable.
type RedeemResult struct {
	Status Status `json:"status" validate:"required,oneof=redeemed already_redeemed not_found invalid_station network_error replay unknown_error"`

	Amount       float64   `json:"amount,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	MaskedMsisdn string    `json:"maskedMsisdn,omitempty"`
	RedeemedAt   time.Time `json:"redeemedAt,omitzero"`
	VoucherID    string    `json:"voucherId,omitempty"`
	Reference    string    `json:"reference,omitempty"`

	Message string `json:"message,omitempty"`
	// Retryable is always serialized so failure bodies carry an explicit
	// verdict even when it is false.
	Retryable bool `json:"retryable"`
}

// Success reports whether the result is a terminal success.
func (r RedeemResult) Success() bool {
	return r.Status == StatusRedeemed || r.Status == StatusAlreadyRedeemed
}
