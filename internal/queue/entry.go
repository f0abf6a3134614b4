package queue

import (
	"github.com/stationkit/redeemq/internal/client"
	"github.com/stationkit/redeemq/pkg/idem"
)

// Status is the lifecycle state of an Entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Entry is the only persisted entity: one queued redemption.
type Entry struct {
	// ID is the deterministic composite key station:voucherCode; at most one
	// entry exists per ID at any time.
	ID          string            `json:"id"`
	VoucherCode string            `json:"voucherCode"`
	Method      client.Method     `json:"method"`
	Context     map[string]string `json:"context,omitempty"`
	// CreatedAtMs is fixed at first enqueue and never changes on retry; the
	// idempotency key is derived from it.
	CreatedAtMs int64 `json:"createdAtMs"`
	// UpdatedAtMs is the time of the last status transition; backoff windows
	// are measured from it.
	UpdatedAtMs int64  `json:"updatedAtMs"`
	Status      Status `json:"status"`
	// Attempts counts delivery attempts; incremented before each attempt.
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError,omitempty"`
}

// EntryID builds the composite entry id for a station/voucher pair.
func EntryID(stationID, voucherCode string) string {
	return stationID + ":" + voucherCode
}

// IdempotencyKey returns the stable key carried by every attempt of this entry.
func (e *Entry) IdempotencyKey() string {
	return idem.Key(e.ID, e.CreatedAtMs)
}
