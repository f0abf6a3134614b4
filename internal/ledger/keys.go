package ledger

// Key prefixes for ledger data structures
const (
	prefixVoucher = "voucher/"
	prefixIdem    = "idem/"
)

// VoucherKey returns the key for a voucher record.
// Format: voucher/{code}
func VoucherKey(code string) []byte {
	return []byte(prefixVoucher + code)
}

// IdemKey returns the key for a redemption row.
// Format: idem/{idempotencyKey}
func IdemKey(idempotencyKey string) []byte {
	return []byte(prefixIdem + idempotencyKey)
}

// IdemRange returns the bounds for scanning all redemption rows.
func IdemRange() ([]byte, []byte) {
	return keyRange(prefixIdem)
}

// keyRange returns start and end keys for scanning with a prefix.
// The end key is exclusive (prefix + 0xFF suffix).
func keyRange(prefix string) ([]byte, []byte) {
	start := []byte(prefix)
	end := make([]byte, len(prefix)+1)
	copy(end, prefix)
	end[len(prefix)] = 0xFF
	return start, end
}
