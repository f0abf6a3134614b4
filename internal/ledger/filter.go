package ledger

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Filter wraps a compiled CEL program evaluated against redemption rows.
// When the expression is empty, Match always returns true.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// NewFilter compiles a CEL expression over redemption fields, e.g.
// `station_id == "st-001" && amount > 10.0`.
func NewFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("idempotency_key", cel.StringType),
		cel.Variable("voucher_code", cel.StringType),
		cel.Variable("voucher_id", cel.StringType),
		cel.Variable("station_id", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("reference", cel.StringType),
		cel.Variable("redeemed_at_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true}, nil
}

// Match evaluates the expression against one row. When disabled, returns true.
func (f Filter) Match(row Redemption) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"idempotency_key": row.IdempotencyKey,
		"voucher_code":    row.VoucherCode,
		"voucher_id":      row.VoucherID,
		"station_id":      row.StationID,
		"method":          string(row.Method),
		"amount":          row.Amount,
		"currency":        row.Currency,
		"reference":       row.Reference,
		"redeemed_at_ms":  row.RedeemedAtMs,
		"now_ms":          time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
