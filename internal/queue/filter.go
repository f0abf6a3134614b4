package queue

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Filter wraps a compiled CEL program evaluated against queue entries; used
// by list surfaces. When the expression is empty, Match always returns true.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// NewFilter compiles a CEL expression over entry fields, e.g.
// `status == "failed" && attempts > 2`.
func NewFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("voucher_code", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("attempts", cel.IntType),
		cel.Variable("last_error", cel.StringType),
		cel.Variable("created_at_ms", cel.IntType),
		cel.Variable("updated_at_ms", cel.IntType),
		cel.Variable("context", cel.MapType(cel.StringType, cel.StringType)),
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

// Match evaluates the expression against one entry. When disabled, returns true.
func (f Filter) Match(e Entry) bool {
	if !f.enabled {
		return true
	}
	ctx := e.Context
	if ctx == nil {
		ctx = map[string]string{}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"id":            e.ID,
		"voucher_code":  e.VoucherCode,
		"status":        string(e.Status),
		"method":        string(e.Method),
		"attempts":      int64(e.Attempts),
		"last_error":    e.LastError,
		"created_at_ms": e.CreatedAtMs,
		"updated_at_ms": e.UpdatedAtMs,
		"context":       ctx,
		"now_ms":        time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
