// Package udf compiles user-supplied aggregation source into executable
// programs and caches the compiled artifacts for the process lifetime,
// keyed by a content hash of the source and entry-point name.
//
// Two dialects are accepted. The high-level expression dialect is a single
// expr-language expression over the bound names window ([]float64), size
// and row. The low-level positional dialect references arg0..argN instead;
// a parameter-role annotation list maps each position onto one of the bound
// names and the source is rewritten by template substitution before it is
// compiled.
package udf

import (
	"fmt"
	"strings"
	"sync"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/paveg/rollframe/internal/agg"
	"github.com/paveg/rollframe/internal/config"
	"github.com/paveg/rollframe/internal/errors"
	"github.com/paveg/rollframe/internal/logutil"
)

// cache holds compiled programs for the process lifetime. Key is the
// content hash; recompiling identical source is a lookup.
var cache sync.Map // uint64 -> *vm.Program

// Program is a compiled user-defined aggregation ready to evaluate per row.
type Program struct {
	prog   *vm.Program
	output arrow.DataType
}

// Output returns the declared output column type.
func (p *Program) Output() arrow.DataType {
	return p.output
}

// Eval runs the program for one row's window. The result is normalized to
// float64; the launch converts to the declared output type on store.
func (p *Program) Eval(window []float64, size, row int) (float64, error) {
	env := baseEnv()
	env["window"] = window
	env["size"] = size
	env["row"] = row

	out, err := expr.Run(p.prog, env)
	if err != nil {
		return 0, err
	}
	switch v := out.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("user aggregation returned %T, want a number", out)
	}
}

// Compile assembles, compiles and caches the program for a user-defined
// aggregation descriptor. Dialect problems surface as UDF restrictions;
// compiler diagnostics surface as compile failures.
func Compile(op string, a agg.Aggregation) (*Program, error) {
	output := a.Output
	if output == nil {
		output = arrow.PrimitiveTypes.Float64
	}
	switch output.ID() {
	case arrow.FLOAT64, arrow.INT64:
	default:
		return nil, errors.NewUDFRestrictionError(op,
			fmt.Sprintf("unsupported UDF output type %s, want float64 or int64", output.Name()))
	}

	src, err := assemble(op, a)
	if err != nil {
		return nil, err
	}

	cfg := config.Get()
	key := cacheKey(src, a.EntryPoint)

	if !cfg.UDFCacheDisabled {
		if cached, ok := cache.Load(key); ok {
			if cfg.VerboseLogging {
				logutil.L().Debug("udf cache hit", zap.Uint64("key", key))
			}
			return &Program{prog: cached.(*vm.Program), output: output}, nil
		}
	}

	prog, err := expr.Compile(src, expr.Env(baseEnv()), expr.Optimize(true), expr.DisableBuiltin("sum"))
	if err != nil {
		return nil, errors.NewCompileFailureError(op, err)
	}

	if !cfg.UDFCacheDisabled {
		cache.Store(key, prog)
		if cfg.VerboseLogging {
			logutil.L().Debug("udf cache store", zap.Uint64("key", key))
		}
	}

	return &Program{prog: prog, output: output}, nil
}

// assemble produces the final compilable source: the fixed shell around the
// user text, with the positional dialect rewritten first.
func assemble(op string, a agg.Aggregation) (string, error) {
	body := strings.TrimSpace(a.Source)
	if body == "" {
		return "", errors.NewUDFRestrictionError(op, "user aggregation source is empty")
	}

	switch a.Dialect {
	case agg.UDFExpression:
		// already expressed over the bound names

	case agg.UDFPositional:
		if len(a.Params) == 0 {
			return "", errors.NewUDFRestrictionError(op, "positional dialect requires parameter annotations")
		}
		pairs := make([]string, 0, 2*len(a.Params))
		for idx := len(a.Params) - 1; idx >= 0; idx-- {
			name, ok := roleName(a.Params[idx])
			if !ok {
				return "", errors.NewUDFRestrictionError(op,
					fmt.Sprintf("unknown parameter role at position %d", idx))
			}
			pairs = append(pairs, fmt.Sprintf("arg%d", idx), name)
		}
		body = strings.NewReplacer(pairs...).Replace(body)

	default:
		return "", errors.NewUDFRestrictionError(op, "unsupported user-code dialect")
	}

	return shellHeader + body + shellFooter, nil
}

// Fixed text concatenated around the adapted user function.
const (
	shellHeader = "("
	shellFooter = ")"
)

func roleName(r agg.ParamRole) (string, bool) {
	switch r {
	case agg.RoleWindow:
		return "window", true
	case agg.RoleSize:
		return "size", true
	case agg.RoleRow:
		return "row", true
	default:
		return "", false
	}
}

// cacheKey hashes (source text, entry-point name) into the cache key.
func cacheKey(src, entryPoint string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(src)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(entryPoint)
	return d.Sum64()
}

// baseEnv is the pinned compilation and execution environment: the three
// bound names plus the helper functions user source may call.
func baseEnv() map[string]interface{} {
	return map[string]interface{}{
		"window": []float64{},
		"size":   0,
		"row":    0,
		"sum": func(xs []float64) float64 {
			var s float64
			for _, x := range xs {
				s += x
			}
			return s
		},
		"minOf": func(xs []float64) float64 {
			if len(xs) == 0 {
				return 0
			}
			m := xs[0]
			for _, x := range xs[1:] {
				if x < m {
					m = x
				}
			}
			return m
		},
		"maxOf": func(xs []float64) float64 {
			if len(xs) == 0 {
				return 0
			}
			m := xs[0]
			for _, x := range xs[1:] {
				if x > m {
					m = x
				}
			}
			return m
		},
	}
}
