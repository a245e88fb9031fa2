package filterexpr

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

type timestamp = time.Time

type predicate struct {
	Field string
	Op    Op
	Value any
}

func parseFilter(filter string, fields map[string]FilterField) ([]predicate, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}
	if len(fields) == 0 {
		return nil, errors.New("resource does not support filtering")
	}

	env, err := newEnv(fields)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(filter)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return nil, fmt.Errorf("convert AST: %w", err)
	}

	conjuncts, err := flattenAnd(parsed.GetExpr())
	if err != nil {
		return nil, err
	}
	preds := make([]predicate, 0, len(conjuncts))
	for _, expr := range conjuncts {
		pred, err := toPredicate(expr)
		if err != nil {
			return nil, err
		}
		if _, ok := fields[pred.Field]; !ok {
			return nil, fmt.Errorf("field %q is not allowed", pred.Field)
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

func newEnv(fields map[string]FilterField) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(fields)+1)
	for name, rule := range fields {
		var typ *cel.Type
		switch rule.Kind {
		case KindString:
			typ = cel.StringType
		case KindNumber:
			typ = cel.DoubleType
		case KindTimestamp:
			typ = cel.TimestampType
		default:
			return nil, fmt.Errorf("field %q: unsupported kind %s", name, rule.Kind)
		}
		opts = append(opts, cel.Variable(name, typ))
	}
	opts = append(opts, cel.CrossTypeNumericComparisons(true))
	return cel.NewEnv(opts...)
}

// flattenAnd walks the binary && tree the CEL parser produces.
func flattenAnd(expr *exprpb.Expr) ([]*exprpb.Expr, error) {
	if expr == nil {
		return nil, errors.New("empty expression")
	}
	call := expr.GetCallExpr()
	if call == nil {
		return []*exprpb.Expr{expr}, nil
	}
	switch call.Function {
	case "_&&_":
		var out []*exprpb.Expr
		for _, arg := range call.Args {
			sub, err := flattenAnd(arg)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case "_||_", "_?_:_", "!_":
		return nil, fmt.Errorf("operator %q is not supported; only && is allowed", call.Function)
	default:
		return []*exprpb.Expr{expr}, nil
	}
}

func toPredicate(expr *exprpb.Expr) (predicate, error) {
	call := expr.GetCallExpr()
	if call == nil {
		return predicate{}, errors.New("expected a comparison")
	}

	var (
		op       Op
		lhs, rhs *exprpb.Expr
	)
	switch call.Function {
	case "_==_":
		op = OpEQ
	case "_>=_":
		op = OpGTE
	case "_<=_":
		op = OpLTE
	case "@in", "_in_":
		op = OpIN
	case "startsWith":
		op = OpSW
	default:
		return predicate{}, fmt.Errorf("function %q is not supported", call.Function)
	}

	switch {
	case call.Target != nil && len(call.Args) == 1:
		lhs, rhs = call.Target, call.Args[0]
	case call.Target == nil && len(call.Args) == 2:
		lhs, rhs = call.Args[0], call.Args[1]
	default:
		return predicate{}, fmt.Errorf("%s expects two operands", op)
	}

	ident := lhs.GetIdentExpr()
	if ident == nil {
		return predicate{}, errors.New("left-hand side must be a field name")
	}
	value, err := literal(rhs)
	if err != nil {
		return predicate{}, err
	}
	if op == OpSW {
		if _, ok := value.(string); !ok {
			return predicate{}, errors.New("startsWith requires a string literal")
		}
	}
	return predicate{Field: ident.GetName(), Op: op, Value: value}, nil
}

func literal(expr *exprpb.Expr) (any, error) {
	if c := expr.GetConstExpr(); c != nil {
		switch c.ConstantKind.(type) {
		case *exprpb.Constant_StringValue:
			return c.GetStringValue(), nil
		case *exprpb.Constant_Int64Value:
			return float64(c.GetInt64Value()), nil
		case *exprpb.Constant_Uint64Value:
			return float64(c.GetUint64Value()), nil
		case *exprpb.Constant_DoubleValue:
			return c.GetDoubleValue(), nil
		default:
			return nil, fmt.Errorf("literal type %T is not supported", c.ConstantKind)
		}
	}

	if list := expr.GetListExpr(); list != nil {
		values := make([]string, 0, len(list.GetElements()))
		for i, elem := range list.GetElements() {
			v, err := literal(elem)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			s, ok := v.(string)
			if !ok {
				return nil, errors.New("list elements must be strings")
			}
			values = append(values, s)
		}
		return values, nil
	}

	if call := expr.GetCallExpr(); call != nil && call.Function == "timestamp" && len(call.Args) == 1 {
		raw := call.Args[0].GetConstExpr().GetStringValue()
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("timestamp literal %q is not RFC3339", raw)
		}
		return t, nil
	}

	return nil, errors.New("right-hand side must be a literal, a list of strings or timestamp()")
}
