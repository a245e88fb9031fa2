// Package filterexpr binds a restricted CEL filter and an order_by clause onto a plain params struct.
//
// A filter is a conjunction of atomic predicates (`field == 'x'`, `field in ['a','b']`,
// `field.startsWith('p')`, `field >= 1`, `field <= timestamp('...')`). Each predicate must be
// whitelisted by the resource schema, which also names the params struct field receiving the literal.
package filterexpr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Msg is implemented by list queries carrying raw filter and order_by inputs.
type Msg interface {
	GetFilter() string
	GetOrderBy() string
}

// ValueKind describes the kind of literal value a field accepts.
type ValueKind string

const (
	KindString    ValueKind = "string"
	KindNumber    ValueKind = "number"
	KindTimestamp ValueKind = "timestamp"
)

// Op represents a supported comparison operation.
type Op string

const (
	OpEQ  Op = "=="
	OpGTE Op = ">="
	OpLTE Op = "<="
	OpSW  Op = "startsWith"
	OpIN  Op = "in"
)

// FilterField maps a filter identifier to params struct fields, one per allowed operation.
type FilterField struct {
	Kind ValueKind
	Ops  map[Op]string
	// Values restricts string literals to an enumeration; empty accepts anything.
	Values []string
}

// OrderField maps an order key to a SQL expression.
type OrderField struct {
	Expr  string
	Nulls string
}

// OrderSchema describes ordering defaults and whitelisted keys.
type OrderSchema struct {
	DefaultPrimary     string
	DefaultPrimaryDesc bool
	FallbackKey        string
	FallbackDesc       bool
	Fields             map[string]OrderField
}

// ResourceSchema aggregates filtering and ordering rules for a resource.
type ResourceSchema struct {
	Filter map[string]FilterField
	Order  OrderSchema
}

// ErrInvalidExpression wraps every user-facing filter or order_by error.
var ErrInvalidExpression = errors.New("invalid list expression")

// Bind parses msg's filter and order_by and populates binding.
//
// binding must point to a struct exposing the fields named by the schema plus
// PrimaryKey, PrimaryDesc, SecondaryKey and SecondaryDesc.
func Bind[M Msg, P any](msg M, binding *P, schema ResourceSchema) error {
	if binding == nil {
		return errors.New("binding must not be nil")
	}
	dest := reflect.ValueOf(binding).Elem()
	if dest.Kind() != reflect.Struct {
		return errors.New("binding must point to a struct")
	}

	preds, err := parseFilter(msg.GetFilter(), schema.Filter)
	if err != nil {
		return fmt.Errorf("%w: filter: %v", ErrInvalidExpression, err)
	}
	for _, pred := range preds {
		if err := applyPredicate(dest, pred, schema.Filter[pred.Field]); err != nil {
			return err
		}
	}

	order, err := parseOrderBy(msg.GetOrderBy(), schema.Order)
	if err != nil {
		return fmt.Errorf("%w: order_by: %v", ErrInvalidExpression, err)
	}
	return setOrderParams(dest, order)
}

func applyPredicate(dest reflect.Value, pred predicate, rule FilterField) error {
	target, ok := rule.Ops[pred.Op]
	if !ok {
		return fmt.Errorf("%w: operator %q is not allowed for field %q", ErrInvalidExpression, string(pred.Op), pred.Field)
	}
	if err := checkLiteral(rule, pred); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrInvalidExpression, pred.Field, err)
	}

	field := dest.FieldByName(target)
	if !field.IsValid() || !field.CanSet() {
		return fmt.Errorf("params struct %s has no settable field %q", dest.Type(), target)
	}
	if err := assign(field, pred.Value); err != nil {
		return fmt.Errorf("assign field %q: %w", target, err)
	}
	return nil
}

func checkLiteral(rule FilterField, pred predicate) error {
	switch rule.Kind {
	case KindString:
		var values []string
		switch v := pred.Value.(type) {
		case string:
			if pred.Op == OpIN {
				return errors.New("in expects a list literal")
			}
			values = []string{v}
		case []string:
			if pred.Op != OpIN {
				return errors.New("list literal is only valid with in")
			}
			if len(v) == 0 {
				return errors.New("list literal must not be empty")
			}
			values = v
		default:
			return fmt.Errorf("expected %s literal", rule.Kind)
		}
		for _, v := range values {
			if strings.TrimSpace(v) == "" {
				return errors.New("empty string literal")
			}
			if len(rule.Values) > 0 && !contains(rule.Values, v) {
				return fmt.Errorf("value %q is not one of %s", v, strings.Join(rule.Values, ", "))
			}
		}
	case KindNumber:
		if _, ok := pred.Value.(float64); !ok {
			return fmt.Errorf("expected %s literal", rule.Kind)
		}
	case KindTimestamp:
		if _, ok := pred.Value.(timestamp); !ok {
			return fmt.Errorf("expected %s literal", rule.Kind)
		}
	default:
		return fmt.Errorf("unsupported field kind %s", rule.Kind)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
