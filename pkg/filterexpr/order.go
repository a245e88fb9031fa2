package filterexpr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

type orderParams struct {
	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool
}

// parseOrderBy accepts at most two comma separated `key [asc|desc]` segments.
func parseOrderBy(raw string, schema OrderSchema) (orderParams, error) {
	if _, ok := schema.Fields[schema.DefaultPrimary]; !ok {
		return orderParams{}, fmt.Errorf("default order key %q missing from schema", schema.DefaultPrimary)
	}
	if _, ok := schema.Fields[schema.FallbackKey]; !ok {
		return orderParams{}, fmt.Errorf("fallback order key %q missing from schema", schema.FallbackKey)
	}

	ord := orderParams{
		PrimaryKey:    schema.DefaultPrimary,
		PrimaryDesc:   schema.DefaultPrimaryDesc,
		SecondaryKey:  schema.FallbackKey,
		SecondaryDesc: schema.FallbackDesc,
	}

	var keys []string
	var desc []bool
	for _, seg := range strings.Split(raw, ",") {
		parts := strings.Fields(seg)
		if len(parts) == 0 {
			continue
		}
		if len(parts) > 2 {
			return orderParams{}, fmt.Errorf("invalid order segment %q", strings.TrimSpace(seg))
		}
		key := parts[0]
		if _, ok := schema.Fields[key]; !ok {
			return orderParams{}, fmt.Errorf("field %q cannot be used for ordering", key)
		}
		for _, seen := range keys {
			if seen == key {
				return orderParams{}, fmt.Errorf("duplicate order key %q", key)
			}
		}
		d := false
		if len(parts) == 2 {
			switch strings.ToLower(parts[1]) {
			case "asc":
			case "desc":
				d = true
			default:
				return orderParams{}, fmt.Errorf("invalid direction %q for field %q", parts[1], key)
			}
		}
		keys = append(keys, key)
		desc = append(desc, d)
	}

	switch len(keys) {
	case 0:
	case 1:
		ord.PrimaryKey, ord.PrimaryDesc = keys[0], desc[0]
		if ord.SecondaryKey == ord.PrimaryKey {
			ord.SecondaryKey, ord.SecondaryDesc = schema.DefaultPrimary, schema.DefaultPrimaryDesc
		}
	case 2:
		ord.PrimaryKey, ord.PrimaryDesc = keys[0], desc[0]
		ord.SecondaryKey, ord.SecondaryDesc = keys[1], desc[1]
	default:
		return orderParams{}, errors.New("at most two order keys are supported")
	}
	if ord.SecondaryKey == ord.PrimaryKey {
		return orderParams{}, errors.New("order schema needs two distinct keys for a stable ordering")
	}
	return ord, nil
}

func setOrderParams(dest reflect.Value, ord orderParams) error {
	values := map[string]any{
		"PrimaryKey":    ord.PrimaryKey,
		"PrimaryDesc":   ord.PrimaryDesc,
		"SecondaryKey":  ord.SecondaryKey,
		"SecondaryDesc": ord.SecondaryDesc,
	}
	for name, v := range values {
		field := dest.FieldByName(name)
		if !field.IsValid() || !field.CanSet() {
			return fmt.Errorf("params struct %s has no settable field %q", dest.Type(), name)
		}
		rv := reflect.ValueOf(v)
		if !rv.Type().ConvertibleTo(field.Type()) {
			return fmt.Errorf("field %q must be %s-compatible", name, rv.Type())
		}
		field.Set(rv.Convert(field.Type()))
	}
	return nil
}

// OrderClause renders the SQL ORDER BY list for keys already validated by Bind.
func OrderClause(schema OrderSchema, primary string, primaryDesc bool, secondary string, secondaryDesc bool) (string, error) {
	parts := make([]string, 0, 2)
	for _, k := range []struct {
		key  string
		desc bool
	}{{primary, primaryDesc}, {secondary, secondaryDesc}} {
		f, ok := schema.Fields[k.key]
		if !ok {
			return "", fmt.Errorf("unknown order key %q", k.key)
		}
		dir := "ASC"
		if k.desc {
			dir = "DESC"
		}
		clause := f.Expr + " " + dir
		if f.Nulls != "" {
			clause += " NULLS " + strings.ToUpper(f.Nulls)
		}
		parts = append(parts, clause)
	}
	return strings.Join(parts, ", "), nil
}
