package filterexpr

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// assign stores a literal into field, allocating pointer fields on demand.
func assign(field reflect.Value, value any) error {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return assign(field.Elem(), value)
	}

	switch v := value.(type) {
	case string:
		if field.Kind() != reflect.String {
			return fmt.Errorf("cannot store string into %s", field.Type())
		}
		field.SetString(v)
	case []string:
		if field.Kind() != reflect.Slice || field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("cannot store string list into %s", field.Type())
		}
		out := reflect.MakeSlice(field.Type(), len(v), len(v))
		for i, s := range v {
			out.Index(i).SetString(s)
		}
		field.Set(out)
	case float64:
		return assignNumber(field, v)
	case time.Time:
		if field.Type() != timeType {
			return fmt.Errorf("cannot store timestamp into %s", field.Type())
		}
		field.Set(reflect.ValueOf(v))
	default:
		return fmt.Errorf("unsupported literal type %T", value)
	}
	return nil
}

func assignNumber(field reflect.Value, v float64) error {
	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		field.SetFloat(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if math.Trunc(v) != v {
			return fmt.Errorf("%v is not an integer", v)
		}
		if field.OverflowInt(int64(v)) {
			return fmt.Errorf("%v overflows %s", v, field.Type())
		}
		field.SetInt(int64(v))
	default:
		return fmt.Errorf("cannot store number into %s", field.Type())
	}
	return nil
}
