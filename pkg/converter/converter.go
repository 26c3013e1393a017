// Package converter coerces raw step arguments into the parameter types a
// step function declares.
//
// Coercion never fails: a value that cannot be parsed as the target type is
// passed through unchanged and the invocation reports the mismatch.
package converter

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/ormasoftchile/steprunner/pkg/schema"
)

var (
	tableType    = reflect.TypeOf(schema.Table{})
	tablePtrType = reflect.TypeOf(&schema.Table{})
)

// Coerce converts each raw argument to the type at the same position. Extra
// raw values beyond len(types) are returned as-is.
func Coerce(raw []any, types []reflect.Type) []any {
	out := make([]any, len(raw))
	for i, v := range raw {
		if i >= len(types) {
			out[i] = v
			continue
		}
		out[i] = CoerceAny(v, types[i])
	}
	return out
}

// CoerceAny converts v to t when v is a string; other values are passed through.
func CoerceAny(v any, t reflect.Type) any {
	switch val := v.(type) {
	case string:
		return CoerceValue(val, t)
	case schema.Table:
		if t == tablePtrType {
			return &val
		}
		return val
	case *schema.Table:
		if t == tableType && val != nil {
			return *val
		}
		return val
	default:
		return v
	}
}

// CoerceValue parses raw as t. It returns raw unchanged when t is not a
// supported scalar type or when parsing fails.
func CoerceValue(raw string, t reflect.Type) any {
	if t == nil {
		return raw
	}
	if t == tableType || t == tablePtrType {
		var table schema.Table
		if err := json.Unmarshal([]byte(raw), &table); err != nil {
			return raw
		}
		if t == tablePtrType {
			return &table
		}
		return table
	}

	s := strings.TrimSpace(raw)
	var (
		value reflect.Value
		err   error
	)
	switch t.Kind() {
	case reflect.String:
		if t == reflect.TypeOf("") {
			return raw
		}
		value = reflect.ValueOf(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		n, err = strconv.ParseInt(s, 10, t.Bits())
		value = reflect.ValueOf(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		n, err = strconv.ParseUint(s, 10, t.Bits())
		value = reflect.ValueOf(n)
	case reflect.Float32, reflect.Float64:
		var f float64
		f, err = strconv.ParseFloat(s, t.Bits())
		value = reflect.ValueOf(f)
	case reflect.Bool:
		var b bool
		b, err = strconv.ParseBool(s)
		value = reflect.ValueOf(b)
	default:
		return raw
	}
	if err != nil {
		return raw
	}
	return value.Convert(t).Interface()
}
