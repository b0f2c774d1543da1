package core

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// CoercionError is returned when a Go value cannot be bound to a column type.
type CoercionError struct {
	Type  DBType
	Value any
	Cause string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot bind %T to %s: %s", e.Value, e.Type, e.Cause)
}

// Coerce checks that v can be bound to a column of type t and normalizes it
// to the canonical Go representation for that type (int64 for integral
// types, float64 for floating types, string for text, []byte for blobs).
// nil and driver.Valuer values are passed through untouched.
func (t DBType) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.(driver.Valuer); ok {
		return v, nil
	}
	fail := func(cause string) (any, error) {
		return nil, &CoercionError{Type: t, Value: v, Cause: cause}
	}

	switch {
	case t == TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return fail("expected bool")

	case t.IsIntegral():
		n, ok := toInt64(v)
		if !ok {
			return fail("expected integer")
		}
		lo, hi := integralBounds(t)
		if n < lo || n > hi {
			return fail(fmt.Sprintf("value %d out of range [%d, %d]", n, lo, hi))
		}
		return n, nil

	case t == TypeFloat || t == TypeDouble:
		if f, ok := toFloat64(v); ok {
			return f, nil
		}
		if n, ok := toInt64(v); ok {
			return float64(n), nil
		}
		return fail("expected number")

	case t == TypeDecimal:
		switch x := v.(type) {
		case string:
			if _, err := decimal.NewFromString(x); err != nil {
				return fail("invalid decimal string")
			}
			return x, nil
		case float32, float64:
			f, _ := toFloat64(x)
			return f, nil
		}
		if n, ok := toInt64(v); ok {
			return n, nil
		}
		return fail("expected number or decimal string")

	case t.IsTextual():
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case fmt.Stringer:
			return x.String(), nil
		}
		return fail("expected string")

	case t == TypeBlob:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
		return fail("expected []byte")

	case t.IsTemporal():
		if ts, ok := v.(time.Time); ok {
			return ts, nil
		}
		return fail("expected time.Time")
	}
	return fail("unsupported column type")
}

func integralBounds(t DBType) (int64, int64) {
	switch t {
	case TypeByte:
		return math.MinInt8, math.MaxInt8
	case TypeShort:
		return math.MinInt16, math.MaxInt16
	case TypeInt:
		return math.MinInt32, math.MaxInt32
	}
	return math.MinInt64, math.MaxInt64
}

func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
