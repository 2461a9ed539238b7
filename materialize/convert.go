package materialize

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// assigner stores a non-null driver value into dst, which is addressable.
type assigner func(dst reflect.Value, src any) error

var (
	scannerType = reflect.TypeFor[sql.Scanner]()
	timeType    = reflect.TypeFor[time.Time]()
	bytesType   = reflect.TypeFor[[]byte]()
)

// timeLayouts are tried in order when a driver reports a time as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

func assignerFor(t reflect.Type) assigner {
	if t.Kind() == reflect.Pointer {
		elem := assignerFor(t.Elem())
		return func(dst reflect.Value, src any) error {
			v := reflect.New(t.Elem())
			if err := elem(v.Elem(), src); err != nil {
				return err
			}
			dst.Set(v)
			return nil
		}
	}
	if reflect.PointerTo(t).Implements(scannerType) {
		return func(dst reflect.Value, src any) error {
			return dst.Addr().Interface().(sql.Scanner).Scan(src)
		}
	}
	switch t {
	case timeType:
		return assignTime
	case bytesType:
		return assignBytes
	}
	switch t.Kind() {
	case reflect.Bool:
		return assignBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return assignInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return assignUint
	case reflect.Float32, reflect.Float64:
		return assignFloat
	case reflect.String:
		return assignString
	}
	return assignConvertible
}

func assignTime(dst reflect.Value, src any) error {
	switch s := src.(type) {
	case time.Time:
		dst.Set(reflect.ValueOf(s))
		return nil
	case string:
		return assignTimeText(dst, s)
	case []byte:
		return assignTimeText(dst, string(s))
	}
	return assignConvertible(dst, src)
}

func assignTimeText(dst reflect.Value, s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			dst.Set(reflect.ValueOf(t))
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", s)
}

func assignBytes(dst reflect.Value, src any) error {
	switch s := src.(type) {
	case []byte:
		dst.SetBytes(append([]byte(nil), s...))
	case string:
		dst.SetBytes([]byte(s))
	default:
		return fmt.Errorf("unsupported source type %T", src)
	}
	return nil
}

func assignBool(dst reflect.Value, src any) error {
	switch s := src.(type) {
	case bool:
		dst.SetBool(s)
		return nil
	case int64:
		dst.SetBool(s != 0)
		return nil
	case float64:
		dst.SetBool(s != 0)
		return nil
	case string:
		return assignBoolText(dst, s)
	case []byte:
		return assignBoolText(dst, string(s))
	}
	return assignConvertible(dst, src)
}

func assignBoolText(dst reflect.Value, s string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	dst.SetBool(b)
	return nil
}

func assignInt(dst reflect.Value, src any) error {
	var n int64
	switch s := src.(type) {
	case int64:
		n = s
	case float64:
		n = int64(s)
		if float64(n) != s {
			return fmt.Errorf("%v is not an integer", s)
		}
	case bool:
		if s {
			n = 1
		}
	case string, []byte:
		var err error
		if n, err = strconv.ParseInt(strings.TrimSpace(text(s)), 10, 64); err != nil {
			return err
		}
	default:
		return assignConvertible(dst, src)
	}
	if dst.OverflowInt(n) {
		return fmt.Errorf("%d overflows %s", n, dst.Type())
	}
	dst.SetInt(n)
	return nil
}

func assignUint(dst reflect.Value, src any) error {
	var n uint64
	switch s := src.(type) {
	case int64:
		if s < 0 {
			return fmt.Errorf("%d is negative", s)
		}
		n = uint64(s)
	case float64:
		if s < 0 || s != float64(uint64(s)) {
			return fmt.Errorf("%v is not an unsigned integer", s)
		}
		n = uint64(s)
	case bool:
		if s {
			n = 1
		}
	case string, []byte:
		var err error
		if n, err = strconv.ParseUint(strings.TrimSpace(text(s)), 10, 64); err != nil {
			return err
		}
	default:
		return assignConvertible(dst, src)
	}
	if dst.OverflowUint(n) {
		return fmt.Errorf("%d overflows %s", n, dst.Type())
	}
	dst.SetUint(n)
	return nil
}

func assignFloat(dst reflect.Value, src any) error {
	var f float64
	switch s := src.(type) {
	case float64:
		f = s
	case float32:
		f = float64(s)
	case int64:
		f = float64(s)
	case string, []byte:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(text(s)), 64); err != nil {
			return err
		}
	default:
		return assignConvertible(dst, src)
	}
	dst.SetFloat(f)
	return nil
}

func assignString(dst reflect.Value, src any) error {
	switch s := src.(type) {
	case string:
		dst.SetString(s)
	case []byte:
		dst.SetString(string(s))
	case time.Time:
		dst.SetString(s.Format(time.RFC3339Nano))
	case int64:
		dst.SetString(strconv.FormatInt(s, 10))
	case float64:
		dst.SetString(strconv.FormatFloat(s, 'f', -1, 64))
	case bool:
		dst.SetString(strconv.FormatBool(s))
	default:
		dst.SetString(fmt.Sprint(src))
	}
	return nil
}

func assignConvertible(dst reflect.Value, src any) error {
	v := reflect.ValueOf(src)
	if v.Type().AssignableTo(dst.Type()) {
		dst.Set(v)
		return nil
	}
	if v.Type().ConvertibleTo(dst.Type()) {
		dst.Set(v.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("unsupported conversion from %T to %s", src, dst.Type())
}

func text(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v.(string)
}

// Assign converts the driver value src and stores it into dst. A nil src
// stores the zero value. Generated accessors call it for every member.
func Assign[T any](dst *T, src any) error {
	if src == nil {
		var zero T
		*dst = zero
		return nil
	}
	switch d := any(dst).(type) {
	case *string:
		if s, ok := src.(string); ok {
			*d = s
			return nil
		}
	case *int:
		if n, ok := src.(int64); ok && int64(int(n)) == n {
			*d = int(n)
			return nil
		}
	case *int64:
		if n, ok := src.(int64); ok {
			*d = n
			return nil
		}
	case *float64:
		if f, ok := src.(float64); ok {
			*d = f
			return nil
		}
	case *bool:
		if b, ok := src.(bool); ok {
			*d = b
			return nil
		}
	case *time.Time:
		if t, ok := src.(time.Time); ok {
			*d = t
			return nil
		}
	}
	v := reflect.ValueOf(dst).Elem()
	return assignerFor(v.Type())(v, src)
}
