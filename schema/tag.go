package schema

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TagName is the struct tag key read by the registry.
const TagName = "xf"

var (
	timeType    = reflect.TypeFor[time.Time]()
	uuidType    = reflect.TypeFor[uuid.UUID]()
	bytesType   = reflect.TypeFor[[]byte]()
	scannerType = reflect.TypeFor[sql.Scanner]()
)

// IsScalar reports whether values of t map onto a single column.
// Pointers are dereferenced first.
func IsScalar(t reflect.Type) bool {
	t = Indirect(t)
	switch t {
	case timeType, uuidType, bytesType:
		return true
	}
	if reflect.PointerTo(t).Implements(scannerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Indirect strips every pointer level from t.
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

type tag struct {
	column   string
	key      bool
	identity bool
	nomap    bool
	fk       *ForeignKey
}

func parseTag(s string) (tag, error) {
	var t tag
	if s == "-" {
		t.nomap = true
		return t, nil
	}
	parts := strings.Split(s, ",")
	t.column = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "":
		case opt == "key":
			t.key = true
		case opt == "identity":
			t.identity = true
		case opt == "nomap" || opt == "-":
			t.nomap = true
		case strings.HasPrefix(opt, "fk="):
			fk, err := parseForeignKey(strings.TrimPrefix(opt, "fk="))
			if err != nil {
				return t, err
			}
			t.fk = fk
		default:
			return t, fmt.Errorf("unknown tag option %q", opt)
		}
	}
	return t, nil
}

// parseForeignKey reads "A+B:X+Y". A missing ":X+Y" part means the
// outer keys carry the same names as the inner ones.
func parseForeignKey(s string) (*ForeignKey, error) {
	inner, outer, found := strings.Cut(s, ":")
	fk := &ForeignKey{InnerKeys: splitKeys(inner)}
	if found {
		fk.OuterKeys = splitKeys(outer)
	} else {
		fk.OuterKeys = fk.InnerKeys
	}
	if len(fk.InnerKeys) == 0 {
		return nil, fmt.Errorf("foreign key %q names no member", s)
	}
	if len(fk.InnerKeys) != len(fk.OuterKeys) {
		return nil, fmt.Errorf("foreign key %q pairs %d inner keys with %d outer keys", s, len(fk.InnerKeys), len(fk.OuterKeys))
	}
	return fk, nil
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, "+") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
