package expr

import (
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/xframe/schema"
)

// Kind is the semantic kind of a node's result. It drives literal
// rendering and navigation detection.
type Kind uint8

// Semantic kinds.
const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindDate
	KindGUID
	KindBytes
	KindEntity
	KindCollection
	KindGroup
)

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindNull:       "null",
	KindBool:       "bool",
	KindNumber:     "number",
	KindString:     "string",
	KindDate:       "date",
	KindGUID:       "guid",
	KindBytes:      "bytes",
	KindEntity:     "entity",
	KindCollection: "collection",
	KindGroup:      "group",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Grouping is the element type of a group-by parameter. It carries no
// data; members of a grouping are resolved by the compiler against the
// key selector.
type Grouping struct{}

var (
	groupingType = reflect.TypeFor[Grouping]()
	timeType     = reflect.TypeFor[time.Time]()
	uuidType     = reflect.TypeFor[uuid.UUID]()
	bytesType    = reflect.TypeFor[[]byte]()
)

// KindOf maps a Go type onto its semantic kind.
func KindOf(t reflect.Type) Kind {
	if t == nil {
		return KindNull
	}
	t = schema.Indirect(t)
	switch t {
	case groupingType:
		return KindGroup
	case timeType:
		return KindDate
	case uuidType:
		return KindGUID
	case bytesType:
		return KindBytes
	}
	switch t.Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.String:
		return KindString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindNumber
	case reflect.Slice, reflect.Array:
		return KindCollection
	case reflect.Struct:
		if schema.IsScalar(t) {
			return KindString
		}
		return KindEntity
	}
	return KindInvalid
}
