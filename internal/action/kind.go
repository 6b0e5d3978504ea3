package action

import (
	"github.com/goccy/go-json"
)

// Kind はJSON値の種類
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBoolean
	KindObject
	KindArray
)

// String は種類の名前を返す
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// KindOf はデコード済みの値の種類を判定する
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return KindNumber
	case bool:
		return KindBoolean
	case map[string]any, Payload:
		return KindObject
	case []any:
		return KindArray
	default:
		return KindNull
	}
}
