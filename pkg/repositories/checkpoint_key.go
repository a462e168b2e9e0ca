package repositories

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// KeyKind tags a stored unique-key value so it decodes to the type the
// chunk query binds.
type KeyKind string

const (
	KeyKindInt     KeyKind = "int"
	KeyKindFloat   KeyKind = "float"
	KeyKindDecimal KeyKind = "decimal"
	KeyKindString  KeyKind = "string"
	KeyKindBytes   KeyKind = "bytes"
	KeyKindTime    KeyKind = "time"
)

// EncodeKey renders a unique-key value as (kind, text).
func EncodeKey(v any) (KeyKind, string, error) {
	switch x := v.(type) {
	case int:
		return KeyKindInt, strconv.FormatInt(int64(x), 10), nil
	case int8:
		return KeyKindInt, strconv.FormatInt(int64(x), 10), nil
	case int16:
		return KeyKindInt, strconv.FormatInt(int64(x), 10), nil
	case int32:
		return KeyKindInt, strconv.FormatInt(int64(x), 10), nil
	case int64:
		return KeyKindInt, strconv.FormatInt(x, 10), nil
	case uint8:
		return KeyKindInt, strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return KeyKindInt, strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return KeyKindInt, strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return KeyKindDecimal, strconv.FormatUint(x, 10), nil
	case float32:
		return KeyKindFloat, strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return KeyKindFloat, strconv.FormatFloat(x, 'g', -1, 64), nil
	case decimal.Decimal:
		return KeyKindDecimal, x.String(), nil
	case string:
		return KeyKindString, x, nil
	case []byte:
		return KeyKindBytes, base64.StdEncoding.EncodeToString(x), nil
	case time.Time:
		return KeyKindTime, x.UTC().Format(time.RFC3339Nano), nil
	}
	return "", "", fmt.Errorf("unsupported checkpoint key type %T", v)
}

// DecodeKey is the inverse of EncodeKey.
func DecodeKey(kind KeyKind, text string) (any, error) {
	switch kind {
	case KeyKindInt:
		return strconv.ParseInt(text, 10, 64)
	case KeyKindFloat:
		return strconv.ParseFloat(text, 64)
	case KeyKindDecimal:
		return decimal.NewFromString(text)
	case KeyKindString:
		return text, nil
	case KeyKindBytes:
		return base64.StdEncoding.DecodeString(text)
	case KeyKindTime:
		return time.Parse(time.RFC3339Nano, text)
	}
	return nil, fmt.Errorf("unknown checkpoint key kind %q", kind)
}
