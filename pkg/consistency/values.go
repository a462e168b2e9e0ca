package consistency

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LargeObject is a materialized XML or CLOB column value. Two handles are
// equal when their content is, regardless of identity.
type LargeObject struct {
	TypeName string
	content  string
}

// NewLargeObject materializes a scanned large-object value.
func NewLargeObject(typeName string, raw any) *LargeObject {
	lo := &LargeObject{TypeName: typeName}
	switch v := raw.(type) {
	case []byte:
		lo.content = string(v)
	case string:
		lo.content = v
	default:
		lo.content = fmt.Sprint(v)
	}
	return lo
}

// Content returns the materialized text.
func (l *LargeObject) Content() string {
	return l.content
}

func (l *LargeObject) String() string {
	return l.content
}

var largeObjectTypes = map[string]bool{
	"XML":   true,
	"CLOB":  true,
	"NCLOB": true,
}

func isLargeObjectType(databaseTypeName string) bool {
	return largeObjectTypes[strings.ToUpper(databaseTypeName)]
}

var binaryTypes = map[string]bool{
	"BYTEA":      true,
	"BINARY":     true,
	"VARBINARY":  true,
	"BLOB":       true,
	"TINYBLOB":   true,
	"MEDIUMBLOB": true,
	"LONGBLOB":   true,
	"IMAGE":      true,
}

func isBinaryType(databaseTypeName string) bool {
	return binaryTypes[strings.ToUpper(databaseTypeName)]
}

var decimalTypes = map[string]bool{
	"NUMERIC":    true,
	"DECIMAL":    true,
	"MONEY":      true,
	"SMALLMONEY": true,
}

func isDecimalType(databaseTypeName string) bool {
	return decimalTypes[strings.ToUpper(databaseTypeName)]
}

// valuesEqual is structural equality over scanned driver values. Integers
// compare across widths, byte strings by content and times by instant.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if la, ok := a.(*LargeObject); ok {
		if lb, ok := b.(*LargeObject); ok {
			return la.content == lb.content
		}
		return textEqual(la.content, b)
	}
	if lb, ok := b.(*LargeObject); ok {
		return textEqual(lb.content, a)
	}

	switch va := a.(type) {
	case []byte:
		switch vb := b.(type) {
		case []byte:
			return bytes.Equal(va, vb)
		case string:
			return string(va) == vb
		}
		return false
	case string:
		return textEqual(va, b)
	case time.Time:
		vb, ok := b.(time.Time)
		return ok && va.Equal(vb)
	}

	if ia, ok := toInt64(a); ok {
		if ib, ok := toInt64(b); ok {
			return ia == ib
		}
	}
	if fa, ok := toFloat64(a); ok {
		if fb, ok := toFloat64(b); ok {
			return fa == fb || (math.IsNaN(fa) && math.IsNaN(fb))
		}
	}
	return reflect.DeepEqual(a, b)
}

func textEqual(s string, other any) bool {
	switch v := other.(type) {
	case string:
		return s == v
	case []byte:
		return s == string(v)
	}
	return false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// canonicalValue renders v so that valuesEqual values render identically.
func canonicalValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "\x00nil"
	case *LargeObject:
		return "s:" + x.content
	case []byte:
		return "s:" + string(x)
	case string:
		return "s:" + x
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	}
	if i, ok := toInt64(v); ok {
		return fmt.Sprintf("i:%d", i)
	}
	if f, ok := toFloat64(v); ok {
		switch {
		case math.IsNaN(f):
			return "f:NaN"
		case f == 0:
			// -0 equals 0
			return "f:0"
		}
		return fmt.Sprintf("f:%v", f)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// compareKeys orders two unique-key values. asDecimal forces numeric
// comparison of values a driver reports as text, such as NUMERIC columns.
func compareKeys(a, b any, asDecimal bool) (int, error) {
	if asDecimal {
		da, err := toDecimal(a)
		if err != nil {
			return 0, err
		}
		db, err := toDecimal(b)
		if err != nil {
			return 0, err
		}
		return da.Cmp(db), nil
	}

	if ia, ok := toInt64(a); ok {
		if ib, ok := toInt64(b); ok {
			switch {
			case ia < ib:
				return -1, nil
			case ia > ib:
				return 1, nil
			}
			return 0, nil
		}
	}
	_, aNum := toFloat64(a)
	_, bNum := toFloat64(b)
	if aNum || bNum {
		da, errA := toDecimal(a)
		db, errB := toDecimal(b)
		if errA == nil && errB == nil {
			return da.Cmp(db), nil
		}
	}

	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return strings.Compare(va, vb), nil
		}
	case []byte:
		if vb, ok := b.([]byte); ok {
			return bytes.Compare(va, vb), nil
		}
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Compare(vb), nil
		}
	}
	return 0, fmt.Errorf("incomparable unique key values %T and %T", a, b)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case string:
		return decimal.NewFromString(x)
	case []byte:
		return decimal.NewFromString(string(x))
	case float32:
		return decimal.NewFromFloat32(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	}
	if i, ok := toInt64(v); ok {
		return decimal.NewFromInt(i), nil
	}
	return decimal.Decimal{}, fmt.Errorf("unique key value %T is not numeric", v)
}
