package consistency

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *CalculatedResult {
	return &CalculatedResult{
		MaxUniqueKeyValue: int64(2),
		RecordsCount:      2,
		Records: [][]any{
			{int64(1), "alice", []byte("x")},
			{int64(2), "bob", nil},
		},
		Columns: []string{"id", "name", "blob"},
	}
}

func TestCalculatedResult_EqualReflexiveAndSymmetric(t *testing.T) {
	a, b := sampleResult(), sampleResult()

	assert.True(t, a.Equal(a))
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.Equal(t, a.Hash(), b.Hash())

	withNaN := &CalculatedResult{
		MaxUniqueKeyValue: int64(1),
		RecordsCount:      1,
		Records:           [][]any{{int64(1), math.NaN()}},
	}
	assert.True(t, withNaN.Equal(withNaN))
}

func TestCalculatedResult_FloatEdgeValuesHashLikeEquality(t *testing.T) {
	tests := []struct {
		name string
		a, b any
	}{
		{name: "signed zero", a: 0.0, b: math.Copysign(0, -1)},
		{name: "NaN", a: math.NaN(), b: float32(math.NaN())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := &CalculatedResult{MaxUniqueKeyValue: int64(1), RecordsCount: 1, Records: [][]any{{int64(1), tt.a}}}
			right := &CalculatedResult{MaxUniqueKeyValue: int64(1), RecordsCount: 1, Records: [][]any{{int64(1), tt.b}}}
			require.True(t, left.Equal(right))
			assert.Equal(t, left.Hash(), right.Hash())
		})
	}
}

func TestCalculatedResult_EqualAcrossDriverRepresentations(t *testing.T) {
	a := sampleResult()
	b := &CalculatedResult{
		MaxUniqueKeyValue: int32(2),
		RecordsCount:      2,
		Records: [][]any{
			{int32(1), []byte("alice"), "x"},
			{int(2), "bob", nil},
		},
	}

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestCalculatedResult_Mismatches(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CalculatedResult)
		kind   MismatchKind
	}{
		{
			name:   "records count",
			mutate: func(r *CalculatedResult) { r.RecordsCount = 3 },
			kind:   MismatchRecordsCount,
		},
		{
			name:   "max key",
			mutate: func(r *CalculatedResult) { r.MaxUniqueKeyValue = int64(3) },
			kind:   MismatchMaxUniqueKey,
		},
		{
			name:   "column count",
			mutate: func(r *CalculatedResult) { r.Records[1] = append(r.Records[1], "extra") },
			kind:   MismatchColumnCount,
		},
		{
			name:   "column value",
			mutate: func(r *CalculatedResult) { r.Records[1][1] = "carol" },
			kind:   MismatchColumnValue,
		},
		{
			name:   "null versus value",
			mutate: func(r *CalculatedResult) { r.Records[1][2] = []byte("y") },
			kind:   MismatchColumnValue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := sampleResult(), sampleResult()
			tt.mutate(b)

			m := a.Diff(b)
			require.NotNil(t, m)
			assert.Equal(t, tt.kind, m.Kind)
			assert.False(t, a.Equal(b))
			assert.False(t, b.Equal(a))
			assert.NotEmpty(t, m.String())
		})
	}
}

func TestCalculatedResult_ColumnValueMismatchDetails(t *testing.T) {
	a, b := sampleResult(), sampleResult()
	b.Records[1][1] = "carol"

	m := a.Diff(b)
	require.NotNil(t, m)
	assert.Equal(t, 1, m.RecordIndex)
	assert.Equal(t, 1, m.ColumnIndex)
	assert.Equal(t, "name", m.Column)
	assert.Equal(t, "bob", m.Left)
	assert.Equal(t, "carol", m.Right)
	assert.Contains(t, m.String(), `column "name"`)
}

func TestCalculatedResult_LargeObjectsCompareByContent(t *testing.T) {
	withDoc := func(doc string) *CalculatedResult {
		return &CalculatedResult{
			MaxUniqueKeyValue: int64(1),
			RecordsCount:      1,
			Records:           [][]any{{int64(1), NewLargeObject("XML", []byte(doc)), "tail"}},
		}
	}

	assert.True(t, withDoc("<a>1</a>").Equal(withDoc("<a>1</a>")))
	assert.Equal(t, withDoc("<a>1</a>").Hash(), withDoc("<a>1</a>").Hash())
	assert.False(t, withDoc("<a>1</a>").Equal(withDoc("<a>2</a>")))

	// A matching large object does not end the comparison early.
	a, b := withDoc("<a/>"), withDoc("<a/>")
	b.Records[0][2] = "other"
	m := a.Diff(b)
	require.NotNil(t, m)
	assert.Equal(t, 2, m.ColumnIndex)
}

func TestCalculatedResult_NilHandling(t *testing.T) {
	var empty *CalculatedResult
	assert.True(t, empty.Equal(nil))
	assert.False(t, empty.Equal(sampleResult()))
	assert.False(t, sampleResult().Equal(nil))
	assert.Equal(t, uint64(0), empty.Hash())
}

func TestValuesEqual(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{name: "both nil", a: nil, b: nil, want: true},
		{name: "nil and value", a: nil, b: int64(0), want: false},
		{name: "int widths", a: int16(7), b: uint32(7), want: true},
		{name: "floats", a: float32(1.5), b: 1.5, want: true},
		{name: "NaN", a: math.NaN(), b: math.NaN(), want: true},
		{name: "NaN and number", a: math.NaN(), b: 1.0, want: false},
		{name: "bytes and string", a: []byte("abc"), b: "abc", want: true},
		{name: "different bytes", a: []byte("abc"), b: []byte("abd"), want: false},
		{name: "time instants", a: now, b: now.UTC(), want: true},
		{name: "string and int", a: "1", b: int64(1), want: false},
		{name: "decimals", a: decimal.RequireFromString("1.50"), b: decimal.RequireFromString("1.50"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuesEqual(tt.a, tt.b))
			assert.Equal(t, tt.want, valuesEqual(tt.b, tt.a))
		})
	}
}

func TestCompareKeys(t *testing.T) {
	tests := []struct {
		name      string
		a, b      any
		asDecimal bool
		want      int
	}{
		{name: "ints", a: int64(3), b: int32(9), want: -1},
		{name: "equal ints", a: int64(4), b: int(4), want: 0},
		{name: "strings", a: "b", b: "a", want: 1},
		{name: "decimal text", a: "10.5", b: "9.75", asDecimal: true, want: 1},
		{name: "float and int", a: 2.5, b: int64(2), want: 1},
		{name: "times", a: time.Unix(10, 0), b: time.Unix(20, 0), want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compareKeys(tt.a, tt.b, tt.asDecimal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := compareKeys("a", int64(1), false)
	assert.Error(t, err)
}
