package repositories

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeKey(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC)
	tests := []struct {
		name string
		in   any
		kind KeyKind
		want any
	}{
		{name: "int32 widens", in: int32(42), kind: KeyKindInt, want: int64(42)},
		{name: "negative int64", in: int64(-7), kind: KeyKindInt, want: int64(-7)},
		{name: "float", in: 2.5, kind: KeyKindFloat, want: 2.5},
		{name: "string", in: "order-0009", kind: KeyKindString, want: "order-0009"},
		{name: "bytes", in: []byte{0x00, 0xff}, kind: KeyKindBytes, want: []byte{0x00, 0xff}},
		{name: "time", in: ts, kind: KeyKindTime, want: ts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, text, err := EncodeKey(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)

			got, err := DecodeKey(kind, text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeDecodeKey_Decimal(t *testing.T) {
	kind, text, err := EncodeKey(decimal.RequireFromString("12345678901234567890.125"))
	require.NoError(t, err)
	assert.Equal(t, KeyKindDecimal, kind)

	got, err := DecodeKey(kind, text)
	require.NoError(t, err)
	d, ok := got.(decimal.Decimal)
	require.True(t, ok)
	assert.Equal(t, "12345678901234567890.125", d.String())
}

func TestEncodeKey_Unsupported(t *testing.T) {
	_, _, err := EncodeKey(struct{}{})
	assert.Error(t, err)

	_, err = DecodeKey("uuid", "x")
	assert.Error(t, err)
}
