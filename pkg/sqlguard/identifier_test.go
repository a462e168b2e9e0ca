package sqlguard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/apperrors"
)

func TestCheckIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		wantReason string
	}{
		{name: "plain table", identifier: "t_order"},
		{name: "schema qualified", identifier: "public.t_order"},
		{name: "mixed case", identifier: "OrderItems"},
		{name: "empty", identifier: "", wantReason: "empty"},
		{name: "too long", identifier: strings.Repeat("a", MaxIdentifierLength+1), wantReason: "too long"},
		{name: "control character", identifier: "t\x00order", wantReason: "control character"},
		{name: "tautology", identifier: "' OR '1'='1", wantReason: "SQL injection pattern"},
		{name: "stacked statement", identifier: "'; DROP TABLE users--", wantReason: "SQL injection pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CheckIdentifier("table", tt.identifier)
			if tt.wantReason == "" {
				assert.Nil(t, res)
				return
			}
			require.NotNil(t, res)
			assert.Equal(t, tt.wantReason, res.Reason)
		})
	}
}

func TestValidateIdentifiers(t *testing.T) {
	require.NoError(t, ValidateIdentifiers("column", []string{"id", "order_id"}))

	err := ValidateIdentifiers("column", []string{"id", "admin'--"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "admin'--")
}
