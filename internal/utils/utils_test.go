package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test_ValidateCurrency tests currency code validation
func Test_ValidateCurrency(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		wantErr     error
		description string
	}{
		{
			name:        "Valid upper-case code",
			code:        "USD",
			description: "Should accept the reference currency",
		},
		{
			name:        "Valid lower-case code",
			code:        "eur",
			description: "Should accept case-insensitively",
		},
		{
			name:        "Valid mixed-case code",
			code:        "Gbp",
			description: "Should accept mixed case",
		},
		{
			name:        "Empty code",
			code:        "",
			wantErr:     ErrEmptyCurrency,
			description: "Should reject empty code",
		},
		{
			name:        "Unsupported code",
			code:        "CHF",
			wantErr:     ErrUnsupportedCurrency,
			description: "Should reject unsupported currency",
		},
		{
			name:        "Malformed code",
			code:        "DOLLARS",
			wantErr:     ErrUnsupportedCurrency,
			description: "Should reject non-3-letter code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCurrency(tt.code)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr, tt.description)
			} else {
				assert.NoError(t, err, tt.description)
			}
		})
	}
}

// Test_NormalizeCurrency tests canonicalization of currency codes
func Test_NormalizeCurrency(t *testing.T) {
	normalized, err := NormalizeCurrency("jpy")
	assert.NoError(t, err)
	assert.Equal(t, "JPY", normalized, "Should upper-case the code")

	_, err = NormalizeCurrency("XYZ")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

// Test_ParseLimit tests top-N limit parsing
func Test_ParseLimit(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		def         int
		want        int
		wantErr     error
		description string
	}{
		{
			name:        "Empty uses default",
			raw:         "",
			def:         10,
			want:        10,
			description: "Should fall back to default",
		},
		{
			name:        "Explicit value",
			raw:         "25",
			def:         10,
			want:        25,
			description: "Should parse explicit limit",
		},
		{
			name:        "Zero is valid",
			raw:         "0",
			def:         10,
			want:        0,
			description: "Should allow zero limit",
		},
		{
			name:        "Negative rejected",
			raw:         "-1",
			def:         10,
			wantErr:     ErrInvalidLimit,
			description: "Should reject negative limit",
		},
		{
			name:        "Non-integer rejected",
			raw:         "ten",
			def:         10,
			wantErr:     ErrInvalidLimit,
			description: "Should reject non-integer limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLimit(tt.raw, tt.def)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr, tt.description)
				return
			}

			assert.NoError(t, err, tt.description)
			assert.Equal(t, tt.want, got, tt.description)
		})
	}
}
