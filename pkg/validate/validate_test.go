package validate_test

import (
	"testing"

	"github.com/Maruda-Patryk/api-library/pkg/validate"
	"github.com/stretchr/testify/require"
)

func TestSixDigits(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"654321", true},
		{"000000", true},
		{"12345", false},
		{"1234567", false},
		{"abc123", false},
		{"-12345", false},
		{"12 456", false},
		{"١٢٣٤٥٦", false},
		{"", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, validate.SixDigits(tt.in), tt.in)
	}
}

func TestCustomValidator_Struct(t *testing.T) {
	type req struct {
		SerialNumber string `validate:"required,sixdigits"`
		Title        string `validate:"required,max=255"`
	}
	v := validate.NewCustomValidator()

	require.NoError(t, v.Validate(req{SerialNumber: "123456", Title: "Lalka"}))
	require.Error(t, v.Validate(req{SerialNumber: "12a456", Title: "Lalka"}))
	require.Error(t, v.Validate(req{SerialNumber: "123456"}))
}
