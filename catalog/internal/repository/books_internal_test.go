package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockTimeoutSetting(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 5 * time.Second, want: "5000ms"},
		{in: 1500 * time.Microsecond, want: "1ms"},
		{in: 500 * time.Microsecond, want: "1ms"},
		{in: time.Nanosecond, want: "1ms"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, lockTimeoutSetting(tt.in), tt.in.String())
	}
}
