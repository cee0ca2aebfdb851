package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTokenAddress(t *testing.T) {
	tests := []struct {
		name string
		addr string
		ok   bool
	}{
		{"wrapped sol", WrappedSOL, true},
		{"usdc mint", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", true},
		{"empty", "", false},
		{"not base58", "0x0000000000000000000000000000000000000000", false},
		{"too short", "abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTokenAddress(tt.addr)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidAddress)
			}
		})
	}
}

func TestPositionOpen(t *testing.T) {
	assert.True(t, Position{Balance: 0.0001}.Open())
	assert.False(t, Position{Balance: 0}.Open())
}
