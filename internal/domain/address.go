package domain

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// WrappedSOL is the mint address of the native wrapped quote asset.
const WrappedSOL = "So11111111111111111111111111111111111111112"

// ValidateTokenAddress checks that the given string is a plausible SPL token
// mint: base58-decodable to exactly 32 bytes.
func ValidateTokenAddress(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, addr, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: %q: decoded to %d bytes, want 32", ErrInvalidAddress, addr, len(raw))
	}
	return nil
}
