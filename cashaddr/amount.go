package cashaddr

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// MaxSats is the total BCH supply in satoshis. No single output can
// require more than this.
const MaxSats = int64(21_000_000) * 100_000_000

// ParseAmount parses a satoshi amount expressed either as a decimal
// string or as a 0x-prefixed hex string, range-checking it against the
// total supply. The wide intermediate catches values that would wrap a
// 64-bit parse.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	var v *uint256.Int
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = uint256.FromHex(strings.ToLower(s))
	} else {
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	if !v.IsUint64() || v.Uint64() > uint64(MaxSats) {
		return 0, fmt.Errorf("amount %q exceeds the total supply of %d satoshis", s, MaxSats)
	}
	return int64(v.Uint64()), nil
}
