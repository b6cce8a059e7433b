// Package cashaddr normalizes recipient and value inputs at the
// compiler boundary. Recipients may arrive either as a raw 20-byte hash
// (hex, optionally 0x-prefixed) or as a CashAddr string; both are
// reduced to the raw public-key hash the generated source embeds.
package cashaddr

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// knownPrefixes are tried in order when an address arrives without its
// network prefix.
var knownPrefixes = []string{"bitcoincash", "bchtest", "bchreg"}

var charsetRev [128]int8

func init() {
	for i := range charsetRev {
		charsetRev[i] = -1
	}
	for i, c := range charset {
		charsetRev[c] = int8(i)
	}
}

// DecodeRecipientHash normalizes a recipient identifier to its raw
// 20-byte hash. Errors are descriptive and reach the caller verbatim.
func DecodeRecipientHash(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty recipient")
	}

	if isHex(strings.TrimPrefix(s, "0x")) {
		raw := strings.TrimPrefix(s, "0x")
		b, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient hex: %w", err)
		}
		if len(b) != 20 {
			return nil, fmt.Errorf("recipient hash must be 20 bytes, got %d", len(b))
		}
		return b, nil
	}

	return decodeAddress(s)
}

// decodeAddress decodes a CashAddr string into its 20-byte P2PKH hash.
// Pay-to-script-hash addresses and payloads of any other size are
// rejected: the generated templates only embed P2PKH locking bytecode.
func decodeAddress(addr string) ([]byte, error) {
	if addr != strings.ToLower(addr) && addr != strings.ToUpper(addr) {
		return nil, fmt.Errorf("invalid address: mixed case")
	}
	addr = strings.ToLower(addr)

	var prefixes []string
	payload := addr
	if i := strings.IndexByte(addr, ':'); i >= 0 {
		prefixes = []string{addr[:i]}
		payload = addr[i+1:]
	} else {
		prefixes = knownPrefixes
	}

	values := make([]byte, len(payload))
	for i := 0; i < len(payload); i++ {
		c := payload[i]
		if c >= 128 || charsetRev[c] < 0 {
			return nil, fmt.Errorf("invalid address character %q", rune(c))
		}
		values[i] = byte(charsetRev[c])
	}
	if len(values) < 9 {
		return nil, fmt.Errorf("address too short")
	}

	var matched bool
	for _, p := range prefixes {
		if polyMod(append(expandPrefix(p), values...)) == 0 {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("invalid address checksum")
	}

	data, err := convertBits(values[:len(values)-8], 5, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid address payload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("invalid address: empty payload")
	}

	version := data[0]
	hash := data[1:]
	if version&0x80 != 0 {
		return nil, fmt.Errorf("invalid address version byte 0x%02x", version)
	}
	if addrType := (version >> 3) & 0x0f; addrType != 0 {
		return nil, fmt.Errorf("unsupported address type %d: only P2PKH recipients are supported", addrType)
	}
	if len(hash) != 20 {
		return nil, fmt.Errorf("address payload must be 20 bytes, got %d", len(hash))
	}
	return hash, nil
}

// polyMod is the 40-bit BCH checksum over 5-bit symbols defined by the
// CashAddr specification. A valid address yields zero.
func polyMod(values []byte) uint64 {
	c := uint64(1)
	for _, d := range values {
		c0 := c >> 35
		c = ((c & 0x07ffffffff) << 5) ^ uint64(d)
		if c0&0x01 != 0 {
			c ^= 0x98f2bc8e61
		}
		if c0&0x02 != 0 {
			c ^= 0x79b76d99e2
		}
		if c0&0x04 != 0 {
			c ^= 0xf33e5fb3c4
		}
		if c0&0x08 != 0 {
			c ^= 0xae2eabe2a8
		}
		if c0&0x10 != 0 {
			c ^= 0x1e4f43e470
		}
	}
	return c ^ 1
}

// expandPrefix maps the network prefix to its checksum representation:
// the low five bits of each character followed by a zero separator.
func expandPrefix(prefix string) []byte {
	out := make([]byte, len(prefix)+1)
	for i := 0; i < len(prefix); i++ {
		out[i] = prefix[i] & 0x1f
	}
	out[len(prefix)] = 0
	return out
}

// convertBits regroups the symbol stream from fromBits to toBits wide
// groups, rejecting non-zero padding.
func convertBits(data []byte, fromBits, toBits uint) ([]byte, error) {
	var acc uint32
	var bits uint
	var out []byte
	maxv := uint32(1<<toBits) - 1
	for _, v := range data {
		if uint(v)>>fromBits != 0 {
			return nil, fmt.Errorf("symbol %d out of range", v)
		}
		acc = acc<<fromBits | uint32(v)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			out = append(out, byte(acc>>bits&maxv))
		}
	}
	if bits >= fromBits || acc<<(toBits-bits)&maxv != 0 {
		return nil, fmt.Errorf("non-zero padding")
	}
	return out, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	// Even length keeps hex.DecodeString happy; odd-length strings are
	// treated as malformed hex rather than an address.
	return len(s)%2 == 0
}
