package attest

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// FormatAmount renders a decimal base-unit plaintext with the given number of
// decimals, e.g. "100000000000" with 9 decimals is "100.000000000".
func FormatAmount(plaintext string, decimals uint8) (string, error) {
	v, err := uint256.FromDecimal(strings.TrimSpace(plaintext))
	if err != nil {
		return "", fmt.Errorf("attest: invalid plaintext %q: %w", plaintext, err)
	}
	if decimals == 0 {
		return v.Dec(), nil
	}
	if decimals > 38 {
		return "", fmt.Errorf("attest: unsupported precision %d", decimals)
	}
	unit := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	quo, rem := new(uint256.Int), new(uint256.Int)
	quo.DivMod(v, unit, rem)
	frac := rem.Dec()
	return quo.Dec() + "." + strings.Repeat("0", int(decimals)-len(frac)) + frac, nil
}

// ParseAmount converts a token amount such as "10.5" into base units. At most
// decimals fractional digits are accepted.
func ParseAmount(s string, decimals uint8) (uint64, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, fmt.Errorf("attest: invalid amount %q", s)
	}
	if len(frac) > int(decimals) {
		return 0, fmt.Errorf("attest: amount %q exceeds %d decimals", s, decimals)
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("attest: invalid amount %q", s)
		}
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return 0, nil
	}
	v, err := uint256.FromDecimal(digits)
	if err != nil {
		return 0, fmt.Errorf("attest: invalid amount %q: %w", s, err)
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("attest: amount %q overflows", s)
	}
	return v.Uint64(), nil
}
