// Package handle implements the 128-bit opaque identifiers that reference
// encrypted values held by the confidential compute program.
package handle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Size is the encoded length of a handle.
const Size = 16

var (
	ErrOverflow      = errors.New("handle: value exceeds 128 bits")
	ErrNegative      = errors.New("handle: negative value")
	ErrInvalidLength = errors.New("handle: invalid byte length")
	ErrSyntax        = errors.New("handle: invalid number syntax")
	ErrUnsupported   = errors.New("handle: unsupported representation")
)

// Handle is an unsigned 128-bit integer. The zero handle doubles as the
// "no encrypted value yet" marker of a freshly initialized balance account.
// Handles are comparable with ==.
type Handle struct {
	v uint256.Int
}

// Zero is the zero handle.
var Zero Handle

// FromUint64 returns the handle with numeric value x.
func FromUint64(x uint64) Handle {
	var h Handle
	h.v.SetUint64(x)
	return h
}

// FromBytes decodes a 16-byte little-endian handle.
func FromBytes(b []byte) (Handle, error) {
	if len(b) != Size {
		return Handle{}, fmt.Errorf("%w: %d", ErrInvalidLength, len(b))
	}
	var h Handle
	h.v[0] = binary.LittleEndian.Uint64(b[:8])
	h.v[1] = binary.LittleEndian.Uint64(b[8:])
	return h, nil
}

// FromDecimal parses a base-10 handle string.
func FromDecimal(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return Handle{}, ErrNegative
	}
	u, err := uint256.FromDecimal(s)
	if err != nil {
		if errors.Is(err, uint256.ErrBig256Range) {
			return Handle{}, ErrOverflow
		}
		return Handle{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	return fromUint256(u)
}

// FromHex parses a 0x-prefixed big-endian hex handle string.
func FromHex(s string) (Handle, error) {
	u, err := uint256.FromHex(strings.TrimSpace(s))
	if err != nil {
		if errors.Is(err, uint256.ErrBig256Range) {
			return Handle{}, ErrOverflow
		}
		return Handle{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	return fromUint256(u)
}

// MustFromDecimal is like FromDecimal but panics on error.
func MustFromDecimal(s string) Handle {
	h, err := FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return h
}

// FromBig converts a non-negative big integer.
func FromBig(b *big.Int) (Handle, error) {
	if b == nil {
		return Handle{}, ErrUnsupported
	}
	if b.Sign() < 0 {
		return Handle{}, ErrNegative
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return Handle{}, ErrOverflow
	}
	return fromUint256(u)
}

func fromUint256(u *uint256.Int) (Handle, error) {
	if u[2] != 0 || u[3] != 0 {
		return Handle{}, ErrOverflow
	}
	return Handle{v: *u}, nil
}

// Max returns 2^128-1, the largest representable handle.
func Max() Handle {
	var h Handle
	h.v[0], h.v[1] = ^uint64(0), ^uint64(0)
	return h
}

// Bytes returns the 16-byte little-endian encoding used in account data and
// address derivation seeds.
func (h Handle) Bytes() [Size]byte {
	var out [Size]byte
	binary.LittleEndian.PutUint64(out[:8], h.v[0])
	binary.LittleEndian.PutUint64(out[8:], h.v[1])
	return out
}

// Big returns the handle as a new big integer.
func (h Handle) Big() *big.Int {
	return h.v.ToBig()
}

// Uint64 returns the low 64 bits and whether the value fits.
func (h Handle) Uint64() (uint64, bool) {
	return h.v[0], h.v[1] == 0
}

func (h Handle) IsZero() bool {
	return h.v.IsZero()
}

// Cmp compares h and o, returning -1, 0 or +1.
func (h Handle) Cmp(o Handle) int {
	return h.v.Cmp(&o.v)
}

// String returns the decimal representation, the form handles take in logs
// and decryption requests.
func (h Handle) String() string {
	return h.v.Dec()
}

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts decimal and
// 0x-prefixed hex.
func (h *Handle) UnmarshalText(input []byte) error {
	s := string(input)
	var (
		dec Handle
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		dec, err = FromHex(s)
	} else {
		dec, err = FromDecimal(s)
	}
	if err != nil {
		return err
	}
	*h = dec
	return nil
}
