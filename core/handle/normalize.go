package handle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Kind enumerates the representations a handle can arrive in from loosely
// typed sources (account decoders, RPC results, JSON fixtures).
type Kind uint8

const (
	KindNumeric   Kind = iota // native unsigned integer
	KindDecimal               // decimal (or 0x hex) string
	KindBigNumber             // arbitrary precision integer
	KindBytes                 // little-endian byte array, at most 16 bytes
	KindWrapped               // single-field wrapper around another value
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindDecimal:
		return "decimal"
	case KindBigNumber:
		return "bignumber"
	case KindBytes:
		return "bytes"
	case KindWrapped:
		return "wrapped"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// maxWrapDepth bounds nested wrappers.
const maxWrapDepth = 8

// Value is a tagged union over the accepted handle representations. Only the
// field matching Kind is consulted.
type Value struct {
	Kind    Kind
	Numeric uint64
	Text    string
	Big     *big.Int
	Bytes   []byte
	Inner   *Value
}

func Numeric(x uint64) Value     { return Value{Kind: KindNumeric, Numeric: x} }
func Decimal(s string) Value     { return Value{Kind: KindDecimal, Text: s} }
func BigNumber(b *big.Int) Value { return Value{Kind: KindBigNumber, Big: b} }
func Bytes(b []byte) Value       { return Value{Kind: KindBytes, Bytes: b} }
func Wrapped(v Value) Value      { return Value{Kind: KindWrapped, Inner: &v} }

// Normalize converts any accepted representation into a Handle.
func Normalize(v Value) (Handle, error) {
	return normalize(v, 0)
}

func normalize(v Value, depth int) (Handle, error) {
	switch v.Kind {
	case KindNumeric:
		return FromUint64(v.Numeric), nil
	case KindDecimal:
		var h Handle
		if err := h.UnmarshalText([]byte(strings.TrimSpace(v.Text))); err != nil {
			return Handle{}, err
		}
		return h, nil
	case KindBigNumber:
		return FromBig(v.Big)
	case KindBytes:
		if len(v.Bytes) > Size {
			return Handle{}, fmt.Errorf("%w: %d", ErrInvalidLength, len(v.Bytes))
		}
		var buf [Size]byte
		copy(buf[:], v.Bytes)
		return FromBytes(buf[:])
	case KindWrapped:
		if v.Inner == nil || depth >= maxWrapDepth {
			return Handle{}, fmt.Errorf("%w: bad wrapper", ErrUnsupported)
		}
		return normalize(*v.Inner, depth+1)
	default:
		return Handle{}, fmt.Errorf("%w: %v", ErrUnsupported, v.Kind)
	}
}

// ParseJSON classifies a JSON value into a Value. Numbers and strings become
// decimal text, arrays of bytes become little-endian byte values, and objects
// holding a single "_bn" or "0" field become wrappers.
func ParseJSON(raw json.RawMessage) (Value, error) {
	return parseJSON(raw, 0)
}

func parseJSON(raw json.RawMessage, depth int) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Value{}, fmt.Errorf("%w: empty value", ErrUnsupported)
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		return Decimal(s), nil
	case '[':
		var elems []uint16
		if err := json.Unmarshal(raw, &elems); err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		b := make([]byte, len(elems))
		for i, e := range elems {
			if e > 0xff {
				return Value{}, fmt.Errorf("%w: byte %d out of range", ErrUnsupported, i)
			}
			b[i] = byte(e)
		}
		return Bytes(b), nil
	case '{':
		if depth >= maxWrapDepth {
			return Value{}, fmt.Errorf("%w: nesting too deep", ErrUnsupported)
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Value{}, err
		}
		for _, key := range []string{"_bn", "0"} {
			if inner, ok := obj[key]; ok {
				v, err := parseJSON(inner, depth+1)
				if err != nil {
					return Value{}, err
				}
				return Wrapped(v), nil
			}
		}
		return Value{}, fmt.Errorf("%w: object without value field", ErrUnsupported)
	default:
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return Decimal(n.String()), nil
	}
}

// FromJSON parses and normalizes a JSON-encoded handle.
func FromJSON(raw json.RawMessage) (Handle, error) {
	v, err := ParseJSON(raw)
	if err != nil {
		return Handle{}, err
	}
	return Normalize(v)
}
