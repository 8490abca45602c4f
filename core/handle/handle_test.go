package handle

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"
)

func TestBytesRoundtrip(t *testing.T) {
	for _, h := range []Handle{
		Zero,
		FromUint64(1),
		FromUint64(0xdeadbeef),
		MustFromDecimal("18446744073709551616"), // 2^64
		Max(),
	} {
		b := h.Bytes()
		got, err := FromBytes(b[:])
		if err != nil {
			t.Fatalf("FromBytes(%s): %v", h, err)
		}
		if got != h {
			t.Fatalf("roundtrip mismatch: have %s want %s", got, h)
		}
	}
}

func TestBytesLittleEndian(t *testing.T) {
	b := FromUint64(0x0102).Bytes()
	if b[0] != 0x02 || b[1] != 0x01 {
		t.Fatalf("not little-endian: %x", b)
	}
	for _, x := range b[2:] {
		if x != 0 {
			t.Fatalf("unexpected high bytes: %x", b)
		}
	}
	max := Max().Bytes()
	for i, x := range max {
		if x != 0xff {
			t.Fatalf("byte %d of max handle is %x", i, x)
		}
	}
}

func TestDecimal(t *testing.T) {
	const maxDec = "340282366920938463463374607431768211455"
	h, err := FromDecimal(maxDec)
	if err != nil {
		t.Fatal(err)
	}
	if h != Max() || h.String() != maxDec {
		t.Fatalf("max handle mismatch: %s", h)
	}
	if _, err := FromDecimal("340282366920938463463374607431768211456"); !errors.Is(err, ErrOverflow) {
		t.Fatalf("want overflow, got %v", err)
	}
	if _, err := FromDecimal("-1"); !errors.Is(err, ErrNegative) {
		t.Fatalf("want negative, got %v", err)
	}
	if _, err := FromDecimal("12ab"); !errors.Is(err, ErrSyntax) {
		t.Fatalf("want syntax error, got %v", err)
	}
}

func TestFromBytesLength(t *testing.T) {
	if _, err := FromBytes(make([]byte, 15)); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("want invalid length, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	want := MustFromDecimal("123456789012345678901234567890")
	wb := want.Bytes()
	cases := []struct {
		name string
		in   Value
	}{
		{"decimal", Decimal(want.String())},
		{"bignumber", BigNumber(want.Big())},
		{"bytes", Bytes(wb[:])},
		{"wrapped", Wrapped(Wrapped(Decimal(want.String())))},
	}
	for _, c := range cases {
		got, err := Normalize(c.in)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got != want {
			t.Fatalf("%s: have %s want %s", c.name, got, want)
		}
	}
	if got, _ := Normalize(Numeric(42)); got != FromUint64(42) {
		t.Fatalf("numeric: have %s", got)
	}
	// Short byte arrays are zero-extended.
	if got, _ := Normalize(Bytes([]byte{0x01, 0x01})); got != FromUint64(257) {
		t.Fatalf("short bytes: have %s", got)
	}
}

func TestNormalizeRejects(t *testing.T) {
	deep := Decimal("1")
	for i := 0; i <= maxWrapDepth; i++ {
		deep = Wrapped(deep)
	}
	for name, v := range map[string]Value{
		"long bytes":   Bytes(make([]byte, 17)),
		"nil big":      BigNumber(nil),
		"negative big": BigNumber(big.NewInt(-1)),
		"empty wrap":   {Kind: KindWrapped},
		"deep wrap":    deep,
		"unknown":      {Kind: Kind(99)},
	} {
		if _, err := Normalize(v); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestFromJSON(t *testing.T) {
	cases := map[string]Handle{
		`42`:                      FromUint64(42),
		`"42"`:                    FromUint64(42),
		`"0x2a"`:                  FromUint64(42),
		`[42, 0, 0]`:              FromUint64(42),
		`{"_bn": "42"}`:           FromUint64(42),
		`{"0": {"_bn": [42, 0]}}`: FromUint64(42),
		`"340282366920938463463374607431768211455"`: Max(),
	}
	for in, want := range cases {
		got, err := FromJSON(json.RawMessage(in))
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got != want {
			t.Fatalf("%s: have %s want %s", in, got, want)
		}
	}
	for _, in := range []string{`null`, `true`, `{"x": 1}`, `[256]`, `1.5`, `-3`} {
		if _, err := FromJSON(json.RawMessage(in)); err == nil {
			t.Fatalf("%s: expected error", in)
		}
	}
}

func TestTextMarshaling(t *testing.T) {
	type doc struct {
		H Handle `json:"h"`
	}
	out, err := json.Marshal(doc{H: FromUint64(7)})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"h":"7"}` {
		t.Fatalf("unexpected encoding %s", out)
	}
	var back doc
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back.H != FromUint64(7) {
		t.Fatalf("decoded %s", back.H)
	}
}
