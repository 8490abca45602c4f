// Package program encodes and decodes instructions for the confidential token
// program and the funding program.
package program

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrInvalidInstruction = errors.New("program: invalid instruction data")
	ErrUnknownInstruction = errors.New("program: unknown instruction")
	ErrEmptyCiphertext    = errors.New("program: empty ciphertext")
)

// Instruction names, as declared by the programs.
const (
	InitializeMintName    = "initialize_mint"
	InitializeAccountName = "initialize_account"
	MintToName            = "mint_to"
	TransferName          = "transfer"

	InitializeName = "initialize"
	DepositName    = "deposit"
	WithdrawName   = "withdraw"
)

// Discriminator returns the 8-byte instruction tag: the first bytes of
// sha256("global:<name>").
func Discriminator(name string) [8]byte {
	var d [8]byte
	sum := sha256.Sum256([]byte("global:" + name))
	copy(d[:], sum[:8])
	return d
}

var discriminators = func() map[[8]byte]string {
	m := make(map[[8]byte]string)
	for _, name := range []string{
		InitializeMintName, InitializeAccountName, MintToName, TransferName,
		InitializeName, DepositName, WithdrawName,
	} {
		m[Discriminator(name)] = name
	}
	return m
}()

// Name resolves the instruction name from its data prefix.
func Name(data []byte) (string, error) {
	if len(data) < 8 {
		return "", ErrInvalidInstruction
	}
	var d [8]byte
	copy(d[:], data)
	name, ok := discriminators[d]
	if !ok {
		return "", fmt.Errorf("%w: %x", ErrUnknownInstruction, d)
	}
	return name, nil
}

type encoder struct {
	buf bytes.Buffer
	enc *bin.Encoder
}

func newEncoder(name string) *encoder {
	e := new(encoder)
	e.enc = bin.NewBorshEncoder(&e.buf)
	d := Discriminator(name)
	e.enc.WriteBytes(d[:], false)
	return e
}

func (e *encoder) u8(v uint8) *encoder {
	e.enc.WriteUint8(v)
	return e
}

func (e *encoder) pubkey(pk solana.PublicKey) *encoder {
	e.enc.WriteBytes(pk[:], false)
	return e
}

func (e *encoder) optionPubkey(pk *solana.PublicKey) *encoder {
	if pk == nil {
		return e.u8(0)
	}
	return e.u8(1).pubkey(*pk)
}

// vec writes a borsh Vec<u8>: u32 little-endian length then the bytes.
func (e *encoder) vec(b []byte) *encoder {
	e.enc.WriteUint32(uint32(len(b)), binary.LittleEndian)
	e.enc.WriteBytes(b, false)
	return e
}

func (e *encoder) bytes() []byte { return e.buf.Bytes() }

type decoder struct {
	dec *bin.Decoder
}

func newDecoder(data []byte, name string) (*decoder, error) {
	got, err := Name(data)
	if err != nil {
		return nil, err
	}
	if got != name {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrInvalidInstruction, got, name)
	}
	d := &decoder{dec: bin.NewBorshDecoder(data)}
	if _, err := d.dec.ReadNBytes(8); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *decoder) u8() (uint8, error) {
	if d.dec.Remaining() < 1 {
		return 0, ErrInvalidInstruction
	}
	return d.dec.ReadUint8()
}

func (d *decoder) pubkey() (solana.PublicKey, error) {
	if d.dec.Remaining() < solana.PublicKeyLength {
		return solana.PublicKey{}, ErrInvalidInstruction
	}
	b, err := d.dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

func (d *decoder) optionPubkey() (*solana.PublicKey, error) {
	tag, err := d.u8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case 1:
		pk, err := d.pubkey()
		if err != nil {
			return nil, err
		}
		return &pk, nil
	default:
		return nil, fmt.Errorf("%w: option tag %d", ErrInvalidInstruction, tag)
	}
}

func (d *decoder) vec() ([]byte, error) {
	if d.dec.Remaining() < 4 {
		return nil, ErrInvalidInstruction
	}
	n, err := d.dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(d.dec.Remaining()) {
		return nil, fmt.Errorf("%w: vec of %d bytes, %d remaining", ErrInvalidInstruction, n, d.dec.Remaining())
	}
	return d.dec.ReadNBytes(int(n))
}

func (d *decoder) done() error {
	if d.dec.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidInstruction, d.dec.Remaining())
	}
	return nil
}
