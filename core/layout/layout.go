// Package layout decodes and encodes the raw account data of the confidential
// token program and the funding program.
package layout

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/params"
)

// ErrDecodeFailure is returned for truncated, mistagged or otherwise malformed
// account data.
var ErrDecodeFailure = errors.New("layout: decode failure")

// Account names used to derive discriminators.
const (
	MintAccountName    = "IncoMint"
	BalanceAccountName = "IncoAccount"
	FundingAccountName = "Funding"
)

var (
	MintDiscriminator    = AccountDiscriminator(MintAccountName)
	BalanceDiscriminator = AccountDiscriminator(BalanceAccountName)
	FundingDiscriminator = AccountDiscriminator(FundingAccountName)
)

// AccountDiscriminator returns the 8-byte tag prefixed to account data of the
// named type: the first bytes of sha256("account:<name>").
func AccountDiscriminator(name string) [8]byte {
	var d [8]byte
	sum := sha256.Sum256([]byte("account:" + name))
	copy(d[:], sum[:8])
	return d
}

// Kind identifies account data by its discriminator.
func Kind(data []byte) (string, bool) {
	if len(data) < params.DiscriminatorSize {
		return "", false
	}
	var d [8]byte
	copy(d[:], data)
	switch d {
	case MintDiscriminator:
		return MintAccountName, true
	case BalanceDiscriminator:
		return BalanceAccountName, true
	case FundingDiscriminator:
		return FundingAccountName, true
	}
	return "", false
}

// BalanceHandle extracts the encrypted amount handle of a balance account.
// An empty payload reports the account as absent.
func BalanceHandle(data []byte) (handle.Handle, bool, error) {
	return handleAt(data, params.BalanceHandleOffset)
}

// FundingTotalHandle extracts the encrypted running total of a funding
// campaign account. An empty payload reports the account as absent.
func FundingTotalHandle(data []byte) (handle.Handle, bool, error) {
	return handleAt(data, params.FundingTotalOffset)
}

func handleAt(data []byte, offset int) (handle.Handle, bool, error) {
	if len(data) == 0 {
		return handle.Zero, false, nil
	}
	if len(data) < offset+handle.Size {
		return handle.Handle{}, false, fmt.Errorf("%w: %d bytes, handle at %d", ErrDecodeFailure, len(data), offset)
	}
	h, err := handle.FromBytes(data[offset : offset+handle.Size])
	if err != nil {
		return handle.Handle{}, false, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return h, true, nil
}

// DecodeBase64 decodes a base64 account snapshot as returned over RPC.
func DecodeBase64(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return data, nil
}

// DecodeBase64Handle decodes a base64 balance account snapshot straight to
// its amount handle.
func DecodeBase64Handle(encoded string) (handle.Handle, bool, error) {
	data, err := DecodeBase64(encoded)
	if err != nil {
		return handle.Handle{}, false, err
	}
	return BalanceHandle(data)
}

// reader wraps a borsh decoder and latches the first error.
type reader struct {
	dec *bin.Decoder
	err error
}

func newReader(data []byte, disc [8]byte) *reader {
	r := &reader{dec: bin.NewBorshDecoder(data)}
	tag := r.bytes(params.DiscriminatorSize)
	if r.err == nil && !bytes.Equal(tag, disc[:]) {
		r.err = fmt.Errorf("%w: discriminator %x", ErrDecodeFailure, tag)
	}
	return r
}

func (r *reader) fail(err error) {
	if r.err == nil && err != nil {
		r.err = fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.dec.Remaining() < n {
		r.fail(fmt.Errorf("need %d bytes, have %d", n, r.dec.Remaining()))
		return nil
	}
	b, err := r.dec.ReadNBytes(n)
	r.fail(err)
	return b
}

func (r *reader) pubkey() solana.PublicKey {
	return solana.PublicKeyFromBytes(pad(r.bytes(solana.PublicKeyLength), solana.PublicKeyLength))
}

func (r *reader) handle() handle.Handle {
	b := r.bytes(handle.Size)
	if r.err != nil {
		return handle.Handle{}
	}
	h, err := handle.FromBytes(b)
	r.fail(err)
	return h
}

func (r *reader) u8() uint8 {
	b := r.bytes(1)
	if r.err != nil {
		return 0
	}
	return b[0]
}

func (r *reader) boolean() bool {
	switch v := r.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail(fmt.Errorf("invalid bool %d", v))
		return false
	}
}

func (r *reader) u64() uint64 {
	b := r.bytes(8)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) i64() int64 {
	return int64(r.u64())
}

func (r *reader) optionPubkey() *solana.PublicKey {
	if !r.boolean() {
		return nil
	}
	pk := r.pubkey()
	if r.err != nil {
		return nil
	}
	return &pk
}

func (r *reader) optionU64() *uint64 {
	if !r.boolean() {
		return nil
	}
	v := r.u64()
	if r.err != nil {
		return nil
	}
	return &v
}

func pad(b []byte, n int) []byte {
	if len(b) == n {
		return b
	}
	return make([]byte, n)
}

// writer wraps a borsh encoder over an in-memory buffer.
type writer struct {
	buf bytes.Buffer
	enc *bin.Encoder
}

func newWriter(disc [8]byte) *writer {
	w := new(writer)
	w.enc = bin.NewBorshEncoder(&w.buf)
	w.raw(disc[:])
	return w
}

// Writes to a bytes.Buffer cannot fail.
func (w *writer) raw(b []byte) { w.enc.WriteBytes(b, false) }
func (w *writer) pubkey(pk solana.PublicKey) { w.raw(pk[:]) }
func (w *writer) u8(v uint8) { w.enc.WriteUint8(v) }
func (w *writer) u64(v uint64) { w.enc.WriteUint64(v, binary.LittleEndian) }
func (w *writer) i64(v int64) { w.enc.WriteInt64(v, binary.LittleEndian) }
func (w *writer) handle(h handle.Handle) {
	b := h.Bytes()
	w.raw(b[:])
}

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) optionPubkey(pk *solana.PublicKey) {
	w.boolean(pk != nil)
	if pk != nil {
		w.pubkey(*pk)
	}
}

func (w *writer) optionU64(v *uint64) {
	w.boolean(v != nil)
	if v != nil {
		w.u64(*v)
	}
}

func (w *writer) bytes() []byte { return w.buf.Bytes() }
