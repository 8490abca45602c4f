package simledger

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/core/layout"
	"github.com/tos-network/incofund/core/program"
)

// maxValue is the largest plaintext an encrypted value can hold.
var maxValue = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

type allowKey struct {
	handle handle.Handle
	party  solana.PublicKey
}

// state is the mutable part of the ledger. Transactions execute against a
// copy which replaces the live state only when every instruction succeeds.
type state struct {
	accounts map[solana.PublicKey][]byte
	values   map[handle.Handle]*uint256.Int // plaintext behind every handle
	allowed  map[allowKey]struct{}
	counter  uint64 // handles issued so far

	fresh []handle.Handle // handles issued since the last commit
}

func newState() *state {
	return &state{
		accounts: make(map[solana.PublicKey][]byte),
		values:   make(map[handle.Handle]*uint256.Int),
		allowed:  make(map[allowKey]struct{}),
	}
}

func (s *state) copy() *state {
	cpy := &state{
		accounts: make(map[solana.PublicKey][]byte, len(s.accounts)),
		values:   make(map[handle.Handle]*uint256.Int, len(s.values)),
		allowed:  make(map[allowKey]struct{}, len(s.allowed)),
		counter:  s.counter,
	}
	for k, v := range s.accounts {
		cpy.accounts[k] = append([]byte(nil), v...)
	}
	// Values are never mutated in place.
	for k, v := range s.values {
		cpy.values[k] = v
	}
	for k := range s.allowed {
		cpy.allowed[k] = struct{}{}
	}
	return cpy
}

func (s *state) exists(pk solana.PublicKey) bool {
	return len(s.accounts[pk]) > 0
}

// issue allocates the next handle and records its plaintext. Handles are a
// function of the issue counter only, so executing the same transaction on
// the same state always yields the same handles.
func (s *state) issue(v *uint256.Int) handle.Handle {
	s.counter++
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], s.counter)
	sum := sha256.Sum256(append([]byte("simledger/handle/"), seed[:]...))
	h, _ := handle.FromBytes(sum[:handle.Size])
	s.values[h] = new(uint256.Int).Set(v)
	s.fresh = append(s.fresh, h)
	return h
}

// value returns the plaintext behind h. The zero handle reads as zero.
func (s *state) value(h handle.Handle) *uint256.Int {
	if v, ok := s.values[h]; ok {
		return v
	}
	return new(uint256.Int)
}

func (s *state) allow(h handle.Handle, party solana.PublicKey) {
	s.allowed[allowKey{h, party}] = struct{}{}
}

func (s *state) isAllowed(h handle.Handle, party solana.PublicKey) bool {
	_, ok := s.allowed[allowKey{h, party}]
	return ok
}

func (s *state) balance(pk solana.PublicKey) (*layout.BalanceAccount, error) {
	data := s.accounts[pk]
	if len(data) == 0 {
		return nil, fail(program.CodeAccountNotInitialized)
	}
	acc, err := layout.DecodeBalanceAccount(data)
	if err != nil {
		return nil, fail(program.CodeAccountDidNotDeserialize)
	}
	return acc, nil
}

func (s *state) mint(pk solana.PublicKey) (*layout.Mint, error) {
	data := s.accounts[pk]
	if len(data) == 0 {
		return nil, fail(program.CodeAccountNotInitialized)
	}
	m, err := layout.DecodeMint(data)
	if err != nil || !m.IsInitialized {
		return nil, fail(program.CodeInvalidMint)
	}
	return m, nil
}

func (s *state) funding(pk solana.PublicKey) (*layout.Funding, error) {
	data := s.accounts[pk]
	if len(data) == 0 {
		return nil, fail(program.CodeAccountNotInitialized)
	}
	f, err := layout.DecodeFunding(data)
	if err != nil {
		return nil, fail(program.CodeAccountDidNotDeserialize)
	}
	return f, nil
}

func addSaturating(a, b *uint256.Int) *uint256.Int {
	sum := new(uint256.Int).Add(a, b)
	if sum.Gt(maxValue) || sum.Lt(a) {
		return new(uint256.Int).Set(maxValue)
	}
	return sum
}

func subSaturating(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}
