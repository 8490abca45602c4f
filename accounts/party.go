// Package accounts manages the ed25519 identities (parties) that sign
// transactions and decryption requests.
package accounts

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

var (
	ErrMissingSigner  = errors.New("accounts: missing signer key")
	ErrInvalidKeySize = errors.New("accounts: invalid private key size")
)

// Party is a named keypair. It signs transactions and attested decryption
// requests, and is the principal that allowance records grant access to.
type Party struct {
	Id   uuid.UUID
	Name string
	key  solana.PrivateKey
}

// NewParty wraps an existing 64-byte ed25519 private key.
func NewParty(name string, key solana.PrivateKey) (*Party, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeySize, len(key))
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return &Party{Id: id, Name: name, key: key}, nil
}

// GenerateParty creates a party with a fresh random key.
func GenerateParty(name string) (*Party, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return NewParty(name, key)
}

// PartyFromSeed derives a party from a 32-byte ed25519 seed.
func PartyFromSeed(name string, seed []byte) (*Party, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes", ErrInvalidKeySize, len(seed))
	}
	return NewParty(name, solana.PrivateKey(ed25519.NewKeyFromSeed(seed)))
}

// PartyFromBase58 decodes a base58 encoded 64-byte private key.
func PartyFromBase58(name, encoded string) (*Party, error) {
	key, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, err
	}
	return NewParty(name, key)
}

func (p *Party) PublicKey() solana.PublicKey {
	return p.key.PublicKey()
}

func (p *Party) PrivateKey() solana.PrivateKey {
	return p.key
}

// SignMessage signs an arbitrary message with the party key.
func (p *Party) SignMessage(msg []byte) ([]byte, error) {
	sig, err := p.key.Sign(msg)
	if err != nil {
		return nil, err
	}
	return sig[:], nil
}

func (p *Party) String() string {
	if p.Name == "" {
		return p.PublicKey().String()
	}
	return fmt.Sprintf("%s(%s)", p.Name, p.PublicKey())
}
