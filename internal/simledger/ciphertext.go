package simledger

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"

	"github.com/holiman/uint256"
	"github.com/tos-network/incofund/params"
)

// CiphertextSize is the length of a simulated ciphertext: a 16-byte
// little-endian plaintext followed by 16 bytes of randomness.
const CiphertextSize = 32

var errBadCiphertext = errors.New("simledger: malformed ciphertext")

// Encrypt produces a ciphertext for amount. Two encryptions of the same
// amount differ.
func Encrypt(amount uint64) []byte {
	ct := make([]byte, CiphertextSize)
	binary.LittleEndian.PutUint64(ct[:8], amount)
	if _, err := rand.Read(ct[16:]); err != nil {
		panic("simledger: entropy source failed: " + err.Error())
	}
	return ct
}

func decrypt(ct []byte, inputType uint8) (*uint256.Int, error) {
	if len(ct) != CiphertextSize || inputType != params.InputType {
		return nil, errBadCiphertext
	}
	v := new(uint256.Int)
	v[0] = binary.LittleEndian.Uint64(ct[:8])
	v[1] = binary.LittleEndian.Uint64(ct[8:16])
	return v, nil
}

// Encryptor implements the encryption service against the simulated
// ciphertext format.
type Encryptor struct{}

func (Encryptor) Encrypt(ctx context.Context, amount uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Encrypt(amount), nil
}
