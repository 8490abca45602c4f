// Package derive computes the program derived addresses used by the funding
// client: allowance records, funding campaigns and campaign vaults.
package derive

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/params"
)

var (
	// ErrInvalidSeedLength is returned when a raw seed has the wrong size.
	ErrInvalidSeedLength = errors.New("derive: invalid seed length")

	// ErrNoAddress is returned when no bump yields an off-curve address.
	ErrNoAddress = errors.New("derive: no viable program address")
)

// Address is a derived address together with the bump seed that produced it.
type Address struct {
	Key  solana.PublicKey
	Bump uint8
}

// AllowanceAddress derives the allowance record address granting party
// allowed access to the value behind h, under the confidential compute
// program.
func AllowanceAddress(h handle.Handle, allowed solana.PublicKey) (Address, error) {
	return AllowanceAddressIn(params.IncoLightningProgramID, h, allowed)
}

// AllowanceAddressIn is AllowanceAddress for a custom program id.
func AllowanceAddressIn(programID solana.PublicKey, h handle.Handle, allowed solana.PublicKey) (Address, error) {
	hb := h.Bytes()
	return find(programID, hb[:], allowed[:])
}

// AllowanceAddressFromBytes derives an allowance address from raw seeds: a
// 16-byte little-endian handle and a 32-byte public key.
func AllowanceAddressFromBytes(handleLE, allowed []byte) (Address, error) {
	if len(handleLE) != handle.Size {
		return Address{}, fmt.Errorf("%w: handle is %d bytes", ErrInvalidSeedLength, len(handleLE))
	}
	if len(allowed) != solana.PublicKeyLength {
		return Address{}, fmt.Errorf("%w: key is %d bytes", ErrInvalidSeedLength, len(allowed))
	}
	return find(params.IncoLightningProgramID, handleLE, allowed)
}

// FundingAddress derives the campaign account of creator.
func FundingAddress(programID, creator solana.PublicKey) (Address, error) {
	return find(programID, params.FundingSeed, creator[:])
}

// VaultAddress derives the token account holding the funds of a campaign.
func VaultAddress(programID, funding, mint solana.PublicKey) (Address, error) {
	return find(programID, params.VaultSeed, funding[:], mint[:])
}

func find(programID solana.PublicKey, seeds ...[]byte) (Address, error) {
	key, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrNoAddress, err)
	}
	return Address{Key: key, Bump: bump}, nil
}
