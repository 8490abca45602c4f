package accounts

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

const (
	DefaultMnemonicBits = 128
	DefaultDerivation   = "m/44'/501'/0'/0'"

	deriveDomain = "INCOFUND_ED25519_DERIVE"
)

// GenerateMnemonic returns a new BIP-39 mnemonic with the given entropy size.
func GenerateMnemonic(bits int) (string, error) {
	if err := validateMnemonicBits(bits); err != nil {
		return "", err
	}
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func validateMnemonicBits(bits int) error {
	switch bits {
	case 128, 160, 192, 224, 256:
		return nil
	default:
		return fmt.Errorf("invalid mnemonic bits %d (allowed: 128,160,192,224,256)", bits)
	}
}

// PartyFromMnemonic deterministically derives a party from a mnemonic,
// passphrase and derivation label. Each label yields an independent key, so
// one mnemonic can back every party of a scenario.
func PartyFromMnemonic(name, mnemonic, passphrase, derivation string) (*Party, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return PartyFromSeed(name, deriveSeed(seed, derivation))
}

func deriveSeed(seed []byte, derivation string) []byte {
	mac := hmac.New(sha512.New, []byte(deriveDomain))
	mac.Write(seed)
	mac.Write([]byte{0})
	mac.Write([]byte(derivation))
	digest := mac.Sum(nil)
	return digest[:ed25519.SeedSize]
}
