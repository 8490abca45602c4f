package accounts

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Keyring is a set of parties able to sign transactions.
type Keyring struct {
	mu   sync.RWMutex
	keys map[solana.PublicKey]solana.PrivateKey
}

func NewKeyring(parties ...*Party) *Keyring {
	k := &Keyring{keys: make(map[solana.PublicKey]solana.PrivateKey)}
	for _, p := range parties {
		k.Add(p)
	}
	return k
}

func (k *Keyring) Add(p *Party) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[p.PublicKey()] = p.PrivateKey()
}

func (k *Keyring) Has(pk solana.PublicKey) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.keys[pk]
	return ok
}

// SignTransaction signs every required signature slot of tx the keyring holds
// a key for. When partial is set, slots without a key are left zeroed, which
// is sufficient for simulation with signature verification disabled.
// Otherwise a missing key is an error and tx is left untouched.
func (k *Keyring) SignTransaction(tx *solana.Transaction, partial bool) error {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	n := int(tx.Message.Header.NumRequiredSignatures)
	if n > len(tx.Message.AccountKeys) {
		return fmt.Errorf("message requires %d signatures but has %d keys", n, len(tx.Message.AccountKeys))
	}
	k.mu.RLock()
	defer k.mu.RUnlock()

	sigs := make([]solana.Signature, n)
	for i := 0; i < n; i++ {
		signer := tx.Message.AccountKeys[i]
		key, ok := k.keys[signer]
		if !ok {
			if partial {
				continue
			}
			return fmt.Errorf("%w: %s", ErrMissingSigner, signer)
		}
		if sigs[i], err = key.Sign(msg); err != nil {
			return err
		}
	}
	tx.Signatures = sigs
	return nil
}
