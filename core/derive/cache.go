package derive

import (
	"github.com/gagliardetto/solana-go"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tos-network/incofund/core/handle"
)

const derivedCacheSize = 4096 // derived addresses to keep in memory

// Deriver memoizes address derivations for a fixed pair of program ids. The
// address search hashes up to 255 candidates, so repeated lookups for the
// same handle and party are served from an ARC cache.
type Deriver struct {
	lightning solana.PublicKey
	funding   solana.PublicKey
	cache     *lru.ARCCache // cacheKey -> Address
}

type cacheKey struct {
	kind byte
	a    [32]byte
	b    [32]byte
}

const (
	kindAllowance byte = iota
	kindFunding
	kindVault
)

// NewDeriver creates a deriver for the given confidential compute and
// funding program ids.
func NewDeriver(lightning, funding solana.PublicKey) *Deriver {
	cache, _ := lru.NewARC(derivedCacheSize)
	return &Deriver{lightning: lightning, funding: funding, cache: cache}
}

func (d *Deriver) Allowance(h handle.Handle, allowed solana.PublicKey) (Address, error) {
	key := cacheKey{kind: kindAllowance, b: allowed}
	hb := h.Bytes()
	copy(key.a[:], hb[:])
	return d.lookup(key, func() (Address, error) {
		return AllowanceAddressIn(d.lightning, h, allowed)
	})
}

func (d *Deriver) Funding(creator solana.PublicKey) (Address, error) {
	return d.lookup(cacheKey{kind: kindFunding, a: creator}, func() (Address, error) {
		return FundingAddress(d.funding, creator)
	})
}

func (d *Deriver) Vault(funding, mint solana.PublicKey) (Address, error) {
	return d.lookup(cacheKey{kind: kindVault, a: funding, b: mint}, func() (Address, error) {
		return VaultAddress(d.funding, funding, mint)
	})
}

// Campaign derives both the campaign account of creator and its vault.
func (d *Deriver) Campaign(creator, mint solana.PublicKey) (funding, vault Address, err error) {
	if funding, err = d.Funding(creator); err != nil {
		return Address{}, Address{}, err
	}
	if vault, err = d.Vault(funding.Key, mint); err != nil {
		return Address{}, Address{}, err
	}
	return funding, vault, nil
}

func (d *Deriver) lookup(key cacheKey, derive func() (Address, error)) (Address, error) {
	if v, ok := d.cache.Get(key); ok {
		cacheHitMeter.Mark(1)
		return v.(Address), nil
	}
	addr, err := derive()
	if err != nil {
		return Address{}, err
	}
	d.cache.Add(key, addr)
	return addr, nil
}
