package orchestrator

import (
	"bytes"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// AccountLocks serializes operations touching the same accounts. Locks are
// taken in key order so overlapping sets cannot deadlock.
type AccountLocks struct {
	mu    sync.Mutex
	locks map[solana.PublicKey]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: make(map[solana.PublicKey]*accountLock)}
}

// Lock blocks until every given account is held and returns the function
// releasing them.
func (l *AccountLocks) Lock(keys ...solana.PublicKey) (unlock func()) {
	keys = sortedUnique(keys)
	held := make([]*accountLock, len(keys))
	for i, key := range keys {
		l.mu.Lock()
		al, ok := l.locks[key]
		if !ok {
			al = new(accountLock)
			l.locks[key] = al
		}
		al.refs++
		l.mu.Unlock()

		al.mu.Lock()
		held[i] = al
	}
	return func() {
		for i := len(keys) - 1; i >= 0; i-- {
			held[i].mu.Unlock()

			l.mu.Lock()
			if held[i].refs--; held[i].refs == 0 {
				delete(l.locks, keys[i])
			}
			l.mu.Unlock()
		}
	}
}

// size returns the number of tracked accounts.
func (l *AccountLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func sortedUnique(keys []solana.PublicKey) []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(keys))
	seen := make(map[solana.PublicKey]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
