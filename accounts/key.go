// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package accounts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

const version = 1

// plainKeyJSON is the labeled key file format. Plain keygen files, a bare
// JSON array of the 64 secret key bytes, are accepted on load as well.
type plainKeyJSON struct {
	Id        string `json:"id"`
	Name      string `json:"name,omitempty"`
	PublicKey string `json:"publicKey"`
	SecretKey []int  `json:"secretKey"`
	Version   int    `json:"version"`
}

func (p *Party) MarshalJSON() ([]byte, error) {
	secret := make([]int, len(p.key))
	for i, b := range p.key {
		secret[i] = int(b)
	}
	return json.Marshal(plainKeyJSON{
		Id:        p.Id.String(),
		Name:      p.Name,
		PublicKey: p.PublicKey().String(),
		SecretKey: secret,
		Version:   version,
	})
}

func (p *Party) UnmarshalJSON(j []byte) error {
	j = bytes.TrimSpace(j)
	if len(j) > 0 && j[0] == '[' {
		var raw []int
		if err := json.Unmarshal(j, &raw); err != nil {
			return err
		}
		key, err := intsToKey(raw)
		if err != nil {
			return err
		}
		party, err := NewParty(p.Name, key)
		if err != nil {
			return err
		}
		*p = *party
		return nil
	}
	keyJSON := new(plainKeyJSON)
	if err := json.Unmarshal(j, keyJSON); err != nil {
		return err
	}
	id, err := uuid.Parse(keyJSON.Id)
	if err != nil {
		return err
	}
	key, err := intsToKey(keyJSON.SecretKey)
	if err != nil {
		return err
	}
	if keyJSON.PublicKey != "" && keyJSON.PublicKey != key.PublicKey().String() {
		return fmt.Errorf("key file public key %s does not match secret key", keyJSON.PublicKey)
	}
	p.Id = id
	p.Name = keyJSON.Name
	p.key = key
	return nil
}

func intsToKey(raw []int) (solana.PrivateKey, error) {
	if len(raw) != 64 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeySize, len(raw))
	}
	key := make(solana.PrivateKey, len(raw))
	for i, v := range raw {
		if v < 0 || v > 0xff {
			return nil, fmt.Errorf("secret key byte %d out of range", i)
		}
		key[i] = byte(v)
	}
	return key, nil
}

// LoadKeyFile reads a party from a key file. name overrides the label stored
// in the file when set.
func LoadKeyFile(file, name string) (*Party, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	p := new(Party)
	if err := json.Unmarshal(content, p); err != nil {
		return nil, fmt.Errorf("key file %s: %w", file, err)
	}
	if name != "" {
		p.Name = name
	}
	return p, nil
}

// StoreKeyFile writes p to file atomically with owner-only permissions.
func StoreKeyFile(file string, p *Party) error {
	content, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return writeKeyFile(file, content)
}

func writeTemporaryKeyFile(file string, content []byte) (string, error) {
	// Create the key directory with appropriate permissions
	// in case it is not present yet.
	const dirPerm = 0700
	if err := os.MkdirAll(filepath.Dir(file), dirPerm); err != nil {
		return "", err
	}
	// Atomic write: create a temporary hidden file first
	// then move it into place. TempFile assigns mode 0600.
	f, err := os.CreateTemp(filepath.Dir(file), "."+filepath.Base(file)+".tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	f.Close()
	return f.Name(), nil
}

func writeKeyFile(file string, content []byte) error {
	name, err := writeTemporaryKeyFile(file, content)
	if err != nil {
		return err
	}
	return os.Rename(name, file)
}
