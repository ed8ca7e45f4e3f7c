// Copyright 2024 The go-nano Authors
// This file is part of the go-nano library.
//
// The go-nano library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-nano library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-nano library. If not, see <http://www.gnu.org/licenses/>.

// Package crypto wraps the primitives the ledger depends on: Blake2b hashing
// for block identities and proof-of-work, and ed25519 for block and vote
// signatures.
package crypto

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/nanocurrency/go-nano/common"
	"golang.org/x/crypto/blake2b"
)

// PrivateKey is an account signing key. The 32-byte seed doubles as the
// canonical serialized form.
type PrivateKey struct {
	key ed25519.PrivateKey
}

// NewPrivateKey derives a key pair from a 32-byte seed.
func NewPrivateKey(seed [32]byte) PrivateKey {
	return PrivateKey{key: ed25519.NewKeyFromSeed(seed[:])}
}

// PrivateKeyFromHex parses a 64-character hex seed.
func PrivateKeyFromHex(s string) (PrivateKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return PrivateKey{}, fmt.Errorf("invalid private key hex %q", s)
	}
	var seed [32]byte
	copy(seed[:], raw)
	return NewPrivateKey(seed), nil
}

// PublicKey returns the account key for this private key.
func (k PrivateKey) PublicKey() common.Account {
	var a common.Account
	copy(a[:], k.key.Public().(ed25519.PublicKey))
	return a
}

// Sign signs a message, typically a 32-byte block hash.
func (k PrivateKey) Sign(message []byte) common.Signature {
	var sig common.Signature
	copy(sig[:], ed25519.Sign(k.key, message))
	return sig
}

var errBadSignature = errors.New("bad signature")

// ValidateMessage verifies signature over message against the account key.
func ValidateMessage(account common.Account, message []byte, signature common.Signature) error {
	if !ed25519.Verify(account[:], message, signature[:]) {
		return errBadSignature
	}
	return nil
}

// Blake2b computes a digest of the given size over the concatenated inputs.
func Blake2b(size int, inputs ...[]byte) []byte {
	h, err := blake2b.New(size, nil)
	if err != nil {
		panic(err)
	}
	for _, in := range inputs {
		h.Write(in)
	}
	return h.Sum(nil)
}

// HashBlake2b computes the 32-byte digest used for block hashes.
func HashBlake2b(inputs ...[]byte) common.Hash {
	var h common.Hash
	copy(h[:], Blake2b(32, inputs...))
	return h
}

// WorkValue evaluates a proof-of-work nonce against a root: the 8-byte
// little-endian Blake2b of work||root, read little-endian. A nonce is valid
// for a threshold t when WorkValue >= t.
func WorkValue(root common.Root, work uint64) uint64 {
	var wb [8]byte
	binary.LittleEndian.PutUint64(wb[:], work)
	digest := Blake2b(8, wb[:], root[:])
	return binary.LittleEndian.Uint64(digest)
}
