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

// Package common contains the fixed-size value types shared by every
// subsystem: block hashes, account public keys, signatures and 128-bit
// amounts.
package common

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	// HashLength is the byte length of a block hash.
	HashLength = 32
	// AccountLength is the byte length of an account public key.
	AccountLength = 32
	// SignatureLength is the byte length of a block or vote signature.
	SignatureLength = 64
)

// Hash represents the Blake2b-256 hash of a block.
type Hash [HashLength]byte

// Account represents an ed25519 public key identifying an account chain.
// The zero value is the burn account.
type Account [AccountLength]byte

// Signature is a 64-byte block or vote signature.
type Signature [SignatureLength]byte

// Link is the context-dependent 32-byte field of a state block: a destination
// account on sends, a source hash on receives, an epoch sentinel on epoch
// blocks and zero on pure representative changes.
type Link [32]byte

// Root identifies the position a block contends for: the previous hash for
// non-open blocks, the account for open blocks.
type Root [32]byte

// HashOrAccount keys the unchecked map: either a missing dependency hash or,
// for epoch opens waiting on a pending entry, the account itself.
type HashOrAccount [32]byte

var (
	// ZeroHash is the all-zero hash, used as the "no successor"/"no previous"
	// marker.
	ZeroHash = Hash{}
	// BurnAccount is the zero public key; blocks may send to it but it can
	// never be opened.
	BurnAccount = Account{}
)

var errBadHexLength = errors.New("invalid hex length")

func hexString(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

func hexDecodeInto(dst, src []byte) error {
	raw := strings.TrimSpace(string(src))
	if len(raw) != len(dst)*2 {
		return errBadHexLength
	}
	_, err := hex.Decode(dst, []byte(raw))
	return err
}

// BytesToHash converts b to a Hash, left-truncating or zero-padding on the
// left if needed.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash parses a 64-character hex string.
func HexToHash(s string) Hash {
	var h Hash
	_ = hexDecodeInto(h[:], []byte(s))
	return h
}

func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) IsZero() bool   { return h == Hash{} }
func (h Hash) String() string { return hexString(h[:]) }

// TerminalString shortens the hash for log lines.
func (h Hash) TerminalString() string {
	return fmt.Sprintf("%x..%x", h[:3], h[29:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(input []byte) error {
	return hexDecodeInto(h[:], input)
}

// ToAccount reinterprets the hash bytes as an account key, used when a link
// field carries a destination.
func (h Hash) ToAccount() Account { return Account(h) }

// ToRoot reinterprets the hash as a root.
func (h Hash) ToRoot() Root { return Root(h) }

func (a Account) Bytes() []byte  { return a[:] }
func (a Account) IsZero() bool   { return a == Account{} }
func (a Account) String() string { return a.Address() }

// Hex returns the raw public key in upper-case hex.
func (a Account) Hex() string { return hexString(a[:]) }

// ToHash reinterprets the account key as a hash (legacy open roots).
func (a Account) ToHash() Hash { return Hash(a) }

// ToLink reinterprets the account key as a link field.
func (a Account) ToLink() Link { return Link(a) }

func (a Account) MarshalText() ([]byte, error) {
	return []byte(a.Address()), nil
}

func (a *Account) UnmarshalText(input []byte) error {
	acc, err := ParseAddress(string(input))
	if err != nil {
		// Account fields historically also accept raw hex keys.
		return hexDecodeInto(a[:], input)
	}
	*a = acc
	return nil
}

func (s Signature) Bytes() []byte  { return s[:] }
func (s Signature) IsZero() bool   { return s == Signature{} }
func (s Signature) String() string { return hexString(s[:]) }

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(input []byte) error {
	return hexDecodeInto(s[:], input)
}

func (l Link) Bytes() []byte  { return l[:] }
func (l Link) IsZero() bool   { return l == Link{} }
func (l Link) String() string { return hexString(l[:]) }

// ToHash reinterprets the link as a source block hash.
func (l Link) ToHash() Hash { return Hash(l) }

// ToAccount reinterprets the link as a destination account.
func (l Link) ToAccount() Account { return Account(l) }

func (l Link) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Link) UnmarshalText(input []byte) error {
	return hexDecodeInto(l[:], input)
}

func (r Root) Bytes() []byte  { return r[:] }
func (r Root) IsZero() bool   { return r == Root{} }
func (r Root) String() string { return hexString(r[:]) }

// ToHash reinterprets the root as a previous-block hash.
func (r Root) ToHash() Hash { return Hash(r) }

func (k HashOrAccount) Bytes() []byte  { return k[:] }
func (k HashOrAccount) String() string { return hexString(k[:]) }

// QualifiedRoot is the unique election key for a position in the DAG.
type QualifiedRoot struct {
	Root     Root
	Previous Hash
}

func (q QualifiedRoot) Bytes() []byte {
	b := make([]byte, 64)
	copy(b, q.Root[:])
	copy(b[32:], q.Previous[:])
	return b
}

func (q QualifiedRoot) String() string {
	return q.Root.String() + ":" + q.Previous.String()
}

const addressAlphabet = "13456789abcdefghijkmnopqrstuwxyz"

var addressAlphabetRev = func() [256]byte {
	var rev [256]byte
	for i := range rev {
		rev[i] = 0xff
	}
	for i := 0; i < len(addressAlphabet); i++ {
		rev[addressAlphabet[i]] = byte(i)
	}
	return rev
}()

// Address renders the account in the canonical nano_ form: a 4-character
// prefix, 52 characters of base32 key and 8 characters of checksum.
func (a Account) Address() string {
	// 260 bits: 4 leading zero bits then the 256-bit key.
	var buf [65]byte
	bits := make([]byte, 0, 260)
	appendBits := func(b byte, n int) {
		for i := n - 1; i >= 0; i-- {
			bits = append(bits, (b>>uint(i))&1)
		}
	}
	appendBits(0, 4)
	for _, b := range a {
		appendBits(b, 8)
	}
	out := buf[:0]
	out = append(out, "nano_"...)
	for i := 0; i < 260; i += 5 {
		var v byte
		for j := 0; j < 5; j++ {
			v = v<<1 | bits[i+j]
		}
		out = append(out, addressAlphabet[v])
	}
	check := addressChecksum(a)
	cb := make([]byte, 0, 40)
	for _, b := range check {
		for i := 7; i >= 0; i-- {
			cb = append(cb, (b>>uint(i))&1)
		}
	}
	for i := 0; i < 40; i += 5 {
		var v byte
		for j := 0; j < 5; j++ {
			v = v<<1 | cb[i+j]
		}
		out = append(out, addressAlphabet[v])
	}
	return string(out)
}

// addressChecksum is the 5-byte reversed Blake2b digest of the key.
func addressChecksum(a Account) [5]byte {
	h, _ := blake2b.New(5, nil)
	h.Write(a[:])
	var sum [5]byte
	copy(sum[:], h.Sum(nil))
	// Checksum bytes are encoded little-endian first.
	for i, j := 0, len(sum)-1; i < j; i, j = i+1, j-1 {
		sum[i], sum[j] = sum[j], sum[i]
	}
	return sum
}

// ParseAddress decodes a nano_/xrb_ address back into the account key,
// verifying the checksum.
func ParseAddress(s string) (Account, error) {
	var body string
	switch {
	case strings.HasPrefix(s, "nano_"):
		body = s[5:]
	case strings.HasPrefix(s, "xrb_"):
		body = s[4:]
	default:
		return Account{}, fmt.Errorf("invalid address prefix: %q", s)
	}
	if len(body) != 60 {
		return Account{}, fmt.Errorf("invalid address length: %q", s)
	}
	bits := make([]byte, 0, 300)
	for i := 0; i < len(body); i++ {
		v := addressAlphabetRev[body[i]]
		if v == 0xff {
			return Account{}, fmt.Errorf("invalid address character %q", body[i])
		}
		for j := 4; j >= 0; j-- {
			bits = append(bits, (v>>uint(j))&1)
		}
	}
	// 260 key bits (4 of padding + 256) then 40 checksum bits.
	if bits[0] != 0 || bits[1] != 0 || bits[2] != 0 || bits[3] != 0 {
		return Account{}, errors.New("invalid address padding")
	}
	var a Account
	for i := 0; i < 256; i++ {
		if bits[4+i] == 1 {
			a[i/8] |= 1 << uint(7-i%8)
		}
	}
	var check [5]byte
	for i := 0; i < 40; i++ {
		if bits[260+i] == 1 {
			check[i/8] |= 1 << uint(7-i%8)
		}
	}
	if want := addressChecksum(a); !bytes.Equal(check[:], want[:]) {
		return Account{}, errors.New("address checksum mismatch")
	}
	return a, nil
}
