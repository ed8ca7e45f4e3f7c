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

package common

import (
	"fmt"

	"github.com/holiman/uint256"
)

// AmountLength is the wire size of a balance: 16 bytes, big-endian.
const AmountLength = 16

// Amount is a 128-bit raw balance. It is a value type and safe to copy and
// compare with ==. Arithmetic wraps modulo 2^128; ledger code checks ordering
// before subtracting, the vote cache relies on the wrap.
type Amount struct {
	u uint256.Int
}

// MaxAmount is 2^128-1, the genesis balance.
var MaxAmount = Amount{u: uint256.Int{^uint64(0), ^uint64(0), 0, 0}}

// NewAmount converts a uint64 raw value.
func NewAmount(v uint64) Amount {
	var a Amount
	a.u.SetUint64(v)
	return a
}

// AmountFromBytes decodes a 16-byte big-endian balance.
func AmountFromBytes(b []byte) Amount {
	var a Amount
	a.u.SetBytes(b)
	a.truncate()
	return a
}

// HexToAmount parses a 32-character hex balance, the JSON form used in
// legacy send blocks.
func HexToAmount(s string) Amount {
	var b [AmountLength]byte
	_ = hexDecodeInto(b[:], []byte(s))
	return AmountFromBytes(b[:])
}

func (a *Amount) truncate() {
	a.u[2] = 0
	a.u[3] = 0
}

// Add returns a+b wrapped to 128 bits.
func (a Amount) Add(b Amount) Amount {
	var r Amount
	r.u.Add(&a.u, &b.u)
	r.truncate()
	return r
}

// Sub returns a-b wrapped to 128 bits.
func (a Amount) Sub(b Amount) Amount {
	var r Amount
	r.u.Sub(&a.u, &b.u)
	r.truncate()
	return r
}

// Mul returns a*m wrapped to 128 bits.
func (a Amount) Mul(m uint64) Amount {
	var r Amount
	var mu uint256.Int
	mu.SetUint64(m)
	r.u.Mul(&a.u, &mu)
	r.truncate()
	return r
}

// Div returns a/d, zero when d is zero.
func (a Amount) Div(d uint64) Amount {
	var r Amount
	var du uint256.Int
	du.SetUint64(d)
	r.u.Div(&a.u, &du)
	return r
}

// MulDiv returns a*m/d, computed without 128-bit intermediate truncation.
// d must be non-zero and >= m for the result to fit; the quorum math
// satisfies both.
func (a Amount) MulDiv(m, d uint64) Amount {
	var mu, du, prod uint256.Int
	mu.SetUint64(m)
	du.SetUint64(d)
	prod.Mul(&a.u, &mu)
	var r Amount
	r.u.Div(&prod, &du)
	r.truncate()
	return r
}

// Cmp returns -1, 0 or 1.
func (a Amount) Cmp(b Amount) int { return a.u.Cmp(&b.u) }

func (a Amount) IsZero() bool { return a.u.IsZero() }

// Uint64 returns the low 64 bits; callers use it for small test amounts only.
func (a Amount) Uint64() uint64 { return a.u.Uint64() }

// Bytes returns the 16-byte big-endian encoding.
func (a Amount) Bytes() []byte {
	var out [AmountLength]byte
	b := a.u.Bytes()
	copy(out[AmountLength-len(b):], b)
	return out[:]
}

// Hex returns the 32-character upper-case hex encoding.
func (a Amount) Hex() string { return hexString(a.Bytes()) }

// String renders the decimal raw value, the form votes and RPCs use.
func (a Amount) String() string { return a.u.Dec() }

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(input []byte) error {
	u, err := uint256.FromDecimal(string(input))
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", input, err)
	}
	a.u = *u
	if a.u[2] != 0 || a.u[3] != 0 {
		return fmt.Errorf("amount %q exceeds 128 bits", input)
	}
	return nil
}
