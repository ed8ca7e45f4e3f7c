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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashHexRoundTrip(t *testing.T) {
	h := Hash{0x01, 0x02, 0xff}
	text, err := h.MarshalText()
	require.NoError(t, err)

	var decoded Hash
	require.NoError(t, decoded.UnmarshalText(text))
	require.Equal(t, h, decoded)

	require.Equal(t, h, HexToHash(h.String()))
}

func TestHashZeroAndConversions(t *testing.T) {
	require.True(t, ZeroHash.IsZero())
	h := Hash{0xaa}
	require.False(t, h.IsZero())
	require.Equal(t, h, h.ToAccount().ToHash())
	require.Equal(t, h, h.ToRoot().ToHash())
	require.Equal(t, h, Link(h).ToHash())
}

func TestAddressRoundTrip(t *testing.T) {
	// The canonical genesis address pair.
	var genesis Account
	require.NoError(t, genesis.UnmarshalText(
		[]byte("E89208DD038FBB269987689621D52292AE9C35941A7484756ECCED92A65093BA")))

	addr := genesis.Address()
	require.Equal(t, "nano_3t6k35gi95xu6tergt6p69ck76ogmitsa8mnijtpxm9fkcm736xtoncuohr3", addr)

	parsed, err := ParseAddress(addr)
	require.NoError(t, err)
	require.Equal(t, genesis, parsed)

	// The old prefix still parses.
	parsed, err = ParseAddress("xrb_" + addr[len("nano_"):])
	require.NoError(t, err)
	require.Equal(t, genesis, parsed)
}

func TestParseAddressRejectsCorruption(t *testing.T) {
	var a Account
	a[5] = 0x99
	addr := a.Address()

	_, err := ParseAddress("bad_" + addr[len("nano_"):])
	require.Error(t, err)

	_, err = ParseAddress(addr[:len(addr)-1])
	require.Error(t, err)

	// Flip one checksum character.
	mutated := []byte(addr)
	last := mutated[len(mutated)-1]
	if last == '1' {
		mutated[len(mutated)-1] = '3'
	} else {
		mutated[len(mutated)-1] = '1'
	}
	_, err = ParseAddress(string(mutated))
	require.Error(t, err)
}

func TestQualifiedRootBytes(t *testing.T) {
	qr := QualifiedRoot{Root: Root{1}, Previous: Hash{2}}
	b := qr.Bytes()
	require.Len(t, b, 64)
	require.Equal(t, byte(1), b[0])
	require.Equal(t, byte(2), b[32])
}

func TestAmountArithmetic(t *testing.T) {
	a := NewAmount(100)
	b := NewAmount(40)
	require.Equal(t, NewAmount(140), a.Add(b))
	require.Equal(t, NewAmount(60), a.Sub(b))
	require.Equal(t, 1, a.Cmp(b))
	require.Equal(t, -1, b.Cmp(a))
	require.Equal(t, 0, a.Cmp(NewAmount(100)))
	require.True(t, Amount{}.IsZero())
	require.False(t, a.IsZero())
}

func TestAmountWraps128(t *testing.T) {
	// MaxAmount + 1 wraps to zero: the vote cache depends on this.
	require.True(t, MaxAmount.Add(NewAmount(1)).IsZero())
	// 0 - 1 wraps to MaxAmount.
	require.Equal(t, MaxAmount, Amount{}.Sub(NewAmount(1)))
}

func TestAmountCodec(t *testing.T) {
	a := NewAmount(0xdeadbeef)
	require.Equal(t, a, AmountFromBytes(a.Bytes()))
	require.Len(t, a.Bytes(), AmountLength)
	require.Equal(t, a, HexToAmount(a.Hex()))

	text, err := a.MarshalText()
	require.NoError(t, err)
	var decoded Amount
	require.NoError(t, decoded.UnmarshalText(text))
	require.Equal(t, a, decoded)

	require.Error(t, decoded.UnmarshalText([]byte("not-a-number")))
	// 2^128 exceeds the balance domain.
	require.Error(t, decoded.UnmarshalText([]byte("340282366920938463463374607431768211456")))
}

func TestAmountMulDiv(t *testing.T) {
	online := MaxAmount
	delta := online.MulDiv(67, 100)
	require.Equal(t, -1, delta.Cmp(online))
	require.Equal(t, 1, delta.Cmp(online.Div(2)))

	require.Equal(t, NewAmount(67), NewAmount(100).MulDiv(67, 100))
}
