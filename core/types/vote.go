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

package types

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/crypto"
)

const (
	// VoteDurationBits is the width of the duration field packed into the
	// low bits of a vote timestamp.
	VoteDurationBits = 4
	// FinalVoteTimestamp is the saturated sentinel marking a final vote:
	// both duration and sequence maxed out.
	FinalVoteTimestamp = math.MaxUint64
	// MaxVoteHashes bounds the hashes one vote message may carry.
	MaxVoteHashes = 255
)

var voteHashPrefix = []byte("vote ")

// Vote is a representative's signed statement for a set of block hashes.
type Vote struct {
	VotingAccount common.Account
	Sig           common.Signature
	// Timestamp packs the wall-clock milliseconds (rounded) and a duration
	// exponent in the low bits. FinalVoteTimestamp marks finality.
	Timestamp uint64
	Hashes    []common.Hash
}

// NewVote builds and signs a vote.
func NewVote(key crypto.PrivateKey, timestamp uint64, hashes []common.Hash) *Vote {
	v := &Vote{
		VotingAccount: key.PublicKey(),
		Timestamp:     timestamp,
		Hashes:        hashes,
	}
	h := v.SigningHash()
	v.Sig = key.Sign(h[:])
	return v
}

// PackVoteTimestamp rounds a millisecond timestamp and packs the duration
// exponent into its low bits.
func PackVoteTimestamp(timestampMs uint64, duration uint8) uint64 {
	mask := uint64(1)<<VoteDurationBits - 1
	return (timestampMs &^ mask) | (uint64(duration) & mask)
}

// IsFinal reports whether the vote carries the saturated sentinel.
func (v *Vote) IsFinal() bool { return v.Timestamp == FinalVoteTimestamp }

// SigningHash digests the vote prefix, hashes and little-endian timestamp.
func (v *Vote) SigningHash() common.Hash {
	inputs := make([][]byte, 0, len(v.Hashes)+2)
	inputs = append(inputs, voteHashPrefix)
	for i := range v.Hashes {
		inputs = append(inputs, v.Hashes[i][:])
	}
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], v.Timestamp)
	inputs = append(inputs, ts[:])
	return crypto.HashBlake2b(inputs...)
}

// Validate verifies the signature against the voting account.
func (v *Vote) Validate() error {
	h := v.SigningHash()
	if err := crypto.ValidateMessage(v.VotingAccount, h[:], v.Sig); err != nil {
		return fmt.Errorf("vote from %s: %w", v.VotingAccount, err)
	}
	return nil
}

// Encode writes the wire form: account, signature, timestamp (LE), hashes.
func (v *Vote) Encode(w io.Writer) {
	w.Write(v.VotingAccount[:])
	w.Write(v.Sig[:])
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], v.Timestamp)
	w.Write(ts[:])
	for i := range v.Hashes {
		w.Write(v.Hashes[i][:])
	}
}

// DecodeVote reads a wire vote carrying count hashes.
func DecodeVote(src io.Reader, count int) (*Vote, error) {
	if count < 0 || count > MaxVoteHashes {
		return nil, fmt.Errorf("invalid vote hash count %d", count)
	}
	r := &reader{r: src}
	v := &Vote{}
	v.VotingAccount = r.account()
	v.Sig = r.signature()
	v.Timestamp = r.uint64LE()
	v.Hashes = make([]common.Hash, count)
	for i := range v.Hashes {
		v.Hashes[i] = r.hash()
	}
	return v, r.err
}
