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
	"io"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/params"
)

// BlockDetails classifies a saved block: the epoch it was created under and
// its subtype flags.
type BlockDetails struct {
	Epoch     params.Epoch
	IsSend    bool
	IsReceive bool
	IsEpoch   bool
}

// Subtype names the block role for JSON and logs.
func (d BlockDetails) Subtype() string {
	switch {
	case d.IsEpoch:
		return "epoch"
	case d.IsSend:
		return "send"
	case d.IsReceive:
		return "receive"
	default:
		return "change"
	}
}

// Packed encodes the details into one byte: epoch in the low five bits,
// subtype flags in the high three.
func (d BlockDetails) Packed() byte {
	b := byte(d.Epoch) & 0x1f
	if d.IsSend {
		b |= 1 << 5
	}
	if d.IsReceive {
		b |= 1 << 6
	}
	if d.IsEpoch {
		b |= 1 << 7
	}
	return b
}

// UnpackBlockDetails inverts Packed.
func UnpackBlockDetails(b byte) BlockDetails {
	return BlockDetails{
		Epoch:     params.Epoch(b & 0x1f),
		IsSend:    b&(1<<5) != 0,
		IsReceive: b&(1<<6) != 0,
		IsEpoch:   b&(1<<7) != 0,
	}
}

// BlockSideband is the metadata computed at insertion time and persisted
// next to the block. It never travels on the wire.
type BlockSideband struct {
	Account common.Account
	// Successor is the child's hash, patched in when the child arrives.
	Successor common.Hash
	Balance   common.Amount
	Height    uint64
	Timestamp uint64
	Details   BlockDetails
	// SourceEpoch is the consumed pending entry's epoch on receives.
	SourceEpoch params.Epoch
}

// Encode writes the persisted sideband record.
func (s *BlockSideband) Encode(w io.Writer) {
	w.Write(s.Account[:])
	w.Write(s.Successor[:])
	w.Write(s.Balance.Bytes())
	writeUint64BE(w, s.Height)
	writeUint64BE(w, s.Timestamp)
	w.Write([]byte{s.Details.Packed(), byte(s.SourceEpoch)})
}

// DecodeSideband reads a record written by Encode.
func DecodeSideband(src io.Reader) (BlockSideband, error) {
	r := &reader{r: src}
	var s BlockSideband
	s.Account = r.account()
	s.Successor = r.hash()
	s.Balance = r.amount()
	s.Height = r.uint64BE()
	s.Timestamp = r.uint64BE()
	s.Details = UnpackBlockDetails(r.byte())
	s.SourceEpoch = params.Epoch(r.byte())
	return s, r.err
}

// SavedBlock is a block plus its sideband: the form every store read
// returns.
type SavedBlock struct {
	Block    Block
	Sideband BlockSideband
}

// Account is the owning account, deduced from the sideband for legacy
// variants that do not carry it.
func (s *SavedBlock) Account() common.Account {
	if a, ok := s.Block.AccountField(); ok {
		return a
	}
	return s.Sideband.Account
}

// Balance is the balance after this block, read from the block when it
// carries one and from the sideband otherwise.
func (s *SavedBlock) Balance() common.Amount {
	if b, ok := s.Block.BalanceField(); ok {
		return b
	}
	return s.Sideband.Balance
}

func (s *SavedBlock) Hash() common.Hash { return s.Block.Hash() }
func (s *SavedBlock) Height() uint64    { return s.Sideband.Height }

// Successor returns the child hash, ok=false at the frontier.
func (s *SavedBlock) Successor() (common.Hash, bool) {
	return s.Sideband.Successor, !s.Sideband.Successor.IsZero()
}

func (s *SavedBlock) IsSend() bool    { return s.Sideband.Details.IsSend }
func (s *SavedBlock) IsReceive() bool { return s.Sideband.Details.IsReceive }
func (s *SavedBlock) IsEpoch() bool   { return s.Sideband.Details.IsEpoch }

func (s *SavedBlock) Epoch() params.Epoch       { return s.Sideband.Details.Epoch }
func (s *SavedBlock) SourceEpoch() params.Epoch { return s.Sideband.SourceEpoch }

// Source returns the hash of the consumed send, ok=false for non-receives.
func (s *SavedBlock) Source() (common.Hash, bool) {
	switch b := s.Block.(type) {
	case *OpenBlock:
		return b.Source, true
	case *ReceiveBlock:
		return b.Source, true
	case *StateBlock:
		if s.Sideband.Details.IsReceive {
			return b.Link.ToHash(), true
		}
	}
	return common.ZeroHash, false
}

// Destination returns the receiver account, ok=false for non-sends.
func (s *SavedBlock) Destination() (common.Account, bool) {
	switch b := s.Block.(type) {
	case *SendBlock:
		return b.Destination, true
	case *StateBlock:
		if s.Sideband.Details.IsSend {
			return b.Link.ToAccount(), true
		}
	}
	return common.BurnAccount, false
}

// DependentBlocks lists the at-most-two parents: previous, and the linked
// source for receives. The genesis open depends on nothing.
func (s *SavedBlock) DependentBlocks(epochs *params.Epochs, genesis common.Account) DependentBlocks {
	switch b := s.Block.(type) {
	case *OpenBlock:
		if b.Account == genesis {
			return DependentBlocks{}
		}
		return DependentBlocks{Previous: common.ZeroHash, Link: b.Source}
	case *StateBlock:
		link := common.ZeroHash
		if !s.IsSend() && !epochs.IsEpochLink(b.Link) {
			link = b.Link.ToHash()
		}
		return DependentBlocks{Previous: b.PreviousHash, Link: link}
	default:
		return DependentBlocks{Previous: s.Block.Previous(), Link: SourceOrLink(s.Block)}
	}
}

// Encode writes block (with tag) followed by sideband, the persisted record
// layout.
func (s *SavedBlock) Encode(w io.Writer) {
	EncodeBlock(w, s.Block)
	s.Sideband.Encode(w)
}

// DecodeSavedBlock reads a persisted record.
func DecodeSavedBlock(src io.Reader) (*SavedBlock, error) {
	b, err := DecodeBlock(src)
	if err != nil {
		return nil, err
	}
	sb, err := DecodeSideband(src)
	if err != nil {
		return nil, err
	}
	return &SavedBlock{Block: b, Sideband: sb}, nil
}

// DependentBlocks holds the up-to-two parent hashes of a block.
type DependentBlocks struct {
	Previous common.Hash
	Link     common.Hash
}

// Iter returns the non-zero dependencies.
func (d DependentBlocks) Iter() []common.Hash {
	out := make([]common.Hash, 0, 2)
	if !d.Previous.IsZero() {
		out = append(out, d.Previous)
	}
	if !d.Link.IsZero() {
		out = append(out, d.Link)
	}
	return out
}
