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

// Package types defines the block variants, their canonical hashes and wire
// encodings, the sideband metadata stored next to saved blocks, and the vote
// message.
package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/crypto"
)

// BlockType is the one-byte wire tag.
type BlockType uint8

const (
	BlockInvalid   BlockType = 0
	BlockNotABlock BlockType = 1
	BlockSend      BlockType = 2
	BlockReceive   BlockType = 3
	BlockOpen      BlockType = 4
	BlockChange    BlockType = 5
	BlockState     BlockType = 6
)

func (t BlockType) String() string {
	switch t {
	case BlockSend:
		return "send"
	case BlockReceive:
		return "receive"
	case BlockOpen:
		return "open"
	case BlockChange:
		return "change"
	case BlockState:
		return "state"
	case BlockNotABlock:
		return "not_a_block"
	default:
		return "invalid"
	}
}

// Block is the common view over the five variants. Field accessors return
// ok=false when the variant does not carry the field; all ledger logic is a
// type switch over the concrete types.
type Block interface {
	Type() BlockType
	// Hash is the Blake2b digest of the canonical preimage of the semantic
	// fields; work and signature are excluded.
	Hash() common.Hash
	Previous() common.Hash
	// Root is the position the block contends for: previous, or the account
	// for opens.
	Root() common.Root
	Work() uint64
	SetWork(uint64)
	Signature() common.Signature
	SetSignature(common.Signature)

	AccountField() (common.Account, bool)
	BalanceField() (common.Amount, bool)
	LinkField() (common.Link, bool)
	SourceField() (common.Hash, bool)
	RepresentativeField() (common.Account, bool)
	DestinationField() (common.Account, bool)

	// ValidPredecessor reports whether a block of the given type may precede
	// this one in an account chain.
	ValidPredecessor(t BlockType) bool

	// EncodeBody writes the canonical wire fields, without the type tag.
	EncodeBody(w io.Writer)
}

// QualifiedRoot returns the election key for the block's position.
func QualifiedRoot(b Block) common.QualifiedRoot {
	return common.QualifiedRoot{Root: b.Root(), Previous: b.Previous()}
}

// IsOpen reports whether the block starts its account chain.
func IsOpen(b Block) bool {
	switch b.Type() {
	case BlockOpen:
		return true
	case BlockState:
		return b.Previous().IsZero()
	default:
		return false
	}
}

// IsLegacy reports whether the block predates the unified state form.
func IsLegacy(b Block) bool { return b.Type() != BlockState }

// SourceOrLink returns the cross-account parent candidate: the explicit
// source for legacy receive/open, the link for state blocks.
func SourceOrLink(b Block) common.Hash {
	if src, ok := b.SourceField(); ok {
		return src
	}
	if link, ok := b.LinkField(); ok {
		return link.ToHash()
	}
	return common.ZeroHash
}

// DestinationOrLink returns the receiver account candidate: the explicit
// destination for legacy sends, the link for state blocks.
func DestinationOrLink(b Block) common.Account {
	if dst, ok := b.DestinationField(); ok {
		return dst
	}
	if link, ok := b.LinkField(); ok {
		return link.ToAccount()
	}
	return common.BurnAccount
}

type hashCache struct {
	v atomic.Pointer[common.Hash]
}

func (c *hashCache) reset() { c.v.Store(nil) }

func (c *hashCache) get(compute func() common.Hash) common.Hash {
	if h := c.v.Load(); h != nil {
		return *h
	}
	h := compute()
	c.v.Store(&h)
	return h
}

func writeUint64BE(w io.Writer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func writeUint64LE(w io.Writer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

// SendBlock is the legacy send variant. Balance is the sender's balance
// after the send; the amount is the delta against the previous block.
type SendBlock struct {
	PreviousHash common.Hash
	Destination  common.Account
	Balance      common.Amount
	Sig          common.Signature
	PoW          uint64

	hash hashCache
}

func (b *SendBlock) Type() BlockType { return BlockSend }

func (b *SendBlock) Hash() common.Hash {
	return b.hash.get(func() common.Hash {
		return crypto.HashBlake2b(b.PreviousHash[:], b.Destination[:], b.Balance.Bytes())
	})
}

func (b *SendBlock) Previous() common.Hash { return b.PreviousHash }
func (b *SendBlock) Root() common.Root     { return b.PreviousHash.ToRoot() }

func (b *SendBlock) Work() uint64                    { return b.PoW }
func (b *SendBlock) SetWork(w uint64)                { b.PoW = w }
func (b *SendBlock) Signature() common.Signature     { return b.Sig }
func (b *SendBlock) SetSignature(s common.Signature) { b.Sig = s }

func (b *SendBlock) AccountField() (common.Account, bool) { return common.BurnAccount, false }
func (b *SendBlock) BalanceField() (common.Amount, bool)  { return b.Balance, true }
func (b *SendBlock) LinkField() (common.Link, bool)       { return common.Link{}, false }
func (b *SendBlock) SourceField() (common.Hash, bool)     { return common.ZeroHash, false }
func (b *SendBlock) RepresentativeField() (common.Account, bool) {
	return common.BurnAccount, false
}
func (b *SendBlock) DestinationField() (common.Account, bool) { return b.Destination, true }

func (b *SendBlock) ValidPredecessor(t BlockType) bool {
	switch t {
	case BlockSend, BlockReceive, BlockOpen, BlockChange:
		return true
	default:
		return false
	}
}

func (b *SendBlock) EncodeBody(w io.Writer) {
	w.Write(b.PreviousHash[:])
	w.Write(b.Destination[:])
	w.Write(b.Balance.Bytes())
	w.Write(b.Sig[:])
	// Legacy blocks carry work little-endian on the wire.
	writeUint64LE(w, b.PoW)
}

// ReceiveBlock is the legacy receive variant.
type ReceiveBlock struct {
	PreviousHash common.Hash
	Source       common.Hash
	Sig          common.Signature
	PoW          uint64

	hash hashCache
}

func (b *ReceiveBlock) Type() BlockType { return BlockReceive }

func (b *ReceiveBlock) Hash() common.Hash {
	return b.hash.get(func() common.Hash {
		return crypto.HashBlake2b(b.PreviousHash[:], b.Source[:])
	})
}

func (b *ReceiveBlock) Previous() common.Hash { return b.PreviousHash }
func (b *ReceiveBlock) Root() common.Root     { return b.PreviousHash.ToRoot() }

func (b *ReceiveBlock) Work() uint64                    { return b.PoW }
func (b *ReceiveBlock) SetWork(w uint64)                { b.PoW = w }
func (b *ReceiveBlock) Signature() common.Signature     { return b.Sig }
func (b *ReceiveBlock) SetSignature(s common.Signature) { b.Sig = s }

func (b *ReceiveBlock) AccountField() (common.Account, bool) { return common.BurnAccount, false }
func (b *ReceiveBlock) BalanceField() (common.Amount, bool)  { return common.Amount{}, false }
func (b *ReceiveBlock) LinkField() (common.Link, bool)       { return common.Link{}, false }
func (b *ReceiveBlock) SourceField() (common.Hash, bool)     { return b.Source, true }
func (b *ReceiveBlock) RepresentativeField() (common.Account, bool) {
	return common.BurnAccount, false
}
func (b *ReceiveBlock) DestinationField() (common.Account, bool) {
	return common.BurnAccount, false
}

func (b *ReceiveBlock) ValidPredecessor(t BlockType) bool {
	switch t {
	case BlockSend, BlockReceive, BlockOpen, BlockChange:
		return true
	default:
		return false
	}
}

func (b *ReceiveBlock) EncodeBody(w io.Writer) {
	w.Write(b.PreviousHash[:])
	w.Write(b.Source[:])
	w.Write(b.Sig[:])
	writeUint64LE(w, b.PoW)
}

// OpenBlock is the legacy open variant; previous is implicitly zero and the
// root is the account itself.
type OpenBlock struct {
	Source         common.Hash
	Representative common.Account
	Account        common.Account
	Sig            common.Signature
	PoW            uint64

	hash hashCache
}

func (b *OpenBlock) Type() BlockType { return BlockOpen }

func (b *OpenBlock) Hash() common.Hash {
	return b.hash.get(func() common.Hash {
		return crypto.HashBlake2b(b.Source[:], b.Representative[:], b.Account[:])
	})
}

func (b *OpenBlock) Previous() common.Hash { return common.ZeroHash }
func (b *OpenBlock) Root() common.Root     { return common.Root(b.Account) }

func (b *OpenBlock) Work() uint64                    { return b.PoW }
func (b *OpenBlock) SetWork(w uint64)                { b.PoW = w }
func (b *OpenBlock) Signature() common.Signature     { return b.Sig }
func (b *OpenBlock) SetSignature(s common.Signature) { b.Sig = s }

func (b *OpenBlock) AccountField() (common.Account, bool) { return b.Account, true }
func (b *OpenBlock) BalanceField() (common.Amount, bool)  { return common.Amount{}, false }
func (b *OpenBlock) LinkField() (common.Link, bool)       { return common.Link{}, false }
func (b *OpenBlock) SourceField() (common.Hash, bool)     { return b.Source, true }
func (b *OpenBlock) RepresentativeField() (common.Account, bool) {
	return b.Representative, true
}
func (b *OpenBlock) DestinationField() (common.Account, bool) {
	return common.BurnAccount, false
}

func (b *OpenBlock) ValidPredecessor(BlockType) bool { return false }

func (b *OpenBlock) EncodeBody(w io.Writer) {
	w.Write(b.Source[:])
	w.Write(b.Representative[:])
	w.Write(b.Account[:])
	w.Write(b.Sig[:])
	writeUint64LE(w, b.PoW)
}

// ChangeBlock is the legacy representative change variant.
type ChangeBlock struct {
	PreviousHash   common.Hash
	Representative common.Account
	Sig            common.Signature
	PoW            uint64

	hash hashCache
}

func (b *ChangeBlock) Type() BlockType { return BlockChange }

func (b *ChangeBlock) Hash() common.Hash {
	return b.hash.get(func() common.Hash {
		return crypto.HashBlake2b(b.PreviousHash[:], b.Representative[:])
	})
}

func (b *ChangeBlock) Previous() common.Hash { return b.PreviousHash }
func (b *ChangeBlock) Root() common.Root     { return b.PreviousHash.ToRoot() }

func (b *ChangeBlock) Work() uint64                    { return b.PoW }
func (b *ChangeBlock) SetWork(w uint64)                { b.PoW = w }
func (b *ChangeBlock) Signature() common.Signature     { return b.Sig }
func (b *ChangeBlock) SetSignature(s common.Signature) { b.Sig = s }

func (b *ChangeBlock) AccountField() (common.Account, bool) { return common.BurnAccount, false }
func (b *ChangeBlock) BalanceField() (common.Amount, bool)  { return common.Amount{}, false }
func (b *ChangeBlock) LinkField() (common.Link, bool)       { return common.Link{}, false }
func (b *ChangeBlock) SourceField() (common.Hash, bool)     { return common.ZeroHash, false }
func (b *ChangeBlock) RepresentativeField() (common.Account, bool) {
	return b.Representative, true
}
func (b *ChangeBlock) DestinationField() (common.Account, bool) {
	return common.BurnAccount, false
}

func (b *ChangeBlock) ValidPredecessor(t BlockType) bool {
	switch t {
	case BlockSend, BlockReceive, BlockOpen, BlockChange:
		return true
	default:
		return false
	}
}

func (b *ChangeBlock) EncodeBody(w io.Writer) {
	w.Write(b.PreviousHash[:])
	w.Write(b.Representative[:])
	w.Write(b.Sig[:])
	writeUint64LE(w, b.PoW)
}

// statePreamble is the 32-byte big-endian constant prefixed to the state
// block hash preimage, distinguishing it from legacy preimages.
var statePreamble = func() [32]byte {
	var p [32]byte
	p[31] = byte(BlockState)
	return p
}()

// StateBlock is the unified variant. Link is context dependent: destination
// on sends, source on receives, epoch sentinel on upgrades, zero on pure
// representative changes.
type StateBlock struct {
	Account        common.Account
	PreviousHash   common.Hash
	Representative common.Account
	Balance        common.Amount
	Link           common.Link
	Sig            common.Signature
	PoW            uint64

	hash hashCache
}

func (b *StateBlock) Type() BlockType { return BlockState }

// Hash digests the fixed 176-byte preimage: preamble, account, previous,
// representative, balance, link.
func (b *StateBlock) Hash() common.Hash {
	return b.hash.get(func() common.Hash {
		return crypto.HashBlake2b(
			statePreamble[:],
			b.Account[:],
			b.PreviousHash[:],
			b.Representative[:],
			b.Balance.Bytes(),
			b.Link[:],
		)
	})
}

func (b *StateBlock) Previous() common.Hash { return b.PreviousHash }

func (b *StateBlock) Root() common.Root {
	if b.PreviousHash.IsZero() {
		return common.Root(b.Account)
	}
	return b.PreviousHash.ToRoot()
}

func (b *StateBlock) Work() uint64                    { return b.PoW }
func (b *StateBlock) SetWork(w uint64)                { b.PoW = w }
func (b *StateBlock) Signature() common.Signature     { return b.Sig }
func (b *StateBlock) SetSignature(s common.Signature) { b.Sig = s }

func (b *StateBlock) AccountField() (common.Account, bool) { return b.Account, true }
func (b *StateBlock) BalanceField() (common.Amount, bool)  { return b.Balance, true }
func (b *StateBlock) LinkField() (common.Link, bool)       { return b.Link, true }
func (b *StateBlock) SourceField() (common.Hash, bool)     { return common.ZeroHash, false }
func (b *StateBlock) RepresentativeField() (common.Account, bool) {
	return b.Representative, true
}
func (b *StateBlock) DestinationField() (common.Account, bool) {
	return common.BurnAccount, false
}

func (b *StateBlock) ValidPredecessor(BlockType) bool { return true }

func (b *StateBlock) EncodeBody(w io.Writer) {
	w.Write(b.Account[:])
	w.Write(b.PreviousHash[:])
	w.Write(b.Representative[:])
	w.Write(b.Balance.Bytes())
	w.Write(b.Link[:])
	w.Write(b.Sig[:])
	// State blocks carry work big-endian, unlike the legacy variants.
	writeUint64BE(w, b.PoW)
}

var (
	// ErrInvalidBlockType is returned when decoding an unknown type tag.
	ErrInvalidBlockType = errors.New("invalid block type")
)

// EncodeBlock writes the one-byte type tag followed by the body.
func EncodeBlock(w io.Writer, b Block) {
	w.Write([]byte{byte(b.Type())})
	b.EncodeBody(w)
}

type reader struct {
	r   io.Reader
	err error
}

func (r *reader) bytes(n int) []byte {
	b := make([]byte, n)
	if r.err == nil {
		_, r.err = io.ReadFull(r.r, b)
	}
	return b
}

func (r *reader) hash() common.Hash       { return common.BytesToHash(r.bytes(32)) }
func (r *reader) account() common.Account { return common.Account(common.BytesToHash(r.bytes(32))) }
func (r *reader) link() common.Link       { return common.Link(common.BytesToHash(r.bytes(32))) }
func (r *reader) amount() common.Amount   { return common.AmountFromBytes(r.bytes(16)) }

func (r *reader) signature() common.Signature {
	var s common.Signature
	copy(s[:], r.bytes(64))
	return s
}

func (r *reader) uint64BE() uint64 { return binary.BigEndian.Uint64(r.bytes(8)) }
func (r *reader) uint64LE() uint64 { return binary.LittleEndian.Uint64(r.bytes(8)) }
func (r *reader) byte() byte       { return r.bytes(1)[0] }

// DecodeBlockBody reads the body of a block whose type tag was already
// consumed.
func DecodeBlockBody(src io.Reader, t BlockType) (Block, error) {
	r := &reader{r: src}
	var b Block
	switch t {
	case BlockSend:
		blk := &SendBlock{}
		blk.PreviousHash = r.hash()
		blk.Destination = r.account()
		blk.Balance = r.amount()
		blk.Sig = r.signature()
		blk.PoW = r.uint64LE()
		b = blk
	case BlockReceive:
		blk := &ReceiveBlock{}
		blk.PreviousHash = r.hash()
		blk.Source = r.hash()
		blk.Sig = r.signature()
		blk.PoW = r.uint64LE()
		b = blk
	case BlockOpen:
		blk := &OpenBlock{}
		blk.Source = r.hash()
		blk.Representative = r.account()
		blk.Account = r.account()
		blk.Sig = r.signature()
		blk.PoW = r.uint64LE()
		b = blk
	case BlockChange:
		blk := &ChangeBlock{}
		blk.PreviousHash = r.hash()
		blk.Representative = r.account()
		blk.Sig = r.signature()
		blk.PoW = r.uint64LE()
		b = blk
	case BlockState:
		blk := &StateBlock{}
		blk.Account = r.account()
		blk.PreviousHash = r.hash()
		blk.Representative = r.account()
		blk.Balance = r.amount()
		blk.Link = r.link()
		blk.Sig = r.signature()
		blk.PoW = r.uint64BE()
		b = blk
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockType, t)
	}
	if r.err != nil {
		return nil, r.err
	}
	return b, nil
}

// DecodeBlock reads a type tag and the matching body.
func DecodeBlock(src io.Reader) (Block, error) {
	var tag [1]byte
	if _, err := io.ReadFull(src, tag[:]); err != nil {
		return nil, err
	}
	return DecodeBlockBody(src, BlockType(tag[0]))
}
