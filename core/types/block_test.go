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
	"bytes"
	"encoding/json"
	"testing"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/crypto"
	"github.com/nanocurrency/go-nano/params"
	"github.com/stretchr/testify/require"
)

func testKey(tag byte) crypto.PrivateKey {
	var seed [32]byte
	seed[0] = tag
	seed[31] = 0x5a
	return crypto.NewPrivateKey(seed)
}

func testHash(tag byte) common.Hash {
	var h common.Hash
	h[0] = tag
	h[31] = tag
	return h
}

func sampleBlocks() []Block {
	key := testKey(1)
	other := testKey(2)
	return []Block{
		&SendBlock{
			PreviousHash: testHash(1),
			Destination:  other.PublicKey(),
			Balance:      common.NewAmount(12345),
			Sig:          key.Sign(testHash(9).Bytes()),
			PoW:          0xdeadbeefcafe,
		},
		&ReceiveBlock{
			PreviousHash: testHash(2),
			Source:       testHash(3),
			PoW:          7,
		},
		&OpenBlock{
			Source:         testHash(4),
			Representative: key.PublicKey(),
			Account:        key.PublicKey(),
			PoW:            1,
		},
		&ChangeBlock{
			PreviousHash:   testHash(5),
			Representative: other.PublicKey(),
		},
		&StateBlock{
			Account:        key.PublicKey(),
			PreviousHash:   testHash(6),
			Representative: other.PublicKey(),
			Balance:        common.NewAmount(999),
			Link:           testHash(7).ToAccount().ToLink(),
			PoW:            0x1122334455667788,
		},
	}
}

func TestBlockWireRoundTrip(t *testing.T) {
	for _, b := range sampleBlocks() {
		var buf bytes.Buffer
		EncodeBlock(&buf, b)
		decoded, err := DecodeBlock(&buf)
		require.NoError(t, err, b.Type())
		require.Equal(t, b.Type(), decoded.Type())
		require.Equal(t, b.Hash(), decoded.Hash(), "hash must survive the wire for %s", b.Type())
		require.Equal(t, b.Work(), decoded.Work())
		require.Equal(t, b.Signature(), decoded.Signature())

		// A second encode must be byte-identical.
		var buf2 bytes.Buffer
		EncodeBlock(&buf2, decoded)
		var buf3 bytes.Buffer
		EncodeBlock(&buf3, b)
		require.Equal(t, buf3.Bytes(), buf2.Bytes())
	}
}

func TestBlockJSONRoundTrip(t *testing.T) {
	for _, b := range sampleBlocks() {
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		decoded, err := BlockFromJSON(raw)
		require.NoError(t, err, "%s: %s", b.Type(), raw)
		require.Equal(t, b.Hash(), decoded.Hash(), "JSON round trip for %s", b.Type())
		require.Equal(t, b.Work(), decoded.Work())
		require.Equal(t, b.Signature(), decoded.Signature())
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := DecodeBlock(bytes.NewReader([]byte{0xff}))
	require.ErrorIs(t, err, ErrInvalidBlockType)

	_, err = BlockFromJSON([]byte(`{"type":"utx"}`))
	require.ErrorIs(t, err, ErrInvalidBlockType)
}

func TestBlockHashExcludesWorkAndSignature(t *testing.T) {
	a := &StateBlock{Account: testKey(1).PublicKey(), Balance: common.NewAmount(1)}
	b := &StateBlock{Account: testKey(1).PublicKey(), Balance: common.NewAmount(1)}
	b.SetWork(42)
	b.SetSignature(testKey(2).Sign([]byte("x")))
	require.Equal(t, a.Hash(), b.Hash())

	c := &StateBlock{Account: testKey(1).PublicKey(), Balance: common.NewAmount(2)}
	require.NotEqual(t, a.Hash(), c.Hash())
}

func TestRootSelection(t *testing.T) {
	open := &StateBlock{Account: testKey(1).PublicKey(), Link: testHash(1).ToAccount().ToLink()}
	require.True(t, IsOpen(open))
	require.Equal(t, common.Root(open.Account), open.Root())

	chained := &StateBlock{Account: testKey(1).PublicKey(), PreviousHash: testHash(2)}
	require.False(t, IsOpen(chained))
	require.Equal(t, testHash(2).ToRoot(), chained.Root())

	legacyOpen := &OpenBlock{Account: testKey(1).PublicKey()}
	require.True(t, IsOpen(legacyOpen))
	require.Equal(t, common.Root(legacyOpen.Account), legacyOpen.Root())

	qr := QualifiedRoot(chained)
	require.Equal(t, chained.Root(), qr.Root)
	require.Equal(t, testHash(2), qr.Previous)
}

func TestSourceAndDestinationHelpers(t *testing.T) {
	send := &SendBlock{Destination: testKey(3).PublicKey()}
	require.Equal(t, testKey(3).PublicKey(), DestinationOrLink(send))
	require.Equal(t, common.ZeroHash, SourceOrLink(send))

	recv := &ReceiveBlock{Source: testHash(8)}
	require.Equal(t, testHash(8), SourceOrLink(recv))

	state := &StateBlock{Link: testHash(9).ToAccount().ToLink()}
	require.Equal(t, testHash(9), SourceOrLink(state))
	require.Equal(t, testHash(9).ToAccount(), DestinationOrLink(state))
}

func TestSidebandRoundTrip(t *testing.T) {
	sb := BlockSideband{
		Account:     testKey(1).PublicKey(),
		Successor:   testHash(1),
		Balance:     common.NewAmount(777),
		Height:      42,
		Timestamp:   1700000000,
		Details:     BlockDetails{Epoch: params.Epoch2, IsSend: true},
		SourceEpoch: params.Epoch1,
	}
	var buf bytes.Buffer
	sb.Encode(&buf)
	decoded, err := DecodeSideband(&buf)
	require.NoError(t, err)
	require.Equal(t, sb, decoded)
}

func TestBlockDetailsPacking(t *testing.T) {
	cases := []BlockDetails{
		{Epoch: params.Epoch0},
		{Epoch: params.Epoch1, IsSend: true},
		{Epoch: params.Epoch2, IsReceive: true},
		{Epoch: params.Epoch2, IsEpoch: true},
		{Epoch: params.Epoch1, IsSend: true, IsReceive: true, IsEpoch: true},
	}
	for _, d := range cases {
		require.Equal(t, d, UnpackBlockDetails(d.Packed()))
	}
}

func TestSavedBlockRoundTrip(t *testing.T) {
	blocks := sampleBlocks()
	sb := &SavedBlock{
		Block: blocks[4],
		Sideband: BlockSideband{
			Account:   testKey(1).PublicKey(),
			Balance:   common.NewAmount(999),
			Height:    3,
			Timestamp: 1700000001,
			Details:   BlockDetails{Epoch: params.Epoch0, IsReceive: true},
		},
	}
	var buf bytes.Buffer
	sb.Encode(&buf)
	decoded, err := DecodeSavedBlock(&buf)
	require.NoError(t, err)
	require.Equal(t, sb.Hash(), decoded.Hash())
	require.Equal(t, sb.Sideband, decoded.Sideband)
}

func TestAccountInfoRoundTrip(t *testing.T) {
	info := AccountInfo{
		Head:           testHash(1),
		Representative: testKey(1).PublicKey(),
		OpenBlock:      testHash(2),
		Balance:        common.MaxAmount,
		Modified:       123456,
		BlockCount:     99,
		Epoch:          params.Epoch2,
	}
	var buf bytes.Buffer
	info.Encode(&buf)
	decoded, err := DecodeAccountInfo(&buf)
	require.NoError(t, err)
	require.Equal(t, info, decoded)
}

func TestPendingRoundTrip(t *testing.T) {
	key := PendingKey{Account: testKey(1).PublicKey(), Hash: testHash(3)}
	require.Equal(t, key, DecodePendingKey(key.Bytes()))

	info := PendingInfo{Source: testKey(2).PublicKey(), Amount: common.NewAmount(5), Epoch: params.Epoch1}
	var buf bytes.Buffer
	info.Encode(&buf)
	decoded, err := DecodePendingInfo(&buf)
	require.NoError(t, err)
	require.Equal(t, info, decoded)
}

func TestVoteSignAndVerify(t *testing.T) {
	key := testKey(7)
	v := NewVote(key, PackVoteTimestamp(1699999999000, 4), []common.Hash{testHash(1), testHash(2)})
	require.NoError(t, v.Validate())
	require.False(t, v.IsFinal())

	// Tampering breaks the signature.
	v.Hashes[0] = testHash(3)
	require.Error(t, v.Validate())

	final := NewVote(key, FinalVoteTimestamp, []common.Hash{testHash(1)})
	require.True(t, final.IsFinal())
	require.NoError(t, final.Validate())
}

func TestVoteWireRoundTrip(t *testing.T) {
	key := testKey(8)
	v := NewVote(key, 1234567890, []common.Hash{testHash(1), testHash(2), testHash(3)})
	var buf bytes.Buffer
	v.Encode(&buf)
	decoded, err := DecodeVote(&buf, len(v.Hashes))
	require.NoError(t, err)
	require.Equal(t, v.VotingAccount, decoded.VotingAccount)
	require.Equal(t, v.Timestamp, decoded.Timestamp)
	require.Equal(t, v.Hashes, decoded.Hashes)
	require.NoError(t, decoded.Validate())
}

func TestDependentBlocks(t *testing.T) {
	epochs := params.NewEpochs()
	genesis := testKey(1).PublicKey()

	send := &SavedBlock{
		Block:    &SendBlock{PreviousHash: testHash(1)},
		Sideband: BlockSideband{Details: BlockDetails{IsSend: true}},
	}
	require.Equal(t, []common.Hash{testHash(1)}, send.DependentBlocks(epochs, genesis).Iter())

	recv := &SavedBlock{
		Block:    &ReceiveBlock{PreviousHash: testHash(1), Source: testHash(2)},
		Sideband: BlockSideband{Details: BlockDetails{IsReceive: true}},
	}
	require.Equal(t, []common.Hash{testHash(1), testHash(2)}, recv.DependentBlocks(epochs, genesis).Iter())

	genesisOpen := &SavedBlock{
		Block: &OpenBlock{Account: genesis, Source: genesis.ToHash()},
	}
	require.Empty(t, genesisOpen.DependentBlocks(epochs, genesis).Iter())

	stateRecv := &SavedBlock{
		Block:    &StateBlock{PreviousHash: testHash(3), Link: testHash(4).ToAccount().ToLink()},
		Sideband: BlockSideband{Details: BlockDetails{IsReceive: true}},
	}
	require.Equal(t, []common.Hash{testHash(3), testHash(4)}, stateRecv.DependentBlocks(epochs, genesis).Iter())
}
