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

// AccountInfo is the per-account head record. Exactly one exists per opened
// account.
type AccountInfo struct {
	Head           common.Hash
	Representative common.Account
	OpenBlock      common.Hash
	Balance        common.Amount
	Modified       uint64
	BlockCount     uint64
	Epoch          params.Epoch
}

func (i *AccountInfo) Encode(w io.Writer) {
	w.Write(i.Head[:])
	w.Write(i.Representative[:])
	w.Write(i.OpenBlock[:])
	w.Write(i.Balance.Bytes())
	writeUint64BE(w, i.Modified)
	writeUint64BE(w, i.BlockCount)
	w.Write([]byte{byte(i.Epoch)})
}

func DecodeAccountInfo(src io.Reader) (AccountInfo, error) {
	r := &reader{r: src}
	var i AccountInfo
	i.Head = r.hash()
	i.Representative = r.account()
	i.OpenBlock = r.hash()
	i.Balance = r.amount()
	i.Modified = r.uint64BE()
	i.BlockCount = r.uint64BE()
	i.Epoch = params.Epoch(r.byte())
	return i, r.err
}

// PendingKey addresses a receivable amount: the destination account plus the
// hash of the send that created it.
type PendingKey struct {
	Account common.Account
	Hash    common.Hash
}

func (k PendingKey) Bytes() []byte {
	b := make([]byte, 64)
	copy(b, k.Account[:])
	copy(b[32:], k.Hash[:])
	return b
}

func DecodePendingKey(b []byte) PendingKey {
	var k PendingKey
	copy(k.Account[:], b[:32])
	copy(k.Hash[:], b[32:64])
	return k
}

// PendingInfo is the receivable amount: who sent it, how much, and the
// sender's epoch at send time.
type PendingInfo struct {
	Source common.Account
	Amount common.Amount
	Epoch  params.Epoch
}

func (i *PendingInfo) Encode(w io.Writer) {
	w.Write(i.Source[:])
	w.Write(i.Amount.Bytes())
	w.Write([]byte{byte(i.Epoch)})
}

func DecodePendingInfo(src io.Reader) (PendingInfo, error) {
	r := &reader{r: src}
	var i PendingInfo
	i.Source = r.account()
	i.Amount = r.amount()
	i.Epoch = params.Epoch(r.byte())
	return i, r.err
}

// ConfirmationHeightInfo is the per-account cemented frontier.
type ConfirmationHeightInfo struct {
	Height   uint64
	Frontier common.Hash
}

func (i *ConfirmationHeightInfo) Encode(w io.Writer) {
	writeUint64BE(w, i.Height)
	w.Write(i.Frontier[:])
}

func DecodeConfirmationHeightInfo(src io.Reader) (ConfirmationHeightInfo, error) {
	r := &reader{r: src}
	var i ConfirmationHeightInfo
	i.Height = r.uint64BE()
	i.Frontier = r.hash()
	return i, r.err
}
