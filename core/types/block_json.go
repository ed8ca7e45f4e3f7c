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
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nanocurrency/go-nano/common"
)

// workHex renders work in the canonical 16-character hex form.
type workHex uint64

func (w workHex) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%016x", uint64(w))), nil
}

func (w *workHex) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(string(b), 16, 64)
	if err != nil {
		return fmt.Errorf("invalid work %q: %w", b, err)
	}
	*w = workHex(v)
	return nil
}

// hexAmount renders legacy send balances in the 32-character hex form, as
// opposed to the decimal form state blocks use.
type hexAmount common.Amount

func (a hexAmount) MarshalText() ([]byte, error) {
	return []byte(common.Amount(a).Hex()), nil
}

func (a *hexAmount) UnmarshalText(b []byte) error {
	v := common.HexToAmount(string(b))
	*a = hexAmount(v)
	return nil
}

type jsonSend struct {
	Type        string           `json:"type"`
	Previous    common.Hash      `json:"previous"`
	Destination common.Account   `json:"destination"`
	Balance     hexAmount        `json:"balance"`
	Work        workHex          `json:"work"`
	Signature   common.Signature `json:"signature"`
}

type jsonReceive struct {
	Type      string           `json:"type"`
	Previous  common.Hash      `json:"previous"`
	Source    common.Hash      `json:"source"`
	Work      workHex          `json:"work"`
	Signature common.Signature `json:"signature"`
}

type jsonOpen struct {
	Type           string           `json:"type"`
	Source         common.Hash      `json:"source"`
	Representative common.Account   `json:"representative"`
	Account        common.Account   `json:"account"`
	Work           workHex          `json:"work"`
	Signature      common.Signature `json:"signature"`
}

type jsonChange struct {
	Type           string           `json:"type"`
	Previous       common.Hash      `json:"previous"`
	Representative common.Account   `json:"representative"`
	Work           workHex          `json:"work"`
	Signature      common.Signature `json:"signature"`
}

type jsonState struct {
	Type           string           `json:"type"`
	Account        common.Account   `json:"account"`
	Previous       common.Hash      `json:"previous"`
	Representative common.Account   `json:"representative"`
	Balance        common.Amount    `json:"balance"`
	Link           common.Link      `json:"link"`
	LinkAsAccount  common.Account   `json:"link_as_account"`
	Signature      common.Signature `json:"signature"`
	Work           workHex          `json:"work"`
}

func (b *SendBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(&jsonSend{
		Type:        "send",
		Previous:    b.PreviousHash,
		Destination: b.Destination,
		Balance:     hexAmount(b.Balance),
		Work:        workHex(b.PoW),
		Signature:   b.Sig,
	})
}

func (b *SendBlock) UnmarshalJSON(data []byte) error {
	var j jsonSend
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b.PreviousHash = j.Previous
	b.Destination = j.Destination
	b.Balance = common.Amount(j.Balance)
	b.Sig = j.Signature
	b.PoW = uint64(j.Work)
	b.hash.reset()
	return nil
}

func (b *ReceiveBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(&jsonReceive{
		Type:      "receive",
		Previous:  b.PreviousHash,
		Source:    b.Source,
		Work:      workHex(b.PoW),
		Signature: b.Sig,
	})
}

func (b *ReceiveBlock) UnmarshalJSON(data []byte) error {
	var j jsonReceive
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b.PreviousHash = j.Previous
	b.Source = j.Source
	b.Sig = j.Signature
	b.PoW = uint64(j.Work)
	b.hash.reset()
	return nil
}

func (b *OpenBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(&jsonOpen{
		Type:           "open",
		Source:         b.Source,
		Representative: b.Representative,
		Account:        b.Account,
		Work:           workHex(b.PoW),
		Signature:      b.Sig,
	})
}

func (b *OpenBlock) UnmarshalJSON(data []byte) error {
	var j jsonOpen
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b.Source = j.Source
	b.Representative = j.Representative
	b.Account = j.Account
	b.Sig = j.Signature
	b.PoW = uint64(j.Work)
	b.hash.reset()
	return nil
}

func (b *ChangeBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(&jsonChange{
		Type:           "change",
		Previous:       b.PreviousHash,
		Representative: b.Representative,
		Work:           workHex(b.PoW),
		Signature:      b.Sig,
	})
}

func (b *ChangeBlock) UnmarshalJSON(data []byte) error {
	var j jsonChange
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b.PreviousHash = j.Previous
	b.Representative = j.Representative
	b.Sig = j.Signature
	b.PoW = uint64(j.Work)
	b.hash.reset()
	return nil
}

func (b *StateBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(&jsonState{
		Type:           "state",
		Account:        b.Account,
		Previous:       b.PreviousHash,
		Representative: b.Representative,
		Balance:        b.Balance,
		Link:           b.Link,
		LinkAsAccount:  b.Link.ToAccount(),
		Signature:      b.Sig,
		Work:           workHex(b.PoW),
	})
}

func (b *StateBlock) UnmarshalJSON(data []byte) error {
	var j jsonState
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b.Account = j.Account
	b.PreviousHash = j.Previous
	b.Representative = j.Representative
	b.Balance = j.Balance
	b.Link = j.Link
	b.Sig = j.Signature
	b.PoW = uint64(j.Work)
	b.hash.reset()
	return nil
}

// BlockFromJSON decodes any block variant by its "type" discriminator.
func BlockFromJSON(data []byte) (Block, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	var b Block
	switch probe.Type {
	case "send":
		b = &SendBlock{}
	case "receive":
		b = &ReceiveBlock{}
	case "open":
		b = &OpenBlock{}
	case "change":
		b = &ChangeBlock{}
	case "state":
		b = &StateBlock{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidBlockType, probe.Type)
	}
	if err := json.Unmarshal(data, b); err != nil {
		return nil, err
	}
	return b, nil
}
