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

package params

// WorkThresholds holds the per-epoch proof-of-work difficulty floors. A
// nonce is valid when its work value meets the threshold selected by the
// block's epoch and subtype.
type WorkThresholds struct {
	// Epoch1 covers every Epoch0/Epoch1 block.
	Epoch1 uint64
	// Epoch2 covers Epoch2 sends and changes.
	Epoch2 uint64
	// Epoch2Receive covers Epoch2 receives and epoch upgrades.
	Epoch2Receive uint64
	// Entry is the cheapest plausible difficulty, checked before a block is
	// even queued.
	Entry uint64
	// Base is the difficulty used when details are not yet known.
	Base uint64
}

// WorkLive are the mainnet thresholds.
var WorkLive = WorkThresholds{
	Epoch1:        0xffffffc000000000,
	Epoch2:        0xfffffff800000000,
	Epoch2Receive: 0xfffffe0000000000,
	Entry:         0xfffffe0000000000,
	Base:          0xfffffff800000000,
}

// WorkBeta relaxes mainnet: 64x for Epoch1, 1024x for Epoch2 and 8x for
// Epoch2Receive.
var WorkBeta = WorkThresholds{
	Epoch1:        0xfffff00000000000,
	Epoch2:        0xffffe00000000000,
	Epoch2Receive: 0xfffff00000000000,
	Entry:         0xffffe00000000000,
	Base:          0xffffe00000000000,
}

// WorkDisabled accepts any nonce; used by the dev network and ledger tests,
// which cannot run a work generator.
var WorkDisabled = WorkThresholds{}

// Threshold picks the difficulty floor for a block of the given epoch and
// subtype flags.
func (w WorkThresholds) Threshold(epoch Epoch, isReceive, isEpoch bool) uint64 {
	switch epoch {
	case Epoch2:
		if isReceive || isEpoch {
			return w.Epoch2Receive
		}
		return w.Epoch2
	default:
		return w.Epoch1
	}
}

// Validate reports whether value meets the threshold for the given details.
func (w WorkThresholds) Validate(value uint64, epoch Epoch, isReceive, isEpoch bool) bool {
	return value >= w.Threshold(epoch, isReceive, isEpoch)
}

// ValidateEntry is the pre-queue check against the cheapest plausible
// difficulty.
func (w WorkThresholds) ValidateEntry(value uint64) bool {
	return value >= w.Entry
}
