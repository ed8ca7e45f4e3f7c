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

package ledger

// BlockStatus is the outcome of validating one candidate block. It is a
// value, not an error: every candidate maps to exactly one status.
type BlockStatus uint8

const (
	// Progress accepts the block.
	Progress BlockStatus = iota
	// Old marks a block already in the ledger.
	Old
	// GapPrevious marks an unknown previous hash; retryable.
	GapPrevious
	// GapSource marks an unknown source/link hash; retryable.
	GapSource
	// GapEpochOpenPending marks an epoch open whose account has no pending
	// entry yet; retryable.
	GapEpochOpenPending
	// Fork conflicts with an existing successor at the same position.
	Fork
	// BadSignature is fatal for this block.
	BadSignature
	// NegativeSpend is a legacy send increasing the balance.
	NegativeSpend
	// Unreceivable is a receive with no matching pending entry.
	Unreceivable
	// BalanceMismatch is a balance delta inconsistent with the block role.
	BalanceMismatch
	// RepresentativeMismatch is an epoch block changing the representative.
	RepresentativeMismatch
	// OpenedBurnAccount is a block acting for the zero account.
	OpenedBurnAccount
	// BlockPosition is a block in an illegal chain position, including
	// non-sequential epoch upgrades.
	BlockPosition
	// InsufficientWork fails the difficulty threshold.
	InsufficientWork
)

func (s BlockStatus) String() string {
	switch s {
	case Progress:
		return "progress"
	case Old:
		return "old"
	case GapPrevious:
		return "gap_previous"
	case GapSource:
		return "gap_source"
	case GapEpochOpenPending:
		return "gap_epoch_open_pending"
	case Fork:
		return "fork"
	case BadSignature:
		return "bad_signature"
	case NegativeSpend:
		return "negative_spend"
	case Unreceivable:
		return "unreceivable"
	case BalanceMismatch:
		return "balance_mismatch"
	case RepresentativeMismatch:
		return "representative_mismatch"
	case OpenedBurnAccount:
		return "opened_burn_account"
	case BlockPosition:
		return "block_position"
	case InsufficientWork:
		return "insufficient_work"
	default:
		return "unknown"
	}
}

// Retryable reports whether the block should be parked in the unchecked map
// rather than discarded.
func (s BlockStatus) Retryable() bool {
	return s == GapPrevious || s == GapSource || s == GapEpochOpenPending
}
