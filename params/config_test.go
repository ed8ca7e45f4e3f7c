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

import (
	"testing"

	"github.com/nanocurrency/go-nano/common"
	"github.com/stretchr/testify/require"
)

func TestEpochOrderingAndSequence(t *testing.T) {
	require.True(t, Epoch0 < Epoch1)
	require.True(t, Epoch1 < Epoch2)

	require.True(t, IsSequentialEpoch(Epoch0, Epoch1))
	require.True(t, IsSequentialEpoch(Epoch1, Epoch2))
	require.False(t, IsSequentialEpoch(Epoch0, Epoch2))
	require.False(t, IsSequentialEpoch(Epoch2, Epoch1))
	require.False(t, IsSequentialEpoch(EpochInvalid, Epoch0))
}

func TestEpochTable(t *testing.T) {
	net := DevNetwork()
	link1, ok := net.Epochs.Link(Epoch1)
	require.True(t, ok)
	require.True(t, net.Epochs.IsEpochLink(link1))
	require.Equal(t, Epoch1, net.Epochs.Epoch(link1))

	signer, ok := net.Epochs.Signer(Epoch1)
	require.True(t, ok)
	require.Equal(t, net.GenesisAccount, signer)

	var random common.Link
	random[0] = 0x9c
	require.False(t, net.Epochs.IsEpochLink(random))
	require.Equal(t, EpochInvalid, net.Epochs.Epoch(random))
}

func TestEpochLinkIsPaddedMarker(t *testing.T) {
	link := EpochLink("epoch v1 block")
	require.Equal(t, []byte("epoch v1 block"), link.Bytes()[:14])
	for _, b := range link.Bytes()[14:] {
		require.Zero(t, b)
	}
}

func TestWorkThresholdSelection(t *testing.T) {
	w := WorkLive
	require.Equal(t, w.Epoch1, w.Threshold(Epoch0, false, false))
	require.Equal(t, w.Epoch1, w.Threshold(Epoch1, true, false))
	require.Equal(t, w.Epoch2, w.Threshold(Epoch2, false, false))
	require.Equal(t, w.Epoch2Receive, w.Threshold(Epoch2, true, false))
	require.Equal(t, w.Epoch2Receive, w.Threshold(Epoch2, false, true))

	require.True(t, w.Validate(^uint64(0), Epoch2, false, false))
	require.False(t, w.Validate(0, Epoch2, false, false))

	// The dev network accepts anything, including zero work.
	require.True(t, WorkDisabled.Validate(0, Epoch2, false, false))
	require.True(t, WorkDisabled.ValidateEntry(0))
}

func TestQuorumDelta(t *testing.T) {
	net := DevNetwork()
	require.Equal(t, common.NewAmount(67), net.QuorumDelta(common.NewAmount(100)))

	// The minimum floors the denominator.
	net.OnlineWeightMinimum = common.NewAmount(1000)
	require.Equal(t, common.NewAmount(670), net.QuorumDelta(common.NewAmount(100)))
}

func TestNetworkByName(t *testing.T) {
	require.Equal(t, "dev", NetworkByName("dev").Name)
	require.Equal(t, "beta", NetworkByName("beta").Name)
	require.Equal(t, "live", NetworkByName("anything-else").Name)
	require.NotEmpty(t, NetworkByName("live").GenesisJSON)
}
