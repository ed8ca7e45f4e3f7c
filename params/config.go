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

// Package params registers the compile-time network constants: epoch links
// and signers, work thresholds, quorum parameters and genesis keys for the
// dev, beta, live and test networks.
package params

import (
	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/crypto"
)

// Epoch is the account upgrade version. Epochs are strictly ordered and
// upgrades must be sequential.
type Epoch uint8

const (
	EpochInvalid Epoch = iota
	Epoch0
	Epoch1
	Epoch2
)

// EpochMax is the newest epoch any block can carry.
const EpochMax = Epoch2

func (e Epoch) String() string {
	switch e {
	case Epoch0:
		return "epoch_0"
	case Epoch1:
		return "epoch_1"
	case Epoch2:
		return "epoch_2"
	default:
		return "invalid"
	}
}

// IsSequentialEpoch reports whether upgrading from to to+1 is legal.
func IsSequentialEpoch(from, to Epoch) bool {
	return from >= Epoch0 && to == from+1 && to <= EpochMax
}

// Epochs maps each non-zero epoch to its distinguished link sentinel and
// designated signer.
type Epochs struct {
	links   map[common.Link]Epoch
	signers map[Epoch]common.Account
	byEpoch map[Epoch]common.Link
}

// NewEpochs builds an empty table; networks register their upgrades on it.
func NewEpochs() *Epochs {
	return &Epochs{
		links:   make(map[common.Link]Epoch),
		signers: make(map[Epoch]common.Account),
		byEpoch: make(map[Epoch]common.Link),
	}
}

// Add registers an epoch upgrade.
func (e *Epochs) Add(epoch Epoch, signer common.Account, link common.Link) {
	e.links[link] = epoch
	e.signers[epoch] = signer
	e.byEpoch[epoch] = link
}

// IsEpochLink reports whether link is a registered epoch sentinel.
func (e *Epochs) IsEpochLink(link common.Link) bool {
	_, ok := e.links[link]
	return ok
}

// Epoch resolves a link to its epoch version, EpochInvalid if unknown.
func (e *Epochs) Epoch(link common.Link) Epoch {
	if v, ok := e.links[link]; ok {
		return v
	}
	return EpochInvalid
}

// Signer returns the key allowed to sign blocks for the given epoch.
func (e *Epochs) Signer(epoch Epoch) (common.Account, bool) {
	s, ok := e.signers[epoch]
	return s, ok
}

// Link returns the sentinel for the given epoch.
func (e *Epochs) Link(epoch Epoch) (common.Link, bool) {
	l, ok := e.byEpoch[epoch]
	return l, ok
}

// EpochLink builds the canonical link sentinel: the ASCII marker text
// zero-padded to 32 bytes.
func EpochLink(marker string) common.Link {
	var l common.Link
	copy(l[:], marker)
	return l
}

// NetworkConfig bundles every compile-time constant of one network.
type NetworkConfig struct {
	Name string

	Epochs *Epochs
	Work   WorkThresholds

	// GenesisKey is set on the dev network only; beta/live/test networks
	// embed public data.
	GenesisKey     crypto.PrivateKey
	GenesisAccount common.Account

	// GenesisJSON is the embedded genesis open block for networks whose
	// signing key is not public; empty on dev, which signs on the fly.
	GenesisJSON string

	// OnlineWeightQuorumPercent is the fraction of tracked online weight an
	// election winner must reach.
	OnlineWeightQuorumPercent uint8
	// OnlineWeightMinimum is the floor used before enough reps are observed.
	OnlineWeightMinimum common.Amount
}

// QuorumDelta computes the confirmation threshold from the online weight.
func (c *NetworkConfig) QuorumDelta(online common.Amount) common.Amount {
	if online.Cmp(c.OnlineWeightMinimum) < 0 {
		online = c.OnlineWeightMinimum
	}
	return online.MulDiv(uint64(c.OnlineWeightQuorumPercent), 100)
}

// DevGenesisKeyHex is the well-known development network private key.
const DevGenesisKeyHex = "34F0A37AAD20F4A260F0A5B3CB3D7FB50673212263E58A380BC10474BB039CE4"

// DevNetwork returns the development network: the genesis key signs epoch
// upgrades and work requirements are disabled so tests can build blocks
// without a work generator.
func DevNetwork() *NetworkConfig {
	key, err := crypto.PrivateKeyFromHex(DevGenesisKeyHex)
	if err != nil {
		panic(err)
	}
	genesis := key.PublicKey()
	epochs := NewEpochs()
	epochs.Add(Epoch1, genesis, EpochLink("epoch v1 block"))
	epochs.Add(Epoch2, genesis, EpochLink("epoch v2 block"))
	return &NetworkConfig{
		Name:                      "dev",
		Epochs:                    epochs,
		Work:                      WorkDisabled,
		GenesisKey:                key,
		GenesisAccount:            genesis,
		OnlineWeightQuorumPercent: 67,
		OnlineWeightMinimum:       common.NewAmount(0),
	}
}

// LiveGenesisAccountHex is the public key of the live-network genesis.
const LiveGenesisAccountHex = "E89208DD038FBB269987689621D52292AE9C35941A7484756ECCED92A65093BA"

// liveGenesisJSON is the published live-network genesis open block.
const liveGenesisJSON = `{
	"type": "open",
	"source": "E89208DD038FBB269987689621D52292AE9C35941A7484756ECCED92A65093BA",
	"representative": "xrb_3t6k35gi95xu6tergt6p69ck76ogmitsa8mnijtpxm9fkcm736xtoncuohr3",
	"account": "xrb_3t6k35gi95xu6tergt6p69ck76ogmitsa8mnijtpxm9fkcm736xtoncuohr3",
	"work": "62f05417dd3fb691",
	"signature": "9F0C933C8ADE004D808EA1985FA746A7E95BA2A38F867640F53EC8F180BDFE9E2C1268DEAD7C2664F356E37ABA362BC58E46DBA03E523A7B5A19E4B6EB12BB02"
}`

// LiveNetwork returns the production network constants.
func LiveNetwork() *NetworkConfig {
	var genesis common.Account
	if err := genesis.UnmarshalText([]byte(LiveGenesisAccountHex)); err != nil {
		panic(err)
	}
	epochs := NewEpochs()
	epochs.Add(Epoch1, genesis, EpochLink("epoch v1 block"))
	epochs.Add(Epoch2, genesis, EpochLink("epoch v2 block"))
	return &NetworkConfig{
		Name:                      "live",
		Epochs:                    epochs,
		Work:                      WorkLive,
		GenesisAccount:            genesis,
		GenesisJSON:               liveGenesisJSON,
		OnlineWeightQuorumPercent: 67,
		// 60e36 raw: the published online_weight_minimum.
		OnlineWeightMinimum: common.HexToAmount("2D239465031DA91605B947C000000000"),
	}
}

// BetaNetwork mirrors live semantics with relaxed work.
func BetaNetwork() *NetworkConfig {
	c := LiveNetwork()
	c.Name = "beta"
	c.Work = WorkBeta
	return c
}

// TestNetwork is the public test network: live rules, beta-grade work.
func TestNetwork() *NetworkConfig {
	c := LiveNetwork()
	c.Name = "test"
	c.Work = WorkBeta
	return c
}

// NetworkByName resolves the --network flag value.
func NetworkByName(name string) *NetworkConfig {
	switch name {
	case "dev":
		return DevNetwork()
	case "beta":
		return BetaNetwork()
	case "test":
		return TestNetwork()
	default:
		return LiveNetwork()
	}
}
