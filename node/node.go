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

// Package node assembles the subsystems into a running instance: store,
// ledger, block processor, elections and cementer, with the observer wiring
// between them.
package node

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
	"github.com/nanocurrency/go-nano/ledger"
	"github.com/nanocurrency/go-nano/log"
	"github.com/nanocurrency/go-nano/node/blockprocessing"
	"github.com/nanocurrency/go-nano/node/cementing"
	"github.com/nanocurrency/go-nano/node/consensus"
	"github.com/nanocurrency/go-nano/params"
	"github.com/nanocurrency/go-nano/store"
	"golang.org/x/sync/errgroup"
)

// Node owns every subsystem and their lifecycles.
type Node struct {
	cfg    Config
	net    *params.NetworkConfig
	logger log.Logger

	Store     store.Store
	Ledger    *ledger.Ledger
	Unchecked *blockprocessing.UncheckedMap
	Processor *blockprocessing.BlockProcessor
	VoteCache *consensus.VoteCache
	Online    *consensus.OnlineReps
	Elections *consensus.ActiveElections
	Cementer  *cementing.Cementer

	observers errgroup.Group
	obsCancel context.CancelFunc
}

// New builds a stopped node from the configuration.
func New(cfg Config) (*Node, error) {
	net := params.NetworkByName(cfg.Network)

	var st store.Store
	if cfg.DataDir == "" {
		st = store.NewMemoryStore()
	} else {
		ls, err := store.NewLevelStore(filepath.Join(cfg.DataDir, "ledger"))
		if err != nil {
			return nil, fmt.Errorf("open ledger store: %w", err)
		}
		st = ls
	}

	ldg, err := ledger.NewLedger(st, net)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	n := &Node{
		cfg:    cfg,
		net:    net,
		logger: log.New("module", "node"),
		Store:  st,
		Ledger: ldg,
	}
	n.Unchecked = blockprocessing.NewUncheckedMap(cfg.UncheckedMax)
	n.Processor = blockprocessing.New(cfg.BlockProcessor, ldg, n.Unchecked)
	n.VoteCache = consensus.NewVoteCache(cfg.VoteCache)
	n.Online = consensus.NewOnlineReps(ldg.Weight)
	n.Elections = consensus.NewActiveElections(cfg.Elections, ldg, n.VoteCache, n.Online)
	n.Cementer = cementing.New(cfg.Cementing, ldg)
	n.Elections.SetCementer(n.Cementer)
	n.Elections.SetForcer(n.Processor)
	return n, nil
}

// Start launches the workers and the observer wiring.
func (n *Node) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	n.obsCancel = cancel

	// Applied blocks flow into the election surface.
	processedCh := make(chan blockprocessing.Processed, 1024)
	processedSub := n.Processor.SubscribeProcessed(processedCh)
	n.observers.Go(func() error {
		defer processedSub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-processedCh:
				if ev.Status == ledger.Progress {
					n.Elections.InsertBlock(ev.Block)
				}
			}
		}
	})

	// Rolled-back blocks are surfaced for telemetry.
	rolledBackCh := make(chan blockprocessing.RolledBack, 64)
	rolledBackSub := n.Processor.SubscribeRolledBack(rolledBackCh)
	n.observers.Go(func() error {
		defer rolledBackSub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-rolledBackCh:
				n.logger.Info("Blocks rolled back", "count", len(ev.Blocks),
					"replacement", ev.Replacement.Hash())
			}
		}
	})

	cementedCh := make(chan common.Hash, 1024)
	cementedSub := n.Cementer.SubscribeCemented(cementedCh)
	n.observers.Go(func() error {
		defer cementedSub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return nil
			case hash := <-cementedCh:
				n.logger.Trace("Block cemented", "hash", hash)
			}
		}
	})

	n.Processor.Start()
	n.Elections.Start()
	n.Cementer.Start()
	n.logger.Info("Node started", "network", n.net.Name)
}

// Stop shuts the subsystems down in dependency order: producers feed the
// processor, the processor feeds elections, elections feed the cementer.
func (n *Node) Stop() {
	n.Processor.Stop()
	n.Elections.Stop()
	n.Cementer.Stop()
	if n.obsCancel != nil {
		n.obsCancel()
	}
	_ = n.observers.Wait()
	if err := n.Store.Close(); err != nil {
		n.logger.Error("Failed to close store", "err", err)
	}
	n.logger.Info("Node stopped")
}

// ProcessLocal submits a locally originated block and waits for its
// outcome.
func (n *Node) ProcessLocal(b types.Block) (ledger.BlockStatus, bool) {
	return n.Processor.AddBlocking(b, blockprocessing.SourceLocal)
}

// ProcessVote feeds a transport vote into the consensus surface.
func (n *Node) ProcessVote(v *types.Vote) error {
	if err := v.Validate(); err != nil {
		return err
	}
	n.Elections.ProcessVote(v)
	return nil
}
