// Copyright 2024 The go-nano Authors
// This file is part of go-nano.
//
// go-nano is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-nano is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-nano. If not, see <http://www.gnu.org/licenses/>.

// nanod is the ledger node daemon.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nanocurrency/go-nano/log"
	"github.com/nanocurrency/go-nano/node"
	"github.com/urfave/cli/v2"
)

var (
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "Network to join (dev, beta, test, live)",
		Value: "live",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the ledger database",
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info, warn, error)",
		Value: "info",
	}
)

func main() {
	app := &cli.App{
		Name:   "nanod",
		Usage:  "nano ledger node",
		Flags:  []cli.Flag{networkFlag, dataDirFlag, configFlag, verbosityFlag},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:   "dumpconfig",
				Usage:  "Write the effective configuration to stdout",
				Flags:  []cli.Flag{networkFlag, dataDirFlag, configFlag},
				Action: dumpConfig,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func makeConfig(ctx *cli.Context) (node.Config, error) {
	cfg := node.DefaultConfig(ctx.String(networkFlag.Name))
	if path := ctx.String(configFlag.Name); path != "" {
		if err := node.LoadConfig(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if dir := ctx.String(dataDirFlag.Name); dir != "" {
		cfg.DataDir = dir
	}
	if lvl := ctx.String(verbosityFlag.Name); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

func run(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	level, err := log.LevelFromString(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	n.Start()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Info("Shutting down")
	n.Stop()
	return nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	return node.SaveConfig("/dev/stdout", cfg)
}
