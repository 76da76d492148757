// Copyright 2024 The secret-faucet Authors
// This file is part of secret-faucet.
//
// secret-faucet is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// secret-faucet is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with secret-faucet. If not, see <http://www.gnu.org/licenses/>.

// faucet is the fee-grant faucet server: it issues on-chain basic fee
// allowances to claiming accounts, batching grants into one transaction
// per block.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/scrtlabs/secret-faucet/blockwatch"
	"github.com/scrtlabs/secret-faucet/chain"
	"github.com/scrtlabs/secret-faucet/faucet"
	"github.com/scrtlabs/secret-faucet/params"
	"github.com/scrtlabs/secret-faucet/server"
)

var (
	keyFlag = &cli.StringFlag{
		Name:     "server.sk",
		Usage:    "granter secret key (64 hex digits, optional 0x prefix)",
		EnvVars:  []string{"SERVER_SK"},
		Required: true,
	}
	lcdFlag = &cli.StringFlag{
		Name:     "lcd",
		Usage:    "REST (LCD) endpoint base URL",
		EnvVars:  []string{"SECRET_LCD"},
		Required: true,
	}
	rpcFlag = &cli.StringFlag{
		Name:     "rpc",
		Usage:    "RPC/WebSocket endpoint base URL",
		EnvVars:  []string{"SECRET_RPC"},
		Required: true,
	}
	gasPriceFlag = &cli.Float64Flag{
		Name:     "gasprice",
		Usage:    "gas price per unit, in " + params.Denom,
		EnvVars:  []string{"GAS_PRICE"},
		Required: true,
	}
	allowanceFlag = &cli.Uint64Flag{
		Name:     "allowance",
		Usage:    "allowance spend limit, in " + params.Denom,
		EnvVars:  []string{"ALLOWANCE_AMOUNT"},
		Required: true,
	}
	memoFlag = &cli.StringFlag{
		Name:    "memo",
		Usage:   "transaction memo",
		EnvVars: []string{"FEEGRANT_MEMO"},
	}
	hostFlag = &cli.StringFlag{
		Name:    "host",
		Usage:   "HTTP bind host",
		EnvVars: []string{"SERVER_HOST"},
		Value:   params.DefaultHost,
	}
	portFlag = &cli.IntFlag{
		Name:    "port",
		Usage:   "HTTP bind port",
		EnvVars: []string{"SERVER_PORT"},
		Value:   params.DefaultPort,
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "log level (trace|debug|info|warn|error)",
		Value: "info",
	}
)

func main() {
	app := &cli.App{
		Name:   "faucet",
		Usage:  "fee-grant faucet for " + params.ChainID,
		Flags:  []cli.Flag{keyFlag, lcdFlag, rpcFlag, gasPriceFlag, allowanceFlag, memoFlag, hostFlag, portFlag, verbosityFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func checkEndpoint(name, value string) error {
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return errors.Errorf("%s must begin with http:// or https://", name)
	}
	return nil
}

func run(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String(verbosityFlag.Name))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	lg := logrus.WithField("chain", params.ChainID)

	if err := checkEndpoint("lcd", c.String(lcdFlag.Name)); err != nil {
		return err
	}
	if err := checkEndpoint("rpc", c.String(rpcFlag.Name)); err != nil {
		return err
	}
	if c.Float64(gasPriceFlag.Name) <= 0 {
		return errors.New("gasprice must be positive")
	}
	if c.Uint64(allowanceFlag.Name) == 0 {
		return errors.New("allowance must be non-zero")
	}

	wallet, err := chain.NewWallet(c.String(keyFlag.Name))
	if err != nil {
		return errors.Wrap(err, "load granter key")
	}
	lg.WithField("granter", wallet.Address()).Info("granter account loaded")

	client := chain.NewClient(c.String(lcdFlag.Name), wallet)
	watcher, err := blockwatch.New(c.String(rpcFlag.Name), lg)
	if err != nil {
		return errors.Wrap(err, "configure block watcher")
	}
	svc := faucet.New(client, faucet.Config{
		GasPrice: c.Float64(gasPriceFlag.Name),
		Memo:     c.String(memoFlag.Name),
	}, lg)

	srv := server.New(server.Config{
		ListenAddr:      net.JoinHostPort(c.String(hostFlag.Name), strconv.Itoa(c.Int(portFlag.Name))),
		Granter:         wallet.Address(),
		AllowanceAmount: c.Uint64(allowanceFlag.Name),
	}, svc, client, func() (int64, int, string) {
		return svc.Height(), svc.Pending(), watcher.Mode()
	}, lg)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(ctx) })
	g.Go(func() error { return svc.Run(ctx, watcher.Notify()) })
	g.Go(func() error { return srv.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	lg.Info("shut down")
	return nil
}
