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

package faucet

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/scrtlabs/secret-faucet/blockwatch"
)

func testService(gw Gateway) *Service {
	lg := logrus.New()
	lg.SetOutput(io.Discard)
	return New(gw, Config{GasPrice: 0.25, Memo: "test"}, logrus.NewEntry(lg))
}

func TestTickSkipsEmptyQueue(t *testing.T) {
	gw := &stubGateway{}
	s := testService(gw)
	s.tick(context.Background())
	require.Zero(t, gw.broadcasts)
}

func TestTickBatchesConcurrentClaims(t *testing.T) {
	gw := &stubGateway{}
	s := testService(gw)

	futA := s.Enqueue([]byte("grant-a"), 15000, "a")
	futB := s.Enqueue([]byte("grant-b"), 15000, "b")
	require.Equal(t, 2, s.Pending())

	s.tick(context.Background())

	resA, resB := <-futA, <-futB
	require.NoError(t, resA.Err)
	require.Same(t, resA.Outcome, resB.Outcome, "one batch, one outcome")
	require.Equal(t, 1, gw.broadcasts)
	require.Len(t, gw.signedMsgs[0], 2)
	require.Zero(t, s.Pending())
}

func TestTickCooldownAfterSubmission(t *testing.T) {
	gw := &stubGateway{}
	s := testService(gw)
	ctx := context.Background()

	s.Enqueue([]byte("grant-a"), 15000, "a")
	s.tick(ctx)
	require.Equal(t, 1, gw.broadcasts)

	// The next tick is a quiet one even with work pending.
	s.Enqueue([]byte("grant-b"), 15000, "b")
	s.tick(ctx)
	require.Equal(t, 1, gw.broadcasts, "cooldown tick must not submit")

	s.tick(ctx)
	require.Equal(t, 2, gw.broadcasts)
}

func TestRevokeThenGrantSpansBatches(t *testing.T) {
	gw := &stubGateway{}
	s := testService(gw)
	ctx := context.Background()

	futRevoke := s.Enqueue([]byte("revoke-a"), 15000, "a")
	futGrant := s.Enqueue([]byte("grant-a"), 15000, "a")

	s.tick(ctx)
	require.NoError(t, (<-futRevoke).Err)
	require.Len(t, gw.signedMsgs[0], 1, "first batch carries the revoke only")
	require.Equal(t, 1, s.Pending(), "grant re-enqueued for a later batch")

	s.tick(ctx) // cooldown
	s.tick(ctx)
	require.NoError(t, (<-futGrant).Err)
	require.Len(t, gw.signedMsgs[1], 1)
	require.Equal(t, []byte("grant-a"), gw.signedMsgs[1][0])
}

func TestRunConsumesBlockEvents(t *testing.T) {
	gw := &stubGateway{}
	s := testService(gw)

	ctx, cancel := context.WithCancel(context.Background())
	blocks := make(chan blockwatch.Event)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, blocks) }()

	fut := s.Enqueue([]byte("grant-a"), 15000, "a")
	blocks <- blockwatch.Event{Height: 100}

	res := <-fut
	require.NoError(t, res.Err)
	require.Equal(t, int64(100), s.Height())

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRunPollingTickHasNoHeight(t *testing.T) {
	gw := &stubGateway{}
	s := testService(gw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	blocks := make(chan blockwatch.Event)
	go s.Run(ctx, blocks)

	fut := s.Enqueue([]byte("grant-a"), 15000, "a")
	blocks <- blockwatch.Event{} // unknown-height polling tick

	require.NoError(t, (<-fut).Err)
	require.Zero(t, s.Height(), "polling ticks must not move the observed height")
}
