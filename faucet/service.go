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
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/scrtlabs/secret-faucet/blockwatch"
	"github.com/scrtlabs/secret-faucet/params"
)

// Config carries the submission parameters.
type Config struct {
	// GasPrice is the fee charged per unit of gas, in the base denom.
	GasPrice float64

	// Memo is attached to every submitted transaction.
	Memo string
}

// Service is the block-paced coordinator. HTTP handlers enqueue requests
// concurrently; the single Run goroutine drains, batches and submits them
// on block ticks, so at most one submission is ever in flight.
type Service struct {
	q   queue
	sub submitter
	log *logrus.Entry

	// cooldown and the drain/submit path are touched only by the Run
	// goroutine.
	cooldown int

	height atomic.Int64
}

// New wires a service around the chain gateway.
func New(gw Gateway, cfg Config, lg *logrus.Entry) *Service {
	return &Service{
		sub: submitter{gw: gw, gasPrice: cfg.GasPrice, memo: cfg.Memo, log: lg},
		log: lg,
	}
}

// Enqueue appends a request for one Any-encoded message and returns the
// future its outcome arrives on. Safe for concurrent use; never blocks on
// chain I/O.
func (s *Service) Enqueue(payload []byte, gasLimit uint64, grantee string) Future {
	r := &request{
		payload:  payload,
		gasLimit: gasLimit,
		grantee:  grantee,
		done:     make(chan Result, 1),
	}
	s.q.push(r)
	return r.done
}

// Pending reports the number of queued requests.
func (s *Service) Pending() int { return s.q.len() }

// Height reports the last block height seen, zero before the first
// subscribed event.
func (s *Service) Height() int64 { return s.height.Load() }

// Run consumes block events until ctx is cancelled. It is the only
// goroutine that drains the queue, which serializes submissions by
// construction.
func (s *Service) Run(ctx context.Context, blocks <-chan blockwatch.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-blocks:
			if ev.Height > 0 {
				s.height.Store(ev.Height)
			}
			s.tick(ctx)
		}
	}
}

// tick is one drain-and-submit cycle. A cooldown tick is consumed instead
// of submitting, so the node's observed sequence catches up between
// transactions.
func (s *Service) tick(ctx context.Context) {
	if s.cooldown > 0 {
		s.cooldown--
		return
	}
	drained := s.q.drain()
	if len(drained) == 0 {
		return
	}
	postponed := s.sub.submit(ctx, drained)
	s.q.pushBack(postponed)
	s.cooldown = params.CooldownTicks
}
