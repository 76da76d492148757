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

	"github.com/sirupsen/logrus"

	"github.com/scrtlabs/secret-faucet/chain"
	"github.com/scrtlabs/secret-faucet/params"
)

// Gateway is the chain surface the submitter drives. *chain.Client
// satisfies it; tests substitute a stub.
type Gateway interface {
	FetchAuth(ctx context.Context) (chain.Account, error)
	SignTx(ctx context.Context, msgs [][]byte, feeAmount, gasLimit uint64, auth *chain.Account, memo string) ([]byte, error)
	BroadcastTx(ctx context.Context, rawTx []byte) (*chain.TxOutcome, error)
}

type submitter struct {
	gw       Gateway
	gasPrice float64
	memo     string
	log      *logrus.Entry
}

// submit signs and broadcasts one batch built from the drained snapshot,
// resolves every future it owns, and returns the postponed requests the
// caller must re-enqueue.
//
// The gas limit sums over the whole drained list, duplicates and postponed
// included. That over-reserves for postponed requests, but under-reserving
// would risk out-of-gas for the messages actually in the batch.
func (s *submitter) submit(ctx context.Context, drained []*request) []*request {
	batch, postponed := buildBatch(drained)
	isPostponed := make(map[*request]struct{}, len(postponed))
	for _, r := range postponed {
		isPostponed[r] = struct{}{}
	}

	var gasLimit uint64
	for _, r := range drained {
		gasLimit += r.gasLimit
	}
	fee := uint64(float64(gasLimit) * s.gasPrice)

	out, err := s.broadcast(ctx, batch, fee, gasLimit)
	if err != nil {
		// Signing, broadcast or the wait for inclusion failed, so the
		// batch has no outcome. Every drained request, postponed ones
		// included, resolves with the error so no caller is left hanging.
		s.log.WithError(err).WithField("msgs", len(batch)).Error("batch submission failed")
		for _, r := range drained {
			r.resolve(Result{Err: err})
		}
		return nil
	}

	if out.Failed() {
		s.log.WithFields(logrus.Fields{"code": out.Code, "txhash": out.TxHash}).Warn("batch rejected by chain")
	} else {
		s.log.WithFields(logrus.Fields{"msgs": len(batch), "txhash": out.TxHash}).Info("batch submitted")
	}
	for _, r := range drained {
		if _, skip := isPostponed[r]; skip {
			continue
		}
		r.resolve(Result{Outcome: out})
	}
	return postponed
}

// broadcast runs the sign/broadcast protocol with sequence-mismatch
// recovery. The first attempt signs with auto-fetched account state; a
// sdk/32 rejection carrying a parseable expected sequence triggers a
// re-sign with that sequence injected, at most SequenceRetries times.
func (s *submitter) broadcast(ctx context.Context, msgs [][]byte, fee, gasLimit uint64) (*chain.TxOutcome, error) {
	var auth *chain.Account
	for attempt := 0; ; attempt++ {
		rawTx, err := s.gw.SignTx(ctx, msgs, fee, gasLimit, auth, s.memo)
		if err != nil {
			return nil, err
		}
		out, err := s.gw.BroadcastTx(ctx, rawTx)
		if err != nil {
			return nil, err
		}
		if !out.SequenceMismatch() || attempt >= params.SequenceRetries {
			return out, nil
		}
		seq, ok := chain.ParseExpectedSequence(out.Meta.Log)
		if !ok {
			return out, nil
		}
		fetched, err := s.gw.FetchAuth(ctx)
		if err != nil {
			return nil, err
		}
		fetched.Sequence = seq
		auth = &fetched
		s.log.WithFields(logrus.Fields{"expected": seq, "attempt": attempt + 1}).Warn("account sequence mismatch, re-signing")
	}
}
