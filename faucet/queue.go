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

// Package faucet implements the block-paced batching broadcaster: a
// single-writer queue of grant and revoke messages that is drained once per
// block, aggregated into one signed transaction, and submitted with
// sequence-error recovery.
package faucet

import (
	"sync"

	"github.com/scrtlabs/secret-faucet/chain"
)

// Result is the terminal state of one enqueued request: either the outcome
// of the transaction that carried it, or the error that sank the batch.
type Result struct {
	Outcome *chain.TxOutcome
	Err     error
}

// Future delivers a request's Result exactly once.
type Future <-chan Result

// request is the unit of work held in the queue.
type request struct {
	payload  []byte // Any-encoded message
	gasLimit uint64
	grantee  string
	done     chan Result
}

// resolve completes the request's future. A request is only ever resolved
// once; the guard makes a stray second resolution a no-op rather than a
// deadlock.
func (r *request) resolve(res Result) {
	select {
	case r.done <- res:
	default:
	}
}

// queue is the FIFO of pending requests. Handlers append concurrently; the
// coordinator is the only drainer.
type queue struct {
	mu      sync.Mutex
	pending []*request
}

func (q *queue) push(r *request) {
	q.mu.Lock()
	q.pending = append(q.pending, r)
	q.mu.Unlock()
}

// pushBack re-enqueues postponed requests at the tail.
func (q *queue) pushBack(rs []*request) {
	if len(rs) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, rs...)
	q.mu.Unlock()
}

// drain takes a snapshot of the pending list and empties it. Requests
// enqueued after the snapshot ride the next tick.
func (q *queue) drain() []*request {
	q.mu.Lock()
	drained := q.pending
	q.pending = nil
	q.mu.Unlock()
	return drained
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
