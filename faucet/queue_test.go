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
	"fmt"
	"sync"
	"testing"

	"github.com/scrtlabs/secret-faucet/chain"
)

func TestQueueFIFO(t *testing.T) {
	var q queue
	for i := 0; i < 5; i++ {
		q.push(req(fmt.Sprintf("m%d", i), "a"))
	}
	if q.len() != 5 {
		t.Fatalf("len = %d, want 5", q.len())
	}
	drained := q.drain()
	if q.len() != 0 {
		t.Fatalf("len after drain = %d, want 0", q.len())
	}
	for i, r := range drained {
		if want := fmt.Sprintf("m%d", i); string(r.payload) != want {
			t.Errorf("drained[%d] = %q, want %q", i, r.payload, want)
		}
	}
}

func TestQueueConcurrentPush(t *testing.T) {
	var q queue
	var wg sync.WaitGroup
	const n = 64
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.push(req(fmt.Sprintf("m%d", i), "a"))
		}(i)
	}
	wg.Wait()
	if have := len(q.drain()); have != n {
		t.Fatalf("drained %d requests, want %d", have, n)
	}
}

func TestQueuePushBackAppendsAtTail(t *testing.T) {
	var q queue
	postponed := req("postponed", "a")
	q.push(req("first", "b"))
	q.pushBack([]*request{postponed})
	drained := q.drain()
	if len(drained) != 2 || drained[1] != postponed {
		t.Fatal("postponed request not re-enqueued at the tail")
	}
}

func TestResolveIsExactlyOnce(t *testing.T) {
	r := req("m", "a")
	r.resolve(Result{Outcome: &chain.TxOutcome{Code: 1}})
	// A second resolution must neither block nor overwrite.
	r.resolve(Result{Outcome: &chain.TxOutcome{Code: 2}})
	res := <-r.done
	if res.Outcome.Code != 1 {
		t.Errorf("future delivered code %d, want the first resolution", res.Outcome.Code)
	}
	select {
	case <-r.done:
		t.Error("future delivered a second result")
	default:
	}
}
