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
	"bytes"
	"testing"
)

func req(payload, grantee string) *request {
	return &request{payload: []byte(payload), grantee: grantee, done: make(chan Result, 1)}
}

func TestBuildBatchKeepsOrder(t *testing.T) {
	drained := []*request{req("m1", "a"), req("m2", "b"), req("m3", "c")}
	batch, postponed := buildBatch(drained)
	if len(batch) != 3 || len(postponed) != 0 {
		t.Fatalf("batch=%d postponed=%d, want 3/0", len(batch), len(postponed))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if !bytes.Equal(batch[i], []byte(want)) {
			t.Errorf("batch[%d] = %q, want %q", i, batch[i], want)
		}
	}
}

func TestBuildBatchDedupsPayloads(t *testing.T) {
	drained := []*request{req("grant-a", "a"), req("grant-a", "a"), req("grant-b", "b")}
	batch, postponed := buildBatch(drained)
	if len(batch) != 2 {
		t.Fatalf("batch len = %d, want 2 (duplicate merged)", len(batch))
	}
	if len(postponed) != 0 {
		t.Fatalf("duplicate was postponed, want silent merge")
	}
}

func TestBuildBatchPostponesGranteeCollision(t *testing.T) {
	revoke := req("revoke-a", "a")
	grant := req("grant-a", "a")
	batch, postponed := buildBatch([]*request{revoke, grant, req("grant-b", "b")})
	if len(batch) != 2 {
		t.Fatalf("batch len = %d, want 2", len(batch))
	}
	if !bytes.Equal(batch[0], revoke.payload) {
		t.Errorf("first message %q, want the earlier-enqueued revoke", batch[0])
	}
	if len(postponed) != 1 || postponed[0] != grant {
		t.Fatalf("postponed = %v, want exactly the colliding grant", postponed)
	}
}

func TestBuildBatchGranteeAppearsOnce(t *testing.T) {
	drained := []*request{
		req("m1", "a"), req("m2", "a"), req("m3", "a"),
		req("m4", "b"), req("m5", "b"),
	}
	batch, postponed := buildBatch(drained)
	if len(batch) != 2 {
		t.Fatalf("batch len = %d, want 2 (one per grantee)", len(batch))
	}
	if len(postponed) != 3 {
		t.Fatalf("postponed = %d, want 3", len(postponed))
	}
}
