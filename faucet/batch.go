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

// buildBatch turns a drained queue snapshot into the ordered payload list
// for one transaction plus the requests postponed to a later batch.
//
// Byte-identical payloads collapse into a single message; their futures all
// resolve with the batch outcome. Distinct payloads touching the same
// grantee cannot share a transaction (the chain rejects e.g. revoke+grant
// for one grantee in a single tx), so all but the first are postponed.
func buildBatch(drained []*request) (batch [][]byte, postponed []*request) {
	seenPayloads := make(map[string]struct{}, len(drained))
	claimedGrantees := make(map[string]struct{}, len(drained))
	for _, r := range drained {
		key := string(r.payload)
		if _, dup := seenPayloads[key]; dup {
			continue
		}
		if _, claimed := claimedGrantees[r.grantee]; claimed {
			postponed = append(postponed, r)
			continue
		}
		seenPayloads[key] = struct{}{}
		claimedGrantees[r.grantee] = struct{}{}
		batch = append(batch, r.payload)
	}
	return batch, postponed
}
