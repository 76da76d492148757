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

package chain

import (
	"regexp"
	"strconv"
)

// Error code namespace of the base ledger module.
const (
	CodespaceSDK         = "sdk"
	CodeSequenceMismatch = 32
)

// OutcomeMeta carries the chain's error namespace for a failed transaction.
type OutcomeMeta struct {
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
	Log       string `json:"log"`
}

// TxOutcome is the result of one submitted transaction. Code zero means the
// transaction executed; any other code is a chain-level failure described
// by Meta.
type TxOutcome struct {
	Code        uint32              `json:"code"`
	TxHash      string              `json:"txhash"`
	RawResponse string              `json:"-"`
	Meta        *OutcomeMeta        `json:"meta"`
	Events      map[string][]string `json:"events"`
}

// Failed reports whether the transaction was rejected or errored on chain.
func (o *TxOutcome) Failed() bool { return o.Code != 0 }

// SequenceMismatch reports whether the outcome is the sdk/32 rejection
// issued when a transaction carries a stale account sequence.
func (o *TxOutcome) SequenceMismatch() bool {
	return o.Code != 0 && o.Meta != nil && o.Meta.Codespace == CodespaceSDK && o.Meta.Code == CodeSequenceMismatch
}

var expectedSeqPattern = regexp.MustCompile(`expected (\d+)`)

// ParseExpectedSequence extracts the sequence number the chain expected
// from a sequence-mismatch rejection log.
func ParseExpectedSequence(log string) (uint64, bool) {
	m := expectedSeqPattern.FindStringSubmatch(log)
	if m == nil {
		return 0, false
	}
	seq, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
