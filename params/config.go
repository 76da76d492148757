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

// Package params holds the chain parameters and service tunables.
package params

import "time"

// Chain identity.
const (
	// ChainID is the network the faucet grants on.
	ChainID = "secret-4"

	// Denom is the base fee denomination.
	Denom = "uscrt"

	// Bech32HRP is the human-readable prefix of account addresses.
	Bech32HRP = "secret"

	// AddressLength is the byte length of an account address payload.
	AddressLength = 20
)

// Grant policy.
const (
	// GrantGasLimit is the gas reserved for a single MsgGrantAllowance.
	GrantGasLimit = 15000

	// RevokeGasLimit is the gas reserved for a single MsgRevokeAllowance.
	RevokeGasLimit = 15000

	// AllowanceValidity is how long a freshly issued allowance lives.
	AllowanceValidity = 24 * time.Hour

	// RegrantThreshold is the minimum remaining validity below which a
	// still-full allowance may be reissued anyway.
	RegrantThreshold = time.Hour
)

// Block event source tunables.
const (
	// BlockTime is the expected interval between blocks, used as the
	// polling period when the event subscription is down.
	BlockTime = 6 * time.Second

	// SubscribeTimeout bounds establishment of the block subscription.
	SubscribeTimeout = 30 * time.Second

	// InactivityTimeout is how long a silent subscription is trusted
	// before it is torn down and re-established.
	InactivityTimeout = 60 * time.Second

	// ResubscribeDelay is the pause before retrying a failed
	// subscription attempt.
	ResubscribeDelay = 60 * time.Second
)

// Submission tunables.
const (
	// SequenceRetries is the number of additional signing attempts after
	// an account-sequence mismatch.
	SequenceRetries = 2

	// CooldownTicks is the number of block ticks skipped after a
	// submission, letting the node's observed sequence catch up.
	CooldownTicks = 1

	// InclusionPollInterval is how often a broadcast transaction is
	// polled for inclusion.
	InclusionPollInterval = 3 * time.Second

	// InclusionTimeout bounds the wait for a broadcast transaction to
	// appear in a block.
	InclusionTimeout = 90 * time.Second
)

// HTTP defaults.
const (
	DefaultHost = "localhost"
	DefaultPort = 3001
)
