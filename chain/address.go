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
	"github.com/btcsuite/btcutil/bech32"
	"github.com/pkg/errors"

	"github.com/scrtlabs/secret-faucet/params"
)

// ErrInvalidAddress is returned for any address that does not decode to a
// 20-byte account payload under the chain's bech32 prefix.
var ErrInvalidAddress = errors.New("invalid bech32 address")

// ValidateAddress checks that addr is a well-formed account address: bech32
// with the chain HRP and a 20-byte payload.
func ValidateAddress(addr string) error {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return ErrInvalidAddress
	}
	if hrp != params.Bech32HRP {
		return ErrInvalidAddress
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil || len(payload) != params.AddressLength {
		return ErrInvalidAddress
	}
	return nil
}

// EncodeAddress renders a raw account payload as a bech32 address.
func EncodeAddress(payload []byte) (string, error) {
	if len(payload) != params.AddressLength {
		return "", errors.Errorf("address payload must be %d bytes, got %d", params.AddressLength, len(payload))
	}
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "convert address bits")
	}
	return bech32.Encode(params.Bech32HRP, conv)
}
