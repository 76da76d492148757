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
	"strconv"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Protobuf type URLs of the messages the faucet submits.
const (
	TypeURLGrantAllowance  = "/cosmos.feegrant.v1beta1.MsgGrantAllowance"
	TypeURLRevokeAllowance = "/cosmos.feegrant.v1beta1.MsgRevokeAllowance"
	TypeURLBasicAllowance  = "/cosmos.feegrant.v1beta1.BasicAllowance"
	typeURLSecp256k1PubKey = "/cosmos.crypto.secp256k1.PubKey"
)

const signModeDirect = 1

// Coin is an amount of a single denomination.
type Coin struct {
	Denom  string
	Amount uint64
}

// appendAny encodes a google.protobuf.Any: type_url then value.
func appendAny(b []byte, typeURL string, value []byte) []byte {
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, typeURL)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, value)
	return b
}

func appendCoin(b []byte, num protowire.Number, c Coin) []byte {
	var coin []byte
	coin = protowire.AppendTag(coin, 1, protowire.BytesType)
	coin = protowire.AppendString(coin, c.Denom)
	coin = protowire.AppendTag(coin, 2, protowire.BytesType)
	coin = protowire.AppendString(coin, strconv.FormatUint(c.Amount, 10))
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, coin)
	return b
}

func appendTimestamp(b []byte, num protowire.Number, t time.Time) []byte {
	var ts []byte
	ts = protowire.AppendTag(ts, 1, protowire.VarintType)
	ts = protowire.AppendVarint(ts, uint64(t.Unix()))
	if nanos := t.Nanosecond(); nanos != 0 {
		ts = protowire.AppendTag(ts, 2, protowire.VarintType)
		ts = protowire.AppendVarint(ts, uint64(nanos))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, ts)
	return b
}

// EncodeGrantMsg builds an Any-wrapped MsgGrantAllowance carrying a
// BasicAllowance with the given spend limit and expiration.
func EncodeGrantMsg(granter, grantee string, limit Coin, expiration time.Time) []byte {
	var basic []byte
	basic = appendCoin(basic, 1, limit)
	basic = appendTimestamp(basic, 2, expiration.UTC())

	var msg []byte
	msg = protowire.AppendTag(msg, 1, protowire.BytesType)
	msg = protowire.AppendString(msg, granter)
	msg = protowire.AppendTag(msg, 2, protowire.BytesType)
	msg = protowire.AppendString(msg, grantee)
	msg = protowire.AppendTag(msg, 3, protowire.BytesType)
	msg = protowire.AppendBytes(msg, appendAny(nil, TypeURLBasicAllowance, basic))

	return appendAny(nil, TypeURLGrantAllowance, msg)
}

// EncodeRevokeMsg builds an Any-wrapped MsgRevokeAllowance.
func EncodeRevokeMsg(granter, grantee string) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, 1, protowire.BytesType)
	msg = protowire.AppendString(msg, granter)
	msg = protowire.AppendTag(msg, 2, protowire.BytesType)
	msg = protowire.AppendString(msg, grantee)
	return appendAny(nil, TypeURLRevokeAllowance, msg)
}

// EncodeTxBody assembles a TxBody from Any-encoded messages and a memo.
func EncodeTxBody(msgs [][]byte, memo string) []byte {
	var b []byte
	for _, msg := range msgs {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, msg)
	}
	if memo != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, memo)
	}
	return b
}

// EncodeAuthInfo assembles the AuthInfo for a single direct-mode signer.
func EncodeAuthInfo(pubKey []byte, sequence uint64, fee Coin, gasLimit uint64) []byte {
	var pk []byte
	pk = protowire.AppendTag(pk, 1, protowire.BytesType)
	pk = protowire.AppendBytes(pk, pubKey)

	var single []byte
	single = protowire.AppendTag(single, 1, protowire.VarintType)
	single = protowire.AppendVarint(single, signModeDirect)
	var modeInfo []byte
	modeInfo = protowire.AppendTag(modeInfo, 1, protowire.BytesType)
	modeInfo = protowire.AppendBytes(modeInfo, single)

	var signer []byte
	signer = protowire.AppendTag(signer, 1, protowire.BytesType)
	signer = protowire.AppendBytes(signer, appendAny(nil, typeURLSecp256k1PubKey, pk))
	signer = protowire.AppendTag(signer, 2, protowire.BytesType)
	signer = protowire.AppendBytes(signer, modeInfo)
	if sequence != 0 {
		signer = protowire.AppendTag(signer, 3, protowire.VarintType)
		signer = protowire.AppendVarint(signer, sequence)
	}

	var feeBytes []byte
	feeBytes = appendCoin(feeBytes, 1, fee)
	feeBytes = protowire.AppendTag(feeBytes, 2, protowire.VarintType)
	feeBytes = protowire.AppendVarint(feeBytes, gasLimit)

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, signer)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, feeBytes)
	return b
}

// EncodeSignDoc assembles the canonical SignDoc signed in direct mode.
func EncodeSignDoc(body, authInfo []byte, chainID string, accountNumber uint64) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, body)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, authInfo)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendString(b, chainID)
	if accountNumber != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, accountNumber)
	}
	return b
}

// EncodeTxRaw assembles the broadcastable TxRaw envelope.
func EncodeTxRaw(body, authInfo, signature []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, body)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, authInfo)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, signature)
	return b
}
