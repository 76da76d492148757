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
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

type wireField struct {
	varint uint64
	bytes  []byte
}

// parseWire splits a message into its top-level fields.
func parseWire(t *testing.T, b []byte) map[protowire.Number][]wireField {
	t.Helper()
	fields := make(map[protowire.Number][]wireField)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.NoError(t, protowire.ParseError(n))
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			require.NoError(t, protowire.ParseError(n))
			fields[num] = append(fields[num], wireField{varint: v})
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			require.NoError(t, protowire.ParseError(n))
			fields[num] = append(fields[num], wireField{bytes: v})
			b = b[n:]
		default:
			t.Fatalf("unexpected wire type %v for field %d", typ, num)
		}
	}
	return fields
}

func parseAny(t *testing.T, b []byte) (string, []byte) {
	t.Helper()
	fields := parseWire(t, b)
	require.Len(t, fields[1], 1)
	require.Len(t, fields[2], 1)
	return string(fields[1][0].bytes), fields[2][0].bytes
}

func TestEncodeGrantMsg(t *testing.T) {
	expiry := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	any := EncodeGrantMsg("secret1granter", "secret1grantee", Coin{Denom: "uscrt", Amount: 500000}, expiry)

	typeURL, msg := parseAny(t, any)
	require.Equal(t, TypeURLGrantAllowance, typeURL)

	fields := parseWire(t, msg)
	require.Equal(t, "secret1granter", string(fields[1][0].bytes))
	require.Equal(t, "secret1grantee", string(fields[2][0].bytes))

	allowanceURL, allowance := parseAny(t, fields[3][0].bytes)
	require.Equal(t, TypeURLBasicAllowance, allowanceURL)

	basic := parseWire(t, allowance)
	coin := parseWire(t, basic[1][0].bytes)
	require.Equal(t, "uscrt", string(coin[1][0].bytes))
	require.Equal(t, "500000", string(coin[2][0].bytes))

	ts := parseWire(t, basic[2][0].bytes)
	require.Equal(t, uint64(expiry.Unix()), ts[1][0].varint)
}

func TestEncodeRevokeMsg(t *testing.T) {
	typeURL, msg := parseAny(t, EncodeRevokeMsg("secret1granter", "secret1grantee"))
	require.Equal(t, TypeURLRevokeAllowance, typeURL)
	fields := parseWire(t, msg)
	require.Equal(t, "secret1granter", string(fields[1][0].bytes))
	require.Equal(t, "secret1grantee", string(fields[2][0].bytes))
}

func TestEncodeTxBody(t *testing.T) {
	msgA := EncodeRevokeMsg("a", "b")
	msgB := EncodeRevokeMsg("a", "c")
	body := EncodeTxBody([][]byte{msgA, msgB}, "hello")

	fields := parseWire(t, body)
	require.Len(t, fields[1], 2)
	require.True(t, bytes.Equal(msgA, fields[1][0].bytes))
	require.True(t, bytes.Equal(msgB, fields[1][1].bytes))
	require.Equal(t, "hello", string(fields[2][0].bytes))

	// An empty memo is omitted entirely.
	noMemo := parseWire(t, EncodeTxBody([][]byte{msgA}, ""))
	require.Empty(t, noMemo[2])
}

func TestEncodeAuthInfo(t *testing.T) {
	pub := bytes.Repeat([]byte{3}, 33)
	auth := EncodeAuthInfo(pub, 9, Coin{Denom: "uscrt", Amount: 3750}, 15000)

	fields := parseWire(t, auth)
	signer := parseWire(t, fields[1][0].bytes)

	pkURL, pkMsg := parseAny(t, signer[1][0].bytes)
	require.Equal(t, "/cosmos.crypto.secp256k1.PubKey", pkURL)
	pk := parseWire(t, pkMsg)
	require.True(t, bytes.Equal(pub, pk[1][0].bytes))

	mode := parseWire(t, signer[2][0].bytes)
	single := parseWire(t, mode[1][0].bytes)
	require.Equal(t, uint64(signModeDirect), single[1][0].varint)

	require.Equal(t, uint64(9), signer[3][0].varint)

	fee := parseWire(t, fields[2][0].bytes)
	coin := parseWire(t, fee[1][0].bytes)
	require.Equal(t, "3750", string(coin[2][0].bytes))
	require.Equal(t, uint64(15000), fee[2][0].varint)
}

func TestEncodeSignDocAndTxRaw(t *testing.T) {
	body := []byte{0x01, 0x02}
	authInfo := []byte{0x03}
	doc := EncodeSignDoc(body, authInfo, "secret-4", 77)

	fields := parseWire(t, doc)
	require.True(t, bytes.Equal(body, fields[1][0].bytes))
	require.True(t, bytes.Equal(authInfo, fields[2][0].bytes))
	require.Equal(t, "secret-4", string(fields[3][0].bytes))
	require.Equal(t, uint64(77), fields[4][0].varint)

	sig := bytes.Repeat([]byte{0xaa}, 64)
	raw := parseWire(t, EncodeTxRaw(body, authInfo, sig))
	require.True(t, bytes.Equal(body, raw[1][0].bytes))
	require.True(t, bytes.Equal(authInfo, raw[2][0].bytes))
	require.True(t, bytes.Equal(sig, raw[3][0].bytes))
}
