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
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"
)

// Wallet holds the granter's signing key and derived account identity.
type Wallet struct {
	priv    *secp256k1.PrivateKey
	pubKey  []byte // compressed, 33 bytes
	address string
}

// NewWallet derives a wallet from a 64-hex-digit secret key, with an
// optional 0x prefix.
func NewWallet(hexKey string) (*Wallet, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	if len(hexKey) != 64 {
		return nil, errors.Errorf("secret key must be 64 hex digits, got %d", len(hexKey))
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "decode secret key")
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, errors.New("secret key is zero")
	}
	pub := priv.PubKey().SerializeCompressed()

	// Account address is ripemd160(sha256(pubkey)) under the chain HRP.
	sum := sha256.Sum256(pub)
	h := ripemd160.New()
	h.Write(sum[:])
	addr, err := EncodeAddress(h.Sum(nil))
	if err != nil {
		return nil, err
	}
	return &Wallet{priv: priv, pubKey: pub, address: addr}, nil
}

// Address returns the wallet's bech32 account address.
func (w *Wallet) Address() string { return w.address }

// PubKey returns the compressed secp256k1 public key.
func (w *Wallet) PubKey() []byte { return w.pubKey }

// SignDoc signs the canonical SignDoc bytes, returning the 64-byte r||s
// signature the chain expects.
func (w *Wallet) SignDoc(doc []byte) []byte {
	digest := sha256.Sum256(doc)
	compact := ecdsa.SignCompact(w.priv, digest[:], true)
	return compact[1:]
}
