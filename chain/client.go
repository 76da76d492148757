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
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/scrtlabs/secret-faucet/params"
)

// Account is the on-chain identity of a signer.
type Account struct {
	Number   uint64
	Sequence uint64
}

// Allowance is the decoded state of an existing fee grant.
type Allowance struct {
	// Basic is false when the grant is some other allowance variant the
	// faucet does not manage.
	Basic      bool
	SpendLimit uint64
	Expiration *time.Time
}

// Client talks to the chain's LCD (REST) endpoint. It implements the
// signing and broadcast surface the submitter drives.
type Client struct {
	lcd    string
	wallet *Wallet
	http   *http.Client

	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewClient wires an LCD client for the given endpoint and signing wallet.
func NewClient(lcd string, wallet *Wallet) *Client {
	return &Client{
		lcd:          strings.TrimRight(lcd, "/"),
		wallet:       wallet,
		http:         &http.Client{Timeout: 30 * time.Second},
		pollInterval: params.InclusionPollInterval,
		pollTimeout:  params.InclusionTimeout,
	}
}

// Wallet returns the client's signing wallet.
func (c *Client) Wallet() *Wallet { return c.wallet }

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.lcd+path, nil)
	if err != nil {
		return 0, nil, errors.Wrap(err, "build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errors.Wrapf(err, "read %s", path)
	}
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, body, errors.Wrapf(err, "decode %s", path)
		}
	}
	return resp.StatusCode, body, nil
}

// FetchAuth queries the wallet's account number and current sequence.
func (c *Client) FetchAuth(ctx context.Context) (Account, error) {
	return c.QueryAccount(ctx, c.wallet.Address())
}

// QueryAccount looks up the auth record of an arbitrary address.
func (c *Client) QueryAccount(ctx context.Context, addr string) (Account, error) {
	var out struct {
		Account struct {
			AccountNumber string `json:"account_number"`
			Sequence      string `json:"sequence"`
		} `json:"account"`
	}
	status, body, err := c.getJSON(ctx, "/cosmos/auth/v1beta1/accounts/"+addr, &out)
	if err != nil {
		return Account{}, err
	}
	if status != http.StatusOK {
		return Account{}, errors.Errorf("account query returned HTTP %d: %s", status, strings.TrimSpace(string(body)))
	}
	num, err := strconv.ParseUint(out.Account.AccountNumber, 10, 64)
	if err != nil {
		return Account{}, errors.Wrap(err, "parse account number")
	}
	seq, err := strconv.ParseUint(out.Account.Sequence, 10, 64)
	if err != nil {
		return Account{}, errors.Wrap(err, "parse sequence")
	}
	return Account{Number: num, Sequence: seq}, nil
}

// QueryAllowance fetches the active allowance from granter to grantee, or
// nil when none exists.
func (c *Client) QueryAllowance(ctx context.Context, granter, grantee string) (*Allowance, error) {
	var out struct {
		Allowance struct {
			Allowance struct {
				Type       string `json:"@type"`
				SpendLimit []struct {
					Denom  string `json:"denom"`
					Amount string `json:"amount"`
				} `json:"spend_limit"`
				Expiration *time.Time `json:"expiration"`
			} `json:"allowance"`
		} `json:"allowance"`
	}
	path := fmt.Sprintf("/cosmos/feegrant/v1beta1/allowance/%s/%s", granter, grantee)
	status, body, err := c.getJSON(ctx, path, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		// The LCD reports a missing grant as an error payload rather
		// than an empty result.
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &msg) == nil && strings.Contains(msg.Message, "not found") {
			return nil, nil
		}
		return nil, errors.Errorf("allowance query returned HTTP %d: %s", status, strings.TrimSpace(string(body)))
	}
	inner := out.Allowance.Allowance
	if inner.Type != TypeURLBasicAllowance {
		return &Allowance{Basic: false}, nil
	}
	allowance := &Allowance{Basic: true, Expiration: inner.Expiration}
	for _, coin := range inner.SpendLimit {
		if coin.Denom != params.Denom {
			continue
		}
		amount, err := strconv.ParseUint(coin.Amount, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "parse spend limit")
		}
		allowance.SpendLimit = amount
	}
	return allowance, nil
}

// SignTx signs a direct-mode transaction over the given Any-encoded
// messages. When auth is nil the account state is fetched from the chain;
// the submitter injects an explicit pair during sequence recovery.
func (c *Client) SignTx(ctx context.Context, msgs [][]byte, feeAmount, gasLimit uint64, auth *Account, memo string) ([]byte, error) {
	if auth == nil {
		fetched, err := c.FetchAuth(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "fetch auth")
		}
		auth = &fetched
	}
	body := EncodeTxBody(msgs, memo)
	authInfo := EncodeAuthInfo(c.wallet.PubKey(), auth.Sequence, Coin{Denom: params.Denom, Amount: feeAmount}, gasLimit)
	signDoc := EncodeSignDoc(body, authInfo, params.ChainID, auth.Number)
	return EncodeTxRaw(body, authInfo, c.wallet.SignDoc(signDoc)), nil
}

type txResponse struct {
	Height    string `json:"height"`
	TxHash    string `json:"txhash"`
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
	RawLog    string `json:"raw_log"`
	Logs      []struct {
		Events []txEvent `json:"events"`
	} `json:"logs"`
	Events []txEvent `json:"events"`
}

type txEvent struct {
	Type       string `json:"type"`
	Attributes []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"attributes"`
}

func (r *txResponse) outcome(raw []byte) *TxOutcome {
	out := &TxOutcome{
		Code:        r.Code,
		TxHash:      r.TxHash,
		RawResponse: string(raw),
		Events:      map[string][]string{},
	}
	if r.Code != 0 {
		out.Meta = &OutcomeMeta{Codespace: r.Codespace, Code: r.Code, Log: r.RawLog}
	}
	for _, l := range r.Logs {
		for _, ev := range l.Events {
			for _, attr := range ev.Attributes {
				key := ev.Type + "." + attr.Key
				out.Events[key] = append(out.Events[key], attr.Value)
			}
		}
	}
	return out
}

// BroadcastTx submits a signed transaction and waits for its inclusion
// result. The sync broadcast surfaces mempool-level rejections (including
// sequence mismatches) immediately; accepted transactions are polled until
// they land in a block.
func (c *Client) BroadcastTx(ctx context.Context, rawTx []byte) (*TxOutcome, error) {
	payload, err := json.Marshal(map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(rawTx),
		"mode":     "BROADCAST_MODE_SYNC",
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal broadcast request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.lcd+"/cosmos/tx/v1beta1/txs", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build broadcast request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "broadcast tx")
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, errors.Wrap(err, "read broadcast response")
	}
	var sync struct {
		TxResponse txResponse `json:"tx_response"`
	}
	if err := json.Unmarshal(body, &sync); err != nil {
		return nil, errors.Wrapf(err, "decode broadcast response: %s", strings.TrimSpace(string(body)))
	}
	if sync.TxResponse.TxHash == "" {
		return nil, errors.Errorf("broadcast returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if sync.TxResponse.Code != 0 {
		return sync.TxResponse.outcome(body), nil
	}
	return c.waitInclusion(ctx, sync.TxResponse.TxHash)
}

// waitInclusion polls the tx endpoint until the broadcast transaction is
// found in a block or the inclusion timeout elapses.
func (c *Client) waitInclusion(ctx context.Context, txHash string) (*TxOutcome, error) {
	deadline := time.Now().Add(c.pollTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		var out struct {
			TxResponse txResponse `json:"tx_response"`
		}
		status, body, err := c.getJSON(ctx, "/cosmos/tx/v1beta1/txs/"+txHash, &out)
		if err != nil {
			return nil, err
		}
		if status == http.StatusOK && out.TxResponse.Height != "" && out.TxResponse.Height != "0" {
			return out.TxResponse.outcome(body), nil
		}
		if time.Now().After(deadline) {
			return nil, errors.Errorf("tx %s not included within %s", txHash, c.pollTimeout)
		}
	}
}
