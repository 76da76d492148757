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

// Package blockwatch delivers new-block notifications from the chain node.
//
// The watcher prefers a WebSocket subscription to the node's NewBlock
// events and guards it with an inactivity timeout. Whenever the
// subscription is unavailable it degrades to a fixed-interval ticker at the
// expected block time, so consumers always keep receiving ticks.
package blockwatch

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/scrtlabs/secret-faucet/params"
)

// Event is one block notification. Height is zero on polling ticks, where
// the current height is unknown.
type Event struct {
	Height int64
}

// Watcher modes, observable for diagnostics.
const (
	ModeSubscribed   = "subscribed"
	ModePolling      = "polling"
	ModeReconnecting = "reconnecting"
)

// Watcher maintains the block subscription and its polling fallback.
type Watcher struct {
	wsURL string
	log   *logrus.Entry

	dialTimeout time.Duration
	inactivity  time.Duration
	pollPeriod  time.Duration
	redialDelay time.Duration

	mode atomic.Value
	out  chan Event
}

// New builds a watcher for the node's RPC endpoint. The endpoint is the
// http(s) base URL; the WebSocket path is derived from it.
func New(rpcURL string, lg *logrus.Entry) (*Watcher, error) {
	u, err := url.Parse(rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse rpc url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, errors.Errorf("unsupported rpc scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/websocket"

	w := &Watcher{
		wsURL:       u.String(),
		log:         lg,
		dialTimeout: params.SubscribeTimeout,
		inactivity:  params.InactivityTimeout,
		pollPeriod:  params.BlockTime,
		redialDelay: params.ResubscribeDelay,
		out:         make(chan Event, 1),
	}
	w.mode.Store(ModeReconnecting)
	return w, nil
}

// Notify returns the channel block events are delivered on.
func (w *Watcher) Notify() <-chan Event { return w.out }

// Mode reports the watcher's current operating mode.
func (w *Watcher) Mode() string { return w.mode.Load().(string) }

// Run drives the subscription until ctx is cancelled. It never returns an
// error other than the context's: every transport failure is absorbed by
// the polling fallback.
func (w *Watcher) Run(ctx context.Context) error {
	retry := backoff.NewConstantBackOff(w.redialDelay)
	ticker := time.NewTicker(w.pollPeriod)
	defer ticker.Stop()

	// The initial subscription attempt runs without polling; after any
	// failure or drop, ticks keep flowing until the socket is back.
	degraded := false
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.mode.Store(ModeReconnecting)
		conn, err := w.dial(ctx, ticker, degraded)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			degraded = true
			w.log.WithError(err).Warn("block subscription unavailable, falling back to polling")
			w.mode.Store(ModePolling)
			if err := w.poll(ctx, ticker, retry.NextBackOff()); err != nil {
				return err
			}
			continue
		}
		retry.Reset()
		w.mode.Store(ModeSubscribed)
		w.log.WithField("url", w.wsURL).Info("block subscription established")
		w.stream(ctx, conn)
		degraded = true
	}
}

// dial runs the subscription attempt, emitting polling ticks while it is in
// flight when the watcher is already degraded.
func (w *Watcher) dial(ctx context.Context, ticker *time.Ticker, pollWhileDialing bool) (*websocket.Conn, error) {
	type dialResult struct {
		conn *websocket.Conn
		err  error
	}
	resc := make(chan dialResult, 1)
	go func() {
		conn, err := w.subscribe(ctx)
		resc <- dialResult{conn: conn, err: err}
	}()
	for {
		select {
		case <-ctx.Done():
			go func() {
				if r := <-resc; r.conn != nil {
					r.conn.Close()
				}
			}()
			return nil, ctx.Err()
		case r := <-resc:
			return r.conn, r.err
		case <-ticker.C:
			if pollWhileDialing {
				w.emit(Event{})
			}
		}
	}
}

// subscribe dials the node and registers for NewBlock events, bounded by
// the establishment timeout.
func (w *Watcher) subscribe(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, w.dialTimeout)
	defer cancel()
	dialer := websocket.Dialer{HandshakeTimeout: w.dialTimeout}
	conn, resp, err := dialer.DialContext(dialCtx, w.wsURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	sub := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "subscribe",
		"id":      uuid.NewString(),
		"params":  map[string]string{"query": "tm.event='NewBlock'"},
	}
	conn.SetWriteDeadline(time.Now().Add(w.dialTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "send subscribe request")
	}
	return conn, nil
}

// stream reads block events off an established subscription until it goes
// silent past the inactivity guard, closes, or the context ends. The
// connection is always closed on return.
func (w *Watcher) stream(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		conn.SetReadDeadline(time.Now().Add(w.inactivity))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				w.log.WithField("inactivity", w.inactivity).Warn("block subscription went silent, reconnecting")
			} else {
				w.log.WithError(err).Warn("block subscription closed")
			}
			return
		}
		if height, ok := parseNewBlockHeight(msg); ok {
			w.emit(Event{Height: height})
		}
	}
}

// poll emits unknown-height ticks at the block period for the given
// duration, then returns so the caller can retry the subscription.
func (w *Watcher) poll(ctx context.Context, ticker *time.Ticker, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-ticker.C:
			w.emit(Event{})
		}
	}
}

// emit hands an event to the consumer. The channel holds one pending tick;
// if the consumer is mid-submission an extra tick is dropped, which is
// harmless since the next block produces another.
func (w *Watcher) emit(ev Event) {
	select {
	case w.out <- ev:
	default:
	}
}

// parseNewBlockHeight extracts the block height from a NewBlock event
// frame. The subscription confirmation and any non-block frames return
// false.
func parseNewBlockHeight(msg []byte) (int64, bool) {
	var frame struct {
		Result struct {
			Data struct {
				Type  string `json:"type"`
				Value struct {
					Block struct {
						Header struct {
							Height string `json:"height"`
						} `json:"header"`
					} `json:"block"`
				} `json:"value"`
			} `json:"data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(msg, &frame); err != nil {
		return 0, false
	}
	if !strings.HasSuffix(frame.Result.Data.Type, "NewBlock") {
		return 0, false
	}
	height, err := strconv.ParseInt(frame.Result.Data.Value.Block.Header.Height, 10, 64)
	if err != nil {
		return 0, false
	}
	return height, true
}
