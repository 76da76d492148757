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

// Package server exposes the faucet's HTTP surface: the claim endpoints,
// their legacy POST variant, and an operational status probe.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/scrtlabs/secret-faucet/chain"
	"github.com/scrtlabs/secret-faucet/faucet"
	"github.com/scrtlabs/secret-faucet/params"
)

// Non-standard claim failure codes, kept for client compatibility.
const (
	statusRevokeFailed = 425
	statusGrantFailed  = 550
)

// Enqueuer is the queue surface of the faucet core.
type Enqueuer interface {
	Enqueue(payload []byte, gasLimit uint64, grantee string) faucet.Future
}

// AllowanceQuerier inspects existing fee grants.
type AllowanceQuerier interface {
	QueryAllowance(ctx context.Context, granter, grantee string) (*chain.Allowance, error)
}

// StatusFunc reports operational state for the status probe.
type StatusFunc func() (height int64, pending int, mode string)

// Config carries the HTTP front-end parameters.
type Config struct {
	// ListenAddr is the host:port the server binds.
	ListenAddr string

	// Granter is the faucet's own account address.
	Granter string

	// AllowanceAmount is the spend limit of issued grants, and the
	// reference for the still-full check.
	AllowanceAmount uint64
}

// Server validates claims, decides grant versus revoke-then-grant, and maps
// queue outcomes to HTTP responses.
type Server struct {
	cfg        Config
	queue      Enqueuer
	allowances AllowanceQuerier
	status     StatusFunc
	log        *logrus.Entry
	httpSrv    *http.Server
}

// New builds the HTTP front-end.
func New(cfg Config, queue Enqueuer, allowances AllowanceQuerier, status StatusFunc, lg *logrus.Entry) *Server {
	s := &Server{cfg: cfg, queue: queue, allowances: allowances, status: status, log: lg}
	s.httpSrv = &http.Server{Addr: cfg.ListenAddr, Handler: s.Handler()}
	return s
}

// Handler assembles the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/claim/:address", s.claimByPath)
	router.POST("/claim", s.claimByBody)
	if s.status != nil {
		router.GET("/status", s.statusProbe)
	}
	router.GlobalOPTIONS = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		w.WriteHeader(http.StatusNoContent)
	})
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		// Preflights fall through to GlobalOPTIONS so every OPTIONS
		// reply is a 204.
		OptionsPassthrough: true,
	})
	return c.Handler(router)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- s.httpSrv.ListenAndServe() }()
	s.log.WithField("addr", s.cfg.ListenAddr).Info("http server listening")
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errc:
		return err
	}
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) claimByPath(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.claim(w, r, ps.ByName("address"))
}

// claimByBody is the backwards-compatible POST route; the address arrives
// in a JSON body instead of the path.
func (s *Server) claimByBody(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.claim(w, r, body.Address)
}

// claim runs the decision layer: validate, inspect the existing allowance,
// revoke if a stale one is in the way, then grant.
func (s *Server) claim(w http.ResponseWriter, r *http.Request, address string) {
	ctx := r.Context()
	lg := s.log.WithField("grantee", address)

	if err := chain.ValidateAddress(address); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid bech32 address")
		return
	}

	allowance, err := s.allowances.QueryAllowance(ctx, s.cfg.Granter, address)
	if err != nil {
		lg.WithError(err).Error("allowance query failed")
		writeError(w, http.StatusInternalServerError, "Failed to query existing feegrant")
		return
	}

	if allowance != nil {
		if !allowance.Basic {
			writeError(w, http.StatusInternalServerError, "Existing allowance is not a basic feegrant")
			return
		}
		if s.stillFull(allowance) {
			writeError(w, http.StatusBadRequest, "Existing feegrant is full and hasn't expired yet")
			return
		}
		// The chain refuses a second grant while one exists, so the
		// stale allowance is revoked first. The grant rides a later
		// batch because both messages target the same grantee.
		revoke := chain.EncodeRevokeMsg(s.cfg.Granter, address)
		res, ok := s.await(ctx, s.queue.Enqueue(revoke, params.RevokeGasLimit, address))
		if !ok {
			return
		}
		if res.Err != nil || res.Outcome.Failed() {
			lg.Warn("revocation failed")
			writeError(w, statusRevokeFailed, "Failed to revoke existing feegrant")
			return
		}
	}

	grant := chain.EncodeGrantMsg(
		s.cfg.Granter,
		address,
		chain.Coin{Denom: params.Denom, Amount: s.cfg.AllowanceAmount},
		time.Now().Add(params.AllowanceValidity),
	)
	res, ok := s.await(ctx, s.queue.Enqueue(grant, params.GrantGasLimit, address))
	if !ok {
		return
	}
	if res.Err != nil {
		writeError(w, statusGrantFailed, res.Err.Error())
		return
	}
	if res.Outcome.Failed() {
		if res.Outcome.Meta != nil {
			writeJSON(w, statusGrantFailed, map[string]interface{}{"error": res.Outcome.Meta.Log, "meta": res.Outcome.Meta})
		} else {
			writeError(w, statusGrantFailed, res.Outcome.RawResponse)
		}
		return
	}
	lg.Info("feegrant issued")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"meta":   res.Outcome.Meta,
		"events": res.Outcome.Events,
	})
}

// await blocks on a queue future. A caller that disconnects stops waiting;
// the core still resolves the future, which is then a no-op.
func (s *Server) await(ctx context.Context, fut faucet.Future) (faucet.Result, bool) {
	select {
	case res := <-fut:
		return res, true
	case <-ctx.Done():
		return faucet.Result{}, false
	}
}

// stillFull reports whether an existing basic allowance is untouched and
// far enough from expiry that reissuing it would be pointless.
func (s *Server) stillFull(a *chain.Allowance) bool {
	if a.SpendLimit != s.cfg.AllowanceAmount {
		return false
	}
	if a.Expiration == nil {
		return true
	}
	return time.Until(*a.Expiration) > params.RegrantThreshold
}

func (s *Server) statusProbe(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	height, pending, mode := s.status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"granter": s.cfg.Granter,
		"height":  height,
		"pending": pending,
		"mode":    mode,
	})
}
