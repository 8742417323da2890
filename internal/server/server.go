package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"mintdrop/internal/apiauth"
	"mintdrop/internal/catalog"
	"mintdrop/internal/config"
	"mintdrop/internal/drop"
	"mintdrop/internal/ledger"
	"mintdrop/internal/present"
	"mintdrop/internal/wallet"

	"github.com/google/uuid"
)

const eventBuffer = 64

type Server struct {
	cfg         *config.AppConfig
	catalog     catalog.Store
	ledger      ledger.Client
	wallet      wallet.Session
	auth        *apiauth.Verifier
	httpServer  *http.Server
	metrics     *metricsRegistry
	dbHealthFn  func(context.Context) error
	rpcHealthFn func(context.Context) error

	// baseCtx outlives requests: supply loads and claims keep going if the caller leaves.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu    sync.Mutex
	pages map[string]*dropPage
}

// dropPage is one collection and the coordinator that owns its claim state.
type dropPage struct {
	collection catalog.Collection
	coord      *drop.Coordinator
	unwatch    func()
}

func NewServer(cfg *config.AppConfig, store catalog.Store, ledgerClient ledger.Client, session wallet.Session) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:     cfg,
		catalog: store,
		ledger:  ledgerClient,
		wallet:  session,
		auth: &apiauth.Verifier{
			Secret:  cfg.Service.APISecret,
			MaxSkew: cfg.Service.ClockSkew,
		},
		baseCtx: baseCtx,
		cancel:  cancel,
		pages:   make(map[string]*dropPage),
	}
	s.metrics = newMetricsRegistry(s.claimsInFlight)

	if checker, ok := store.(interface{ Ping(context.Context) error }); ok {
		s.dbHealthFn = checker.Ping
	}
	if checker, ok := ledgerClient.(ledger.HealthChecker); ok {
		s.rpcHealthFn = checker.Ping
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/drops/{slug}", s.handleDrop)
	mux.Handle("POST /api/v1/drops/{slug}/claim", s.auth.Middleware(http.HandlerFunc(s.handleClaim)))
	mux.HandleFunc("GET /api/v1/drops/{slug}/events", s.handleEvents)
	mux.Handle("POST /api/v1/wallet/connect", s.auth.Middleware(http.HandlerFunc(s.handleConnect)))
	mux.Handle("POST /api/v1/wallet/disconnect", s.auth.Middleware(http.HandlerFunc(s.handleDisconnect)))
	mux.Handle("GET /api/v1/metrics", s.metrics.handler())
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           requestIDMiddleware(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	log.Printf("drop API listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.mu.Lock()
	for _, p := range s.pages {
		p.unwatch()
	}
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}

// page returns the coordinator for slug, creating it and starting its supply load on first
// use.
func (s *Server) page(ctx context.Context, slug string) (*dropPage, error) {
	s.mu.Lock()
	if p, ok := s.pages[slug]; ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	collection, err := s.catalog.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	contract, err := s.ledger.Contract(ctx, collection.Address)
	if err != nil {
		return nil, fmt.Errorf("open drop contract: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pages[slug]; ok {
		return p, nil
	}

	coord := drop.NewCoordinator(drop.Options{
		ReadTimeout:  s.cfg.Chain.ReadTimeout,
		ClaimTimeout: s.cfg.Chain.ClaimTimeout,
	})
	events, unwatch := coord.Subscribe(eventBuffer)
	go s.watch(slug, events)

	// Identity is applied under s.mu so a concurrent broadcast cannot be overwritten.
	coord.ApplyIdentity(s.wallet.CurrentIdentity())
	p := &dropPage{collection: *collection, coord: coord, unwatch: unwatch}
	s.pages[slug] = p

	go coord.Attach(s.baseCtx, contract)
	return p, nil
}

// claimsInFlight counts open drops with a pending claim.
func (s *Server) claimsInFlight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.pages {
		if p.coord.Affordance() == drop.Pending {
			n++
		}
	}
	return float64(n)
}

// watch feeds metrics and logs from one coordinator's events.
func (s *Server) watch(slug string, events <-chan drop.Event) {
	for ev := range events {
		switch ev.Kind {
		case drop.EventPending:
			log.Printf("drop %s: claim %s submitted by %s", slug, ev.Request.ID, ev.Request.Identity.Short())
		case drop.EventOutcome:
			s.metrics.claimResolved(ev.Outcome.Kind.String())
			if ev.Outcome.Failed() {
				log.Printf("drop %s: claim %s %s: %v", slug, ev.Request.ID, ev.Outcome.Kind, ev.Outcome.Err)
			} else {
				log.Printf("drop %s: claim %s minted token %s in %s", slug, ev.Request.ID, ev.Outcome.TokenID, ev.Outcome.TxHash)
			}
		case drop.EventReadFailed:
			s.metrics.incReadFailure(ev.Fetch)
			log.Printf("drop %s: %s fetch failed, keeping last known values: %v", slug, ev.Fetch, ev.Err)
		}
	}
}

type displayView struct {
	Button   string `json:"button"`
	Claimed  string `json:"claimed"`
	SignedIn string `json:"signedIn,omitempty"`
}

type dropResponse struct {
	Collection catalog.Collection `json:"collection"`
	State      drop.Snapshot      `json:"state"`
	Display    displayView        `json:"display"`
}

type claimResponse struct {
	Status       string        `json:"status"`
	Outcome      *drop.Outcome `json:"outcome,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	Notification string        `json:"notification,omitempty"`
	State        drop.Snapshot `json:"state"`
	Display      displayView   `json:"display"`
}

type identityResponse struct {
	Identity wallet.Identity `json:"identity"`
	Short    string          `json:"short,omitempty"`
}

func display(snap drop.Snapshot) displayView {
	return displayView{
		Button:   present.Button(snap),
		Claimed:  present.Claimed(snap),
		SignedIn: present.SignedIn(snap),
	}
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	snap := p.coord.Snapshot()
	writeJSON(w, http.StatusOK, dropResponse{
		Collection: p.collection,
		State:      snap,
		Display:    display(snap),
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}

	// The claim must not be abandoned because the caller hung up; the coordinator bounds it.
	ctx := context.WithoutCancel(r.Context())
	outcome, err := p.coord.Submit(ctx, s.wallet.CurrentIdentity())

	var notReady *drop.NotReadyError
	if errors.As(err, &notReady) {
		s.metrics.incRejection(notReady.Reason.String())
		snap := p.coord.Snapshot()
		writeJSON(w, http.StatusConflict, claimResponse{
			Status:  "not_ready",
			Reason:  notReady.Reason.String(),
			State:   snap,
			Display: display(snap),
		})
		return
	}
	if err != nil {
		http.Error(w, "claim failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	snap := p.coord.Snapshot()
	writeJSON(w, outcomeStatus(outcome.Kind), claimResponse{
		Status:       outcome.Kind.String(),
		Outcome:      &outcome,
		Reason:       outcome.Reason,
		Notification: present.Notification(outcome),
		State:        snap,
		Display:      display(snap),
	})
}

func outcomeStatus(kind drop.OutcomeKind) int {
	switch kind {
	case drop.Success:
		return http.StatusCreated
	case drop.UserRejected:
		return http.StatusConflict
	case drop.ContractReverted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

type sseEvent struct {
	Kind         string        `json:"kind"`
	State        drop.Snapshot `json:"state"`
	Display      displayView   `json:"display"`
	Outcome      *drop.Outcome `json:"outcome,omitempty"`
	Notification string        `json:"notification,omitempty"`
	Fetch        string        `json:"fetch,omitempty"`
	Error        string        `json:"error,omitempty"`
}

func toSSE(ev drop.Event) sseEvent {
	out := sseEvent{
		Kind:    ev.Kind.String(),
		State:   ev.Snapshot,
		Display: display(ev.Snapshot),
		Fetch:   ev.Fetch,
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	switch ev.Kind {
	case drop.EventPending:
		out.Notification = present.PendingNotification()
	case drop.EventOutcome:
		out.Outcome = ev.Outcome
		out.Notification = present.Notification(*ev.Outcome)
	}
	return out
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}

	events, cancel := p.coord.Subscribe(eventBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if err := writeSSE(w, toSSE(drop.Event{Kind: drop.EventStateChanged, Snapshot: p.coord.Snapshot()})); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeSSE(w, toSSE(ev)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev sseEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	id, err := s.wallet.Connect(r.Context())
	if errors.Is(err, ledger.ErrUserRejected) {
		http.Error(w, "connection rejected in wallet", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "connect wallet: "+err.Error(), http.StatusBadGateway)
		return
	}
	s.broadcastIdentity()
	writeJSON(w, http.StatusOK, identityResponse{Identity: id, Short: id.Short()})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.wallet.Disconnect(r.Context()); err != nil {
		http.Error(w, "disconnect wallet: "+err.Error(), http.StatusBadGateway)
		return
	}
	s.broadcastIdentity()
	writeJSON(w, http.StatusOK, identityResponse{Identity: wallet.None})
}

// broadcastIdentity hands the wallet identity to every open drop page. The identity is read
// from the session under s.mu, so the last broadcast always reflects the latest connect or
// disconnect. Only the refetch runs in the background.
func (s *Server) broadcastIdentity() wallet.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.wallet.CurrentIdentity()
	for _, p := range s.pages {
		if p.coord.ApplyIdentity(id) {
			go p.coord.Refresh(s.baseCtx)
		}
	}
	return id
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*dropPage, bool) {
	slug := r.PathValue("slug")
	p, err := s.page(r.Context(), slug)
	if errors.Is(err, catalog.ErrNotFound) {
		http.Error(w, "collection not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		log.Printf("request %s: load drop %s: %v", r.Header.Get("X-Request-Id"), slug, err)
		http.Error(w, "failed to load drop", http.StatusBadGateway)
		return nil, false
	}
	return p, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Connected = true
	}

	dbInfo := struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Connected: true}

	if s.dbHealthFn != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.dbHealthFn(dbCtx); err != nil {
			dbInfo.Connected = false
			dbInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	s.mu.Lock()
	openDrops := len(s.pages)
	s.mu.Unlock()

	status := "healthy"
	if !overallHealthy {
		status = "degraded"
	}

	resp := struct {
		Status    string      `json:"status"`
		RPC       interface{} `json:"rpc"`
		Catalog   interface{} `json:"catalog"`
		OpenDrops int         `json:"open_drops"`
		Wallet    string      `json:"wallet,omitempty"`
	}{
		Status:    status,
		RPC:       rpcInfo,
		Catalog:   dbInfo,
		OpenDrops: openDrops,
		Wallet:    s.wallet.CurrentIdentity().Short(),
	}

	code := http.StatusOK
	if !overallHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-Id", id)
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}
