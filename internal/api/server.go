package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/options-edge-scanner/internal/config"
	"github.com/options-edge-scanner/internal/market"
	"github.com/options-edge-scanner/internal/scan"
	"github.com/options-edge-scanner/internal/store"
	"github.com/options-edge-scanner/internal/strategy"
)

// MarketData is the provider surface the API needs: everything the scanner
// consumes plus the expiration list used by the interactive builder.
type MarketData interface {
	scan.MarketData
	GetOptionExpirations(ctx context.Context, symbol string) ([]time.Time, error)
}

type Server struct {
	config       config.APIConfig
	orchestrator *scan.Orchestrator
	provider     MarketData
	calculator   *strategy.Calculator
	store        store.Store
	filters      scan.Filters
	registry     *prometheus.Registry
	progressCh   <-chan scan.Progress
	server       *http.Server
	runCtx       context.Context

	upgrader websocket.Upgrader
	mu       sync.Mutex
	streams  map[*websocket.Conn]struct{}
}

func NewServer(cfg config.APIConfig, orchestrator *scan.Orchestrator, provider MarketData,
	calculator *strategy.Calculator, snapshots store.Store, defaultFilters scan.Filters,
	registry *prometheus.Registry, progressCh <-chan scan.Progress) *Server {
	return &Server{
		config:       cfg,
		orchestrator: orchestrator,
		provider:     provider,
		calculator:   calculator,
		store:        snapshots,
		filters:      defaultFilters,
		registry:     registry,
		progressCh:   progressCh,
		streams:      make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Run(ctx context.Context) error {
	s.runCtx = ctx
	router := mux.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           3600,
	})

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.getHealth).Methods("GET")
	api.HandleFunc("/universe", s.getUniverse).Methods("GET")
	api.HandleFunc("/scan", s.startScan).Methods("POST")
	api.HandleFunc("/scan/status", s.getScanStatus).Methods("GET")
	api.HandleFunc("/scan/result", s.getScanResult).Methods("GET")
	api.HandleFunc("/opportunities", s.getOpportunities).Methods("GET")
	api.HandleFunc("/symbols/{symbol}/expirations", s.getExpirations).Methods("GET")
	api.HandleFunc("/symbols/{symbol}/chain", s.getChain).Methods("GET")
	api.HandleFunc("/strategies/analyze", s.analyzeStrategy).Methods("POST")
	api.HandleFunc("/strategies", s.saveStrategy).Methods("POST")
	api.HandleFunc("/strategies", s.listStrategies).Methods("GET")
	api.HandleFunc("/strategies/{key}", s.getStrategy).Methods("GET")
	api.HandleFunc("/stream/scan", s.streamScan).Methods("GET")

	if s.registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:    s.config.BindAddress,
		Handler: c.Handler(router),
	}

	go s.broadcastProgress(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", s.config.BindAddress).Msg("API server starting")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"scanner_state": s.orchestrator.State(),
		"time":          time.Now(),
	})
}

func (s *Server) getUniverse(w http.ResponseWriter, r *http.Request) {
	universe := s.orchestrator.Universe()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": universe,
		"count":   len(universe),
	})
}

// startScan kicks off an asynchronous scan. The request body may override any
// default filter; an omitted body scans with the configured defaults.
func (s *Server) startScan(w http.ResponseWriter, r *http.Request) {
	filters := s.filters
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&filters); err != nil {
			http.Error(w, "invalid filters: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	// Probe for an active scan before detaching the worker so the caller
	// gets the conflict synchronously.
	if s.orchestrator.State() == scan.StateRunning {
		http.Error(w, scan.ErrScanInProgress.Error(), http.StatusConflict)
		return
	}

	go func() {
		if _, err := s.orchestrator.Scan(s.runCtx, filters); err != nil {
			if !errors.Is(err, scan.ErrScanInProgress) {
				log.Error().Err(err).Msg("scan ended with error")
			}
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) getScanStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"state":    s.orchestrator.State(),
		"progress": s.orchestrator.Progress(),
	}
	if result := s.orchestrator.LastResult(); result != nil {
		status["last_run_id"] = result.RunID
		status["last_message"] = result.Message
		status["synthetic"] = result.Synthetic
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) getScanResult(w http.ResponseWriter, r *http.Request) {
	result := s.orchestrator.LastResult()
	if result == nil {
		http.Error(w, "no scan has completed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getOpportunities(w http.ResponseWriter, r *http.Request) {
	result := s.orchestrator.LastResult()
	if result == nil {
		http.Error(w, "no scan has completed yet", http.StatusNotFound)
		return
	}

	tierParam := r.URL.Query().Get("tier")
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var opportunities []scan.Opportunity
	if tierParam == "" {
		opportunities = append(opportunities, result.Tiers.High...)
		opportunities = append(opportunities, result.Tiers.Medium...)
		opportunities = append(opportunities, result.Tiers.Low...)
		opportunities = append(opportunities, result.Tiers.NearMiss...)
	} else {
		opportunities = result.Tiers.Tier(scan.Tier(tierParam))
		if opportunities == nil {
			http.Error(w, "unknown tier: "+tierParam, http.StatusBadRequest)
			return
		}
	}

	if limit > 0 && limit < len(opportunities) {
		opportunities = opportunities[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities": opportunities,
		"count":         len(opportunities),
		"synthetic":     result.Synthetic,
	})
}

func (s *Server) getExpirations(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	dates, err := s.provider.GetOptionExpirations(r.Context(), symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(market.ExpirationDate))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":      symbol,
		"expirations": out,
	})
}

func (s *Server) getChain(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	expiration := r.URL.Query().Get("expiration")

	chain, err := s.provider.GetOptionsChain(r.Context(), symbol, expiration)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"chain":  chain,
		"count":  len(chain),
	})
}

// strategyRequest is the interactive-builder payload for analyze and save.
type strategyRequest struct {
	Symbol string        `json:"symbol"`
	Kind   strategy.Kind `json:"kind"`
	Legs   []legRequest  `json:"legs"`
}

type legRequest struct {
	Type       market.OptionType `json:"type"`
	Side       strategy.Side     `json:"side"`
	Strike     float64           `json:"strike"`
	Quantity   int               `json:"quantity"`
	Premium    float64           `json:"premium"`
	Expiration string            `json:"expiration"`
}

func (req *strategyRequest) toStrategy() (*strategy.Strategy, error) {
	legs := make([]strategy.Leg, 0, len(req.Legs))
	for _, l := range req.Legs {
		exp, err := time.Parse(market.ExpirationDate, l.Expiration)
		if err != nil {
			return nil, err
		}
		quantity := l.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		legs = append(legs, strategy.Leg{
			Type:       l.Type,
			Side:       l.Side,
			Strike:     l.Strike,
			Quantity:   quantity,
			Premium:    l.Premium,
			Expiration: exp,
		})
	}
	return &strategy.Strategy{Symbol: req.Symbol, Kind: req.Kind, Legs: legs}, nil
}

// analyzeStrategy resolves the request legs against the live chain, computes
// metrics and the payoff curve. Legs with no matching contract keep a zero
// premium rather than failing the request.
func (s *Server) analyzeStrategy(w http.ResponseWriter, r *http.Request) {
	built, quote, status, err := s.resolveRequest(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	analysis := s.calculator.Analyze(built)
	curve := strategy.PriceSweep(built.Legs, quote.Last)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategy": built,
		"quote":    quote,
		"analysis": analysis,
		"curve":    curve,
	})
}

func (s *Server) saveStrategy(w http.ResponseWriter, r *http.Request) {
	built, _, status, err := s.resolveRequest(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	analysis := s.calculator.Analyze(built)
	key, err := s.store.Save(r.Context(), store.Snapshot{
		Symbol:       built.Symbol,
		StrategyKind: built.Kind,
		Legs:         built.Legs,
		Analysis:     analysis,
		SavedAt:      time.Now(),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (s *Server) resolveRequest(r *http.Request) (*strategy.Strategy, *market.Quote, int, error) {
	var req strategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, http.StatusBadRequest, err
	}
	if req.Symbol == "" || len(req.Legs) == 0 {
		return nil, nil, http.StatusBadRequest, errors.New("symbol and at least one leg are required")
	}

	built, err := req.toStrategy()
	if err != nil {
		return nil, nil, http.StatusBadRequest, err
	}

	quote, err := s.provider.GetQuote(r.Context(), req.Symbol)
	if err != nil {
		return nil, nil, http.StatusBadGateway, err
	}

	chain, err := s.provider.GetOptionsChain(r.Context(), req.Symbol, "")
	if err != nil {
		return nil, nil, http.StatusBadGateway, err
	}

	built.Legs = strategy.ResolveLegs(built.Legs, chain)

	// A user-entered premium wins over an unmatched (zeroed) resolution.
	for i := range built.Legs {
		if built.Legs[i].Premium == 0 && req.Legs[i].Premium > 0 {
			built.Legs[i].Premium = req.Legs[i].Premium
		}
	}

	return built, quote, http.StatusOK, nil
}

func (s *Server) listStrategies(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": snapshots,
		"count":      len(snapshots),
	})
}

func (s *Server) getStrategy(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	snapshot, err := s.store.Get(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "strategy not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// streamScan upgrades to a WebSocket and pushes scan progress events until
// the client goes away.
func (s *Server) streamScan(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.streams[conn] = struct{}{}
	s.mu.Unlock()

	// Reader loop exists only to notice disconnects.
	go func() {
		defer s.dropStream(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) dropStream(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.streams, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) broadcastProgress(ctx context.Context) {
	if s.progressCh == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case progress := <-s.progressCh:
			s.mu.Lock()
			conns := make([]*websocket.Conn, 0, len(s.streams))
			for conn := range s.streams {
				conns = append(conns, conn)
			}
			s.mu.Unlock()

			for _, conn := range conns {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(progress); err != nil {
					s.dropStream(conn)
				}
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
