package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/nereus-fi/levengine/internal/apy"
	"github.com/nereus-fi/levengine/internal/config"
	"github.com/nereus-fi/levengine/internal/execution"
	"github.com/nereus-fi/levengine/internal/logger"
	"github.com/nereus-fi/levengine/internal/orchestrator"
	"github.com/nereus-fi/levengine/internal/percent"
	"github.com/nereus-fi/levengine/internal/planner"
	"github.com/nereus-fi/levengine/internal/pricing"
	"github.com/nereus-fi/levengine/internal/query"
	"github.com/nereus-fi/levengine/internal/registry"
	"github.com/nereus-fi/levengine/internal/state"
	"github.com/nereus-fi/levengine/internal/swap"
	"github.com/nereus-fi/levengine/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the planner and yield pipeline over HTTP.
type WebServer struct {
	router       *mux.Router
	port         string
	registry     *registry.Registry
	planner      *planner.Planner
	orchestrator *orchestrator.Orchestrator
	aggregator   *apy.Aggregator
	store        *query.Store
	prices       *pricing.Client
	executors    map[uint64]*execution.Executor
}

// Deps wires the server's collaborators. Executors is optional; without it
// the execute endpoints answer 503 and the service plans only.
type Deps struct {
	Registry     *registry.Registry
	Planner      *planner.Planner
	Orchestrator *orchestrator.Orchestrator
	Aggregator   *apy.Aggregator
	Store        *query.Store
	Prices       *pricing.Client
	Executors    map[uint64]*execution.Executor
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, deps Deps) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:       mux.NewRouter(),
		port:         port,
		registry:     deps.Registry,
		planner:      deps.Planner,
		orchestrator: deps.Orchestrator,
		aggregator:   deps.Aggregator,
		store:        deps.Store,
		prices:       deps.Prices,
		executors:    deps.Executors,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/tokens", ws.handleListTokens).Methods("GET")
	api.HandleFunc("/tokens/{address}/apy", ws.handleTokenAPY).Methods("GET")
	api.HandleFunc("/apy/snapshots", ws.handleAPYSnapshots).Methods("GET")
	api.HandleFunc("/plan/mint", ws.handlePlanMint).Methods("POST")
	api.HandleFunc("/plan/redeem", ws.handlePlanRedeem).Methods("POST")
	api.HandleFunc("/execute/mint", ws.handleExecuteMint).Methods("POST")
	api.HandleFunc("/execute/redeem", ws.handleExecuteRedeem).Methods("POST")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the configured route tree.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server and database health
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := state.TestDBConnection() == nil

	status := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		status = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":             "levengine",
			"database_healthy": dbHealthy,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleListTokens returns the registered leverage tokens for a chain
func (ws *WebServer) handleListTokens(w http.ResponseWriter, r *http.Request) {
	chainID, err := ws.chainIDParam(r)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid chainId")
		return
	}

	listing, err := ws.store.Get(r.Context(), query.ListingKey(chainID), func(ctx context.Context) (any, error) {
		return ws.registry.ByChain(chainID), nil
	}, query.Options{StaleFor: time.Minute})
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to list tokens")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to list tokens")
		return
	}

	tokens := listing.([]types.LeverageTokenConfig)
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"tokens": tokens,
		"count":  len(tokens),
	})
}

// handleTokenAPY returns the aggregated yield breakdown for one token
func (ws *WebServer) handleTokenAPY(w http.ResponseWriter, r *http.Request) {
	chainID, err := ws.chainIDParam(r)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid chainId")
		return
	}

	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid token address")
		return
	}
	token := common.HexToAddress(addressStr)

	cfg, ok := ws.registry.Lookup(chainID, token)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Unknown token")
		return
	}

	staleFor := time.Duration(config.RefreshIntervalMinutes) * time.Minute
	result, err := ws.store.Get(r.Context(), query.APYKey(chainID, token), func(ctx context.Context) (any, error) {
		return ws.aggregator.ForToken(ctx, cfg), nil
	}, query.Options{StaleFor: staleFor})
	if err != nil {
		webLogger.Error().Err(err).Str("token", token.Hex()).Msg("Failed to compute APY")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute APY")
		return
	}

	aggregated := result.(types.AggregatedAPY)
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"apy":          aggregated,
		"has_errors":   apy.HasBreakdownError(aggregated),
		"source_names": sourceErrorStrings(aggregated),
	})
}

// handleAPYSnapshots returns the latest persisted snapshot per token
func (ws *WebServer) handleAPYSnapshots(w http.ResponseWriter, r *http.Request) {
	chainID, err := ws.chainIDParam(r)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid chainId")
		return
	}

	records, err := state.LoadLatestAPYSnapshots(chainID)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load APY snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to load snapshots")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"snapshots": records,
		"count":     len(records),
	})
}

// mintRequest is the POST /api/plan/mint body. Amounts are base-unit decimal
// strings; slippage is a free-text percent string.
type mintRequest struct {
	ChainID  uint64 `json:"chainId"`
	Token    string `json:"token"`
	Equity   string `json:"equity"`
	Slippage string `json:"slippage"`
	Sender   string `json:"sender"`
}

// handlePlanMint builds a mint plan
func (ws *WebServer) handlePlanMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	plan, _, _, ok := ws.buildMintPlan(w, r, req)
	if !ok {
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, plan)
}

// handleExecuteMint builds a mint plan and submits it on chain
func (ws *WebServer) handleExecuteMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	executor, ok := ws.executors[req.ChainID]
	if !ok {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Execution is not enabled for this chain")
		return
	}

	plan, cfg, auditID, ok := ws.buildMintPlan(w, r, req)
	if !ok {
		return
	}

	receipt, err := executor.ExecuteMint(r.Context(), cfg, *plan)
	ws.finishExecution(w, auditID, receipt, err)
}

// buildMintPlan validates the request, resolves the quote leg and runs the
// planner, writing the error response on failure. The returned audit id is
// zero when auditing is unavailable.
func (ws *WebServer) buildMintPlan(w http.ResponseWriter, r *http.Request, req mintRequest) (*types.MintPlan, types.LeverageTokenConfig, int64, bool) {
	cfg, sender, errMsg := ws.resolvePlanToken(req.ChainID, req.Token, req.Sender)
	if errMsg != "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, errMsg)
		return nil, cfg, 0, false
	}

	equity, ok := sdkmath.NewIntFromString(req.Equity)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return nil, cfg, 0, false
	}
	bps := slippageBps(req.Slippage)

	resolution := ws.orchestrator.Resolve(orchestrator.ResolveParams{
		ChainID:       cfg.ChainID,
		RouterAddress: routerOf(cfg),
		Swap:          cfg.Swap,
		SlippageBps:   bps,
		RequiresQuote: !cfg.SameAssetPair(),
	})
	quoteFn, ok := ws.quoteFromResolution(w, resolution)
	if !ok {
		return nil, cfg, 0, false
	}

	plan, err := ws.planner.PlanMint(r.Context(), planner.MintParams{
		ChainID:            cfg.ChainID,
		Token:              cfg.Address,
		EquityInCollateral: equity,
		SlippageBps:        bps,
		Sender:             sender,
		Quote:              quoteFn,
		Intent:             resolution.Intent,
	})
	if err != nil {
		webLogger.Error().Err(err).Str("token", cfg.Address.Hex()).Msg("Mint planning failed")
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return nil, cfg, 0, false
	}

	var auditID int64
	if state.DB != nil {
		if id, err := state.SaveMintAudit(cfg.ChainID, cfg.Address.Hex(), bps, *plan); err != nil {
			webLogger.Warn().Err(err).Msg("Failed to persist mint plan audit")
		} else {
			auditID = id
		}
	}

	return plan, cfg, auditID, true
}

// redeemRequest is the POST /api/plan/redeem body.
type redeemRequest struct {
	ChainID  uint64 `json:"chainId"`
	Token    string `json:"token"`
	Shares   string `json:"shares"`
	Slippage string `json:"slippage"`
	Sender   string `json:"sender"`
}

// handlePlanRedeem builds a redeem plan. Zero or absent shares disable
// planning rather than failing it.
func (ws *WebServer) handlePlanRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	plan, _, _, ok := ws.buildRedeemPlan(w, r, req)
	if !ok {
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, plan)
}

// handleExecuteRedeem builds a redeem plan and submits it on chain
func (ws *WebServer) handleExecuteRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	executor, ok := ws.executors[req.ChainID]
	if !ok {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Execution is not enabled for this chain")
		return
	}

	plan, cfg, auditID, ok := ws.buildRedeemPlan(w, r, req)
	if !ok {
		return
	}

	receipt, err := executor.ExecuteRedeem(r.Context(), cfg, *plan)
	ws.finishExecution(w, auditID, receipt, err)
}

// buildRedeemPlan validates the request and runs the redeem planner, writing
// the response on failure. Token validity is checked before the disabled
// short-circuit, so a bad or unknown token is a client error even when the
// shares field would disable planning.
func (ws *WebServer) buildRedeemPlan(w http.ResponseWriter, r *http.Request, req redeemRequest) (*types.RedeemPlan, types.LeverageTokenConfig, int64, bool) {
	cfg, sender, errMsg := ws.resolvePlanToken(req.ChainID, req.Token, req.Sender)
	if errMsg != "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, errMsg)
		return nil, cfg, 0, false
	}

	if req.Shares == "" {
		ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": "disabled"})
		return nil, cfg, 0, false
	}
	shares, ok := sdkmath.NewIntFromString(req.Shares)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return nil, cfg, 0, false
	}
	if !planner.RedeemEnabled(shares) {
		ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": "disabled"})
		return nil, cfg, 0, false
	}
	bps := slippageBps(req.Slippage)

	resolution := ws.orchestrator.Resolve(orchestrator.ResolveParams{
		ChainID:       cfg.ChainID,
		RouterAddress: routerOf(cfg),
		Swap:          cfg.Swap,
		SlippageBps:   bps,
		RequiresQuote: !cfg.SameAssetPair(),
	})
	quoteFn, ok := ws.quoteFromResolution(w, resolution)
	if !ok {
		return nil, cfg, 0, false
	}

	// Price is advisory; a missing price drops the USD figures only.
	var collateralPrice float64
	if ws.prices != nil {
		if price, err := ws.prices.USDPrice(r.Context(), cfg.ChainID, cfg.Collateral.Address); err == nil {
			collateralPrice = price
		}
	}

	plan, err := ws.planner.PlanRedeem(r.Context(), planner.RedeemParams{
		ChainID:            cfg.ChainID,
		Token:              cfg.Address,
		SharesToRedeem:     shares,
		SlippageBps:        bps,
		Sender:             sender,
		Quote:              quoteFn,
		Intent:             resolution.Intent,
		CollateralPriceUSD: collateralPrice,
	})
	if err != nil {
		webLogger.Error().Err(err).Str("token", cfg.Address.Hex()).Msg("Redeem planning failed")
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return nil, cfg, 0, false
	}

	var auditID int64
	if state.DB != nil {
		if id, err := state.SaveRedeemAudit(cfg.ChainID, cfg.Address.Hex(), bps, *plan); err != nil {
			webLogger.Warn().Err(err).Msg("Failed to persist redeem plan audit")
		} else {
			auditID = id
		}
	}

	return plan, cfg, auditID, true
}

// finishExecution records the outcome against the audit row and writes the
// receipt or the classified failure.
func (ws *WebServer) finishExecution(w http.ResponseWriter, auditID int64, receipt *types.Receipt, err error) {
	if err != nil {
		ws.recordExecutionOutcome(auditID, "", false)
		status := http.StatusBadGateway
		if errors.Is(err, execution.ErrTransactionReverted) {
			status = http.StatusUnprocessableEntity
		}
		ws.writeErrorResponse(w, status, err.Error())
		return
	}

	ws.recordExecutionOutcome(auditID, receipt.TxHash.Hex(), receipt.Success)
	ws.writeJSONResponse(w, http.StatusOK, receipt)
}

func (ws *WebServer) recordExecutionOutcome(auditID int64, txHash string, success bool) {
	if state.DB == nil || auditID == 0 {
		return
	}
	if err := state.UpdateAuditOutcome(auditID, txHash, success); err != nil {
		webLogger.Warn().Err(err).Int64("auditId", auditID).Msg("Failed to record execution outcome")
	}
}

// resolvePlanToken validates the token and optional sender shared by the
// plan and execute endpoints.
func (ws *WebServer) resolvePlanToken(chainID uint64, token, sender string) (types.LeverageTokenConfig, common.Address, string) {
	var zero types.LeverageTokenConfig

	if !common.IsHexAddress(token) {
		return zero, common.Address{}, "Invalid token address"
	}
	cfg, ok := ws.registry.Lookup(chainID, common.HexToAddress(token))
	if !ok {
		return zero, common.Address{}, "Unknown token"
	}

	var senderAddr common.Address
	if sender != "" {
		if !common.IsHexAddress(sender) {
			return zero, common.Address{}, "Invalid sender address"
		}
		senderAddr = common.HexToAddress(sender)
	}

	return cfg, senderAddr, ""
}

func slippageBps(slippage string) int {
	if slippage == "" {
		return config.DefaultSlippageBps
	}
	return percent.ParseSlippage(slippage, config.DefaultSlippageBps)
}

// quoteFromResolution converts an orchestrator resolution into a planner
// quote function, writing the failure response when the leg is unusable.
func (ws *WebServer) quoteFromResolution(w http.ResponseWriter, res orchestrator.Resolution) (planner.QuoteFunc, bool) {
	switch res.Status {
	case orchestrator.StatusNotRequired:
		return nil, true
	case orchestrator.StatusReady:
		return func(ctx context.Context, req swap.Request) (types.Quote, error) {
			return res.Adapter.Quote(ctx, req)
		}, true
	default:
		detail := string(res.Status)
		if res.Err != nil {
			detail += ": " + res.Err.Error()
		}
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, "Quote leg unavailable: "+detail)
		return nil, false
	}
}

func (ws *WebServer) chainIDParam(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("chainId")
	if raw == "" {
		return 0, errors.New("chainId is required")
	}
	return strconv.ParseUint(raw, 10, 64)
}

func routerOf(cfg types.LeverageTokenConfig) common.Address {
	if cfg.Swap == nil {
		return common.Address{}
	}
	return cfg.Swap.Router
}

func sourceErrorStrings(result types.AggregatedAPY) map[string]string {
	out := make(map[string]string)
	for source, err := range result.Errors {
		if err != nil {
			out[source] = err.Error()
		}
	}
	return out
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
