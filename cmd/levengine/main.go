package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/nereus-fi/levengine/internal/apy"
	"github.com/nereus-fi/levengine/internal/chain"
	"github.com/nereus-fi/levengine/internal/config"
	"github.com/nereus-fi/levengine/internal/execution"
	"github.com/nereus-fi/levengine/internal/logger"
	"github.com/nereus-fi/levengine/internal/orchestrator"
	"github.com/nereus-fi/levengine/internal/planner"
	"github.com/nereus-fi/levengine/internal/pricing"
	"github.com/nereus-fi/levengine/internal/query"
	"github.com/nereus-fi/levengine/internal/registry"
	"github.com/nereus-fi/levengine/internal/state"
	"github.com/nereus-fi/levengine/internal/web"
)

// main is the entry point for the levengine service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Leverage engine starting...")

	// Initialize database connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Chain Clients ---
	readers := make(map[uint64]chain.Reader)
	clients := make(map[uint64]*chain.Client)
	for chainID, urls := range config.RPCEndpoints {
		client, err := chain.NewClient(chainID, urls)
		if err != nil {
			log.Fatal().Err(err).Uint64("chainId", chainID).Msg("Failed to create chain client")
		}
		readers[chainID] = client
		clients[chainID] = client
	}
	if len(readers) == 0 {
		log.Fatal().Msg("No RPC endpoints configured")
	}
	log.Info().Int("chains", len(readers)).Msg("Chain clients initialized")

	// --- 3. Core Components ---
	reg, err := registry.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build token registry")
	}

	store, err := query.NewStore()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create query store")
	}
	defer store.Close()

	quoteOrchestrator := orchestrator.New(orchestrator.Config{
		Readers:      readers,
		VeloraBase:   config.VeloraAPIBase,
		LiFiBase:     config.LiFiAPIBase,
		QuoteTimeout: time.Duration(config.QuoteTimeoutSeconds) * time.Second,
	})

	plannerInstance := planner.New(reg, readers)
	priceClient := pricing.NewClient(config.PriceAPIBase)

	aggregator := apy.New(
		reg,
		apy.NewChainRatioSource(readers),
		apy.NewStakingAPRClient(config.YieldAPIBase),
		apy.NewBorrowMarketClient(config.YieldAPIBase),
		apy.NewRewardsClient(config.RewardsAPIBase),
	)

	// --- 4. Execution ---
	executors := make(map[uint64]*execution.Executor)
	if config.SignerPrivateKey != "" {
		for chainID, client := range clients {
			signer, err := execution.NewLocalSigner(config.SignerPrivateKey, chainID, client)
			if err != nil {
				log.Fatal().Err(err).Uint64("chainId", chainID).Msg("Failed to create signer")
			}
			executor, err := execution.New(chainID, client, client, signer, store)
			if err != nil {
				log.Fatal().Err(err).Uint64("chainId", chainID).Msg("Failed to create executor")
			}
			executors[chainID] = executor
		}
		log.Info().Int("chains", len(executors)).Msg("Execution enabled")
	} else {
		log.Info().Msg("SIGNER_PRIVATE_KEY not set; planning only")
	}

	// --- 5. Web Server ---
	webServer := web.NewWebServer(config.WebServerPort, web.Deps{
		Registry:     reg,
		Planner:      plannerInstance,
		Orchestrator: quoteOrchestrator,
		Aggregator:   aggregator,
		Store:        store,
		Prices:       priceClient,
		Executors:    executors,
	})
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 6. APY Refresh Loop ---
	refreshInterval := time.Duration(config.RefreshIntervalMinutes) * time.Minute
	refresher := apy.NewRefresher(aggregator, reg, store, refreshInterval)

	ctx := context.Background()
	refresher.RunLoop(ctx, refreshInterval)
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
