package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quote-ticker/src/config"
	datasource "quote-ticker/src/data_source"
	"quote-ticker/src/data_source/alphavantage"
	"quote-ticker/src/data_source/coingecko"
	"quote-ticker/src/data_source/yahoo"
	"quote-ticker/src/engine"
	"quote-ticker/src/grpc_control"
	"quote-ticker/src/interfaces"
	"quote-ticker/src/logger"
	"quote-ticker/src/network"
	"quote-ticker/src/scheduler"
	"quote-ticker/src/server"
	"quote-ticker/src/storage"
	"quote-ticker/src/utils"

	"github.com/joho/godotenv"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	// .env is optional; real environment variables win
	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: could not read %s: %v\n", *envPath, err)
	}

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	if err := logger.Setup(cfg.LogLevel); err != nil {
		fmt.Printf("Error setting up logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	appLogger := logger.NewLogger(cfg.Name)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Settings store
	store, err := storage.NewSettingsStore(cfg.MConfig, logger.NewLogger("SettingsStore"))
	if err != nil {
		appLogger.Critical("Failed to init settings store: %v", err)
	}
	if err := store.Initialize(ctx); err != nil {
		appLogger.Critical("Failed to open settings store: %v", err)
	}
	defer store.Close()

	// 2. Network and providers
	var networkManager interfaces.INetworkManager = network.NewAsyncNetworkManager(cfg.MConfig, logger.NewLogger("Network"))

	// The engine owns the api key; the keyed provider reads it through this closure.
	var quoteEngine *engine.QuoteEngine
	apiKey := func() string {
		if quoteEngine == nil {
			return ""
		}
		return quoteEngine.APIKey()
	}

	primary := yahoo.NewYahooFinanceSource(networkManager, yahoo.WithBaseURL(cfg.Quotes.YahooBaseURL))
	secondary := alphavantage.NewAlphaVantageSource(networkManager, apiKey,
		alphavantage.WithBaseURL(cfg.Quotes.AlphaVantageBaseURL),
		alphavantage.WithRequestsPerMinute(cfg.Quotes.AlphaVantagePerMinute),
		alphavantage.WithMarketHours(utils.NewMarketHours(logger.NewLogger("MarketHours"))),
	)
	cryptoFallback := coingecko.NewCoinGeckoSource(networkManager, coingecko.WithBaseURL(cfg.Quotes.CoinGeckoBaseURL))

	chain := datasource.NewDefaultChain(primary, secondary, secondary.Enabled, cryptoFallback, utils.IsCrypto,
		logger.NewLogger("MultiSourceManager"))

	// 3. Engine
	quoteEngine = engine.NewQuoteEngine(ctx, store, chain, engine.Defaults{
		Symbols:        cfg.Quotes.DefaultSymbols,
		RefreshMinutes: cfg.Quotes.RefreshIntervalMinutes,
		APIKey:         cfg.Quotes.AlphaVantageAPIKey,
	}, logger.NewLogger("QuoteEngine"))

	// 4. HTTP + WebSocket
	apiServer := server.NewAPIServer(cfg.MConfig, quoteEngine, logger.NewLogger("APIServer"))
	quoteEngine.SetBroadcaster(apiServer)

	go func() {
		if err := apiServer.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	// 5. Scheduler
	sched := scheduler.NewScheduler(quoteEngine, logger.NewLogger("Scheduler"))
	quoteEngine.SetScheduler(sched)
	sched.Start(ctx)

	// 6. gRPC Control Server
	controlService := grpc_control.NewControlService(cfg, *configPath, quoteEngine, chain, logger.NewLogger("ControlService"))
	grpcServer := grpc_control.NewServer(controlService, logger.NewLogger("gRPC"))
	if cfg.GrpcPort > 0 {
		addr := fmt.Sprintf("%s:%d", cfg.GrpcHost, cfg.GrpcPort)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			appLogger.Critical("failed to listen for gRPC: %v", err)
		}
		go func() {
			appLogger.Info("Starting gRPC Control Server on %s", addr)
			if err := grpcServer.Serve(lis); err != nil {
				appLogger.Error("gRPC server stopped: %v", err)
			}
		}()
	}

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	sched.Stop()
	grpcServer.GracefulStop()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		appLogger.Error("HTTP shutdown: %v", err)
	}
}
