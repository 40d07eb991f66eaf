package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"lendledger/config"
	"lendledger/core/state"
	"lendledger/crypto"
	"lendledger/native/lending"
	"lendledger/observability/logging"
	"lendledger/services/lendingd"
	"lendledger/storage"
)

func main() {
	var cfgPath string
	var useMemory bool
	flag.StringVar(&cfgPath, "config", "lendledger.toml", "path to config file")
	flag.BoolVar(&useMemory, "memory", false, "use an in-memory store instead of LevelDB")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logging.Setup("lendingd", "").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup("lendingd", cfg.Environment)

	var db storage.Database
	if useMemory {
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("open database", "path", cfg.DataDir, "error", err)
			os.Exit(1)
		}
		db = leveldb
	}
	defer db.Close()

	identity := crypto.ProtocolIdentity()
	if raw := strings.TrimSpace(cfg.ProtocolIdentity); raw != "" {
		parsed, err := crypto.DecodeAddress(raw)
		if err != nil {
			logger.Error("parse protocol identity", "error", err)
			os.Exit(1)
		}
		identity = parsed
	}

	manager := state.NewManager(db)
	store := state.NewLendingStore(manager)
	engine := lending.NewEngine(identity)
	engine.SetState(store)
	engine.SetOracleLimits(cfg.OracleMaxAgeSeconds, cfg.OracleMaxConfBps)

	httpClient := &http.Client{Timeout: 5 * time.Second}
	for _, feed := range cfg.Oracles {
		engine.RegisterPriceSource(feed.ID, lending.NewHTTPSource(httpClient, feed.Endpoint))
		logger.Info("registered price feed", "feed", feed.ID, "endpoint", feed.Endpoint)
	}

	if raw := strings.TrimSpace(cfg.GovernanceAuthority); raw != "" {
		authority, err := crypto.DecodeAddress(raw)
		if err != nil {
			logger.Error("parse governance authority", "error", err)
			os.Exit(1)
		}
		if err := engine.InitializeMarket(authority); err != nil && !errors.Is(err, lending.ErrMarketAlreadyInitialized) {
			logger.Error("initialize market", "error", err)
			os.Exit(1)
		}
		if err := manager.Commit(); err != nil {
			logger.Error("commit market init", "error", err)
			os.Exit(1)
		}
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst)
	server := lendingd.NewServer(engine, manager, logger, limiter)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("lendingd listening", "address", cfg.ListenAddress)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "error", err)
			os.Exit(1)
		}
	}
}
