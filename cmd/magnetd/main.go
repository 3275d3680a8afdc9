package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"magnetd/config"
	"magnetd/core/state"
	"magnetd/native/magnet"
	"magnetd/observability/logging"
	"magnetd/rpc"
	"magnetd/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MAGNETD_ENV"))
	logger := logging.Setup("magnetd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := openDatabase(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)

	engine := magnet.NewEngine()
	engine.SetState(manager)
	engine.SetGateway(state.NewTokenLedger(manager))

	logger.Info("magnetd node ready",
		slog.String("network", cfg.NetworkName),
		slog.String("database", cfg.Database),
		slog.String("dataDir", cfg.DataDir),
	)

	server := rpc.NewServer(engine, logger, cfg.RPCAuthToken)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("JSON-RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Database {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "magnetd.db"))
	case config.BackendLevelDB:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.Database)
	}
}
