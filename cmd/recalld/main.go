package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haneul-ai/recall/config"
	"github.com/haneul-ai/recall/internal/embedder"
	"github.com/haneul-ai/recall/internal/engine"
	"github.com/haneul-ai/recall/internal/logger"
	"github.com/haneul-ai/recall/internal/metrics"
	"github.com/haneul-ai/recall/internal/transport/jsonrpc"
	"github.com/haneul-ai/recall/internal/transport/rest"
	"github.com/haneul-ai/recall/internal/version"
	"github.com/haneul-ai/recall/internal/watcher"
)

var (
	configPath = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	dataDir    = flag.String("data-dir", "", "Override data directory")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	noREST     = flag.Bool("no-rest", false, "Disable the REST server")
	noStdio    = flag.Bool("no-stdio", false, "Disable the stdio JSON-RPC server")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath, buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: "stdout",
	})
	logger.SetGlobal(log)

	log.Info("starting recalld",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"dataDir", cfg.DataDir,
	)
	log.Debug("configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	metricsManager := metrics.NewManager(metrics.Config{
		Enabled:               cfg.Metrics.Enabled,
		Port:                  cfg.Metrics.Port,
		Path:                  "/metrics",
		SearchDurationBuckets: metrics.DefaultConfig().SearchDurationBuckets,
	})
	if metricsManager.Enabled() {
		go func() {
			log.Info("starting metrics server", "port", cfg.Metrics.Port)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, "/metrics"); err != nil {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	engCfg := engine.DefaultConfig(cfg.DataDir)
	engCfg.VectorDimension = cfg.Engine.VectorDimension
	engCfg.HNSW.M = cfg.Engine.HNSW.M
	engCfg.HNSW.EfConstruction = cfg.Engine.HNSW.EfConstruction
	engCfg.HNSW.EfSearch = cfg.Engine.HNSW.EfSearch
	engCfg.BM25K1 = cfg.Engine.BM25.K1
	engCfg.BM25B = cfg.Engine.BM25.B
	engCfg.Weights = cfg.EngineWeights()
	engCfg.HalfLifeDays = cfg.Engine.HalfLifeDays
	engCfg.JanitorInterval = cfg.Engine.JanitorInterval
	engCfg.TombstoneTTL = cfg.Engine.TombstoneTTL
	engCfg.BusyQueueDepth = cfg.Engine.BusyQueueDepth

	// The Embedder is an opaque external capability (spec §1); recalld
	// ships a deterministic mock so the engine is usable standalone.
	// Swap in a real model-backed embedder.Embedder to enable semantic
	// search.
	emb := embedder.NewMock(cfg.Engine.VectorDimension)

	facade, err := engine.Open(ctx, engCfg, emb, log, metricsManager)
	if err != nil {
		log.Error("failed to open engine", "error", err)
		os.Exit(1)
	}
	facade.Start()

	var watch *watcher.Watcher
	if len(cfg.Watch.Dirs) > 0 {
		watch, err = watcher.New(watcher.Config{
			Dirs:       cfg.Watch.Dirs,
			Extensions: cfg.Watch.Extensions,
			Debounce:   cfg.Watch.Debounce,
		}, facade, log)
		if err != nil {
			log.Error("failed to create filesystem observer", "error", err)
			os.Exit(1)
		}
		if err := watch.Start(); err != nil {
			log.Error("failed to start filesystem observer", "error", err)
			os.Exit(1)
		}
		log.Info("filesystem observer watching", "dirs", cfg.Watch.Dirs)
	}

	serverErrChan := make(chan error, 1)
	restStopped := make(chan struct{})
	if !*noREST {
		restCfg := rest.DefaultConfig()
		restCfg.Host = cfg.Server.Host
		restCfg.Port = cfg.Server.Port
		restCfg.RateLimit = cfg.Server.RateLimit
		restCfg.Burst = cfg.Server.Burst
		restServer := rest.NewServer(restCfg, facade, log)

		go func() {
			defer close(restStopped)
			log.Info("starting REST server", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
			if err := restServer.Run(ctx); err != nil {
				serverErrChan <- err
			}
		}()
	} else {
		close(restStopped)
	}

	if !*noStdio {
		rpcServer := jsonrpc.NewServer(jsonrpc.DefaultConfig(), facade, log)
		go func() {
			log.Info("starting stdio JSON-RPC server")
			if err := rpcServer.Serve(ctx, os.Stdin, os.Stdout); err != nil {
				log.Warn("stdio JSON-RPC server stopped", "error", err)
			}
		}()
	}

	log.Info("recalld is running", "http_port", cfg.Server.Port, "metrics_port", cfg.Metrics.Port)

	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("REST server error", "error", err)
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	if watch != nil {
		if err := watch.Stop(); err != nil {
			log.Error("error stopping filesystem observer", "error", err)
		}
	}

	// Cancel the root context: REST.Run selects on ctx.Done() to start its
	// graceful shutdown. The stdio JSON-RPC Serve loop checks ctx only after
	// reading a line, so it returns once the next line arrives or stdin closes.
	cancel()
	select {
	case <-restStopped:
	case <-time.After(30 * time.Second):
		log.Warn("timed out waiting for REST server to stop")
	}

	log.Info("stopping engine")
	if err := facade.Stop(); err != nil {
		log.Error("error during engine shutdown", "error", err)
	}

	log.Info("recalld stopped gracefully")
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *dataDir != "" {
		overrides["data_dir"] = *dataDir
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}

	return overrides
}

func printVersion() {
	fmt.Printf("recalld - hybrid local memory engine\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("recalld - local long-term memory engine for conversational AI assistants\n\n")
	fmt.Printf("Usage: recalld [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  recalld                                  # Run with default config\n")
	fmt.Printf("  recalld -config config.yaml              # Use specific config file\n")
	fmt.Printf("  recalld -port 9090 -log-level debug       # Override specific options\n")
	fmt.Printf("  recalld -no-rest                          # stdio JSON-RPC only\n")
	fmt.Printf("  recalld -version                          # Print version info\n")
}
