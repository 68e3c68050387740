package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/lanwatch/internal/config"
	"github.com/HerbHall/lanwatch/internal/controlplane"
	"github.com/HerbHall/lanwatch/internal/history"
	"github.com/HerbHall/lanwatch/internal/metrics"
	"github.com/HerbHall/lanwatch/internal/pulse"
	"github.com/HerbHall/lanwatch/internal/recon"
	"github.com/HerbHall/lanwatch/internal/scout"
	"github.com/HerbHall/lanwatch/internal/server"
	"github.com/HerbHall/lanwatch/internal/store"
	"github.com/HerbHall/lanwatch/internal/version"
)

const shutdownGrace = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	backupPath := flag.String("backup", "", "write a tar.gz backup of the agent database and config to this path and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return 0
	}

	raw, err := config.Load(*configPath, scout.Defaults())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		return 1
	}
	if *printConfig {
		out, err := raw.Dump("api_key")
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		os.Stdout.Write(out)
		return 0
	}

	cfg := scout.DefaultConfig()
	if err := raw.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "decode configuration: %v\n", err)
		return 1
	}
	if *backupPath != "" {
		return runBackup(cfg.DataDir, raw.ConfigFileUsed(), *backupPath)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Info("LanWatch agent starting",
		zap.String("version", version.Short()),
		zap.String("config_file", raw.ConfigFileUsed()),
	)

	cp, err := controlplane.New(cfg.DashboardURL, cfg.APIKey, logger.Named("controlplane"))
	if err != nil {
		logger.Error("failed to create control-plane client", zap.Error(err))
		return 1
	}

	scanner := recon.NewScanner(recon.ScanConfig{
		Concurrency:   cfg.Discovery.Concurrency,
		Timeout:       cfg.DiscoveryTimeout(),
		MaxHosts:      cfg.Discovery.MaxHosts,
		MDNS:          cfg.Discovery.MDNS,
		SNMPCommunity: cfg.Discovery.SNMPCommunity,
	}, logger.Named("recon"))

	recorder := metrics.New()

	var scans history.ScanRepository
	if db, err := store.Open(cfg.DataDir); err != nil {
		logger.Warn("scan history disabled", zap.Error(err))
	} else {
		defer db.Close()
		repo, err := history.NewSQLiteScanRepository(context.Background(), db)
		if err != nil {
			logger.Warn("scan history disabled", zap.Error(err))
		} else {
			logger.Info("scan history enabled", zap.String("path", db.Path()))
			scans = repo
		}
	}

	agent, err := scout.NewAgent(cfg, scout.Deps{
		ControlPlane: cp,
		Discoverer:   scanner,
		Checkers:     pulse.NewCheckers(cfg.ProbeTimeout(), cfg.Probe.PingCount),
		History:      scans,
		Metrics:      recorder,
	}, logger.Named("scout"))
	if err != nil {
		logger.Error("failed to create agent", zap.Error(err))
		return 1
	}

	var srv *server.Server
	if cfg.StatusAddr != "" {
		srv = server.New(cfg.StatusAddr, agent, scans, recorder.Handler(), logger.Named("server"))
		go func() {
			if err := srv.Serve(); err != nil {
				logger.Error("status endpoint stopped", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	code := 0
	select {
	case err := <-done:
		if err != nil {
			logger.Error("agent exited with a fatal error", zap.Error(err))
			code = 1
		}
	case <-ctx.Done():
		logger.Info("received shutdown signal")
		select {
		case <-done:
		case <-time.After(shutdownGrace):
			logger.Warn("agent did not stop within the grace period", zap.Duration("grace", shutdownGrace))
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status endpoint shutdown error", zap.Error(err))
		}
	}

	logger.Info("LanWatch agent stopped")
	return code
}

func runBackup(dataDir, configFile, output string) int {
	db, err := store.Open(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		return 1
	}
	defer db.Close()

	if err := db.Backup(context.Background(), output, configFile); err != nil {
		fmt.Fprintf(os.Stderr, "backup failed: %v\n", err)
		return 1
	}
	fmt.Printf("Backup created: %s\n", output)
	return 0
}

// newLogger builds a production JSON logger at the configured level, also
// writing to <dir>/lanwatch-agent.log when a log directory is set.
func newLogger(lc scout.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zc.Level = level
	}
	if lc.Dir != "" {
		if err := os.MkdirAll(lc.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		zc.OutputPaths = append(zc.OutputPaths, filepath.Join(lc.Dir, "lanwatch-agent.log"))
	}
	return zc.Build()
}
