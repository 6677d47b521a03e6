package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flags "github.com/jessevdk/go-flags"
	"github.com/jrick/logrotate/rotator"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vulkan.dev/core/chain"
	"vulkan.dev/core/storage"
)

// options mirrors flokiorg-go-flokicoin's CLI struct-tag convention
// (short/long/description per flag), parsed with go-flags instead of the
// teacher's stdlib flag package.
type options struct {
	Network           string `short:"n" long:"network" description:"network name (devnet/testnet/mainnet)" default:"devnet"`
	DataDir           string `short:"d" long:"datadir" description:"node data directory"`
	LogLevel          string `long:"loglevel" description:"log level: debug|info|warn|error" default:"info"`
	MempoolMaxBytes   int    `long:"mempool-max-bytes" description:"maximum total serialized size of admitted mempool transactions" default:"33554432"`
	IngressQueueDepth int    `long:"ingress-queue-depth" description:"bounded ingress channel capacity" default:"256"`
	MaxOrphans        int    `long:"max-orphans" description:"maximum buffered orphan blocks" default:"100"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		return 2
	}

	cfg := chain.DefaultConfig()
	cfg.Network = opts.Network
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	cfg.LogLevel = opts.LogLevel
	cfg.MempoolMaxBytes = opts.MempoolMaxBytes
	cfg.IngressQueueDepth = opts.IngressQueueDepth
	cfg.MaxOrphans = opts.MaxOrphans

	if err := chain.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 2
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "datadir create failed: %v\n", err)
		return 2
	}

	logger, logRotator, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 2
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush on exit.
	defer logRotator.Close()

	store, err := storage.OpenBoltStore(chain.DBPath(cfg.DataDir))
	if err != nil {
		logger.Error("store open failed", zap.Error(err))
		return 2
	}
	defer store.Close()

	mgr := chain.NewManager(store, cfg, logger)
	if err := mgr.InitGenesis(); err != nil {
		logger.Error("genesis init failed", zap.Error(err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runDone := make(chan struct{})
	go func() {
		mgr.Run()
		close(runDone)
	}()

	logger.Info("vulkan-node running",
		zap.String("network", cfg.Network),
		zap.String("datadir", cfg.DataDir),
	)
	<-ctx.Done()
	logger.Info("shutdown signal received, draining worker")
	mgr.Close()
	<-runDone
	logger.Info("vulkan-node stopped")
	return 0
}

// newLogger builds a zap logger whose only output is a rotating log file
// under the data directory, following the jrick/logrotate convention used across the
// btcsuite/decred/flokicoin family: a Rotator wraps the destination file
// and is handed to the encoder as a plain io.Writer.
func newLogger(cfg chain.Config) (*zap.Logger, *rotator.Rotator, error) {
	logPath := filepath.Join(cfg.DataDir, "vulkan-node.log")
	logRotator, err := rotator.New(logPath, 10*1024, false, 3)
	if err != nil {
		return nil, nil, fmt.Errorf("open log rotator: %w", err)
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logRotator.Close()
		return nil, nil, fmt.Errorf("bad log level %q: %w", cfg.LogLevel, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(logRotator),
		level,
	)
	return zap.New(core), logRotator, nil
}
