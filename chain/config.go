package chain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vulkan.dev/core/consensus"
)

// Config is the chain worker's runtime configuration, grounded on the
// teacher's node.Config (flat struct, json tags, an allow-listed log
// level, a DefaultConfig/ValidateConfig pair).
type Config struct {
	Network           string `json:"network"`
	DataDir           string `json:"data_dir"`
	LogLevel          string `json:"log_level"`
	MempoolMaxBytes   int    `json:"mempool_max_bytes"`
	IngressQueueDepth int    `json:"ingress_queue_depth"`
	MaxOrphans        int    `json:"max_orphans"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// DefaultDataDir mirrors the teacher's per-user app-data convention.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".vulkan"
	}
	return filepath.Join(home, ".vulkan")
}

func DefaultConfig() Config {
	return Config{
		Network:           "devnet",
		DataDir:           DefaultDataDir(),
		LogLevel:          "info",
		MempoolMaxBytes:   consensus.MempoolMaxBytes,
		IngressQueueDepth: 256,
		MaxOrphans:        100,
	}
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	level := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[level]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.MempoolMaxBytes <= 0 {
		return errors.New("mempool_max_bytes must be > 0")
	}
	if cfg.IngressQueueDepth <= 0 {
		return errors.New("ingress_queue_depth must be > 0")
	}
	if cfg.MaxOrphans <= 0 {
		return errors.New("max_orphans must be > 0")
	}
	return nil
}

// DBPath returns the bbolt file path under a config's data directory.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "chain.db")
}
