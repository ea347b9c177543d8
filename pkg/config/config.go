// Package config provides a reusable loader for Lucid-sub001's environment
// variable configuration. It is versioned so that applications can depend
// on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"

	"github.com/HamiGames/Lucid-sub001/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// StoreConfig holds sharded document store connection settings (§6.5, §4.11).
type StoreConfig struct {
	MongoURL          string
	MongoDB           string
	ConnectTimeoutSec int
	MaxPoolSize       uint64
}

// ChainConfig holds primary-chain JSON-RPC settings (§6.5, §4.5).
type ChainConfig struct {
	RPCURL             string
	AnchorsAddress     string
	ChunkStoreAddress  string
	RPCTimeoutSec      int
	GasLimitCircuitBrk uint64
}

// TronConfig holds isolated TRON payout settings (§6.5, §4.10).
type TronConfig struct {
	Network       string // mainnet | shasta | nile
	PrivateKey    string
	NodeURL       string
	FeeLimitSun   uint64
	RPCTimeoutSec int
}

// PipelineConfig holds session-pipeline tuning (§6.5, §4.1-4.4).
type PipelineConfig struct {
	ChunkMinBytes   int64
	ChunkMaxBytes   int64
	ChunkTargetByte int64
	CompressionLvl  int
	RecorderWorkers int
	ChunkWorkers    int
	EncryptWorkers  int
	MerkleWorkers   int
	StorageWorkers  int
	BufferSize      int
	StageTimeoutSec int
	ChunkStorageDir string
}

// ConsensusConfig mirrors the PoOT immutable parameters (§4.8). Config only
// sets them at boot; runtime code must never mutate them.
type ConsensusConfig struct {
	SlotDurationSec  int
	SlotTimeoutMS    int
	CooldownSlots    int
	LeaderWindowDays int
	DMin             float64
	BaseMBPerSession int
}

// Config is the unified configuration for a Lucid-sub001 process. Unlike the
// teacher's viper/YAML loader, every field here comes from an environment
// variable (spec §6.5 defines no config file format) — see DESIGN.md for why
// viper was dropped.
type Config struct {
	Store     StoreConfig
	Chain     ChainConfig
	Tron      TronConfig
	Pipeline  PipelineConfig
	Consensus ConsensusConfig
}

// Load reads configuration from the process environment, seeding it first
// from a local .env file if present (mirrors cmd/cli/storage.go's
// godotenv.Load() call in the teacher repo).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Store: StoreConfig{
			MongoURL:          utils.EnvOrDefault("MONGO_URL", ""),
			MongoDB:           utils.EnvOrDefault("MONGO_DB", "lucid"),
			ConnectTimeoutSec: utils.EnvOrDefaultInt("MONGO_CONNECT_TIMEOUT_SEC", 10),
			MaxPoolSize:       utils.EnvOrDefaultUint64("MONGO_MAX_POOL_SIZE", 100),
		},
		Chain: ChainConfig{
			RPCURL:             utils.EnvOrDefault("ON_CHAIN_RPC_URL", ""),
			AnchorsAddress:     utils.EnvOrDefault("LUCID_ANCHORS_ADDRESS", ""),
			ChunkStoreAddress:  utils.EnvOrDefault("LUCID_CHUNK_STORE_ADDRESS", ""),
			RPCTimeoutSec:      utils.EnvOrDefaultInt("ON_CHAIN_RPC_TIMEOUT_SEC", 20),
			GasLimitCircuitBrk: utils.EnvOrDefaultUint64("LUCID_GAS_LIMIT_CIRCUIT_BREAKER", 180_000),
		},
		Tron: TronConfig{
			Network:       strings.ToLower(utils.EnvOrDefault("TRON_NETWORK", "shasta")),
			PrivateKey:    utils.EnvOrDefault("TRON_PRIVATE_KEY", ""),
			NodeURL:       utils.EnvOrDefault("TRON_NODE_URL", ""),
			FeeLimitSun:   utils.EnvOrDefaultUint64("TRON_FEE_LIMIT_SUN", 100_000_000), // 100 TRX
			RPCTimeoutSec: utils.EnvOrDefaultInt("TRON_RPC_TIMEOUT_SEC", 20),
		},
		Pipeline: PipelineConfig{
			ChunkMinBytes:   int64(utils.EnvOrDefaultUint64("LUCID_CHUNK_MIN_BYTES", 8<<20)),
			ChunkMaxBytes:   int64(utils.EnvOrDefaultUint64("LUCID_CHUNK_MAX_BYTES", 16<<20)),
			ChunkTargetByte: int64(utils.EnvOrDefaultUint64("LUCID_CHUNK_TARGET_BYTES", 8<<20)),
			CompressionLvl:  utils.EnvOrDefaultInt("LUCID_COMPRESSION_LEVEL", 3),
			RecorderWorkers: utils.EnvOrDefaultInt("LUCID_RECORDER_WORKERS", 1),
			ChunkWorkers:    utils.EnvOrDefaultInt("LUCID_CHUNK_WORKERS", 2),
			EncryptWorkers:  utils.EnvOrDefaultInt("LUCID_ENCRYPT_WORKERS", 4),
			MerkleWorkers:   utils.EnvOrDefaultInt("LUCID_MERKLE_WORKERS", 1),
			StorageWorkers:  utils.EnvOrDefaultInt("LUCID_STORAGE_WORKERS", 2),
			BufferSize:      utils.EnvOrDefaultInt("LUCID_STAGE_BUFFER_SIZE", 8),
			StageTimeoutSec: utils.EnvOrDefaultInt("LUCID_STAGE_TIMEOUT_SEC", 300),
			ChunkStorageDir: utils.EnvOrDefault("LUCID_CHUNK_STORAGE_DIR", "./data/chunks"),
		},
		Consensus: ConsensusConfig{
			SlotDurationSec:  utils.EnvOrDefaultInt("LUCID_SLOT_DURATION_SEC", 120),
			SlotTimeoutMS:    utils.EnvOrDefaultInt("LUCID_SLOT_TIMEOUT_MS", 5000),
			CooldownSlots:    utils.EnvOrDefaultInt("LUCID_COOLDOWN_SLOTS", 16),
			LeaderWindowDays: utils.EnvOrDefaultInt("LUCID_LEADER_WINDOW_DAYS", 7),
			DMin:             0.2,
			BaseMBPerSession: utils.EnvOrDefaultInt("LUCID_BASE_MB_PER_SESSION", 5),
		},
	}
	return cfg, nil
}

// Validate enforces spec §6.5's exit-code contract: a misconfigured process
// must fail fast with a non-zero exit rather than run against unsafe or
// placeholder values.
func (c *Config) Validate(requireTron bool) error {
	var missing []string
	if c.Store.MongoURL == "" {
		missing = append(missing, "MONGO_URL")
	}
	if c.Chain.RPCURL == "" {
		missing = append(missing, "ON_CHAIN_RPC_URL")
	}
	if c.Chain.AnchorsAddress == "" {
		missing = append(missing, "LUCID_ANCHORS_ADDRESS")
	}
	if requireTron {
		if c.Tron.NodeURL == "" {
			missing = append(missing, "TRON_NODE_URL")
		}
		if c.Tron.PrivateKey == "" || c.Tron.PrivateKey == "changeme" {
			missing = append(missing, "TRON_PRIVATE_KEY")
		}
		switch c.Tron.Network {
		case "mainnet", "shasta", "nile":
		default:
			return fmt.Errorf("config: TRON_NETWORK must be one of mainnet|shasta|nile, got %q", c.Tron.Network)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if isUnsafeHost(c.Chain.RPCURL) {
		return fmt.Errorf("config: ON_CHAIN_RPC_URL must not point at localhost in production")
	}
	if c.Pipeline.ChunkTargetByte < c.Pipeline.ChunkMinBytes || c.Pipeline.ChunkTargetByte > c.Pipeline.ChunkMaxBytes {
		return fmt.Errorf("config: LUCID_CHUNK_TARGET_BYTES must be within [min,max]")
	}
	return nil
}

func isUnsafeHost(url string) bool {
	if utils.EnvOrDefault("LUCID_ENV", "production") == "development" {
		return false
	}
	return strings.Contains(url, "localhost") || strings.Contains(url, "127.0.0.1")
}
