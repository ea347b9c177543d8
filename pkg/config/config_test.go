package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.MongoDB != "lucid" {
		t.Fatalf("expected default MongoDB 'lucid', got %q", cfg.Store.MongoDB)
	}
	if cfg.Tron.Network != "shasta" {
		t.Fatalf("expected default Tron network 'shasta', got %q", cfg.Tron.Network)
	}
	if cfg.Consensus.CooldownSlots != 16 {
		t.Fatalf("expected default cooldown slots 16, got %d", cfg.Consensus.CooldownSlots)
	}
	if cfg.Consensus.DMin != 0.2 {
		t.Fatalf("expected DMin 0.2, got %v", cfg.Consensus.DMin)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("MONGO_DB", "lucid_test")
	t.Setenv("TRON_NETWORK", "MAINNET")
	t.Setenv("LUCID_COOLDOWN_SLOTS", "32")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.MongoDB != "lucid_test" {
		t.Fatalf("expected overridden MongoDB, got %q", cfg.Store.MongoDB)
	}
	if cfg.Tron.Network != "mainnet" {
		t.Fatalf("expected Tron network lowercased to 'mainnet', got %q", cfg.Tron.Network)
	}
	if cfg.Consensus.CooldownSlots != 32 {
		t.Fatalf("expected overridden cooldown slots 32, got %d", cfg.Consensus.CooldownSlots)
	}
}

func TestValidateRequiresCoreFields(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(false); err == nil {
		t.Fatal("expected validation error for an empty config")
	}
}

func TestValidateRejectsLocalhostInProduction(t *testing.T) {
	t.Setenv("LUCID_ENV", "production")
	cfg := &Config{
		Store: StoreConfig{MongoURL: "mongodb://db:27017"},
		Chain: ChainConfig{RPCURL: "http://localhost:8545", AnchorsAddress: "0x1111111111111111111111111111111111111111"},
		Pipeline: PipelineConfig{
			ChunkMinBytes: 1, ChunkMaxBytes: 10, ChunkTargetByte: 5,
		},
	}
	if err := cfg.Validate(false); err == nil {
		t.Fatal("expected validation error for a localhost RPC URL in production")
	}
}

func TestValidateAllowsLocalhostInDevelopment(t *testing.T) {
	t.Setenv("LUCID_ENV", "development")
	cfg := &Config{
		Store: StoreConfig{MongoURL: "mongodb://db:27017"},
		Chain: ChainConfig{RPCURL: "http://localhost:8545", AnchorsAddress: "0x1111111111111111111111111111111111111111"},
		Pipeline: PipelineConfig{
			ChunkMinBytes: 1, ChunkMaxBytes: 10, ChunkTargetByte: 5,
		},
	}
	if err := cfg.Validate(false); err != nil {
		t.Fatalf("expected development RPC URL to pass validation, got: %v", err)
	}
}

func TestValidateRejectsChunkTargetOutOfRange(t *testing.T) {
	t.Setenv("LUCID_ENV", "development")
	cfg := &Config{
		Store: StoreConfig{MongoURL: "mongodb://db:27017"},
		Chain: ChainConfig{RPCURL: "http://remote:8545", AnchorsAddress: "0x1111111111111111111111111111111111111111"},
		Pipeline: PipelineConfig{
			ChunkMinBytes: 10, ChunkMaxBytes: 20, ChunkTargetByte: 5,
		},
	}
	if err := cfg.Validate(false); err == nil {
		t.Fatal("expected validation error for chunk target outside [min,max]")
	}
}

func TestValidateRequiresTronFieldsWhenRequired(t *testing.T) {
	t.Setenv("LUCID_ENV", "development")
	cfg := &Config{
		Store: StoreConfig{MongoURL: "mongodb://db:27017"},
		Chain: ChainConfig{RPCURL: "http://remote:8545", AnchorsAddress: "0x1111111111111111111111111111111111111111"},
		Pipeline: PipelineConfig{
			ChunkMinBytes: 1, ChunkMaxBytes: 10, ChunkTargetByte: 5,
		},
	}
	if err := cfg.Validate(true); err == nil {
		t.Fatal("expected validation error for missing TRON fields when requireTron is true")
	}
}
