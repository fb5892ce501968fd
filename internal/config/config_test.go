package config

import (
	"testing"
	"time"
)

func TestLoadPipelineDefaults(t *testing.T) {
	t.Setenv("STALE_THRESHOLD", "")
	t.Setenv("SWEEP_BATCH_SIZE", "")
	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("CLASSIFY_TIMEOUT", "")

	cfg := Load()
	if cfg.StaleThreshold != 10*time.Minute {
		t.Fatalf("expected default stale threshold 10m, got %v", cfg.StaleThreshold)
	}
	if cfg.SweepBatchSize != 100 {
		t.Fatalf("expected default sweep batch 100, got %d", cfg.SweepBatchSize)
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("expected default sweep interval 1m, got %v", cfg.SweepInterval)
	}
	if cfg.ClassifyTimeout != 90*time.Second {
		t.Fatalf("expected default classify timeout 90s, got %v", cfg.ClassifyTimeout)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STALE_THRESHOLD", "25m")
	t.Setenv("SWEEP_BATCH_SIZE", "250")
	t.Setenv("OPENAI_RPS", "10")
	t.Setenv("NATS_SUBJECT_PREFIX", "staging.jobs")

	cfg := Load()
	if cfg.StaleThreshold != 25*time.Minute {
		t.Fatalf("expected stale threshold 25m, got %v", cfg.StaleThreshold)
	}
	if cfg.SweepBatchSize != 250 {
		t.Fatalf("expected sweep batch 250, got %d", cfg.SweepBatchSize)
	}
	if cfg.OpenAIRPS != 10 {
		t.Fatalf("expected openai rps 10, got %d", cfg.OpenAIRPS)
	}
	if cfg.NATSSubjectPrefix != "staging.jobs" {
		t.Fatalf("expected subject prefix override, got %q", cfg.NATSSubjectPrefix)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("STALE_THRESHOLD", "soon")
	t.Setenv("SWEEP_BATCH_SIZE", "many")

	cfg := Load()
	if cfg.StaleThreshold != 10*time.Minute {
		t.Fatalf("malformed duration should fall back, got %v", cfg.StaleThreshold)
	}
	if cfg.SweepBatchSize != 100 {
		t.Fatalf("malformed int should fall back, got %d", cfg.SweepBatchSize)
	}
}
