package app

import (
	"context"
	"testing"
	"time"

	"promptbridge/internal/gateway/config"
)

func testConfig(backend string) *config.Config {
	return &config.Config{
		Port: ":0",
		Comfy: config.ComfyConfig{
			Addr:             "127.0.0.1:8188",
			HTTPTimeout:      time.Second,
			RetryMaxAttempts: 1,
			RetryBaseDelay:   time.Millisecond,
		},
		Bridge: config.BridgeConfig{
			WaitTimeout:     time.Second,
			MaxRequestBytes: 1024,
		},
		Artifact: config.ArtifactConfig{
			Backend:         backend,
			CacheTTL:        time.Minute,
			CacheMaxEntries: 4,
		},
	}
}

func TestNewWithConfigMemoryBackend(t *testing.T) {
	a, err := NewWithConfig(testConfig(config.BackendMemory))
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	if a.stores.artifact == nil {
		t.Fatalf("expected an artifact cache")
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestNewWithConfigDiskBackend(t *testing.T) {
	cfg := testConfig(config.BackendDisk)
	cfg.Artifact.ImagesDir = t.TempDir()
	if _, err := NewWithConfig(cfg); err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
}

func TestNewWithConfigRejectsBadWorkerAddress(t *testing.T) {
	cfg := testConfig(config.BackendMemory)
	cfg.Comfy.Addr = "ftp://worker"
	if _, err := NewWithConfig(cfg); err == nil {
		t.Fatalf("expected error for unsupported worker scheme")
	}
}

func TestArtifactCacheConfigBoundsPresignedURLs(t *testing.T) {
	cfg := testConfig(config.BackendS3)
	cfg.Artifact.CacheTTL = 2 * time.Hour
	cfg.Artifact.URLExpiry = 10 * time.Minute

	got := artifactCacheConfig(cfg)
	if got.URLTTL != 5*time.Minute {
		t.Fatalf("URLTTL = %s, want 5m", got.URLTTL)
	}
	if got.BlobTTL != 2*time.Hour {
		t.Fatalf("BlobTTL = %s, want 2h", got.BlobTTL)
	}

	cfg.Artifact.URLExpiry = 0
	if got := artifactCacheConfig(cfg); got.URLTTL != 30*time.Minute {
		t.Fatalf("URLTTL with default expiry = %s, want 30m", got.URLTTL)
	}

	disk := testConfig(config.BackendDisk)
	disk.Artifact.CacheTTL = 2 * time.Hour
	if got := artifactCacheConfig(disk); got.URLTTL != 2*time.Hour {
		t.Fatalf("URLTTL for disk = %s, want 2h", got.URLTTL)
	}
}
