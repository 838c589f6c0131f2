package config

import (
	"testing"
	"time"
)

func mapEnv(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := fromEnv(":8080", mapEnv(nil))
	if err != nil {
		t.Fatalf("fromEnv failed: %v", err)
	}
	if cfg.Port != ":8080" || cfg.Env != "local" {
		t.Fatalf("unexpected port/env: %q %q", cfg.Port, cfg.Env)
	}
	if cfg.Comfy.Addr != "127.0.0.1:8188" || cfg.Comfy.UseTLS {
		t.Fatalf("unexpected comfy config: %+v", cfg.Comfy)
	}
	if cfg.Comfy.RetryMaxAttempts != 3 || cfg.Comfy.RetryBaseDelay != 300*time.Millisecond {
		t.Fatalf("unexpected retry config: %+v", cfg.Comfy)
	}
	if cfg.Bridge.WaitTimeout != 10*time.Minute || cfg.Bridge.MaxRequestBytes != 8<<20 {
		t.Fatalf("unexpected bridge config: %+v", cfg.Bridge)
	}
	if cfg.Artifact.Backend != BackendDisk || cfg.Artifact.ImagesDir != "images" {
		t.Fatalf("unexpected artifact config: %+v", cfg.Artifact)
	}
	if cfg.Artifact.Endpoint != "minio:9000" || cfg.Artifact.UseSSL {
		t.Fatalf("local env should default to plain minio, got %+v", cfg.Artifact)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := fromEnv(":8080", mapEnv(map[string]string{
		"PORT":                   "9090",
		"APP_ENV":                "prod",
		"COMFY_ADDR":             "gpu-1:8188",
		"COMFY_USE_TLS":          "true",
		"WAIT_TIMEOUT":           "90s",
		"RETRY_MAX_ATTEMPTS":     "5",
		"PUBLIC_BASE_URL":        "https://cdn.example/",
		"ARTIFACT_BACKEND":       "S3",
		"ARTIFACT_S3_ENDPOINT":   "s3.example:443",
		"ARTIFACT_S3_ACCESS_KEY": "ak",
		"ARTIFACT_S3_SECRET_KEY": "sk",
		"ARTIFACT_S3_URL_EXPIRY": "15m",
	}))
	if err != nil {
		t.Fatalf("fromEnv failed: %v", err)
	}
	if cfg.Port != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.Port)
	}
	if cfg.Comfy.Addr != "gpu-1:8188" || !cfg.Comfy.UseTLS || cfg.Comfy.RetryMaxAttempts != 5 {
		t.Fatalf("unexpected comfy config: %+v", cfg.Comfy)
	}
	if cfg.Bridge.WaitTimeout != 90*time.Second || cfg.Bridge.PublicBaseURL != "https://cdn.example/" {
		t.Fatalf("unexpected bridge config: %+v", cfg.Bridge)
	}
	if cfg.Artifact.Backend != BackendS3 || !cfg.Artifact.UseSSL || cfg.Artifact.URLExpiry != 15*time.Minute {
		t.Fatalf("unexpected artifact config: %+v", cfg.Artifact)
	}
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	cases := map[string]map[string]string{
		"duration": {"WAIT_TIMEOUT": "soon"},
		"bool":     {"COMFY_USE_TLS": "maybe"},
		"int":      {"RETRY_MAX_ATTEMPTS": "three"},
		"attempts": {"RETRY_MAX_ATTEMPTS": "0"},
		"backend":  {"ARTIFACT_BACKEND": "floppy"},
		"postgres": {"ARTIFACT_BACKEND": "postgres"},
		"s3":       {"ARTIFACT_BACKEND": "s3"},
	}
	for name, values := range cases {
		if _, err := fromEnv(":8080", mapEnv(values)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadParsesPortFlag(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load([]string{"-port", ":7000"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != ":7000" {
		t.Fatalf("expected :7000, got %q", cfg.Port)
	}
}
