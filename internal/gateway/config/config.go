package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Env      string
	Comfy    ComfyConfig
	Bridge   BridgeConfig
	Artifact ArtifactConfig
}

type ComfyConfig struct {
	Addr             string
	UseTLS           bool
	HTTPTimeout      time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
}

type BridgeConfig struct {
	WaitTimeout     time.Duration
	PublicBaseURL   string
	MaxRequestBytes int64
}

// Backend names accepted by ARTIFACT_BACKEND.
const (
	BackendDisk     = "disk"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type ArtifactConfig struct {
	Backend     string
	ImagesDir   string
	DatabaseURL string

	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	URLExpiry time.Duration

	CacheTTL        time.Duration
	CacheMaxEntries int
}

func (c ArtifactConfig) CanUseS3() bool {
	return strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

// Load reads .env (if present), the command line flags in args and the
// process environment.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("promptbridge", flag.ContinueOnError)
	port := fs.String("port", ":8080", "server port")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fromEnv(*port, os.Getenv)
}

func fromEnv(port string, getenv func(string) string) (*Config, error) {
	e := &env{get: getenv}

	if envPort := e.str("PORT", ""); envPort != "" {
		port = envPort
	}
	if !strings.HasPrefix(port, ":") && !strings.Contains(port, ":") {
		port = ":" + port
	}

	appEnv := e.str("APP_ENV", "local")

	cfg := &Config{
		Port: port,
		Env:  appEnv,
		Comfy: ComfyConfig{
			Addr:             e.str("COMFY_ADDR", "127.0.0.1:8188"),
			UseTLS:           e.boolean("COMFY_USE_TLS", false),
			HTTPTimeout:      e.duration("COMFY_HTTP_TIMEOUT", 60*time.Second),
			RetryMaxAttempts: e.integer("RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelay:   e.duration("RETRY_BASE_DELAY", 300*time.Millisecond),
		},
		Bridge: BridgeConfig{
			WaitTimeout:     e.duration("WAIT_TIMEOUT", 10*time.Minute),
			PublicBaseURL:   e.str("PUBLIC_BASE_URL", ""),
			MaxRequestBytes: int64(e.integer("MAX_REQUEST_BYTES", 8<<20)),
		},
		Artifact: loadArtifactConfig(e, appEnv),
	}
	if e.err != nil {
		return nil, e.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadArtifactConfig(e *env, appEnv string) ArtifactConfig {
	return ArtifactConfig{
		Backend:     strings.ToLower(e.str("ARTIFACT_BACKEND", BackendDisk)),
		ImagesDir:   e.str("IMAGES_DIR", "images"),
		DatabaseURL: e.str("ARTIFACT_DATABASE_URL", ""),

		Endpoint:  resolveArtifactEndpoint(e, appEnv),
		Region:    e.str("ARTIFACT_S3_REGION", "us-east-1"),
		AccessKey: firstNonEmpty(e.str("ARTIFACT_S3_ACCESS_KEY", ""), e.str("MINIO_ROOT_USER", "")),
		SecretKey: firstNonEmpty(e.str("ARTIFACT_S3_SECRET_KEY", ""), e.str("MINIO_ROOT_PASSWORD", "")),
		Bucket:    e.str("ARTIFACT_S3_BUCKET", "promptbridge-images"),
		Prefix:    e.str("ARTIFACT_S3_PREFIX", ""),
		UseSSL:    resolveArtifactUseSSL(e, appEnv),
		URLExpiry: e.duration("ARTIFACT_S3_URL_EXPIRY", time.Hour),

		CacheTTL:        e.duration("ARTIFACT_CACHE_TTL", 5*time.Minute),
		CacheMaxEntries: e.integer("ARTIFACT_CACHE_MAX_ENTRIES", 256),
	}
}

func resolveArtifactEndpoint(e *env, appEnv string) string {
	if strings.EqualFold(appEnv, "local") {
		return e.str("ARTIFACT_MINIO_ENDPOINT", "minio:9000")
	}
	return e.str("ARTIFACT_S3_ENDPOINT", "")
}

func resolveArtifactUseSSL(e *env, appEnv string) bool {
	if strings.EqualFold(appEnv, "local") {
		return false
	}
	return e.boolean("ARTIFACT_S3_USE_SSL", true)
}

func (c *Config) validate() error {
	switch c.Artifact.Backend {
	case BackendDisk:
		if strings.TrimSpace(c.Artifact.ImagesDir) == "" {
			return fmt.Errorf("IMAGES_DIR is required for the disk backend")
		}
	case BackendS3:
		if !c.Artifact.CanUseS3() {
			return fmt.Errorf("s3 backend needs endpoint, access key, secret key and bucket")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Artifact.DatabaseURL) == "" {
			return fmt.Errorf("ARTIFACT_DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown ARTIFACT_BACKEND %q", c.Artifact.Backend)
	}
	if c.Comfy.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.Bridge.MaxRequestBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BYTES must be positive")
	}
	return nil
}

// env reads typed values and remembers the first malformed one.
type env struct {
	get func(string) string
	err error
}

func (e *env) str(key, def string) string {
	return firstNonEmpty(strings.TrimSpace(e.get(key)), def)
}

func (e *env) boolean(key string, def bool) bool {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.fail(key, raw, err)
		return def
	}
	return v
}

func (e *env) integer(key string, def int) int {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(key, raw, err)
		return def
	}
	return v
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.fail(key, raw, err)
		return def
	}
	return v
}

func (e *env) fail(key, raw string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s=%q: %w", key, raw, err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
