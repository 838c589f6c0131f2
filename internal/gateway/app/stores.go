package app

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	artifactcache "promptbridge/internal/cache/artifact"
	"promptbridge/internal/gateway/config"
	artifactrepo "promptbridge/internal/gateway/repository/artifact"
)

type gatewayStores struct {
	artifact *artifactcache.CachedStore
	db       *sql.DB
}

func (s *gatewayStores) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initStores(cfg *config.Config) (*gatewayStores, error) {
	stores := &gatewayStores{}
	origin, err := openArtifactOrigin(cfg, stores)
	if err != nil {
		return nil, err
	}
	stores.artifact = artifactcache.NewCachedStore(origin, artifactCacheConfig(cfg))
	return stores, nil
}

// artifactCacheConfig keeps cached presigned URLs shorter-lived than the
// signature itself so a cached URL is never handed out after it expired.
func artifactCacheConfig(cfg *config.Config) artifactcache.CacheConfig {
	cacheCfg := artifactcache.DefaultCacheConfig()
	if cfg.Artifact.CacheTTL > 0 {
		cacheCfg.BlobTTL = cfg.Artifact.CacheTTL
		cacheCfg.URLTTL = cfg.Artifact.CacheTTL
	}
	if cfg.Artifact.CacheMaxEntries > 0 {
		cacheCfg.BlobMaxEntries = cfg.Artifact.CacheMaxEntries
	}
	if cfg.Artifact.Backend == config.BackendS3 {
		expiry := cfg.Artifact.URLExpiry
		if expiry <= 0 {
			expiry = time.Hour
		}
		if limit := expiry / 2; cacheCfg.URLTTL > limit {
			cacheCfg.URLTTL = limit
		}
	}
	return cacheCfg
}

func openArtifactOrigin(cfg *config.Config, stores *gatewayStores) (artifactrepo.Store, error) {
	switch cfg.Artifact.Backend {
	case config.BackendS3:
		s3Cfg := artifactrepo.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			Prefix:    cfg.Artifact.Prefix,
			UseSSL:    cfg.Artifact.UseSSL,
			URLExpiry: cfg.Artifact.URLExpiry,
		}
		s3Store, err := artifactrepo.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		log.Printf("artifact store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
		return s3Store, nil

	case config.BackendPostgres:
		db, err := sql.Open("pgx", strings.TrimSpace(cfg.Artifact.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		stores.db = db
		log.Printf("artifact store: postgres")
		return artifactrepo.NewPostgresStore(db), nil

	case config.BackendMemory:
		log.Printf("artifact store: in-memory")
		return artifactrepo.NewMemoryStore(), nil

	default:
		disk, err := artifactrepo.NewDiskStore(cfg.Artifact.ImagesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact disk store: %w", err)
		}
		log.Printf("artifact store: disk root=%s", disk.Root())
		return disk, nil
	}
}
