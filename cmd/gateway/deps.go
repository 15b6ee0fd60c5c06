package main

import (
	"context"
	"fmt"

	"github.com/yourorg/scan-gateway/internal/acunetix"
	"github.com/yourorg/scan-gateway/internal/auth"
	"github.com/yourorg/scan-gateway/internal/cache"
	"github.com/yourorg/scan-gateway/internal/db"
	"github.com/yourorg/scan-gateway/internal/logging"
	"github.com/yourorg/scan-gateway/internal/s3"
	"github.com/yourorg/scan-gateway/internal/scans"
	"github.com/yourorg/scan-gateway/internal/users"
	"github.com/yourorg/scan-gateway/internal/worker"
)

// deps are the long-lived collaborators shared by serve and reconcile.
type deps struct {
	store *db.Store
	scans *scans.Service
	users *users.Service
}

func (d *deps) Close() {
	d.store.Close()
}

// openStore connects to Postgres and applies the schema. A role without DDL
// rights is tolerated so the gateway can run against a pre-migrated database.
func openStore(ctx context.Context, url string) (*db.Store, error) {
	log := logging.FromContext(ctx)

	store, err := db.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		if !db.IsInsufficientPrivilege(err) {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.Warn().Err(err).Msg("Ensure schema skipped due to insufficient privilege")
	}
	return store, nil
}

func (a *app) buildDeps(ctx context.Context) (*deps, error) {
	log := logging.FromContext(ctx)
	cfg := a.cfg

	store, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	engine, err := acunetix.New(acunetix.Options{
		BaseURL:     cfg.AcunetixURL,
		APIKey:      cfg.AcunetixAPIKey,
		Timeout:     cfg.AcunetixTimeout,
		InsecureTLS: cfg.AcunetixInsecureTLS,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	// A nil interface disables the archive; never pass a typed nil.
	var archive scans.Archive
	if cfg.ArchiveEnabled() {
		objects, err := s3.New(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL, cfg.ReportsBucket)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure bucket %s: %w", cfg.ReportsBucket, err)
		}
		archive = worker.NewArchiver(objects, cfg.ScratchDir)
		log.Info().Str("bucket", objects.Bucket()).Msg("Report archive enabled")
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiresIn)
	return &deps{
		store: store,
		scans: scans.NewService(store, engine, archive, cache.New(cfg.StatsCacheTTL)),
		users: users.NewService(store, tokens),
	}, nil
}
