// Command backfill ingests every merchant in a roster and builds a linked
// chain of monthly attestations for each.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"revattest/internal/attestation"
	"revattest/internal/config"
	"revattest/internal/repositories"
	"revattest/internal/repositories/cache"
	"revattest/internal/services/attest"
	"revattest/internal/services/ingest"
	"revattest/internal/telemetry"

	"github.com/schollz/progressbar/v3"
)

func main() {
	rosterPath := flag.String("roster", "merchants.yaml", "merchant roster file")
	months := flag.Int("months", 12, "number of closed calendar months to attest")
	only := flag.String("merchant", "", "limit the run to one merchant id")
	skipIngest := flag.Bool("skip-ingest", false, "attest from stored records without fetching")
	reset := flag.Bool("reset", false, "drop and recreate the record tables first")
	flag.Parse()

	if *months <= 0 {
		log.Fatal("-months must be positive")
	}

	config.LoadEnv()
	cfg := config.Load()
	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(slogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, "revattest-backfill", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	roster, err := config.LoadRoster(*rosterPath)
	if err != nil {
		log.Fatalf("Failed to load roster: %v", err)
	}

	db, err := repositories.InitDB(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if *reset {
		if err := repositories.DropAll(db); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		if err := repositories.Migrate(db); err != nil {
			log.Fatalf("Failed to migrate: %v", err)
		}
	}

	redisClient := cache.NewRedisClient(cfg.Redis)
	defer redisClient.Close()
	cacheService := cache.NewCacheService(redisClient, cfg.CacheTTL)

	records := repositories.NewRecordRepository(db)
	ingestCfg := ingest.Config{
		Options:  ingest.AdapterOptions(cfg, slogger),
		CacheTTL: cfg.CacheTTL,
		Logger:   slogger,
	}
	if err := cacheService.HealthCheck(ctx); err != nil {
		log.Printf("Redis unavailable, fetching without batch cache: %v", err)
	} else {
		ingestCfg.Cache = cacheService
	}
	ingestService := ingest.NewService(records, ingestCfg)
	attestService := attest.NewService(records)

	failed := false
	for _, m := range roster.Merchants {
		if *only != "" && m.ID != *only {
			continue
		}
		if err := run(ctx, m, cfg.DefaultTimezone, *months, *skipIngest, ingestService, attestService); err != nil {
			log.Printf("merchant %s: %v", m.ID, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func run(ctx context.Context, m config.MerchantEntry, defaultTZ string, count int, skipIngest bool, ingester *ingest.Service, attester *attest.Service) error {
	tz := m.Timezone
	if tz == "" {
		tz = defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", tz, err)
	}
	periods := attest.Months(time.Now(), count, loc)

	if !skipIngest {
		conns := make([]ingest.Connection, 0, len(m.Providers))
		for _, p := range m.Providers {
			cred, err := p.Credential()
			if err != nil {
				return err
			}
			conns = append(conns, ingest.Connection{Provider: p.Name, Credential: cred, Params: p.Params, BaseURL: p.BaseURL})
		}
		reports, err := ingester.Ingest(ctx, m.ID, conns, periods[0].Start, periods[len(periods)-1].End)
		if err != nil {
			return err
		}
		for _, r := range reports {
			status := "ok"
			if r.Err != nil {
				status = r.Error
			}
			fmt.Printf("%s %-12s orders=%d refunds=%d skipped=%d pages=%d partial=%t %s\n",
				m.ID, r.Provider, r.Orders, r.Refunds, len(r.Skipped), r.Pages, r.Partial, status)
		}
	}

	bar := progressbar.Default(int64(len(periods)), "attesting "+m.ID)
	publish := func(ctx context.Context, s attestation.Sealed) (string, error) {
		_ = bar.Add(1)
		return attestation.LocalPublisher(ctx, s)
	}
	req := attest.Request{MerchantID: m.ID, PlatformID: m.PlatformID, Timezone: tz, Currency: m.Currency}
	chain, err := attester.Chain(ctx, req, periods, publish)
	_ = bar.Finish()
	for _, s := range chain {
		fmt.Printf("%s %s..%s %s %s\n", m.ID, s.Document.Period.Start, s.Document.Period.End, s.Hash, s.CID)
	}
	return err
}
