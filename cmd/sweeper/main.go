// sweeper periodically marks abandoned shifts stale and expires pending
// check-in requests past their review window. Run one instance; both sweeps
// are idempotent, so overlap with a second instance is safe but pointless.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shiftledger/internal/audit"
	auditrepo "shiftledger/internal/audit/repository"
	checkinrepo "shiftledger/internal/checkin/repository"
	checkinservice "shiftledger/internal/checkin/service"
	"shiftledger/internal/config"
	"shiftledger/internal/db"
	fencerepo "shiftledger/internal/geofence/repository"
	orgrepo "shiftledger/internal/organization/repository"
	policyengine "shiftledger/internal/policy/engine"
	shiftrepo "shiftledger/internal/shift/repository"
	shiftservice "shiftledger/internal/shift/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	shifts := shiftrepo.NewPostgresRepository(database)
	orgs := orgrepo.NewPostgresRepository(database)
	fences := fencerepo.NewPostgresRepository(database)
	requests := checkinrepo.NewPostgresRepository(database)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(database), nil)

	shiftSvc := shiftservice.NewService(shifts, orgs, fences, policyengine.NewOPAEvaluator(), auditLogger)
	checkinSvc := checkinservice.NewService(requests, orgs, fences, shifts,
		checkinservice.DBTx{DB: database}, auditLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("sweeper: shutting down...")
		cancel()
	}()

	interval := cfg.SweepEvery()
	log.Printf("sweeper: running every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep(ctx, shiftSvc, checkinSvc)
	for {
		select {
		case <-ctx.Done():
			log.Println("sweeper: stopped")
			return
		case <-ticker.C:
			sweep(ctx, shiftSvc, checkinSvc)
		}
	}
}

func sweep(ctx context.Context, shifts *shiftservice.Service, requests *checkinservice.Service) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	stale, err := shifts.SweepStale(sweepCtx)
	if err != nil {
		log.Printf("sweeper: stale shift sweep failed: %v", err)
	}
	expired, err := requests.SweepExpired(sweepCtx)
	if err != nil {
		log.Printf("sweeper: request expiry sweep failed: %v", err)
	}
	if stale > 0 || expired > 0 {
		log.Printf("sweeper: %d shift(s) marked stale, %d request(s) expired", stale, expired)
	}
}
