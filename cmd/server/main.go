// server runs the shiftledger HTTP API.
package main

import (
	"context"
	"crypto"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shiftledger/internal/audit"
	auditrepo "shiftledger/internal/audit/repository"
	checkinhandler "shiftledger/internal/checkin/handler"
	checkinrepo "shiftledger/internal/checkin/repository"
	checkinservice "shiftledger/internal/checkin/service"
	"shiftledger/internal/config"
	"shiftledger/internal/db"
	fencehandler "shiftledger/internal/geofence/handler"
	fencerepo "shiftledger/internal/geofence/repository"
	healthhandler "shiftledger/internal/health/handler"
	orghandler "shiftledger/internal/organization/handler"
	orgrepo "shiftledger/internal/organization/repository"
	policyengine "shiftledger/internal/policy/engine"
	"shiftledger/internal/security"
	"shiftledger/internal/server"
	"shiftledger/internal/server/middleware"
	shifthandler "shiftledger/internal/shift/handler"
	shiftrepo "shiftledger/internal/shift/repository"
	shiftservice "shiftledger/internal/shift/service"
	"shiftledger/internal/telemetry"
	"shiftledger/internal/telemetry/otel"
	"shiftledger/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if cfg.JWTPublicKey == "" {
		log.Fatal("JWT_PUBLIC_KEY is not set")
	}

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "shiftledger-api", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	var privateKey crypto.Signer
	if cfg.JWTPrivateKey != "" {
		privateKey, err = security.ParsePrivateKey(cfg.JWTPrivateKey)
		if err != nil {
			log.Fatalf("jwt private key: %v", err)
		}
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())

	shifts := shiftrepo.NewPostgresRepository(database)
	orgs := orgrepo.NewPostgresRepository(database)
	fences := fencerepo.NewPostgresRepository(database)
	requests := checkinrepo.NewPostgresRepository(database)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(database), middleware.ClientIPFrom)

	policy := policyengine.NewOPAEvaluator()

	var emitter telemetry.EventEmitter
	if brokers := cfg.TelemetryKafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer, err := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		defer kafkaProducer.Close()
		emitter = kafkaProducer
		log.Printf("telemetry: emitting to kafka topic %s", cfg.TelemetryKafkaTopic)
	} else {
		emitter = otel.NewEventEmitter(providers.LoggerProvider)
	}

	shiftSvc := shiftservice.NewService(shifts, orgs, fences, policy, auditLogger)
	checkinSvc := checkinservice.NewService(requests, orgs, fences, shifts,
		checkinservice.DBTx{DB: database}, auditLogger)

	router := server.NewRouter(server.Deps{
		Tokens:  tokens,
		Shifts:  shifthandler.NewHandler(shiftSvc, emitter),
		Checkin: checkinhandler.NewHandler(checkinSvc, emitter),
		Orgs:    orghandler.NewHandler(orgs),
		Fences:  fencehandler.NewHandler(fences),
		Health:  healthhandler.NewHandler(database, policy),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// Give in-flight async telemetry emits time to finish before tearing
	// down the providers.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
