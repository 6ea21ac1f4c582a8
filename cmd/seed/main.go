// seed inserts development sample data for local testing.
// Idempotent: skips inserts when the dev org already exists. With
// JWT_PRIVATE_KEY set it also prints access tokens for the dev employee and
// manager.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"shiftledger/internal/config"
	"shiftledger/internal/db"
	"shiftledger/internal/geo"
	fencedomain "shiftledger/internal/geofence/domain"
	fencerepo "shiftledger/internal/geofence/repository"
	orgdomain "shiftledger/internal/organization/domain"
	orgrepo "shiftledger/internal/organization/repository"
	"shiftledger/internal/security"
)

const (
	devOrgID     = "dev-org-001"
	devUserID    = "dev-user-001"
	devManagerID = "dev-manager-001"
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orgs := orgrepo.NewPostgresRepository(database)
	existing, err := orgs.GetByID(ctx, devOrgID)
	if err != nil {
		log.Fatalf("seed: org lookup: %v", err)
	}
	if existing != nil {
		log.Printf("seed: org %s already exists, skipping inserts", devOrgID)
	} else {
		now := time.Now().UTC()
		org := orgdomain.MergeWithDefaults(&orgdomain.Organization{
			ID:         devOrgID,
			Name:       "Dev Staffing Co",
			Timezone:   "America/New_York",
			StrictMode: false,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err := orgs.Create(ctx, org); err != nil {
			log.Fatalf("seed: create org: %v", err)
		}

		fences := fencerepo.NewPostgresRepository(database)
		fence := &fencedomain.Geofence{
			ID:           "dev-fence-001",
			OrgID:        devOrgID,
			Name:         "Main Site",
			Center:       geo.Coordinate{Latitude: 40.712800, Longitude: -74.006100},
			RadiusMeters: 150,
			Active:       true,
			CreatedAt:    now,
		}
		if err := fences.Create(ctx, fence); err != nil {
			log.Fatalf("seed: create geofence: %v", err)
		}
		log.Printf("seed: created org %s with geofence %s", devOrgID, fence.ID)
	}

	if cfg.JWTPrivateKey == "" {
		log.Println("seed: JWT_PRIVATE_KEY not set, skipping dev tokens")
		return
	}
	printDevTokens(cfg)
}

func printDevTokens(cfg *config.Config) {
	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("seed: jwt private key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("seed: jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())

	for _, u := range []struct {
		id, role string
	}{
		{devUserID, security.RoleEmployee},
		{devManagerID, security.RoleManager},
	} {
		token, _, expiresAt, err := tokens.IssueAccess(u.id, devOrgID, u.role)
		if err != nil {
			log.Fatalf("seed: issue token for %s: %v", u.id, err)
		}
		fmt.Printf("%s (%s), expires %s:\n%s\n\n", u.id, u.role, expiresAt.Format(time.RFC3339), token)
	}
}
