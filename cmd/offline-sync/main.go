// offline-sync replays a device's offline clock-event queue against the API.
// Intended for kiosk/field devices: events are captured into the queue file
// while offline and drained here once connectivity returns.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"shiftledger/internal/offline/client"
	"shiftledger/internal/offline/store"
	"shiftledger/internal/offline/syncer"
)

func main() {
	queuePath := flag.String("queue", "offline-queue.json", "Path to the offline event queue file")
	baseURL := flag.String("api", "http://localhost:8080", "Base URL of the shiftledger API")
	flag.Parse()

	token := os.Getenv("SHIFTLEDGER_TOKEN")
	if token == "" {
		log.Fatal("SHIFTLEDGER_TOKEN is not set")
	}

	st, err := store.NewFileStore(*queuePath)
	if err != nil {
		log.Fatalf("offline-sync: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rep, err := syncer.New(st, client.New(*baseURL, token)).SyncAll(ctx)
	if err != nil {
		log.Fatalf("offline-sync: %v", err)
	}
	log.Printf("offline-sync: %d synced, %d conflicted, %d abandoned, %d still pending",
		rep.Synced, rep.Conflicted, rep.Abandoned, rep.Failed)
}
