// Command ingest runs one full harvest and persists the result: rows go to
// Firestore for the dashboard, and a snapshot of the run goes to the store
// (GCS bucket or local directory) for later inspection.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"church-attendance/internal/ccb"
	"church-attendance/internal/config"
	"church-attendance/internal/firestore"
	"church-attendance/internal/harvest"
	"church-attendance/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Required environment variables
	projectID := os.Getenv("GCP_PROJECT_ID")
	if projectID == "" {
		log.Fatal("GCP_PROJECT_ID environment variable is required")
	}

	firestoreCollection := os.Getenv("FIRESTORE_COLLECTION")
	if firestoreCollection == "" {
		firestoreCollection = "rows"
	}

	// Initialize store (GCS or local)
	var s store.Store
	if gcsBucket := os.Getenv("GCS_BUCKET"); gcsBucket != "" {
		gcsStore, err := store.NewGCS(ctx, gcsBucket)
		if err != nil {
			log.Fatalf("Failed to initialize GCS store: %v", err)
		}
		defer gcsStore.Close()
		s = gcsStore
		log.Printf("Store: GCS bucket %s", gcsBucket)
	} else {
		storeDir := os.Getenv("STORE_DIR")
		if storeDir == "" {
			storeDir = "disk"
		}
		localStore, err := store.NewLocal(storeDir)
		if err != nil {
			log.Fatalf("Failed to initialize local store: %v", err)
		}
		s = localStore
		log.Printf("Store: local directory %s", storeDir)
	}

	// Initialize Firestore client
	fsClient, err := firestore.New(ctx, projectID, firestoreCollection)
	if err != nil {
		log.Fatalf("Failed to initialize Firestore client: %v", err)
	}
	defer fsClient.Close()
	log.Printf("Firestore: project %s, collection %s", projectID, firestoreCollection)

	client, err := ccb.NewClient(cfg.CCB())
	if err != nil {
		log.Fatalf("Failed to create upstream client: %v", err)
	}

	q := harvest.Query{
		GroupPrefix:       cfg.Harvest.GroupPrefix,
		Start:             time.Now().UTC().Truncate(24 * time.Hour),
		IncludeAttendance: cfg.Harvest.Attendance,
		IncludeAttendees:  cfg.Harvest.Attendees,
	}
	q.End = q.Start.AddDate(0, 1, 0)

	// Generate batch ID for this ingestion run
	batchID := uuid.NewString()
	scope := q.GroupPrefix + "|" + q.Start.Format("2006-01-02") + ".." + q.End.Format("2006-01-02")
	log.Printf("Starting ingestion with batch ID: %s (scope %s)", batchID, scope)

	runCtx, cancel := context.WithTimeout(ctx, 15*time.Minute)
	defer cancel()

	rows, err := harvest.New(client).Run(runCtx, q)
	if err != nil {
		log.Fatalf("Harvest failed: %v", err)
	}
	log.Printf("Harvested %d rows", len(rows))

	if err := fsClient.ReplaceRowsForScope(ctx, scope, rows, batchID); err != nil {
		log.Fatalf("Failed to write rows to Firestore: %v", err)
	}
	log.Printf("Firestore: replaced rows for scope %s", scope)

	snapshotKey := "runs/" + time.Now().UTC().Format("20060102-150405") + "-" + batchID
	if err := s.SetJSON(snapshotKey, rows); err != nil {
		log.Printf("WARNING: Failed to store run snapshot: %v", err)
	} else {
		log.Printf("Snapshot stored: %s", snapshotKey)
	}

	// Archive a calendar export of the same run next to the snapshot.
	if doc, err := harvest.ICS(rows); err != nil {
		log.Printf("WARNING: Failed to render calendar export: %v", err)
	} else if err := s.SetWithExtension(snapshotKey, ".ics", []byte(doc)); err != nil {
		log.Printf("WARNING: Failed to store calendar export: %v", err)
	}

	log.Printf("Ingestion complete")
}
