package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"church-attendance/internal/model"
)

const batchSize = 250 // Stay well under Firestore's 500 operation limit

// Client wraps the Firestore client for harvested-row operations.
type Client struct {
	client     *firestore.Client
	collection string
}

// New creates a new Firestore client.
func New(ctx context.Context, projectID, collection string) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Client{
		client:     client,
		collection: collection,
	}, nil
}

// Close closes the Firestore client.
func (c *Client) Close() error {
	return c.client.Close()
}

// ReplaceRowsForScope atomically replaces all rows for a harvest scope
// (the prefix + date range the dashboard queries by). It deletes all
// existing documents for the scope, then writes the new ones.
func (c *Client) ReplaceRowsForScope(ctx context.Context, scope string, rows []model.LinkRow, batchID string) error {
	coll := c.client.Collection(c.collection)

	// First, delete all existing documents for this scope
	if err := c.deleteRowsForScope(ctx, scope); err != nil {
		return fmt.Errorf("deleting existing rows: %w", err)
	}

	// Then, write new documents in batches
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := c.client.Batch()

		for _, row := range rows[i:end] {
			docID := generateDocID(scope, row)
			doc := coll.Doc(docID)
			batch.Set(doc, rowToMap(row, scope, batchID))
		}

		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("committing batch: %w", err)
		}
	}

	return nil
}

// deleteRowsForScope deletes all documents for a given scope.
func (c *Client) deleteRowsForScope(ctx context.Context, scope string) error {
	coll := c.client.Collection(c.collection)
	query := coll.Where("scope", "==", scope)

	for {
		iter := query.Limit(batchSize).Documents(ctx)
		batch := c.client.Batch()
		numDeleted := 0

		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return fmt.Errorf("iterating documents: %w", err)
			}
			batch.Delete(doc.Ref)
			numDeleted++
		}

		if numDeleted == 0 {
			return nil
		}

		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("committing delete batch: %w", err)
		}

		if numDeleted < batchSize {
			return nil
		}
	}
}

// GetAllRows retrieves all harvested rows from Firestore.
func (c *Client) GetAllRows(ctx context.Context) ([]model.LinkRow, error) {
	var rows []model.LinkRow

	iter := c.client.Collection(c.collection).Documents(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating documents: %w", err)
		}

		rows = append(rows, mapToRow(doc.Data()))
	}

	return rows, nil
}

// generateDocID creates a stable document ID from the row's identity.
func generateDocID(scope string, row model.LinkRow) string {
	data := fmt.Sprintf("%s|%s|%s", scope, row.EventID, row.OccurDate)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16]) // Use first 16 bytes for shorter ID
}

// rowToMap converts a LinkRow to a Firestore document map.
func rowToMap(row model.LinkRow, scope, batchID string) map[string]interface{} {
	m := map[string]interface{}{
		"scope":      scope,
		"event_id":   row.EventID,
		"title":      row.Title,
		"occur_date": row.OccurDate,
		"link":       row.Link,
		"batch_id":   batchID,
	}
	if a := row.Attendance; a != nil {
		if a.DidNotMeet != nil {
			m["did_not_meet"] = *a.DidNotMeet
		}
		if a.HeadCount != nil {
			m["head_count"] = *a.HeadCount
		}
		if a.Topic != nil {
			m["topic"] = *a.Topic
		}
		if a.Notes != nil {
			m["notes"] = *a.Notes
		}
	}
	return m
}

// mapToRow converts a Firestore document map back to a LinkRow.
func mapToRow(m map[string]interface{}) model.LinkRow {
	row := model.LinkRow{}

	if v, ok := m["event_id"].(string); ok {
		row.EventID = v
	}
	if v, ok := m["title"].(string); ok {
		row.Title = v
	}
	if v, ok := m["occur_date"].(string); ok {
		row.OccurDate = v
	}
	if v, ok := m["link"].(string); ok {
		row.Link = v
	}

	var att model.AttendanceSummary
	hasAtt := false
	if v, ok := m["did_not_meet"].(bool); ok {
		att.DidNotMeet = &v
		hasAtt = true
	}
	if v, ok := m["head_count"].(int64); ok {
		count := int(v)
		att.HeadCount = &count
		hasAtt = true
	}
	if v, ok := m["topic"].(string); ok {
		att.Topic = &v
		hasAtt = true
	}
	if v, ok := m["notes"].(string); ok {
		att.Notes = &v
		hasAtt = true
	}
	if hasAtt {
		att.EventID = row.EventID
		att.Occurrence = row.OccurDate
		row.Attendance = &att
	}

	return row
}
