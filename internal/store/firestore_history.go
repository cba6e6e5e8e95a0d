package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"briefer/internal/logging"
	"briefer/internal/schema"
)

// FirestoreHistory stores each brief as its own document under
// <collection>/<user>/briefs. Documents get generated ids, so appends never
// conflict; seq (append time in ns) orders the history.
type FirestoreHistory struct {
	client     *firestore.Client
	collection string
	ownsClient bool
}

type briefDoc struct {
	Seq       int64     `firestore:"seq"`
	BriefID   string    `firestore:"brief_id"`
	Payload   string    `firestore:"payload"`
	CreatedAt time.Time `firestore:"created_at"`
}

// NewFirestoreHistory connects to Firestore in projectID.
// FIRESTORE_EMULATOR_HOST is honored by the client library.
func NewFirestoreHistory(ctx context.Context, projectID, collection string) (*FirestoreHistory, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	h := NewFirestoreHistoryWithClient(client, collection)
	h.ownsClient = true
	logging.Store("FirestoreHistory connected to project %s", projectID)
	return h, nil
}

// NewFirestoreHistoryWithClient uses an existing client; Close leaves it open.
func NewFirestoreHistoryWithClient(client *firestore.Client, collection string) *FirestoreHistory {
	if collection == "" {
		collection = "users"
	}
	return &FirestoreHistory{client: client, collection: collection}
}

func (f *FirestoreHistory) briefs(userID string) *firestore.CollectionRef {
	return f.client.Collection(f.collection).Doc(userID).Collection("briefs")
}

// History implements HistoryStore.
func (f *FirestoreHistory) History(ctx context.Context, userID string) ([]schema.Brief, error) {
	iter := f.briefs(userID).OrderBy("seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	out := make([]schema.Brief, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read history: %w", err)
		}
		var doc briefDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode history doc %s: %w", snap.Ref.ID, err)
		}
		var b schema.Brief
		if err := json.Unmarshal([]byte(doc.Payload), &b); err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping corrupt firestore brief %s: %v", snap.Ref.ID, err)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Append implements HistoryStore.
func (f *FirestoreHistory) Append(ctx context.Context, userID string, b *schema.Brief) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal brief: %w", err)
	}
	now := time.Now().UTC()
	_, err = f.briefs(userID).NewDoc().Create(ctx, briefDoc{
		Seq:       now.UnixNano(),
		BriefID:   b.BriefID,
		Payload:   string(payload),
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to append brief: %w", err)
	}
	logging.StoreDebug("Appended brief %s for user %s to firestore", b.BriefID, userID)
	return nil
}

// Close implements HistoryStore.
func (f *FirestoreHistory) Close() error {
	if f.ownsClient {
		return f.client.Close()
	}
	return nil
}
