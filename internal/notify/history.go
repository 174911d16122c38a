package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// HistoryStore persists every delivered notification so users can review
// them later.
type HistoryStore struct {
	collection *mongo.Collection
}

type historyRecord struct {
	ID        string    `bson:"_id"`
	UserID    int64     `bson:"user_id"`
	Title     string    `bson:"title"`
	Message   string    `bson:"message"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"created_at"`
}

func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func NewHistoryStore(db *mongo.Database) *HistoryStore {
	return &HistoryStore{collection: db.Collection("notifications")}
}

func (h *HistoryStore) Save(ctx context.Context, n Notification) error {
	record := historyRecord{
		ID:        uuid.NewString(),
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Body,
		CreatedAt: time.Now(),
	}
	if _, err := h.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications, newest first.
func (h *HistoryStore) ListByUser(ctx context.Context, userID int64, limit int64) ([]Notification, error) {
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(limit)

	cursor, err := h.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []Notification
	for cursor.Next(ctx) {
		var record historyRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %w", err)
		}
		notifications = append(notifications, Notification{
			UserID: record.UserID,
			Title:  record.Title,
			Body:   record.Message,
		})
	}
	return notifications, cursor.Err()
}
