package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"slotline/pkg/config"
)

const CollectionName = "AuditLog"

type mongoSink struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSink(cfg *config.Config) Sink {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSink{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (s *mongoSink) Record(ctx context.Context, entry Entry) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	if entry.At.IsZero() {
		entry.At = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := s.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}
