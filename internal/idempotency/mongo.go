package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"slotline/pkg/config"
	"slotline/pkg/metrics"
	"slotline/pkg/model"
)

const CollectionName = "Idempotency_keys"

// mongoStore backs the idempotency guard with a collection carrying a
// unique index on (tenant_id, key) and a TTL index on expires_at. The
// unique index makes CheckOrReserve's claim atomic across nodes.
type mongoStore struct {
	cfg        *config.Config
	collection *mongo.Collection
	retention  time.Duration
}

func NewMongoStore(cfg *config.Config) Store {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoStore{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		retention:  cfg.IdempotencyRetention,
	}
}

func (s *mongoStore) CheckOrReserve(ctx context.Context, tenantID, key, requestHash string) (CheckResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	record := model.IdempotencyRecord{
		TenantID:    tenantID,
		Key:         key,
		RequestHash: requestHash,
		ExpiresAt:   now.Add(s.retention),
		CreatedAt:   now,
	}

	_, err := s.collection.InsertOne(ctx, record)
	if err == nil {
		return CheckResult{Outcome: OutcomeNew}, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return CheckResult{}, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}

	var existing model.IdempotencyRecord
	err = s.collection.FindOne(ctx, bson.M{"tenant_id": tenantID, "key": key}).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// The holder expired between the insert and the read; treat
			// the key as contended and let the caller retry.
			return CheckResult{Outcome: OutcomeInProgress}, nil
		}
		return CheckResult{}, fmt.Errorf("failed to load idempotency record: %w", err)
	}

	if existing.Expired(now) {
		// TTL reaper has not removed the document yet. Take it over.
		_, err = s.collection.ReplaceOne(ctx, bson.M{"tenant_id": tenantID, "key": key, "expires_at": existing.ExpiresAt}, record)
		if err != nil {
			return CheckResult{}, fmt.Errorf("failed to reclaim idempotency key: %w", err)
		}
		return CheckResult{Outcome: OutcomeNew}, nil
	}

	if existing.RequestHash != requestHash {
		return CheckResult{Outcome: OutcomeConflict}, nil
	}
	if !existing.Completed {
		return CheckResult{Outcome: OutcomeInProgress}, nil
	}

	metrics.IncIdempotencyReplay()
	return CheckResult{Outcome: OutcomeReplay, Result: existing.Result}, nil
}

func (s *mongoStore) Complete(ctx context.Context, tenantID, key string, result []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"result": result, "completed": true}}
	res, err := s.collection.UpdateOne(ctx, bson.M{"tenant_id": tenantID, "key": key}, update)
	if err != nil {
		return fmt.Errorf("failed to complete idempotency record: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *mongoStore) Forget(ctx context.Context, tenantID, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	_, err := s.collection.DeleteOne(ctx, bson.M{"tenant_id": tenantID, "key": key})
	if err != nil {
		return fmt.Errorf("failed to forget idempotency key: %w", err)
	}
	return nil
}

func (s *mongoStore) Stop() {}
