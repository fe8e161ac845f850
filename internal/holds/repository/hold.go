package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	holderrors "slotline/internal/holds/errors"
	"slotline/pkg/config"
	"slotline/pkg/model"
)

const CollectionName = "Holds"

type HoldRepository interface {
	Create(ctx context.Context, hold *model.Hold) error
	FindByID(ctx context.Context, tenantID, id string) (*model.Hold, error)
	// Consume marks the hold consumed if and only if it is unconsumed
	// and unexpired at now. Returns ErrConsumeFailed when the
	// conditional update matches nothing.
	Consume(ctx context.Context, tenantID, id string, now time.Time) error
	Delete(ctx context.Context, tenantID, id string) error
	// FindExpired returns unconsumed holds whose expiry precedes now.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*model.Hold, error)
}

type mongoHoldRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoHoldRepository(cfg *config.Config) HoldRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoHoldRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoHoldRepository) Create(ctx context.Context, hold *model.Hold) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	hold.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	hold.ID = ""
	result, err := r.collection.InsertOne(ctx, hold)
	if err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		hold.ID = oid.Hex()
	}
	return nil
}

func (r *mongoHoldRepository) FindByID(ctx context.Context, tenantID, id string) (*model.Hold, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", holderrors.ErrInvalidID, id)
	}

	var hold model.Hold
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID, "tenant_id": tenantID}).Decode(&hold)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, holderrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find hold: %w", err)
	}
	return &hold, nil
}

func (r *mongoHoldRepository) Consume(ctx context.Context, tenantID, id string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", holderrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":        objectID,
		"tenant_id":  tenantID,
		"consumed":   false,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"consumed": true}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to consume hold: %w", err)
	}
	if result.MatchedCount == 0 {
		return holderrors.ErrConsumeFailed
	}
	return nil
}

func (r *mongoHoldRepository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", holderrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("failed to delete hold: %w", err)
	}
	if result.DeletedCount == 0 {
		return holderrors.ErrNotFound
	}
	return nil
}

func (r *mongoHoldRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*model.Hold, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"consumed":   false,
		"expires_at": bson.M{"$lte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "expires_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired holds: %w", err)
	}
	defer cursor.Close(ctx)

	var holds []*model.Hold
	if err = cursor.All(ctx, &holds); err != nil {
		return nil, fmt.Errorf("failed to decode holds: %w", err)
	}
	return holds, nil
}
