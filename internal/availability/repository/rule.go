package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	availerrors "slotline/internal/availability/errors"
	"slotline/pkg/config"
	"slotline/pkg/model"
)

const (
	RuleCollection      = "Availability_rules"
	ExceptionCollection = "Availability_exceptions"
)

type RuleRepository interface {
	CreateRule(ctx context.Context, rule *model.AvailabilityRule) error
	DeleteRule(ctx context.Context, tenantID, id string) error
	ListRules(ctx context.Context, tenantID, resourceID string) ([]*model.AvailabilityRule, error)

	CreateException(ctx context.Context, exc *model.AvailabilityException) error
	DeleteException(ctx context.Context, tenantID, id string) error
	// ListExceptions returns exceptions for resource with dates in
	// [fromDate, toDate], both "2006-01-02".
	ListExceptions(ctx context.Context, tenantID, resourceID, fromDate, toDate string) ([]*model.AvailabilityException, error)
}

type mongoRuleRepository struct {
	cfg        *config.Config
	rules      *mongo.Collection
	exceptions *mongo.Collection
}

func NewMongoRuleRepository(cfg *config.Config) RuleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRuleRepository{
		cfg:        cfg,
		rules:      db.Collection(RuleCollection),
		exceptions: db.Collection(ExceptionCollection),
	}
}

func (r *mongoRuleRepository) CreateRule(ctx context.Context, rule *model.AvailabilityRule) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	rule.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	rule.ID = ""
	result, err := r.rules.InsertOne(ctx, rule)
	if err != nil {
		return fmt.Errorf("failed to create availability rule: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		rule.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRuleRepository) DeleteRule(ctx context.Context, tenantID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", availerrors.ErrInvalidID, id)
	}

	result, err := r.rules.DeleteOne(ctx, bson.M{"_id": objectID, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("failed to delete availability rule: %w", err)
	}
	if result.DeletedCount == 0 {
		return availerrors.ErrNotFound
	}
	return nil
}

func (r *mongoRuleRepository) ListRules(ctx context.Context, tenantID, resourceID string) ([]*model.AvailabilityRule, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"tenant_id": tenantID, "resource_id": resourceID}
	opts := options.Find().SetSort(bson.D{{Key: "weekday", Value: 1}, {Key: "local_start", Value: 1}})

	cursor, err := r.rules.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability rules: %w", err)
	}
	defer cursor.Close(ctx)

	var rules []*model.AvailabilityRule
	if err = cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode availability rules: %w", err)
	}
	return rules, nil
}

func (r *mongoRuleRepository) CreateException(ctx context.Context, exc *model.AvailabilityException) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	exc.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	exc.ID = ""
	result, err := r.exceptions.InsertOne(ctx, exc)
	if err != nil {
		return fmt.Errorf("failed to create availability exception: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		exc.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRuleRepository) DeleteException(ctx context.Context, tenantID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", availerrors.ErrInvalidID, id)
	}

	result, err := r.exceptions.DeleteOne(ctx, bson.M{"_id": objectID, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("failed to delete availability exception: %w", err)
	}
	if result.DeletedCount == 0 {
		return availerrors.ErrNotFound
	}
	return nil
}

func (r *mongoRuleRepository) ListExceptions(ctx context.Context, tenantID, resourceID, fromDate, toDate string) ([]*model.AvailabilityException, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"tenant_id":   tenantID,
		"resource_id": resourceID,
		"date":        bson.M{"$gte": fromDate, "$lte": toDate},
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.exceptions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability exceptions: %w", err)
	}
	defer cursor.Close(ctx)

	var exceptions []*model.AvailabilityException
	if err = cursor.All(ctx, &exceptions); err != nil {
		return nil, fmt.Errorf("failed to decode availability exceptions: %w", err)
	}
	return exceptions, nil
}
