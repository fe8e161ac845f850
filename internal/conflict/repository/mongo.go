package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"slotline/pkg/config"
	dbmongo "slotline/pkg/db/mongo"
	"slotline/pkg/model"
)

const (
	CollectionName     = "Reservations"
	LockCollectionName = "Resource_locks"

	lockTTL      = 10 * time.Second
	lockRetries  = 3
	lockRetryGap = 50 * time.Millisecond
)

type resourceLock struct {
	ID        string    `bson:"_id"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type mongoReservationStore struct {
	cfg        *config.Config
	collection *mongo.Collection
	locks      *mongo.Collection
	tx         dbmongo.TransactionManager
}

// NewMongoReservationStore persists reservations in Mongo and serializes
// writers per resource through an advisory lock collection. The lock
// collection needs a TTL index on expires_at so crashed holders expire.
func NewMongoReservationStore(cfg *config.Config) ReservationStore {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationStore{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		locks:      db.Collection(LockCollectionName),
		tx:         dbmongo.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (s *mongoReservationStore) WithResourceLock(ctx context.Context, tenantID, resourceID string, fn func(ctx context.Context) error) error {
	lockID := fmt.Sprintf("reserve_%s_%s", tenantID, resourceID)

	acquired := false
	for attempt := 0; attempt < lockRetries; attempt++ {
		now := time.Now()
		_, err := s.locks.InsertOne(ctx, resourceLock{
			ID:        lockID,
			CreatedAt: now,
			ExpiresAt: now.Add(lockTTL),
		})
		if err == nil {
			acquired = true
			break
		}
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to acquire resource lock: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryGap):
		}
	}
	if !acquired {
		return ErrLockBusy
	}

	defer func() {
		if _, err := s.locks.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": lockID}); err != nil {
			s.cfg.Log.Warn("Failed to release resource lock", "lock_id", lockID, "error", err)
		}
	}()

	return fn(ctx)
}

func (s *mongoReservationStore) FindOverlapping(ctx context.Context, tenantID, resourceID string, interval model.Interval, now time.Time) ([]*model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"tenant_id":   tenantID,
		"resource_id": resourceID,
		"start":       bson.M{"$lt": interval.End},
		"end":         bson.M{"$gt": interval.Start},
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": bson.M{"$gt": now}},
		},
	}

	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (s *mongoReservationStore) Insert(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	reservation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err := s.collection.InsertOne(ctx, reservation)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

func (s *mongoReservationStore) Swap(ctx context.Context, tenantID, oldToken string, reservation *model.Reservation) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	reservation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	return s.tx.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := s.collection.InsertOne(sessCtx, reservation); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("failed to insert reservation: %w", err)
		}

		result, err := s.collection.DeleteOne(sessCtx, bson.M{"_id": oldToken, "tenant_id": tenantID})
		if err != nil {
			return fmt.Errorf("failed to delete reservation: %w", err)
		}
		if result.DeletedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *mongoReservationStore) Delete(ctx context.Context, tenantID, token string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": token, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoReservationStore) ClearExpiryIfActive(ctx context.Context, tenantID, token string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":        token,
		"tenant_id":  tenantID,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$unset": bson.M{"expires_at": ""}}

	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to clear reservation expiry: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoReservationStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	result, err := s.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now, "$exists": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reservations: %w", err)
	}
	return result.DeletedCount, nil
}

func (s *mongoReservationStore) Get(ctx context.Context, tenantID, token string) (*model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var reservation model.Reservation
	err := s.collection.FindOne(ctx, bson.M{"_id": token, "tenant_id": tenantID}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &reservation, nil
}
