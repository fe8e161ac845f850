package directory

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"slotline/pkg/config"
	"slotline/pkg/model"
)

const (
	TenantCollection   = "Tenants"
	ResourceCollection = "Resources"
	ServiceCollection  = "Services"
)

type mongoDirectory struct {
	cfg       *config.Config
	tenants   *mongo.Collection
	resources *mongo.Collection
	services  *mongo.Collection
}

func NewMongoDirectory(cfg *config.Config) Directory {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDirectory{
		cfg:       cfg,
		tenants:   db.Collection(TenantCollection),
		resources: db.Collection(ResourceCollection),
		services:  db.Collection(ServiceCollection),
	}
}

func (d *mongoDirectory) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ReadTimeout)
	defer cancel()

	var tenant model.Tenant
	err := d.tenants.FindOne(ctx, bson.M{"_id": tenantID}).Decode(&tenant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to find tenant: %w", err)
	}
	return &tenant, nil
}

func (d *mongoDirectory) GetResource(ctx context.Context, tenantID, resourceID string) (*model.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"_id": resourceID, "tenant_id": tenantID}

	var resource model.Resource
	err := d.resources.FindOne(ctx, filter).Decode(&resource)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}
	return &resource, nil
}

func (d *mongoDirectory) GetService(ctx context.Context, tenantID, serviceID string) (*model.Service, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"_id": serviceID, "tenant_id": tenantID}

	var service model.Service
	err := d.services.FindOne(ctx, filter).Decode(&service)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("failed to find service: %w", err)
	}
	return &service, nil
}
