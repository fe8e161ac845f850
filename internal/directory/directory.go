package directory

import (
	"context"
	"errors"

	"slotline/pkg/model"
)

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrResourceNotFound = errors.New("resource not found")
	ErrServiceNotFound  = errors.New("service not found")
)

// Directory resolves tenants, resources, and services. The engine
// treats these as reference data owned by an upstream system.
type Directory interface {
	GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error)
	GetResource(ctx context.Context, tenantID, resourceID string) (*model.Resource, error)
	GetService(ctx context.Context, tenantID, serviceID string) (*model.Service, error)
}
