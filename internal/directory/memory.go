package directory

import (
	"context"
	"sync"

	"slotline/pkg/model"
)

// MemoryDirectory holds reference data in memory. Useful for single-node
// deployments seeded at startup and for tests.
type MemoryDirectory struct {
	mu        sync.RWMutex
	tenants   map[string]*model.Tenant
	resources map[string]*model.Resource
	services  map[string]*model.Service
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		tenants:   make(map[string]*model.Tenant),
		resources: make(map[string]*model.Resource),
		services:  make(map[string]*model.Service),
	}
}

func (d *MemoryDirectory) PutTenant(tenant *model.Tenant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tenants[tenant.ID] = tenant
}

func (d *MemoryDirectory) PutResource(resource *model.Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resources[resource.ID] = resource
}

func (d *MemoryDirectory) PutService(service *model.Service) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[service.ID] = service
}

func (d *MemoryDirectory) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tenant, ok := d.tenants[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return tenant, nil
}

func (d *MemoryDirectory) GetResource(ctx context.Context, tenantID, resourceID string) (*model.Resource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	resource, ok := d.resources[resourceID]
	if !ok || resource.TenantID != tenantID {
		return nil, ErrResourceNotFound
	}
	return resource, nil
}

func (d *MemoryDirectory) GetService(ctx context.Context, tenantID, serviceID string) (*model.Service, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	service, ok := d.services[serviceID]
	if !ok || service.TenantID != tenantID {
		return nil, ErrServiceNotFound
	}
	return service, nil
}
