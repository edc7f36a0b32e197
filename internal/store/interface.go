package store

import (
	"context"

	"carlot/internal/models"
)

// LinkStore persists the ordered object ids of owning records.
type LinkStore interface {
	GetObjectIDs(ctx context.Context, ref models.RecordRef) ([]string, int64, error)
	SetObjectIDs(ctx context.Context, ref models.RecordRef, ids []string, expectedVersion int64) (int64, error)
	ListReferencedObjectIDs(ctx context.Context) (map[string][]models.RecordRef, error)
	IsObjectReferenced(ctx context.Context, objectID string) (bool, error)
}

// RecordStore abstracts vehicle and asset group storage.
type RecordStore interface {
	LinkStore
	CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error
	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, limit, offset int) ([]models.Vehicle, error)
	UpdateVehicleFields(ctx context.Context, id string, fields map[string]string) error
	DeleteVehicle(ctx context.Context, id string) error
	CreateAssetGroup(ctx context.Context, group *models.AssetGroup) error
	GetAssetGroup(ctx context.Context, id string) (*models.AssetGroup, error)
	ListAssetGroups(ctx context.Context, limit, offset int) ([]models.AssetGroup, error)
	DeleteAssetGroup(ctx context.Context, id string) error
}

var _ RecordStore = (*Store)(nil)
