package service

import (
	"context"
	"errors"

	"geobridge/internal/domain"
)

// ErrAssetNotFound is returned by an AssetSource for a path it does not hold
var ErrAssetNotFound = errors.New("asset not found")

// AssetStore owns the collections a retrieve writes into
type AssetStore interface {
	// FindOrCreate returns the collection at path, creating an empty one if needed
	FindOrCreate(ctx context.Context, path string) (*domain.Collection, error)
	// NotifyChanged marks c modified and tells listeners
	NotifyChanged(ctx context.Context, c *domain.Collection) error
	// Finalize persists c
	Finalize(ctx context.Context, c *domain.Collection) error
}

// AssetSource loads the collection an asset input uploads
type AssetSource interface {
	Load(ctx context.Context, path string) (*domain.Collection, error)
}
