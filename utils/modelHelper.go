package utils

import (
	"context"
	"errors"

	"github.com/uinakrani/royalsuppliers-sub002/config"
	"gorm.io/gorm"
)

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	if db == nil {
		return nil, ErrorStorageUnavailable
	}
	dbCtx := db.WithContext(ctx)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// fetch all models from db
func FetchAllModels[T any](ctx context.Context, associations ...string) ([]*T, error) {

	db := config.GetDB()
	if db == nil {
		return nil, ErrorStorageUnavailable
	}
	dbCtx := db.WithContext(ctx)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// validate id exists for resource type
func ValidateResourceId[T any](ctx context.Context, id int) error {
	db := config.GetDB()
	if db == nil {
		return ErrorStorageUnavailable
	}
	var count int64
	var model T
	if err := db.WithContext(ctx).Model(&model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}
