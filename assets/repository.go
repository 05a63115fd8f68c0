package assets

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Repository 以主键为索引维护资产表的读写，不做业务校验。
type Repository struct {
	db *gorm.DB
}

// NewRepository 用注入的数据库句柄创建仓储。
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get 按编码精确查找一条资产记录。
func (r *Repository) Get(ctx context.Context, id string) (*Asset, error) {
	var asset Asset
	if err := r.db.WithContext(ctx).First(&asset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &asset, nil
}

// List 返回全部资产记录。
func (r *Repository) List(ctx context.Context) ([]Asset, error) {
	records := make([]Asset, 0)
	if err := r.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Exists 判断指定编码是否已被占用。
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Asset{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert 写入一条新记录，编码已存在时返回 ErrConflict，绝不覆盖。
func (r *Repository) Insert(ctx context.Context, asset *Asset) error {
	if err := r.db.WithContext(ctx).Create(asset).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrConflict, asset.ID)
		}
		return err
	}
	return nil
}

// Replace 整体替换除编码与历史图片列之外的全部字段。
func (r *Repository) Replace(ctx context.Context, asset *Asset) error {
	exists, err := r.Exists(ctx, asset.ID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, asset.ID)
	}

	return r.db.WithContext(ctx).
		Model(&Asset{}).
		Where("id = ?", asset.ID).
		Select("*").
		Omit("id", "imageUrl").
		Updates(asset).Error
}

// Delete 按编码删除记录，不存在时返回 ErrNotFound。
func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&Asset{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
