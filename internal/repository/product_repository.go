package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/lumen-shop/cart-service/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrProductNotFound 商品不存在
var ErrProductNotFound = errors.New("product not found")

// ProductRepository 本地商品目录数据访问接口
type ProductRepository interface {
	GetByRef(ctx context.Context, ref string) (*models.Product, error)
	ListByRefs(ctx context.Context, refs []string) ([]models.Product, error)
	Upsert(ctx context.Context, product *models.Product) error
	UpdateStatus(ctx context.Context, ref, status string) error
}

// GormProductRepository GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓库
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// GetByRef 按商品标识查询
func (r *GormProductRepository) GetByRef(ctx context.Context, ref string) (*models.Product, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrProductNotFound
	}
	var product models.Product
	err := r.db.WithContext(ctx).Where("ref = ?", ref).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListByRefs 批量查询，结果不保证顺序
func (r *GormProductRepository) ListByRefs(ctx context.Context, refs []string) ([]models.Product, error) {
	products := make([]models.Product, 0, len(refs))
	if len(refs) == 0 {
		return products, nil
	}
	if err := r.db.WithContext(ctx).Where("ref IN ?", refs).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Upsert 按标识写入商品
func (r *GormProductRepository) Upsert(ctx context.Context, product *models.Product) error {
	if product == nil {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "sku", "price_amount", "images", "status", "updated_at"}),
	}).Create(product).Error
}

// UpdateStatus 更新商品生命周期状态
func (r *GormProductRepository) UpdateStatus(ctx context.Context, ref, status string) error {
	result := r.db.WithContext(ctx).Model(&models.Product{}).Where("ref = ?", ref).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}
