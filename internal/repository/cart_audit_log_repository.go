package repository

import (
	"context"

	"github.com/lumen-shop/cart-service/internal/models"

	"gorm.io/gorm"
)

// CartAuditLogRepository 购物车审计日志数据访问接口
type CartAuditLogRepository interface {
	Create(ctx context.Context, log *models.CartAuditLog) error
	List(ctx context.Context, filter CartAuditLogListFilter) ([]models.CartAuditLog, int64, error)
}

// GormCartAuditLogRepository GORM 实现
type GormCartAuditLogRepository struct {
	db *gorm.DB
}

// NewCartAuditLogRepository 创建审计日志仓库
func NewCartAuditLogRepository(db *gorm.DB) *GormCartAuditLogRepository {
	return &GormCartAuditLogRepository{db: db}
}

// Create 写入审计日志
func (r *GormCartAuditLogRepository) Create(ctx context.Context, log *models.CartAuditLog) error {
	if log == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// List 分页查询审计日志
func (r *GormCartAuditLogRepository) List(ctx context.Context, filter CartAuditLogListFilter) ([]models.CartAuditLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CartAuditLog{})
	if filter.OperatorID != "" {
		query = query.Where("operator_id = ?", filter.OperatorID)
	}
	if filter.Owner != "" {
		query = query.Where("owner = ?", filter.Owner)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	logs := make([]models.CartAuditLog, 0)
	if err := applyPagination(query, filter.Page, filter.PageSize).Order("id DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
