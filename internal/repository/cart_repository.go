package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lumen-shop/cart-service/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrCartNotFound 购物车不存在或已过期
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartExists 用户已存在购物车
	ErrCartExists = errors.New("cart already exists")
	// ErrVersionConflict 购物车已被并发修改
	ErrVersionConflict = errors.New("cart version conflict")
)

// CartRepository 购物车存储接口，每个用户至多一条记录
type CartRepository interface {
	// Load 读取购物车，不存在或已过期返回 ErrCartNotFound
	Load(ctx context.Context, owner string) (*models.Cart, error)
	// CreateEmpty 创建空购物车，已存在返回 ErrCartExists
	CreateEmpty(ctx context.Context, owner string) (*models.Cart, error)
	// Persist 重算派生字段后写回，返回写入后的购物车
	Persist(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	// PurgeExpired 删除过期购物车
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	// List 管理端分页查询
	List(ctx context.Context, filter CartListFilter) ([]models.Cart, int64, error)
}

// Clock 当前时间来源
type Clock func() time.Time

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db  *gorm.DB
	ttl time.Duration
	now Clock
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB, ttl time.Duration) *GormCartRepository {
	return &GormCartRepository{db: db, ttl: ttl, now: time.Now}
}

// WithClock 替换时间来源
func (r *GormCartRepository) WithClock(now Clock) *GormCartRepository {
	if now == nil {
		return r
	}
	return &GormCartRepository{db: r.db, ttl: r.ttl, now: now}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) *GormCartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx, ttl: r.ttl, now: r.now}
}

// Load 读取购物车
func (r *GormCartRepository) Load(ctx context.Context, owner string) (*models.Cart, error) {
	var cart models.Cart
	// 首次访问没有记录属于常态，用 Find 避免 record not found 日志
	result := r.db.WithContext(ctx).Where("owner = ?", owner).Limit(1).Find(&cart)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrCartNotFound
	}
	if cart.IsExpired(r.now()) {
		return nil, ErrCartNotFound
	}
	return &cart, nil
}

// CreateEmpty 创建空购物车，过期的旧记录会被替换
func (r *GormCartRepository) CreateEmpty(ctx context.Context, owner string) (*models.Cart, error) {
	now := r.now()
	cart := models.NewCart(owner, now, r.ttl)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner = ? AND expires_at <= ?", owner, now).Delete(&models.Cart{}).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Cart{}).Where("owner = ?", owner).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrCartExists
		}
		return tx.Create(cart).Error
	})
	if err == nil {
		return cart, nil
	}
	if errors.Is(err, ErrCartExists) || errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return nil, ErrCartExists
	}
	return nil, err
}

// Persist 重算派生字段并按版本号写回
func (r *GormCartRepository) Persist(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart == nil {
		return nil, ErrCartNotFound
	}
	next := cart.Clone()
	next.Recompute(r.now(), r.ttl)
	next.Version = cart.Version + 1

	result := r.db.WithContext(ctx).Model(&models.Cart{}).
		Where("owner = ? AND version = ?", cart.Owner, cart.Version).
		Updates(map[string]interface{}{
			"items":         next.Items,
			"total_items":   next.TotalItems,
			"total_amount":  next.TotalAmount,
			"last_modified": next.LastModified,
			"expires_at":    next.ExpiresAt,
			"version":       next.Version,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		return next, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Cart{}).Where("owner = ?", cart.Owner).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrCartNotFound
	}
	return nil, ErrVersionConflict
}

// PurgeExpired 删除过期购物车
func (r *GormCartRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Cart{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// List 管理端分页查询，按最近修改倒序
func (r *GormCartRepository) List(ctx context.Context, filter CartListFilter) ([]models.Cart, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Cart{})
	if owner := strings.TrimSpace(filter.Owner); owner != "" {
		query = query.Where("owner "+likeOperatorByDialect(dbDialectName(r.db))+" ?", "%"+owner+"%")
	}
	if filter.OnlyNonEmpty {
		query = query.Where("total_items > 0")
	}
	if !filter.IncludeExpired {
		query = query.Where("expires_at > ?", r.now())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	carts := make([]models.Cart, 0)
	if err := applyPagination(query, filter.Page, filter.PageSize).Order("last_modified DESC").Find(&carts).Error; err != nil {
		return nil, 0, err
	}
	return carts, total, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
