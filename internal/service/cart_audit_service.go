package service

import (
	"context"
	"strings"
	"time"

	"github.com/lumen-shop/cart-service/internal/models"
	"github.com/lumen-shop/cart-service/internal/repository"
)

// 后台购物车操作
const (
	CartAuditActionValidate     = "cart_validate"
	CartAuditActionClear        = "cart_clear"
	CartAuditActionPurgeExpired = "cart_purge_expired"
)

// CartAuditRecordInput 购物车审计记录输入
type CartAuditRecordInput struct {
	OperatorID string
	Owner      string
	Action     string
	RequestID  string
	Detail     models.JSON
}

// CartAuditService 购物车审计服务
type CartAuditService struct {
	repo repository.CartAuditLogRepository
}

// NewCartAuditService 创建购物车审计服务
func NewCartAuditService(repo repository.CartAuditLogRepository) *CartAuditService {
	return &CartAuditService{repo: repo}
}

// Record 记录审计日志，操作人或动作为空时忽略
func (s *CartAuditService) Record(ctx context.Context, input CartAuditRecordInput) error {
	if s == nil || s.repo == nil {
		return nil
	}
	operatorID := strings.TrimSpace(input.OperatorID)
	action := strings.TrimSpace(input.Action)
	if operatorID == "" || action == "" {
		return nil
	}

	item := &models.CartAuditLog{
		OperatorID: operatorID,
		Owner:      strings.TrimSpace(input.Owner),
		Action:     action,
		RequestID:  strings.TrimSpace(input.RequestID),
		DetailJSON: input.Detail,
		CreatedAt:  time.Now(),
	}
	return s.repo.Create(ctx, item)
}

// ListForAdmin 管理端查询审计日志
func (s *CartAuditService) ListForAdmin(ctx context.Context, filter repository.CartAuditLogListFilter) ([]models.CartAuditLog, int64, error) {
	if s == nil || s.repo == nil {
		return []models.CartAuditLog{}, 0, nil
	}
	return s.repo.List(ctx, filter)
}
