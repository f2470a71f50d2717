package admin

import (
	"context"
	"errors"
	"strconv"
	"strings"

	handlershared "github.com/lumen-shop/cart-service/internal/http/handlers/shared"
	"github.com/lumen-shop/cart-service/internal/http/response"
	"github.com/lumen-shop/cart-service/internal/i18n"
	"github.com/lumen-shop/cart-service/internal/models"
	"github.com/lumen-shop/cart-service/internal/queue"
	"github.com/lumen-shop/cart-service/internal/repository"
	"github.com/lumen-shop/cart-service/internal/service"

	"github.com/gin-gonic/gin"
)

// ListCarts 分页查询购物车
func (h *Handler) ListCarts(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)

	filter := repository.CartListFilter{
		Page:           page,
		PageSize:       pageSize,
		Owner:          strings.TrimSpace(c.Query("user_id")),
		OnlyNonEmpty:   parseBoolQuery(c, "only_non_empty"),
		IncludeExpired: parseBoolQuery(c, "include_expired"),
	}
	carts, total, err := h.CartService.ListCarts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.cart_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, carts, response.NewPagination(page, pageSize, total))
}

// GetCart 查看指定用户的购物车，不触发校准
func (h *Handler) GetCart(c *gin.Context) {
	cart, err := h.CartService.FindCart(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, cart)
}

// ValidateCart 代用户执行显式校验
func (h *Handler) ValidateCart(c *gin.Context) {
	owner := strings.TrimSpace(c.Param("user_id"))
	result, err := h.CartService.ValidateCart(c.Request.Context(), owner)
	if err != nil {
		respondCartError(c, err)
		return
	}
	h.recordCartAudit(c, service.CartAuditRecordInput{
		OperatorID: currentAdminID(c),
		Owner:      owner,
		Action:     service.CartAuditActionValidate,
		RequestID:  currentRequestID(c),
		Detail: models.JSON{
			"valid":  result.Valid,
			"issues": len(result.Issues),
		},
	})
	response.SuccessWithMsg(c, i18n.T(i18n.ResolveLocale(c), "cart.validated"), result)
}

// ClearCart 清空指定用户的购物车
func (h *Handler) ClearCart(c *gin.Context) {
	owner := strings.TrimSpace(c.Param("user_id"))
	cart, err := h.CartService.ClearCart(c.Request.Context(), owner)
	if err != nil {
		respondCartError(c, err)
		return
	}
	h.recordCartAudit(c, service.CartAuditRecordInput{
		OperatorID: currentAdminID(c),
		Owner:      owner,
		Action:     service.CartAuditActionClear,
		RequestID:  currentRequestID(c),
	})
	requestLog(c).Infow("admin_cart_cleared", "operator_admin_id", currentAdminID(c), "user_id", owner)
	response.SuccessWithMsg(c, i18n.T(i18n.ResolveLocale(c), "cart.cleared"), cart)
}

// PurgeExpiredCarts 清理过期购物车；队列可用时异步执行
func (h *Handler) PurgeExpiredCarts(c *gin.Context) {
	operatorID := currentAdminID(c)
	requestID := currentRequestID(c)
	msg := i18n.T(i18n.ResolveLocale(c), "cart.purge_scheduled")

	if h.QueueClient != nil && h.QueueClient.Enabled() {
		err := h.QueueClient.EnqueueCartPurgeExpired(queue.CartPurgeExpiredPayload{
			OperatorID: operatorID,
			RequestID:  requestID,
		})
		if err == nil {
			response.SuccessWithMsg(c, msg, gin.H{"queued": true})
			return
		}
		if !errors.Is(err, queue.ErrQueueDisabled) {
			requestLog(c).Warnw("admin_cart_purge_enqueue_failed", "error", err)
		}
	}

	purged, err := h.CartService.PurgeExpired(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "error.cart_update_failed", err)
		return
	}
	h.recordCartAudit(c, service.CartAuditRecordInput{
		OperatorID: operatorID,
		Action:     service.CartAuditActionPurgeExpired,
		RequestID:  requestID,
		Detail:     models.JSON{"purged": purged},
	})
	response.SuccessWithMsg(c, msg, gin.H{"queued": false, "purged": purged})
}

func (h *Handler) recordCartAudit(c *gin.Context, input service.CartAuditRecordInput) {
	if h == nil || h.CartAuditService == nil {
		return
	}
	// 审计写入失败不影响主流程
	if err := h.CartAuditService.Record(context.WithoutCancel(c.Request.Context()), input); err != nil {
		requestLog(c).Warnw("admin_cart_audit_record_failed",
			"error", err,
			"action", input.Action,
			"operator_admin_id", input.OperatorID,
		)
	}
}

func parseBoolQuery(c *gin.Context, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && value
}
