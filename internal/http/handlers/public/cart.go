package public

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/lumen-shop/cart-service/internal/cache"
	"github.com/lumen-shop/cart-service/internal/constants"
	handlershared "github.com/lumen-shop/cart-service/internal/http/handlers/shared"
	"github.com/lumen-shop/cart-service/internal/http/response"
	"github.com/lumen-shop/cart-service/internal/i18n"
	"github.com/lumen-shop/cart-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	idempotencyKeyMaxLen = 128
)

// AddCartItemRequest 加购请求
type AddCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

// UpdateCartItemRequest 修改数量请求，数量为 0 时移除
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// BulkAddItemRequest 批量加购单项，缺省数量为 1
type BulkAddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

// BulkAddRequest 批量加购请求
type BulkAddRequest struct {
	Items []BulkAddItemRequest `json:"items"`
}

// GetCart 获取购物车，下架商品会被自动移除
func (h *Handler) GetCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cart, err := h.CartService.GetCart(c.Request.Context(), uid)
	if err != nil {
		handlershared.RespondCartError(c, err)
		return
	}
	response.Success(c, cart)
}

// GetCartSummary 获取购物车摘要
func (h *Handler) GetCartSummary(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	summary, err := h.CartService.GetCartSummary(c.Request.Context(), uid)
	if err != nil {
		handlershared.RespondCartError(c, err)
		return
	}
	response.Success(c, summary)
}

// AddCartItem 加入购物车，支持 Idempotency-Key 重放
func (h *Handler) AddCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	msg := i18n.T(i18n.ResolveLocale(c), "cart.item_added")
	replay, ok := h.beginIdempotent(c, constants.IdempotencyScopeCartAdd, uid)
	if !ok {
		return
	}
	if replay.hit {
		response.SuccessWithMsg(c, msg, replay.data)
		return
	}

	cart, err := h.CartService.AddToCart(c.Request.Context(), uid, req.ProductID, quantityOrDefault(req.Quantity))
	if err != nil {
		handlershared.RespondCartError(c, err)
		return
	}
	h.finishIdempotent(c, replay, uid, cart)
	response.SuccessWithMsg(c, msg, cart)
}

// BulkAddCartItems 批量加入购物车，逐项返回结果
func (h *Handler) BulkAddCartItems(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req BulkAddRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	msg := i18n.T(i18n.ResolveLocale(c), "cart.item_added")
	replay, ok := h.beginIdempotent(c, constants.IdempotencyScopeCartBulkAdd, uid)
	if !ok {
		return
	}
	if replay.hit {
		response.SuccessWithMsg(c, msg, replay.data)
		return
	}

	items := make([]service.BulkAddItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.BulkAddItem{
			ProductRef: item.ProductID,
			Quantity:   quantityOrDefault(item.Quantity),
		})
	}
	outcome, err := h.CartService.BulkAdd(c.Request.Context(), uid, items)
	if err != nil {
		handlershared.RespondCartError(c, err)
		return
	}
	h.finishIdempotent(c, replay, uid, outcome)
	response.SuccessWithMsg(c, msg, outcome)
}

// UpdateCartItem 修改购物车项数量
func (h *Handler) UpdateCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	cart, err := h.CartService.UpdateCartItem(c.Request.Context(), uid, c.Param("product_id"), *req.Quantity)
	if err != nil {
		handlershared.RespondCartError(c, err)
		return
	}
	response.SuccessWithMsg(c, i18n.T(i18n.ResolveLocale(c), "cart.item_updated"), cart)
}

// RemoveCartItem 移除购物车项
func (h *Handler) RemoveCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cart, err := h.CartService.RemoveFromCart(c.Request.Context(), uid, c.Param("product_id"))
	if err != nil {
		handlershared.RespondCartError(c, err)
		return
	}
	response.SuccessWithMsg(c, i18n.T(i18n.ResolveLocale(c), "cart.item_removed"), cart)
}

// ClearCart 清空购物车
func (h *Handler) ClearCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cart, err := h.CartService.ClearCart(c.Request.Context(), uid)
	if err != nil {
		handlershared.RespondCartError(c, err)
		return
	}
	response.SuccessWithMsg(c, i18n.T(i18n.ResolveLocale(c), "cart.cleared"), cart)
}

// ValidateCart 显式校验购物车，移除不可售商品并校准价格
func (h *Handler) ValidateCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	result, err := h.CartService.ValidateCart(c.Request.Context(), uid)
	if err != nil {
		handlershared.RespondCartError(c, err)
		return
	}
	if !result.Valid {
		requestLog(c).Infow("cart_validate_issues_found", "user_id", uid, "issues", len(result.Issues))
	}
	response.SuccessWithMsg(c, i18n.T(i18n.ResolveLocale(c), "cart.validated"), result)
}

// quantityOrDefault 未传数量时按 1 处理，显式 0 保留交由服务层校验
func quantityOrDefault(quantity *int) int {
	if quantity == nil {
		return 1
	}
	return *quantity
}

type idempotentReplay struct {
	scope       string
	key         string
	fingerprint string
	hit         bool
	data        json.RawMessage
}

// beginIdempotent 查询幂等记录；返回 false 表示已写出错误响应
func (h *Handler) beginIdempotent(c *gin.Context, scope, owner string) (idempotentReplay, bool) {
	replay := idempotentReplay{scope: scope}
	key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	if key == "" || h.Idempotency == nil {
		return replay, true
	}
	if len(key) > idempotencyKeyMaxLen {
		respondError(c, response.CodeBadRequest, "error.idempotency_key_invalid", nil)
		return replay, false
	}
	var body []byte
	if raw, exists := c.Get(gin.BodyBytesKey); exists {
		body, _ = raw.([]byte)
	}
	replay.key = key
	replay.fingerprint = cache.Fingerprint(append([]byte(scope+":"), body...))

	data, found, err := h.Idempotency.Lookup(c.Request.Context(), scope, owner, key, replay.fingerprint)
	if err != nil {
		if errors.Is(err, cache.ErrIdempotencyKeyReused) {
			respondError(c, response.CodeConflict, "error.idempotency_key_reused", nil)
			return replay, false
		}
		requestLog(c).Warnw("cart_idempotency_lookup_failed", "scope", scope, "error", err)
		return replay, true
	}
	if found {
		replay.hit = true
		replay.data = data
	}
	return replay, true
}

func (h *Handler) finishIdempotent(c *gin.Context, replay idempotentReplay, owner string, data interface{}) {
	if replay.key == "" || h.Idempotency == nil {
		return
	}
	if err := h.Idempotency.Save(c.Request.Context(), replay.scope, owner, replay.key, replay.fingerprint, data); err != nil {
		requestLog(c).Warnw("cart_idempotency_save_failed", "scope", replay.scope, "error", err)
	}
}
