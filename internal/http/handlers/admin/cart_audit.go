package admin

import (
	"strings"

	handlershared "github.com/lumen-shop/cart-service/internal/http/handlers/shared"
	"github.com/lumen-shop/cart-service/internal/http/response"
	"github.com/lumen-shop/cart-service/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListCartAuditLogs 查询后台购物车操作审计
func (h *Handler) ListCartAuditLogs(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)

	logs, total, err := h.CartAuditService.ListForAdmin(c.Request.Context(), repository.CartAuditLogListFilter{
		Page:       page,
		PageSize:   pageSize,
		OperatorID: strings.TrimSpace(c.Query("operator_id")),
		Owner:      strings.TrimSpace(c.Query("user_id")),
		Action:     strings.TrimSpace(c.Query("action")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.cart_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, logs, response.NewPagination(page, pageSize, total))
}
