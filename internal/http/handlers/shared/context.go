package shared

import (
	"strings"

	"github.com/lumen-shop/cart-service/internal/http/response"

	"github.com/gin-gonic/gin"
)

// 鉴权中间件写入上下文的键
const (
	ContextKeyUserID  = "user_id"
	ContextKeyAdminID = "admin_id"
	ContextKeyRoles   = "admin_roles"
)

// GetContextStringWithKeys 从上下文读取非空字符串并统一处理错误响应。
func GetContextStringWithKeys(c *gin.Context, key, invalidKey string) (string, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return "", false
	}
	id, ok := value.(string)
	if !ok || strings.TrimSpace(id) == "" {
		RespondError(c, response.CodeUnauthorized, invalidKey, nil)
		return "", false
	}
	return strings.TrimSpace(id), true
}

// GetUserID 当前登录用户，即购物车所属人
func GetUserID(c *gin.Context) (string, bool) {
	return GetContextStringWithKeys(c, ContextKeyUserID, "error.user_id_invalid")
}

// GetAdminID 当前管理员
func GetAdminID(c *gin.Context) (string, bool) {
	return GetContextStringWithKeys(c, ContextKeyAdminID, "error.admin_id_invalid")
}

// GetRequestID 请求 ID，不存在返回空串
func GetRequestID(c *gin.Context) string {
	if value, ok := c.Get("request_id"); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
