package admin

import (
	"strings"

	handlershared "github.com/lumen-shop/cart-service/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getAdminID(c *gin.Context) (string, bool) {
	return handlershared.GetAdminID(c)
}

// currentAdminID 读取当前管理员，不写响应
func currentAdminID(c *gin.Context) string {
	value, exists := c.Get(handlershared.ContextKeyAdminID)
	if !exists {
		return ""
	}
	if adminID, ok := value.(string); ok {
		return strings.TrimSpace(adminID)
	}
	return ""
}

func currentTokenRoles(c *gin.Context) []string {
	value, exists := c.Get(handlershared.ContextKeyRoles)
	if !exists {
		return nil
	}
	roles, _ := value.([]string)
	return roles
}

func currentRequestID(c *gin.Context) string {
	return strings.TrimSpace(handlershared.GetRequestID(c))
}
