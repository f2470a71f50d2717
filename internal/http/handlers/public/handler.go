package public

import "github.com/lumen-shop/cart-service/internal/provider"

// Handler 用户侧购物车接口处理器入口
// 说明：所有接口都要求已登录，购物车所属人取自令牌。
type Handler struct {
	*provider.Container
}

// New 创建用户侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
