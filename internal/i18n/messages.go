package i18n

var messages = map[string]map[string]string{
	LocaleZhCN: {
		"error.bad_request":             "请求参数错误",
		"error.unauthorized":            "未登录或登录已过期",
		"error.forbidden":               "无权限访问",
		"error.not_found":               "资源不存在",
		"error.internal":                "服务器内部错误",
		"error.too_many_requests":       "请求过于频繁，请稍后再试",
		"error.user_id_invalid":         "用户标识无效",
		"error.admin_id_invalid":        "管理员标识无效",
		"error.role_immutable":          "预置角色不可修改",
		"error.token_invalid":           "令牌无效",
		"error.cart_invalid_argument":   "购物车参数无效",
		"error.cart_not_found":          "购物车不存在",
		"error.cart_item_not_found":     "购物车中没有该商品",
		"error.cart_invalid_product":    "商品不可购买",
		"error.cart_invalid_quantity":   "商品数量无效",
		"error.cart_quantity_limit":     "超出单个商品数量上限",
		"error.cart_conflict":           "购物车正在被修改，请重试",
		"error.catalog_unavailable":     "商品目录暂不可用，请稍后再试",
		"error.cart_fetch_failed":       "获取购物车失败",
		"error.cart_update_failed":      "更新购物车失败",
		"error.idempotency_key_reused":  "幂等键已用于不同的请求",
		"error.idempotency_key_invalid": "幂等键格式错误",
		"error.queue_unavailable":       "任务队列不可用",
		"error.jwt_secret_missing":      "未配置令牌签名密钥",
		"error.auth_header_missing":     "缺少 Authorization 请求头",
		"error.auth_header_invalid":     "Authorization 请求头格式错误",
		"error.rate_limited":            "请求过于频繁，请在 %d 秒后重试",
		"error.rate_limit_unavailable":  "限流服务不可用",
		"cart.item_added":               "已加入购物车",
		"cart.item_updated":             "购物车已更新",
		"cart.item_removed":             "已从购物车移除",
		"cart.cleared":                  "购物车已清空",
		"cart.validated":                "购物车校验完成",
		"cart.purge_scheduled":          "过期清理任务已提交",
	},
	LocaleEnUS: {
		"error.bad_request":             "Bad request",
		"error.unauthorized":            "Unauthorized",
		"error.forbidden":               "Forbidden",
		"error.not_found":               "Not found",
		"error.internal":                "Internal error",
		"error.too_many_requests":       "Too many requests, please try again later",
		"error.user_id_invalid":         "Invalid user id",
		"error.admin_id_invalid":        "Invalid admin id",
		"error.role_immutable":          "Builtin role cannot be modified",
		"error.token_invalid":           "Invalid token",
		"error.cart_invalid_argument":   "Invalid cart request",
		"error.cart_not_found":          "Cart not found",
		"error.cart_item_not_found":     "Item not found in cart",
		"error.cart_invalid_product":    "Product cannot be purchased",
		"error.cart_invalid_quantity":   "Invalid quantity",
		"error.cart_quantity_limit":     "Quantity limit exceeded",
		"error.cart_conflict":           "Cart is being modified, please retry",
		"error.catalog_unavailable":     "Product catalog is temporarily unavailable",
		"error.cart_fetch_failed":       "Failed to fetch cart",
		"error.cart_update_failed":      "Failed to update cart",
		"error.idempotency_key_reused":  "Idempotency key was used with a different request",
		"error.idempotency_key_invalid": "Invalid idempotency key",
		"error.queue_unavailable":       "Task queue unavailable",
		"error.jwt_secret_missing":      "JWT secret is not configured",
		"error.auth_header_missing":     "Authorization header is required",
		"error.auth_header_invalid":     "Authorization header must be a Bearer token",
		"error.rate_limited":            "Too many requests, retry in %d seconds",
		"error.rate_limit_unavailable":  "Rate limiter unavailable",
		"cart.item_added":               "Item added to cart",
		"cart.item_updated":             "Cart updated",
		"cart.item_removed":             "Item removed from cart",
		"cart.cleared":                  "Cart cleared",
		"cart.validated":                "Cart validated",
		"cart.purge_scheduled":          "Purge task submitted",
	},
}
