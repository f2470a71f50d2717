package shared

import (
	"errors"

	"github.com/lumen-shop/cart-service/internal/http/response"
	"github.com/lumen-shop/cart-service/internal/i18n"
	"github.com/lumen-shop/cart-service/internal/service"

	"github.com/gin-gonic/gin"
)

type cartErrorRule struct {
	code int
	key  string
}

var cartErrorRules = map[string]cartErrorRule{
	service.KindInvalidArgument: {code: response.CodeBadRequest, key: "error.cart_invalid_argument"},
	service.KindNotFound:        {code: response.CodeNotFound, key: "error.cart_not_found"},
	service.KindInvalidProduct:  {code: response.CodeUnprocessable, key: "error.cart_invalid_product"},
	service.KindInvalidQuantity: {code: response.CodeBadRequest, key: "error.cart_invalid_quantity"},
	service.KindQuantityLimit:   {code: response.CodeBadRequest, key: "error.cart_quantity_limit"},
	service.KindConflict:        {code: response.CodeConflict, key: "error.cart_conflict"},
	service.KindUpstream:        {code: response.CodeBadGateway, key: "error.catalog_unavailable"},
}

// CartErrorCode 错误类别对应的业务状态码
func CartErrorCode(err error) int {
	if rule, ok := cartErrorRules[service.ErrorKind(err)]; ok {
		return rule.code
	}
	return response.CodeInternal
}

// RespondCartError 输出购物车错误：msg 为本地化提示，data 携带错误类别与原始说明
func RespondCartError(c *gin.Context, err error) {
	kind := service.ErrorKind(err)
	rule, ok := cartErrorRules[kind]
	if !ok {
		rule = cartErrorRule{code: response.CodeInternal, key: "error.internal"}
	}
	if errors.Is(err, service.ErrCartItemNotFound) {
		rule.key = "error.cart_item_not_found"
	}

	msg := i18n.T(i18n.ResolveLocale(c), rule.key)
	writeAppError(c, response.WrapError(rule.code, rule.key, msg, err), gin.H{
		"error_kind": kind,
		"detail":     service.PublicMessage(err),
	})
}
