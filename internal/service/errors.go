package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument 参数缺失或非法
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCartNotFound 购物车不存在
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartItemNotFound 购物车中不存在该商品
	ErrCartItemNotFound = errors.New("cart item not found")
	// ErrInvalidProduct 商品不可售
	ErrInvalidProduct = errors.New("invalid product")
	// ErrInvalidQuantity 数量越界
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrQuantityLimit 合并后数量超过上限，属于 ErrInvalidQuantity
	ErrQuantityLimit = fmt.Errorf("%w: quantity limit exceeded", ErrInvalidQuantity)
	// ErrCartConflict 购物车冲突：重复创建或并发修改
	ErrCartConflict = errors.New("cart conflict")
	// ErrCatalogUnavailable 商品目录不可用
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrInternal 未识别的内部错误
	ErrInternal = errors.New("internal error")
)

// 错误类别，供调用方做机器判断
const (
	KindInvalidArgument = "invalid_argument"
	KindNotFound        = "not_found"
	KindInvalidProduct  = "invalid_product"
	KindInvalidQuantity = "invalid_quantity"
	KindQuantityLimit   = "quantity_limit"
	KindConflict        = "conflict"
	KindUpstream        = "upstream"
	KindInternal        = "internal"
)

// CartError 带可读信息的购物车错误
// Error 返回面向用户的信息，errors.Is 按哨兵错误匹配
type CartError struct {
	kind    error
	message string
	cause   error
}

func newCartError(kind error, message string) *CartError {
	return &CartError{kind: kind, message: message}
}

func wrapCartError(kind error, message string, cause error) *CartError {
	return &CartError{kind: kind, message: message, cause: cause}
}

// Error 实现 error 接口
func (e *CartError) Error() string {
	return e.message
}

// Unwrap 返回哨兵错误与底层原因
func (e *CartError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// Cause 底层原因，用于日志
func (e *CartError) Cause() error {
	return e.cause
}

// ErrorKind 返回稳定的错误类别
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrCartNotFound), errors.Is(err, ErrCartItemNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidProduct):
		return KindInvalidProduct
	case errors.Is(err, ErrQuantityLimit):
		return KindQuantityLimit
	case errors.Is(err, ErrInvalidQuantity):
		return KindInvalidQuantity
	case errors.Is(err, ErrCartConflict):
		return KindConflict
	case errors.Is(err, ErrCatalogUnavailable):
		return KindUpstream
	default:
		return KindInternal
	}
}

// PublicMessage 返回可展示给用户的信息，内部错误不暴露细节
func PublicMessage(err error) string {
	var cartErr *CartError
	if errors.As(err, &cartErr) && !errors.Is(cartErr.kind, ErrInternal) {
		return cartErr.message
	}
	return "Internal error"
}
