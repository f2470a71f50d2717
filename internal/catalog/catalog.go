// Package catalog 提供购物车依赖的商品目录能力：商品查询与可售校验。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lumen-shop/cart-service/internal/models"

	"golang.org/x/sync/errgroup"
)

// DefaultActiveStatus 可售状态
const DefaultActiveStatus = "active"

const validateConcurrency = 8

var (
	// ErrProductNotFound 商品不存在
	ErrProductNotFound = errors.New("product not found")
	// ErrUnavailable 目录服务不可用（超时、5xx、响应格式错误）
	ErrUnavailable = errors.New("catalog unavailable")
)

// Product 目录中的商品事实
type Product struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Price  models.Money `json:"price"`
	Status string       `json:"status"`
	Images []string     `json:"images"`
	SKU    string       `json:"sku"`
}

// PrimaryImage 首图，无图返回空串
func (p *Product) PrimaryImage() string {
	if p == nil || len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Snapshot 生成购物车项的展示快照
func (p *Product) Snapshot() models.ProductSnapshot {
	if p == nil {
		return models.ProductSnapshot{}
	}
	return models.ProductSnapshot{
		Name:   p.Name,
		Image:  p.PrimaryImage(),
		SKU:    p.SKU,
		Status: p.Status,
	}
}

// Availability 可售校验结果
type Availability struct {
	ProductRef string   `json:"product_id"`
	Available  bool     `json:"available"`
	Product    *Product `json:"product,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// Oracle 商品目录，价格、状态、名称、图片、SKU 以其为准
type Oracle interface {
	// GetProduct 查询商品，不存在返回 ErrProductNotFound
	GetProduct(ctx context.Context, ref string) (*Product, error)
	// CheckAvailability 校验商品是否可售；商品不存在视为不可售，仅传输失败返回 error
	CheckAvailability(ctx context.Context, ref string) (Availability, error)
	// ValidateMany 批量校验，结果与入参一一对应且保持顺序
	ValidateMany(ctx context.Context, refs []string) ([]Availability, error)
}

type productGetter interface {
	GetProduct(ctx context.Context, ref string) (*Product, error)
}

// evaluate 按商品状态判断是否可售
func evaluate(ref string, product *Product, activeStatus string) Availability {
	if activeStatus == "" {
		activeStatus = DefaultActiveStatus
	}
	result := Availability{ProductRef: ref, Product: product}
	if product.Status == activeStatus {
		result.Available = true
		return result
	}
	result.Reason = fmt.Sprintf("Product is %s", product.Status)
	return result
}

func checkAvailability(ctx context.Context, getter productGetter, ref, activeStatus string) (Availability, error) {
	product, err := getter.GetProduct(ctx, ref)
	if errors.Is(err, ErrProductNotFound) {
		return Availability{ProductRef: ref, Reason: "Product not found"}, nil
	}
	if err != nil {
		return Availability{ProductRef: ref}, err
	}
	return evaluate(ref, product, activeStatus), nil
}

// validateMany 并发校验并保持入参顺序，任一传输失败即整体失败
func validateMany(ctx context.Context, getter productGetter, refs []string, activeStatus string) ([]Availability, error) {
	results := make([]Availability, len(refs))
	if len(refs) == 0 {
		return results, nil
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(validateConcurrency)
	for idx, ref := range refs {
		group.Go(func() error {
			availability, err := checkAvailability(groupCtx, getter, ref, activeStatus)
			if err != nil {
				return err
			}
			results[idx] = availability
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func normalizeRef(ref string) string {
	return strings.TrimSpace(ref)
}
