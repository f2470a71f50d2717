package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lumen-shop/cart-service/internal/models"
	"github.com/lumen-shop/cart-service/internal/repository"
)

// StoreOracle 读取本地 products 表，用于开发与单机部署
type StoreOracle struct {
	repo         repository.ProductRepository
	activeStatus string
}

// NewStoreOracle 创建本地目录
func NewStoreOracle(repo repository.ProductRepository, activeStatus string) *StoreOracle {
	activeStatus = strings.TrimSpace(activeStatus)
	if activeStatus == "" {
		activeStatus = DefaultActiveStatus
	}
	return &StoreOracle{repo: repo, activeStatus: activeStatus}
}

// GetProduct 查询商品
func (o *StoreOracle) GetProduct(ctx context.Context, ref string) (*Product, error) {
	product, err := o.repo.GetByRef(ctx, normalizeRef(ref))
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fromModel(product), nil
}

// CheckAvailability 校验商品是否可售
func (o *StoreOracle) CheckAvailability(ctx context.Context, ref string) (Availability, error) {
	return checkAvailability(ctx, o, ref, o.activeStatus)
}

// ValidateMany 批量校验，一次查询后按入参顺序组装
func (o *StoreOracle) ValidateMany(ctx context.Context, refs []string) ([]Availability, error) {
	results := make([]Availability, len(refs))
	if len(refs) == 0 {
		return results, nil
	}
	products, err := o.repo.ListByRefs(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	byRef := make(map[string]*models.Product, len(products))
	for idx := range products {
		byRef[products[idx].Ref] = &products[idx]
	}
	for idx, ref := range refs {
		product, ok := byRef[ref]
		if !ok {
			results[idx] = Availability{ProductRef: ref, Reason: "Product not found"}
			continue
		}
		results[idx] = evaluate(ref, fromModel(product), o.activeStatus)
	}
	return results, nil
}

func fromModel(product *models.Product) *Product {
	images := make([]string, len(product.Images))
	copy(images, product.Images)
	return &Product{
		ID:     product.Ref,
		Name:   product.Name,
		Price:  product.PriceAmount,
		Status: product.Status,
		Images: images,
		SKU:    product.SKU,
	}
}
