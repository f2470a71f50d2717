package catalog

import (
	"context"
	"fmt"
	"sync"
)

// MemoryOracle 进程内目录，catalog.driver=memory 时使用，也供测试注入
type MemoryOracle struct {
	mu           sync.RWMutex
	products     map[string]Product
	failures     map[string]error
	activeStatus string
}

// NewMemoryOracle 创建进程内目录
func NewMemoryOracle(products ...Product) *MemoryOracle {
	oracle := &MemoryOracle{
		products:     make(map[string]Product, len(products)),
		failures:     make(map[string]error),
		activeStatus: DefaultActiveStatus,
	}
	for _, product := range products {
		oracle.Put(product)
	}
	return oracle
}

// Put 写入或覆盖商品
func (o *MemoryOracle) Put(product Product) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.products[product.ID] = product
}

// Remove 删除商品
func (o *MemoryOracle) Remove(ref string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.products, ref)
}

// Fail 令指定商品查询返回传输错误，err 为 nil 时清除
func (o *MemoryOracle) Fail(ref string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		delete(o.failures, ref)
		return
	}
	o.failures[ref] = err
}

// GetProduct 查询商品
func (o *MemoryOracle) GetProduct(ctx context.Context, ref string) (*Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if err, ok := o.failures[ref]; ok {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	product, ok := o.products[ref]
	if !ok {
		return nil, ErrProductNotFound
	}
	images := make([]string, len(product.Images))
	copy(images, product.Images)
	product.Images = images
	return &product, nil
}

// CheckAvailability 校验商品是否可售
func (o *MemoryOracle) CheckAvailability(ctx context.Context, ref string) (Availability, error) {
	return checkAvailability(ctx, o, ref, o.activeStatus)
}

// ValidateMany 批量校验
func (o *MemoryOracle) ValidateMany(ctx context.Context, refs []string) ([]Availability, error) {
	return validateMany(ctx, o, refs, o.activeStatus)
}
