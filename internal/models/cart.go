package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProductSnapshot 加购时冗余的商品展示字段
type ProductSnapshot struct {
	Name   string `json:"name"`
	Image  string `json:"image"`
	SKU    string `json:"sku"`
	Status string `json:"status"`
}

// CartItem 购物车项，内嵌于 Cart，无独立主键
type CartItem struct {
	ProductRef string          `json:"product_id"` // 商品引用
	Quantity   int             `json:"quantity"`   // 数量（1-99）
	UnitPrice  Money           `json:"unit_price"` // 加购或最近一次校准时的单价
	Snapshot   ProductSnapshot `json:"snapshot"`   // 商品快照
	AddedAt    time.Time       `json:"added_at"`   // 加入时间
}

// Subtotal 小计
func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartItems 按加入顺序排列的购物车项，以 JSON 列存储
type CartItems []CartItem

// Value 实现 driver.Valuer 接口
func (items CartItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (items *CartItems) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*items = CartItems{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported cart items column type %T", value)
	}
	if len(raw) == 0 {
		*items = CartItems{}
		return nil
	}
	var decoded CartItems
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	if decoded == nil {
		decoded = CartItems{}
	}
	*items = decoded
	return nil
}

// Cart 用户购物车，每个用户至多一条
type Cart struct {
	ID           uint      `gorm:"primarykey" json:"-"`                                              // 主键
	Owner        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"`             // 所属用户
	Items        CartItems `gorm:"type:text;not null" json:"items"`                                  // 购物车项
	TotalItems   int       `gorm:"not null;default:0" json:"total_items"`                            // 商品总件数（派生）
	TotalAmount  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`        // 总金额（派生）
	LastModified time.Time `gorm:"index" json:"last_modified"`                                       // 最近修改时间
	ExpiresAt    time.Time `gorm:"index" json:"expires_at"`                                          // 过期时间
	Version      int64     `gorm:"not null;default:0" json:"-"`                                      // 乐观锁版本
	CreatedAt    time.Time `json:"created_at"`                                                       // 创建时间
}

// TableName 指定表名
func (Cart) TableName() string {
	return "carts"
}

// NewCart 创建空购物车
func NewCart(owner string, now time.Time, ttl time.Duration) *Cart {
	cart := &Cart{
		Owner:     owner,
		Items:     CartItems{},
		CreatedAt: now,
	}
	cart.Recompute(now, ttl)
	return cart
}

// Recompute 重新计算派生字段，并刷新修改时间与过期时间
func (c *Cart) Recompute(now time.Time, ttl time.Duration) {
	totalItems := 0
	totalAmount := decimal.Zero
	for _, item := range c.Items {
		totalItems += item.Quantity
		totalAmount = totalAmount.Add(item.Subtotal())
	}
	if c.Items == nil {
		c.Items = CartItems{}
	}
	c.TotalItems = totalItems
	c.TotalAmount = NewMoneyFromDecimal(totalAmount)
	c.LastModified = now
	c.ExpiresAt = now.Add(ttl)
}

// FindItem 返回商品在购物车中的下标，不存在返回 -1
func (c *Cart) FindItem(productRef string) int {
	for idx := range c.Items {
		if c.Items[idx].ProductRef == productRef {
			return idx
		}
	}
	return -1
}

// RemoveItem 移除商品，返回是否存在
func (c *Cart) RemoveItem(productRef string) bool {
	idx := c.FindItem(productRef)
	if idx < 0 {
		return false
	}
	c.Items = append(c.Items[:idx:idx], c.Items[idx+1:]...)
	return true
}

// IsEmpty 是否为空
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// IsExpired 是否已过期
func (c *Cart) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Clone 深拷贝，修改副本不会影响原购物车
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cloned := *c
	cloned.Items = make(CartItems, len(c.Items))
	copy(cloned.Items, c.Items)
	return &cloned
}
