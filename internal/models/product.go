package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 本地商品目录，开发环境下作为购物车的商品数据源
type Product struct {
	ID          uint           `gorm:"primarykey" json:"-"`                                            // 主键
	Ref         string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"id"`                // 对外商品标识
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`                         // 名称
	SKU         string         `gorm:"type:varchar(100);index" json:"sku"`                             // SKU
	PriceAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"`             // 价格
	Images      StringArray    `gorm:"type:json" json:"images"`                                        // 图片数组
	Status      string         `gorm:"type:varchar(20);not null;default:'active';index" json:"status"` // 生命周期状态
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                                        // 创建时间
	UpdatedAt   time.Time      `json:"updated_at"`                                                     // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                                 // 软删除时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// PrimaryImage 首图，无图返回空串
func (p *Product) PrimaryImage() string {
	if p == nil || len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
