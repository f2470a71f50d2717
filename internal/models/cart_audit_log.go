package models

import "time"

// CartAuditLog 后台购物车操作审计日志
// 说明：记录管理员对用户购物车的清空、校验、过期清理等操作。
type CartAuditLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	OperatorID string    `gorm:"type:varchar(64);index;not null" json:"operator_id"`
	Owner      string    `gorm:"type:varchar(64);index;not null;default:''" json:"user_id"`
	Action     string    `gorm:"type:varchar(64);index;not null" json:"action"`
	RequestID  string    `gorm:"type:varchar(64);index;not null;default:''" json:"request_id"`
	DetailJSON JSON      `gorm:"type:json" json:"detail"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (CartAuditLog) TableName() string {
	return "cart_audit_logs"
}
