package repository

// CartListFilter 管理端查询购物车的过滤条件
type CartListFilter struct {
	Page           int
	PageSize       int
	Owner          string
	OnlyNonEmpty   bool
	IncludeExpired bool
}

// CartAuditLogListFilter 查询购物车审计日志的过滤条件
type CartAuditLogListFilter struct {
	Page       int
	PageSize   int
	OperatorID string
	Owner      string
	Action     string
}
