package constants

// 商品状态常量
const (
	ProductStatusActive       = "active"
	ProductStatusInactive     = "inactive"
	ProductStatusDiscontinued = "discontinued"
)

// 目录驱动
const (
	CatalogDriverHTTP   = "http"
	CatalogDriverDB     = "db"
	CatalogDriverMemory = "memory"
)

// 存储驱动
const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverMongo    = "mongo"
)

// 队列与任务常量
const (
	QueueDefault          = "default"
	QueueCritical         = "critical"
	TaskCartPurgeExpired  = "cart:purge_expired"
	TaskCartClear         = "cart:clear"
	PurgeExpiredUniqueTTL = 10 * 60
)

// 幂等作用域
const (
	IdempotencyScopeCartAdd     = "cart_add"
	IdempotencyScopeCartBulkAdd = "cart_bulk_add"
)
