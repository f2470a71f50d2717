package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lumen-shop/cart-service/internal/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type snapshotDocument struct {
	Name   string `bson:"name"`
	Image  string `bson:"image"`
	SKU    string `bson:"sku"`
	Status string `bson:"status"`
}

type cartItemDocument struct {
	ProductRef string           `bson:"product_id"`
	Quantity   int              `bson:"quantity"`
	UnitPrice  bson.Decimal128  `bson:"unit_price"`
	Snapshot   snapshotDocument `bson:"snapshot"`
	AddedAt    time.Time        `bson:"added_at"`
}

type cartDocument struct {
	ID           bson.ObjectID      `bson:"_id,omitempty"`
	Owner        string             `bson:"user_id"`
	Items        []cartItemDocument `bson:"items"`
	TotalItems   int                `bson:"total_items"`
	TotalAmount  bson.Decimal128    `bson:"total_amount"`
	LastModified time.Time          `bson:"last_modified"`
	ExpiresAt    time.Time          `bson:"expires_at"`
	Version      int64              `bson:"version"`
	CreatedAt    time.Time          `bson:"created_at"`
}

// MongoCartRepository MongoDB 实现，过期由 expires_at 上的 TTL 索引回收
type MongoCartRepository struct {
	collection *mongo.Collection
	ttl        time.Duration
	now        Clock
}

// ConnectMongo 建立 MongoDB 连接并校验可用性
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb failed: %w", err)
	}
	return client, nil
}

// NewMongoCartRepository 创建 MongoDB 购物车仓库
func NewMongoCartRepository(db *mongo.Database, collection string, ttl time.Duration) *MongoCartRepository {
	if strings.TrimSpace(collection) == "" {
		collection = "carts"
	}
	return &MongoCartRepository{
		collection: db.Collection(collection),
		ttl:        ttl,
		now:        time.Now,
	}
}

// WithClock 替换时间来源
func (r *MongoCartRepository) WithClock(now Clock) *MongoCartRepository {
	if now == nil {
		return r
	}
	return &MongoCartRepository{collection: r.collection, ttl: r.ttl, now: now}
}

// EnsureIndexes 创建用户唯一索引与过期 TTL 索引
func (r *MongoCartRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_cart_user_unique"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_cart_expires_ttl"),
		},
		{
			Keys:    bson.D{{Key: "last_modified", Value: -1}},
			Options: options.Index().SetName("idx_cart_last_modified"),
		},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create cart indexes failed: %w", err)
	}
	return nil
}

// Load 读取购物车
func (r *MongoCartRepository) Load(ctx context.Context, owner string) (*models.Cart, error) {
	var doc cartDocument
	err := r.collection.FindOne(ctx, bson.M{"user_id": owner}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cart failed: %w", err)
	}
	cart, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	// TTL 监视器按分钟粒度回收，读取时先按过期处理
	if cart.IsExpired(r.now()) {
		return nil, ErrCartNotFound
	}
	return cart, nil
}

// CreateEmpty 创建空购物车
func (r *MongoCartRepository) CreateEmpty(ctx context.Context, owner string) (*models.Cart, error) {
	now := r.now()
	if _, err := r.collection.DeleteOne(ctx, bson.M{"user_id": owner, "expires_at": bson.M{"$lte": now}}); err != nil {
		return nil, fmt.Errorf("drop expired cart failed: %w", err)
	}

	cart := models.NewCart(owner, now, r.ttl)
	doc, err := newCartDocument(cart)
	if err != nil {
		return nil, err
	}
	_, err = r.collection.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrCartExists
	}
	if err != nil {
		return nil, fmt.Errorf("create cart failed: %w", err)
	}
	return cart, nil
}

// Persist 重算派生字段并按版本号写回
func (r *MongoCartRepository) Persist(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart == nil {
		return nil, ErrCartNotFound
	}
	next := cart.Clone()
	next.Recompute(r.now(), r.ttl)
	next.Version = cart.Version + 1

	doc, err := newCartDocument(next)
	if err != nil {
		return nil, err
	}
	update := bson.M{"$set": bson.M{
		"items":         doc.Items,
		"total_items":   doc.TotalItems,
		"total_amount":  doc.TotalAmount,
		"last_modified": doc.LastModified,
		"expires_at":    doc.ExpiresAt,
		"version":       doc.Version,
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"user_id": cart.Owner, "version": cart.Version}, update)
	if err != nil {
		return nil, fmt.Errorf("persist cart failed: %w", err)
	}
	if result.MatchedCount > 0 {
		return next, nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": cart.Owner})
	if err != nil {
		return nil, fmt.Errorf("count cart failed: %w", err)
	}
	if count == 0 {
		return nil, ErrCartNotFound
	}
	return nil, ErrVersionConflict
}

// PurgeExpired 删除过期购物车，TTL 索引之外的兜底清理
func (r *MongoCartRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, fmt.Errorf("purge expired carts failed: %w", err)
	}
	return result.DeletedCount, nil
}

// List 管理端分页查询，按最近修改倒序
func (r *MongoCartRepository) List(ctx context.Context, filter CartListFilter) ([]models.Cart, int64, error) {
	query := bson.M{}
	if owner := strings.TrimSpace(filter.Owner); owner != "" {
		query["user_id"] = bson.M{"$regex": bson.Regex{Pattern: regexp.QuoteMeta(owner), Options: "i"}}
	}
	if filter.OnlyNonEmpty {
		query["total_items"] = bson.M{"$gt": 0}
	}
	if !filter.IncludeExpired {
		query["expires_at"] = bson.M{"$gt": r.now()}
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count carts failed: %w", err)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "last_modified", Value: -1}})
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		findOpts.SetSkip(int64((page - 1) * filter.PageSize)).SetLimit(int64(filter.PageSize))
	}
	cursor, err := r.collection.Find(ctx, query, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("list carts failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []cartDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode carts failed: %w", err)
	}
	carts := make([]models.Cart, 0, len(docs))
	for _, doc := range docs {
		cart, err := doc.toModel()
		if err != nil {
			return nil, 0, err
		}
		carts = append(carts, *cart)
	}
	return carts, total, nil
}

func newCartDocument(cart *models.Cart) (*cartDocument, error) {
	totalAmount, err := toDecimal128(cart.TotalAmount)
	if err != nil {
		return nil, err
	}
	items := make([]cartItemDocument, 0, len(cart.Items))
	for _, item := range cart.Items {
		unitPrice, err := toDecimal128(item.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, cartItemDocument{
			ProductRef: item.ProductRef,
			Quantity:   item.Quantity,
			UnitPrice:  unitPrice,
			Snapshot: snapshotDocument{
				Name:   item.Snapshot.Name,
				Image:  item.Snapshot.Image,
				SKU:    item.Snapshot.SKU,
				Status: item.Snapshot.Status,
			},
			AddedAt: item.AddedAt,
		})
	}
	return &cartDocument{
		Owner:        cart.Owner,
		Items:        items,
		TotalItems:   cart.TotalItems,
		TotalAmount:  totalAmount,
		LastModified: cart.LastModified,
		ExpiresAt:    cart.ExpiresAt,
		Version:      cart.Version,
		CreatedAt:    cart.CreatedAt,
	}, nil
}

func (d cartDocument) toModel() (*models.Cart, error) {
	totalAmount, err := fromDecimal128(d.TotalAmount)
	if err != nil {
		return nil, err
	}
	items := make(models.CartItems, 0, len(d.Items))
	for _, item := range d.Items {
		unitPrice, err := fromDecimal128(item.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, models.CartItem{
			ProductRef: item.ProductRef,
			Quantity:   item.Quantity,
			UnitPrice:  unitPrice,
			Snapshot: models.ProductSnapshot{
				Name:   item.Snapshot.Name,
				Image:  item.Snapshot.Image,
				SKU:    item.Snapshot.SKU,
				Status: item.Snapshot.Status,
			},
			AddedAt: item.AddedAt,
		})
	}
	return &models.Cart{
		Owner:        d.Owner,
		Items:        items,
		TotalItems:   d.TotalItems,
		TotalAmount:  totalAmount,
		LastModified: d.LastModified,
		ExpiresAt:    d.ExpiresAt,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt,
	}, nil
}

func toDecimal128(amount models.Money) (bson.Decimal128, error) {
	value, err := bson.ParseDecimal128(amount.String())
	if err != nil {
		return bson.Decimal128{}, fmt.Errorf("encode amount %s failed: %w", amount.String(), err)
	}
	return value, nil
}

func fromDecimal128(value bson.Decimal128) (models.Money, error) {
	if value.IsZero() {
		return models.NewMoneyFromDecimal(decimal.Zero), nil
	}
	amount, err := decimal.NewFromString(value.String())
	if err != nil {
		return models.Money{}, fmt.Errorf("decode amount %s failed: %w", value.String(), err)
	}
	return models.NewMoneyFromDecimal(amount), nil
}
