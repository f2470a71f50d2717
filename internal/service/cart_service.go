package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumen-shop/cart-service/internal/cache"
	"github.com/lumen-shop/cart-service/internal/catalog"
	"github.com/lumen-shop/cart-service/internal/logger"
	"github.com/lumen-shop/cart-service/internal/models"
	"github.com/lumen-shop/cart-service/internal/repository"
)

const (
	defaultMaxQuantity  = 99
	defaultBulkMaxItems = 10

	// IssueActionRemoved 校验时移除了不可售商品
	IssueActionRemoved = "removed"
	// IssueActionPriceUpdated 校验时更新了单价
	IssueActionPriceUpdated = "price_updated"
	// IssuePriceChanged 价格变化的问题描述
	IssuePriceChanged = "Price changed"
)

// CartOptions 购物车规则
type CartOptions struct {
	MaxQuantity  int
	BulkMaxItems int
}

// CartIssue 显式校验发现的问题
type CartIssue struct {
	ProductRef string        `json:"product_id"`
	Issue      string        `json:"issue"`
	Action     string        `json:"action"`
	OldPrice   *models.Money `json:"old_price,omitempty"`
	NewPrice   *models.Money `json:"new_price,omitempty"`
}

// CartValidation 显式校验结果
type CartValidation struct {
	Valid  bool         `json:"valid"`
	Cart   *models.Cart `json:"cart"`
	Issues []CartIssue  `json:"issues"`
}

// CartSummary 购物车摘要
type CartSummary struct {
	Owner        string       `json:"user_id"`
	TotalItems   int          `json:"total_items"`
	TotalAmount  models.Money `json:"total_amount"`
	ItemCount    int          `json:"item_count"`
	LastModified time.Time    `json:"last_modified"`
	IsEmpty      bool         `json:"is_empty"`
}

// BulkAddItem 批量加购的单项
type BulkAddItem struct {
	ProductRef string
	Quantity   int
}

// BulkAddResult 批量加购单项结果
type BulkAddResult struct {
	ProductRef string `json:"product_id"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Kind       string `json:"error_kind,omitempty"`
}

// BulkAddOutcome 批量加购结果
type BulkAddOutcome struct {
	Cart    *models.Cart    `json:"cart"`
	Results []BulkAddResult `json:"results"`
}

// CartService 购物车引擎，购物车状态唯一的写入方
type CartService struct {
	repo         repository.CartRepository
	oracle       catalog.Oracle
	locker       cache.Locker
	maxQuantity  int
	bulkMaxItems int
	now          func() time.Time
}

// NewCartService 创建购物车服务
func NewCartService(repo repository.CartRepository, oracle catalog.Oracle, locker cache.Locker, opts CartOptions) *CartService {
	if locker == nil {
		locker = cache.NewLocalLocker(0)
	}
	if opts.MaxQuantity <= 0 {
		opts.MaxQuantity = defaultMaxQuantity
	}
	if opts.BulkMaxItems <= 0 {
		opts.BulkMaxItems = defaultBulkMaxItems
	}
	return &CartService{
		repo:         repo,
		oracle:       oracle,
		locker:       locker,
		maxQuantity:  opts.MaxQuantity,
		bulkMaxItems: opts.BulkMaxItems,
		now:          time.Now,
	}
}

// MaxQuantity 单个商品数量上限
func (s *CartService) MaxQuantity() int {
	return s.maxQuantity
}

// BulkMaxItems 批量加购条数上限
func (s *CartService) BulkMaxItems() int {
	return s.bulkMaxItems
}

// GetCart 获取购物车，不存在则创建；有商品时静默剔除不可售商品
func (s *CartService) GetCart(ctx context.Context, owner string) (*models.Cart, error) {
	owner, err := normalizeOwner(owner)
	if err != nil {
		return nil, err
	}
	var result *models.Cart
	err = s.withOwnerLock(ctx, owner, func() error {
		cart, err := s.loadOrCreate(ctx, owner)
		if err != nil {
			return err
		}
		cart, err = s.reconcileAvailability(ctx, cart)
		if err != nil {
			return err
		}
		result = cart
		return nil
	})
	return result, err
}

// AddToCart 加入购物车，已存在时累加数量并刷新单价与快照
func (s *CartService) AddToCart(ctx context.Context, owner, productRef string, quantity int) (*models.Cart, error) {
	owner, err := normalizeOwner(owner)
	if err != nil {
		return nil, err
	}
	productRef, err = normalizeProductRef(productRef)
	if err != nil {
		return nil, err
	}
	if quantity < 1 || quantity > s.maxQuantity {
		return nil, newCartError(ErrInvalidQuantity, fmt.Sprintf("Quantity must be between 1 and %d", s.maxQuantity))
	}

	availability, err := s.checkAvailability(ctx, productRef)
	if err != nil {
		return nil, err
	}
	if !availability.Available {
		return nil, newCartError(ErrInvalidProduct, "Cannot add product to cart: "+availability.Reason)
	}
	product := availability.Product

	var result *models.Cart
	err = s.withOwnerLock(ctx, owner, func() error {
		cart, err := s.loadOrCreate(ctx, owner)
		if err != nil {
			return err
		}
		next := cart.Clone()
		if idx := next.FindItem(productRef); idx >= 0 {
			newQuantity := next.Items[idx].Quantity + quantity
			if newQuantity > s.maxQuantity {
				return newCartError(ErrQuantityLimit, fmt.Sprintf("Cannot add more than %d items of the same product", s.maxQuantity))
			}
			next.Items[idx].Quantity = newQuantity
			next.Items[idx].UnitPrice = product.Price
			next.Items[idx].Snapshot = product.Snapshot()
		} else {
			next.Items = append(next.Items, models.CartItem{
				ProductRef: productRef,
				Quantity:   quantity,
				UnitPrice:  product.Price,
				Snapshot:   product.Snapshot(),
				AddedAt:    s.now(),
			})
		}
		saved, err := s.persist(ctx, next)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	return result, err
}

// UpdateCartItem 设置商品数量，0 表示移除
func (s *CartService) UpdateCartItem(ctx context.Context, owner, productRef string, quantity int) (*models.Cart, error) {
	owner, err := normalizeOwner(owner)
	if err != nil {
		return nil, err
	}
	productRef, err = normalizeProductRef(productRef)
	if err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, newCartError(ErrInvalidQuantity, "Quantity cannot be negative")
	}
	if quantity > s.maxQuantity {
		return nil, newCartError(ErrInvalidQuantity, fmt.Sprintf("Quantity cannot exceed %d", s.maxQuantity))
	}

	var result *models.Cart
	err = s.withOwnerLock(ctx, owner, func() error {
		cart, err := s.loadExisting(ctx, owner)
		if err != nil {
			return err
		}
		idx := cart.FindItem(productRef)
		if idx < 0 {
			return newCartError(ErrCartItemNotFound, "Item not found in cart")
		}

		next := cart.Clone()
		if quantity == 0 {
			next.RemoveItem(productRef)
		} else {
			availability, err := s.checkAvailability(ctx, productRef)
			if err != nil {
				return err
			}
			if !availability.Available {
				return newCartError(ErrInvalidProduct, "Cannot update cart: "+availability.Reason)
			}
			next.Items[idx].Quantity = quantity
			next.Items[idx].Snapshot = availability.Product.Snapshot()
		}
		saved, err := s.persist(ctx, next)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	return result, err
}

// RemoveFromCart 移除商品，商品不在购物车中时不报错
func (s *CartService) RemoveFromCart(ctx context.Context, owner, productRef string) (*models.Cart, error) {
	owner, err := normalizeOwner(owner)
	if err != nil {
		return nil, err
	}
	productRef, err = normalizeProductRef(productRef)
	if err != nil {
		return nil, err
	}

	var result *models.Cart
	err = s.withOwnerLock(ctx, owner, func() error {
		cart, err := s.loadExisting(ctx, owner)
		if err != nil {
			return err
		}
		next := cart.Clone()
		next.RemoveItem(productRef)
		saved, err := s.persist(ctx, next)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	return result, err
}

// ClearCart 清空商品，保留购物车记录
func (s *CartService) ClearCart(ctx context.Context, owner string) (*models.Cart, error) {
	owner, err := normalizeOwner(owner)
	if err != nil {
		return nil, err
	}

	var result *models.Cart
	err = s.withOwnerLock(ctx, owner, func() error {
		cart, err := s.loadExisting(ctx, owner)
		if err != nil {
			return err
		}
		next := cart.Clone()
		next.Items = models.CartItems{}
		saved, err := s.persist(ctx, next)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	return result, err
}

// ValidateCart 显式校验：剔除不可售商品、校准单价，并返回问题列表；购物车不存在时视为有效且不落库
func (s *CartService) ValidateCart(ctx context.Context, owner string) (*CartValidation, error) {
	owner, err := normalizeOwner(owner)
	if err != nil {
		return nil, err
	}

	var result *CartValidation
	err = s.withOwnerLock(ctx, owner, func() error {
		issues := make([]CartIssue, 0)
		cart, err := s.repo.Load(ctx, owner)
		if errors.Is(err, repository.ErrCartNotFound) {
			// 校验不创建购物车
			result = &CartValidation{Valid: true, Cart: nil, Issues: issues}
			return nil
		}
		if err != nil {
			return wrapCartError(ErrInternal, "Internal error", err)
		}
		if cart.IsEmpty() {
			result = &CartValidation{Valid: true, Cart: cart, Issues: issues}
			return nil
		}

		results, err := s.validateItems(ctx, cart)
		if err != nil {
			return err
		}
		next := cart.Clone()
		for _, availability := range results {
			if !availability.Available {
				next.RemoveItem(availability.ProductRef)
				issues = append(issues, CartIssue{
					ProductRef: availability.ProductRef,
					Issue:      availability.Reason,
					Action:     IssueActionRemoved,
				})
				continue
			}
			idx := next.FindItem(availability.ProductRef)
			if idx < 0 {
				continue
			}
			oldPrice := next.Items[idx].UnitPrice
			newPrice := availability.Product.Price
			if oldPrice.Equal(newPrice) {
				continue
			}
			next.Items[idx].UnitPrice = newPrice
			issues = append(issues, CartIssue{
				ProductRef: availability.ProductRef,
				Issue:      IssuePriceChanged,
				Action:     IssueActionPriceUpdated,
				OldPrice:   &oldPrice,
				NewPrice:   &newPrice,
			})
		}

		if len(issues) == 0 {
			result = &CartValidation{Valid: true, Cart: cart, Issues: issues}
			return nil
		}
		saved, err := s.persist(ctx, next)
		if err != nil {
			return err
		}
		logger.Infow("cart_validate_corrected", "user_id", owner, "issues", len(issues))
		result = &CartValidation{Valid: false, Cart: saved, Issues: issues}
		return nil
	})
	return result, err
}

// GetCartSummary 购物车摘要，先执行 GetCart 的校准
func (s *CartService) GetCartSummary(ctx context.Context, owner string) (*CartSummary, error) {
	cart, err := s.GetCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &CartSummary{
		Owner:        cart.Owner,
		TotalItems:   cart.TotalItems,
		TotalAmount:  cart.TotalAmount,
		ItemCount:    len(cart.Items),
		LastModified: cart.LastModified,
		IsEmpty:      cart.IsEmpty(),
	}, nil
}

// BulkAdd 顺序加购多个商品，单项失败不影响其余项
func (s *CartService) BulkAdd(ctx context.Context, owner string, items []BulkAddItem) (*BulkAddOutcome, error) {
	owner, err := normalizeOwner(owner)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 || len(items) > s.bulkMaxItems {
		return nil, newCartError(ErrInvalidArgument, fmt.Sprintf("Items must contain between 1 and %d products", s.bulkMaxItems))
	}
	for idx := range items {
		if strings.TrimSpace(items[idx].ProductRef) == "" {
			return nil, newCartError(ErrInvalidArgument, "Product ID is required")
		}
		if items[idx].Quantity < 1 || items[idx].Quantity > s.maxQuantity {
			return nil, newCartError(ErrInvalidQuantity, fmt.Sprintf("Quantity must be between 1 and %d", s.maxQuantity))
		}
	}

	if _, err := s.GetCart(ctx, owner); err != nil {
		return nil, err
	}

	results := make([]BulkAddResult, 0, len(items))
	for _, item := range items {
		ref := strings.TrimSpace(item.ProductRef)
		if _, err := s.AddToCart(ctx, owner, ref, item.Quantity); err != nil {
			logger.Debugw("cart_bulk_add_item_failed", "user_id", owner, "product_id", ref, "error", err)
			results = append(results, BulkAddResult{
				ProductRef: ref,
				Success:    false,
				Message:    PublicMessage(err),
				Kind:       ErrorKind(err),
			})
			continue
		}
		results = append(results, BulkAddResult{ProductRef: ref, Success: true, Message: "Added successfully"})
	}

	var cart *models.Cart
	err = s.withOwnerLock(ctx, owner, func() error {
		loaded, err := s.loadOrCreate(ctx, owner)
		if err != nil {
			return err
		}
		cart = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BulkAddOutcome{Cart: cart, Results: results}, nil
}

// FindCart 读取已存在的购物车，不创建、不校准
func (s *CartService) FindCart(ctx context.Context, owner string) (*models.Cart, error) {
	owner, err := normalizeOwner(owner)
	if err != nil {
		return nil, err
	}
	return s.loadExisting(ctx, owner)
}

// ListCarts 管理端分页查询
func (s *CartService) ListCarts(ctx context.Context, filter repository.CartListFilter) ([]models.Cart, int64, error) {
	carts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, wrapCartError(ErrInternal, "Internal error", err)
	}
	return carts, total, nil
}

// PurgeExpired 清理过期购物车
func (s *CartService) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := s.repo.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, wrapCartError(ErrInternal, "Internal error", err)
	}
	if purged > 0 {
		logger.Infow("cart_purge_expired", "purged", purged)
	}
	return purged, nil
}

// reconcileAvailability 隐式校准：剔除不可售商品，不检查价格
func (s *CartService) reconcileAvailability(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.IsEmpty() {
		return cart, nil
	}
	results, err := s.validateItems(ctx, cart)
	if err != nil {
		return nil, err
	}
	next := cart.Clone()
	dropped := make([]string, 0)
	for _, availability := range results {
		if availability.Available {
			continue
		}
		if next.RemoveItem(availability.ProductRef) {
			dropped = append(dropped, availability.ProductRef)
		}
	}
	if len(dropped) == 0 {
		return cart, nil
	}
	saved, err := s.persist(ctx, next)
	if err != nil {
		return nil, err
	}
	logger.Infow("cart_reconcile_dropped", "user_id", cart.Owner, "product_ids", dropped)
	return saved, nil
}

func (s *CartService) validateItems(ctx context.Context, cart *models.Cart) ([]catalog.Availability, error) {
	refs := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		refs = append(refs, item.ProductRef)
	}
	results, err := s.oracle.ValidateMany(ctx, refs)
	if err != nil {
		return nil, s.catalogError(err)
	}
	if len(results) != len(refs) {
		return nil, wrapCartError(ErrCatalogUnavailable, "Product catalog is temporarily unavailable",
			fmt.Errorf("validate many returned %d results for %d items", len(results), len(refs)))
	}
	for idx := range results {
		if err := checkAvailabilityShape(results[idx]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *CartService) checkAvailability(ctx context.Context, productRef string) (catalog.Availability, error) {
	availability, err := s.oracle.CheckAvailability(ctx, productRef)
	if err != nil {
		return catalog.Availability{}, s.catalogError(err)
	}
	if err := checkAvailabilityShape(availability); err != nil {
		return catalog.Availability{}, err
	}
	return availability, nil
}

// checkAvailabilityShape 可售结果必须带有价格非负的商品
func checkAvailabilityShape(availability catalog.Availability) error {
	if !availability.Available {
		return nil
	}
	if availability.Product == nil || availability.Product.Price.IsNegative() {
		return wrapCartError(ErrCatalogUnavailable, "Product catalog is temporarily unavailable",
			fmt.Errorf("malformed availability for product %s", availability.ProductRef))
	}
	return nil
}

func (s *CartService) catalogError(err error) error {
	if errors.Is(err, context.Canceled) {
		return wrapCartError(ErrInternal, "Internal error", err)
	}
	logger.Warnw("cart_catalog_unavailable", "error", err)
	return wrapCartError(ErrCatalogUnavailable, "Product catalog is temporarily unavailable", err)
}

func (s *CartService) loadOrCreate(ctx context.Context, owner string) (*models.Cart, error) {
	cart, err := s.repo.Load(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrCartNotFound) {
		return nil, wrapCartError(ErrInternal, "Internal error", err)
	}
	cart, err = s.repo.CreateEmpty(ctx, owner)
	if errors.Is(err, repository.ErrCartExists) {
		// 其他实例先一步创建
		cart, err = s.repo.Load(ctx, owner)
	}
	if err != nil {
		return nil, wrapCartError(ErrInternal, "Internal error", err)
	}
	return cart, nil
}

func (s *CartService) loadExisting(ctx context.Context, owner string) (*models.Cart, error) {
	cart, err := s.repo.Load(ctx, owner)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, newCartError(ErrCartNotFound, "Cart not found")
	}
	if err != nil {
		return nil, wrapCartError(ErrInternal, "Internal error", err)
	}
	return cart, nil
}

func (s *CartService) persist(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	saved, err := s.repo.Persist(ctx, cart)
	switch {
	case err == nil:
		return saved, nil
	case errors.Is(err, repository.ErrVersionConflict):
		logger.Warnw("cart_persist_conflict", "user_id", cart.Owner, "version", cart.Version)
		return nil, wrapCartError(ErrCartConflict, "Cart was modified concurrently, please retry", err)
	case errors.Is(err, repository.ErrCartNotFound):
		return nil, wrapCartError(ErrCartNotFound, "Cart not found", err)
	default:
		return nil, wrapCartError(ErrInternal, "Internal error", err)
	}
}

func (s *CartService) withOwnerLock(ctx context.Context, owner string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, "cart:"+owner)
	if errors.Is(err, cache.ErrLockTimeout) {
		return wrapCartError(ErrCartConflict, "Cart is busy, please retry", err)
	}
	if err != nil {
		return wrapCartError(ErrInternal, "Internal error", err)
	}
	defer unlock()
	return fn()
}

func normalizeOwner(owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", newCartError(ErrInvalidArgument, "User ID is required")
	}
	return owner, nil
}

func normalizeProductRef(productRef string) (string, error) {
	productRef = strings.TrimSpace(productRef)
	if productRef == "" {
		return "", newCartError(ErrInvalidArgument, "Product ID is required")
	}
	return productRef, nil
}
