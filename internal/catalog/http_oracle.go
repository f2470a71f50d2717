package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lumen-shop/cart-service/internal/logger"
	"github.com/lumen-shop/cart-service/internal/models"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

const maxResponseBytes = 1 << 20

// HTTPOptions 商品服务客户端配置
type HTTPOptions struct {
	BaseURL      string
	Timeout      time.Duration
	ActiveStatus string
	HTTPClient   *http.Client
}

// HTTPOracle 通过商品服务 HTTP 接口查询商品
type HTTPOracle struct {
	baseURL      string
	activeStatus string
	timeout      time.Duration
	client       *http.Client
	breaker      *gobreaker.CircuitBreaker[*Product]
	group        singleflight.Group
}

// wireProduct 商品服务返回的商品结构
type wireProduct struct {
	ID      string       `json:"id"`
	MongoID string       `json:"_id"`
	Name    string       `json:"name"`
	Price   models.Money `json:"price"`
	Status  string       `json:"status"`
	Images  []string     `json:"images"`
	SKU     string       `json:"sku"`
}

type productEnvelope struct {
	Data *wireProduct `json:"data"`
}

// NewHTTPOracle 创建商品服务客户端
func NewHTTPOracle(opts HTTPOptions) (*HTTPOracle, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("catalog base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid catalog base url: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	activeStatus := strings.TrimSpace(opts.ActiveStatus)
	if activeStatus == "" {
		activeStatus = DefaultActiveStatus
	}

	oracle := &HTTPOracle{
		baseURL:      base,
		activeStatus: activeStatus,
		timeout:      timeout,
		client:       client,
	}
	oracle.breaker = gobreaker.NewCircuitBreaker[*Product](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 商品不存在属于正常业务结果，调用方取消也不代表上游故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProductNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("catalog_breaker_state_changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return oracle, nil
}

// GetProduct 查询商品，并发的相同查询合并为一次请求
// 合并后的请求不继承单个调用方的取消，只受客户端超时约束；调用方各自等待自己的 ctx
func (o *HTTPOracle) GetProduct(ctx context.Context, ref string) (*Product, error) {
	ref = normalizeRef(ref)
	if ref == "" {
		return nil, ErrProductNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shared := context.WithoutCancel(ctx)
	ch := o.group.DoChan(ref, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(shared, o.timeout)
		defer cancel()
		return o.breaker.Execute(func() (*Product, error) {
			return o.fetch(fetchCtx, ref)
		})
	})

	var result singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result = <-ch:
	}
	value, err := result.Val, result.Err
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	product := *value.(*Product)
	return &product, nil
}

// CheckAvailability 校验商品是否可售
func (o *HTTPOracle) CheckAvailability(ctx context.Context, ref string) (Availability, error) {
	return checkAvailability(ctx, o, ref, o.activeStatus)
}

// ValidateMany 批量校验
func (o *HTTPOracle) ValidateMany(ctx context.Context, refs []string) ([]Availability, error) {
	return validateMany(ctx, o, refs, o.activeStatus)
}

func (o *HTTPOracle) fetch(ctx context.Context, ref string) (*Product, error) {
	endpoint := o.baseURL + "/api/products/" + url.PathEscape(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		logger.Warnw("catalog_request_failed", "product_id", ref, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warnw("catalog_request_unexpected_status", "product_id", ref, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var envelope productEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("%w: empty product payload", ErrUnavailable)
	}
	wire := envelope.Data
	if wire.Price.IsNegative() {
		return nil, fmt.Errorf("%w: negative price for product %s", ErrUnavailable, ref)
	}
	id := wire.ID
	if id == "" {
		id = wire.MongoID
	}
	if id == "" {
		id = ref
	}
	return &Product{
		ID:     id,
		Name:   wire.Name,
		Price:  wire.Price,
		Status: wire.Status,
		Images: wire.Images,
		SKU:    wire.SKU,
	}, nil
}
