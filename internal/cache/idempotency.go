package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrIdempotencyKeyReused 同一幂等键对应了不同的请求体
var ErrIdempotencyKeyReused = errors.New("idempotency key reused with different payload")

// IdempotencyRecord 已完成请求的响应快照
type IdempotencyRecord struct {
	Fingerprint string          `json:"fingerprint"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   int64           `json:"created_at"`
}

// IdempotencyStore 基于 Redis 的幂等记录，未启用 Redis 时不做任何事
type IdempotencyStore struct {
	ttl time.Duration
}

// NewIdempotencyStore 创建幂等记录存储
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &IdempotencyStore{ttl: ttl}
}

// Fingerprint 计算请求体摘要
func Fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func idempotencyKey(scope, owner, key string) string {
	return "idem:" + scope + ":" + owner + ":" + strings.TrimSpace(key)
}

// Lookup 查询已完成的响应；指纹不一致返回 ErrIdempotencyKeyReused
func (s *IdempotencyStore) Lookup(ctx context.Context, scope, owner, key, fingerprint string) (json.RawMessage, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, nil
	}
	var record IdempotencyRecord
	found, err := GetJSON(ctx, idempotencyKey(scope, owner, key), &record)
	if err != nil || !found {
		return nil, false, err
	}
	if record.Fingerprint != fingerprint {
		return nil, false, ErrIdempotencyKeyReused
	}
	return record.Data, true, nil
}

// Save 记录成功响应
func (s *IdempotencyStore) Save(ctx context.Context, scope, owner, key, fingerprint string, data interface{}) error {
	if strings.TrimSpace(key) == "" || !Enabled() {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	record := IdempotencyRecord{
		Fingerprint: fingerprint,
		Data:        raw,
		CreatedAt:   time.Now().Unix(),
	}
	return SetJSON(ctx, idempotencyKey(scope, owner, key), record, s.ttl)
}
