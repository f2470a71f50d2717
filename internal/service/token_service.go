package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid 令牌无效或已过期
	ErrTokenInvalid = errors.New("token invalid")
	// ErrJWTSecretMissing 未配置签名密钥
	ErrJWTSecretMissing = errors.New("jwt secret missing")
)

// UserJWTClaims 用户 JWT 声明，由账户服务签发
type UserJWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Owner 购物车所属人，缺省时使用 sub
func (c *UserJWTClaims) Owner() string {
	if id := strings.TrimSpace(c.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Subject)
}

// AdminJWTClaims 管理员 JWT 声明
type AdminJWTClaims struct {
	AdminID  string   `json:"admin_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	IsSuper  bool     `json:"is_super,omitempty"`
	jwt.RegisteredClaims
}

// TokenService HS256 令牌签发与校验
type TokenService struct {
	userSecret  string
	adminSecret string
}

// NewTokenService 创建令牌服务
func NewTokenService(userSecret, adminSecret string) *TokenService {
	return &TokenService{userSecret: userSecret, adminSecret: adminSecret}
}

// IssueUserToken 签发用户令牌，供联调与测试使用
func (s *TokenService) IssueUserToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := UserJWTClaims{
		UserID: strings.TrimSpace(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.TrimSpace(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return sign(claims, s.userSecret)
}

// IssueAdminToken 签发管理员令牌
func (s *TokenService) IssueAdminToken(adminID, username string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminJWTClaims{
		AdminID:  strings.TrimSpace(adminID),
		Username: strings.TrimSpace(username),
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.TrimSpace(adminID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return sign(claims, s.adminSecret)
}

// ParseUserToken 校验用户令牌
func (s *TokenService) ParseUserToken(tokenString string) (*UserJWTClaims, error) {
	claims := &UserJWTClaims{}
	if err := parse(tokenString, s.userSecret, claims); err != nil {
		return nil, err
	}
	if claims.Owner() == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseAdminToken 校验管理员令牌
func (s *TokenService) ParseAdminToken(tokenString string) (*AdminJWTClaims, error) {
	claims := &AdminJWTClaims{}
	if err := parse(tokenString, s.adminSecret, claims); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.AdminID) == "" {
		claims.AdminID = strings.TrimSpace(claims.Subject)
	}
	if claims.AdminID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func sign(claims jwt.Claims, secret string) (string, error) {
	if secret == "" {
		return "", ErrJWTSecretMissing
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parse(tokenString, secret string, claims jwt.Claims) error {
	if secret == "" {
		return ErrJWTSecretMissing
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
