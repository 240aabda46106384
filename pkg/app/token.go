package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// 默认 Token 签发者
const DefaultTokenIssuer = "evidence-board-service"

const actorContextKey = "actor_token"

// TokenConfig 定义 Token 管理器的配置
type TokenConfig struct {
	SecretKey string        `yaml:"secret-key"` // JWT 签名密钥
	Expiry    time.Duration `yaml:"expiry"`     // Token 过期时间，默认 7 天
	Issuer    string        `yaml:"issuer"`     // Token 签发者
}

// TokenManager 定义 Token 管理接口
type TokenManager interface {
	Generate(actor ActorEntity) (string, error)
	Parse(token string) (*ActorEntity, error)
	Validate(token string) error
}

type tokenManager struct {
	config TokenConfig
}

// NewTokenManager 创建一个新的 TokenManager 实例
func NewTokenManager(cfg TokenConfig) TokenManager {
	if cfg.Expiry == 0 {
		cfg.Expiry = 7 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultTokenIssuer
	}
	return &tokenManager{config: cfg}
}

// ActorEntity the board participant carried in the JWT.
// Role is the role name ("player", "gamemaster", ...); mapping to a domain role is the caller's job.
type ActorEntity struct {
	ActorID string `json:"aid"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Color   string `json:"color,omitempty"`
	jwt.RegisteredClaims
}

// Generate 生成一个新的 JWT Token
func (t *tokenManager) Generate(actor ActorEntity) (string, error) {
	if actor.ActorID == "" {
		return "", fmt.Errorf("empty actor id")
	}
	now := time.Now()
	claims := &ActorEntity{
		ActorID: actor.ActorID,
		Name:    actor.Name,
		Role:    actor.Role,
		Color:   actor.Color,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    t.config.Issuer,
			Subject:   "actor-token",
			ID:        actor.ActorID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(t.config.SecretKey))
}

// Parse 解析 JWT Token 并返回参与者信息
func (t *tokenManager) Parse(token string) (*ActorEntity, error) {
	return ParseTokenWithKey(token, t.config.SecretKey, t.config.Issuer)
}

// Validate 验证 Token 是否有效
func (t *tokenManager) Validate(token string) error {
	_, err := t.Parse(token)
	return err
}

// ParseTokenWithKey 使用指定密钥解析 Token；issuer 为空时不校验签发者
func ParseTokenWithKey(tokenString, secretKey, issuer string) (*ActorEntity, error) {
	claims := &ActorEntity{}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(tokenString, "Bearer "), claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.ActorID == "" {
		return nil, fmt.Errorf("token carries no actor")
	}
	return claims, nil
}

// SetActorToContext 解析 Token 并写入 gin Context
func SetActorToContext(ctx *gin.Context, tm TokenManager, tokenString string) error {
	actor, err := tm.Parse(tokenString)
	if err != nil {
		return err
	}
	ctx.Set(actorContextKey, actor)
	return nil
}

// GetActor extracts the authorized actor from the request context.
func GetActor(ctx *gin.Context) *ActorEntity {
	v, ok := ctx.Get(actorContextKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*ActorEntity)
	return actor
}
