package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/model"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// Claims JWT 声明
// 身份服务签发，携带参与者的展示信息与角色
type Claims struct {
	UserID      int64      `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Role        model.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService JWT 服务
type TokenService struct {
	secretKey []byte
	expire    time.Duration
}

// NewTokenService 创建 JWT 服务
func NewTokenService(secretKey string, expire time.Duration) *TokenService {
	return &TokenService{
		secretKey: []byte(secretKey),
		expire:    expire,
	}
}

// Generate 为参与者签发 Token
func (s *TokenService) Generate(p model.Principal) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:      p.ID,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expire)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "learniverse-dm",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// Validate 验证 Token 并返回声明
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if !claims.Role.Valid() {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
