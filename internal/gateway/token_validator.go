package gateway

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// TokenValidator implements JWT token validation
type TokenValidator struct {
	secret   []byte
	issuer   string
	audience string
	tokenTTL time.Duration
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(cfg *config.JWTConfig) *TokenValidator {
	ttl := time.Duration(cfg.AccessTokenTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenValidator{
		secret:   []byte(cfg.SecretKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		tokenTTL: ttl,
	}
}

// ValidateJWT validates a JWT token and returns user claims
func (tv *TokenValidator) ValidateJWT(tokenString string) (*types.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, fmt.Errorf("token expired")
	}

	return &types.UserClaims{
		UserID:      claims.UserID,
		Username:    claims.Username,
		Role:        types.UserRole(claims.Role),
		Permissions: claims.Permissions,
	}, nil
}

// RefreshToken issues a new token carrying the same claims as a still-valid
// existing token
func (tv *TokenValidator) RefreshToken(tokenString string) (*types.AuthToken, error) {
	claims, err := tv.ValidateJWT(tokenString)
	if err != nil {
		return nil, fmt.Errorf("cannot refresh invalid token: %w", err)
	}

	return tv.GenerateToken(claims)
}

// GenerateToken signs a new JWT for the given claims
func (tv *TokenValidator) GenerateToken(claims *types.UserClaims) (*types.AuthToken, error) {
	now := time.Now()
	expirationTime := now.Add(tv.tokenTTL)

	jwtClaims := &JWTClaims{
		UserID:      claims.UserID,
		Username:    claims.Username,
		Role:        string(claims.Role),
		Permissions: claims.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tv.issuer,
			Audience:  jwt.ClaimStrings{tv.audience},
			Subject:   claims.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims)
	tokenString, err := token.SignedString(tv.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &types.AuthToken{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresIn:   int64(tv.tokenTTL.Seconds()),
		IssuedAt:    now,
	}, nil
}
