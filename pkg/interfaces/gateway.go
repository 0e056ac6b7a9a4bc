package interfaces

import (
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// TokenValidator validates bearer tokens presented to the gateway
type TokenValidator interface {
	ValidateJWT(tokenString string) (*types.UserClaims, error)
	RefreshToken(tokenString string) (*types.AuthToken, error)
}

// RateLimiter applies per-user request limits
type RateLimiter interface {
	Allow(userID string) (bool, error)
	Reset(userID string) error
	GetLimits(userID string) (int, int, error)
}
