package types

import "time"

// UserRole represents the different user roles in the system
type UserRole string

const (
	RolePatient    UserRole = "patient"
	RoleDoctor     UserRole = "doctor"
	RoleStaff      UserRole = "staff"
	RoleAdmin      UserRole = "admin"
	RoleManagement UserRole = "management"
)

// User represents a system user
type User struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	Role      UserRole  `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserClaims represents JWT token claims
type UserClaims struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Role        UserRole `json:"role"`
	Permissions []string `json:"permissions"`
}

// AuthToken represents authentication token response
type AuthToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}
