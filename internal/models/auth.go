package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates the platform roles carried in token claims.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// JWTClaims represents the token payload minted by the identity platform.
// This service only validates tokens; it never issues them.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	SchoolID string   `json:"school_id"`
	Role     UserRole `json:"role"`
	jwt.RegisteredClaims
}
