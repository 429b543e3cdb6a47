package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload issued by the identity service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	BranchID string   `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

// Scope identifies who performs an operation and which branch it is confined to.
// An empty BranchID means the actor may see every branch.
type Scope struct {
	ActorID  string
	Role     UserRole
	BranchID string
}

// ScopeFromClaims builds a scope from verified token claims.
func ScopeFromClaims(claims *JWTClaims) Scope {
	if claims == nil {
		return Scope{}
	}
	scope := Scope{ActorID: claims.UserID, Role: claims.Role, BranchID: claims.BranchID}
	if claims.Role == RoleSuperAdmin {
		scope.BranchID = ""
	}
	return scope
}

// Allows reports whether a record owned by branchID is visible within the scope.
func (s Scope) Allows(branchID string) bool {
	return s.BranchID == "" || s.BranchID == branchID
}

// Actor returns the actor id as a nullable column value.
func (s Scope) Actor() *string {
	if s.ActorID == "" {
		return nil
	}
	id := s.ActorID
	return &id
}
