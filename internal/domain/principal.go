package domain

import "errors"

// Principal is the acting identity supplied by the identity layer.
type Principal struct {
	UserID  string
	Email   string
	Service bool // scheduler or sync process rather than a person
}

// Role is a principal's membership role on one restaurant.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleManager    Role = "manager"
	RoleAccountant Role = "accountant"
	RoleStaff      Role = "staff"
)

var validRoles = map[Role]bool{
	RoleOwner:      true,
	RoleManager:    true,
	RoleAccountant: true,
	RoleStaff:      true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanWrite reports whether the role may mutate the restaurant's books.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleManager || r == RoleAccountant
}

// CanRead reports whether the role may view the restaurant's books.
func (r Role) CanRead() bool {
	return r.IsValid()
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)
