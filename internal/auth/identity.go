package auth

import (
	"errors"
	"slices"
)

// AdminRole grants every app of the catalog
const AdminRole = "administrator"

var (
	// ErrUnauthenticated means the request carried no valid session token
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrUnavailable means the auth backend could not be reached
	ErrUnavailable = errors.New("auth backend unavailable")
)

// Identity is the signed-in officer behind a request
type Identity struct {
	UserID  string   `json:"user_id"`
	Email   string   `json:"email"`
	Roles   []string `json:"roles"`
	IsAdmin bool     `json:"is_admin"`
	Token   string   `json:"-"`
}

// NewIdentity derives IsAdmin from roles
func NewIdentity(userID, email, token string, roles []string) Identity {
	if roles == nil {
		roles = []string{}
	}
	return Identity{
		UserID:  userID,
		Email:   email,
		Roles:   roles,
		IsAdmin: slices.Contains(roles, AdminRole),
		Token:   token,
	}
}

// HasRole reports whether the identity holds role
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}
