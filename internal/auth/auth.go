package auth

import (
	"fmt"
	"net/http"
	"strconv"

	"storefront/internal/models"
)

// Roles recognized by the admin surface.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Identity is the resolved caller: who they are and what they may do.
type Identity struct {
	UserID int64
	Role   string
}

// IsAdmin reports whether the identity may use the admin surface.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// Provider resolves the caller's identity from a request. Authentication
// itself lives outside this service; implementations translate whatever the
// upstream auth layer attaches to the request.
type Provider interface {
	Authenticate(r *http.Request) (Identity, error)
}

// HeaderProvider trusts identity headers set by the API gateway in front of
// this service. X-User-ID carries the numeric user id, X-User-Role the role.
type HeaderProvider struct{}

// NewHeaderProvider creates a gateway-trusted header identity provider.
func NewHeaderProvider() *HeaderProvider {
	return &HeaderProvider{}
}

// Authenticate resolves the identity from the gateway headers.
func (p *HeaderProvider) Authenticate(r *http.Request) (Identity, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return Identity{}, models.ErrUnauthenticated
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("malformed user id header: %w", models.ErrUnauthenticated)
	}

	role := r.Header.Get("X-User-Role")
	if role == "" {
		role = RoleCustomer
	}

	return Identity{UserID: userID, Role: role}, nil
}
