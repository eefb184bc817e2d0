package auth

import (
	"net/http/httptest"
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderProviderAuthenticate(t *testing.T) {
	p := NewHeaderProvider()

	r := httptest.NewRequest("GET", "/api/v1/cart", nil)
	r.Header.Set("X-User-ID", "42")
	r.Header.Set("X-User-Role", "admin")

	identity, err := p.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, int64(42), identity.UserID)
	assert.Equal(t, RoleAdmin, identity.Role)
	assert.True(t, identity.IsAdmin())
}

func TestHeaderProviderDefaultsToCustomer(t *testing.T) {
	p := NewHeaderProvider()

	r := httptest.NewRequest("GET", "/api/v1/cart", nil)
	r.Header.Set("X-User-ID", "7")

	identity, err := p.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, RoleCustomer, identity.Role)
	assert.False(t, identity.IsAdmin())
}

func TestHeaderProviderRejectsMissingHeader(t *testing.T) {
	p := NewHeaderProvider()

	r := httptest.NewRequest("GET", "/api/v1/cart", nil)

	_, err := p.Authenticate(r)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestHeaderProviderRejectsMalformedID(t *testing.T) {
	p := NewHeaderProvider()

	for _, raw := range []string{"abc", "-1", "0", "9999999999999999999999"} {
		r := httptest.NewRequest("GET", "/api/v1/cart", nil)
		r.Header.Set("X-User-ID", raw)

		_, err := p.Authenticate(r)
		assert.ErrorIs(t, err, models.ErrUnauthenticated, "X-User-ID=%s", raw)
	}
}
