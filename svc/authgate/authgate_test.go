package authgate_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/orgkit/pkg/jwt"
	"github.com/dmitrymomot/orgkit/svc/authgate"
	"github.com/dmitrymomot/orgkit/svc/organization"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testOrg(id, name, email string) *organization.Organization {
	return &organization.Organization{
		ID:     id,
		Name:   name,
		DBMode: organization.ModeShared,
		Admin:  organization.Admin{Email: email},
	}
}

func newGate(t *testing.T, opts ...authgate.Option) (*authgate.Gate, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2024, 5, 10, 9, 30, 15, 500_000_000, time.UTC)}
	g, err := authgate.New([]byte("test-secret"), append([]authgate.Option{authgate.WithClock(clk.Now)}, opts...)...)
	require.NoError(t, err)
	return g, clk
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := authgate.New(nil)
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)

	g, err := authgate.New([]byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, authgate.DefaultTTL, g.TTL())
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	g, clk := newGate(t)
	org := testOrg("org-1", "Acme Corporation", "admin@acme.io")

	token, err := g.Issue(org)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, clk.Now().Truncate(time.Second).Add(authgate.DefaultTTL), token.ExpiresAt)

	claims, err := g.Verify(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "org-1", claims.OrgID)
	assert.Equal(t, "Acme Corporation", claims.OrgName)
	assert.Equal(t, "admin@acme.io", claims.Email())
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, authgate.DefaultTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestVerify_Expiry(t *testing.T) {
	t.Parallel()

	ttl := time.Hour
	g, clk := newGate(t, authgate.WithTTL(ttl))
	token, err := g.Issue(testOrg("org-1", "Acme", "admin@acme.io"))
	require.NoError(t, err)

	clk.Advance(ttl - time.Second)
	_, err = g.Verify(token.AccessToken)
	require.NoError(t, err)

	clk.Advance(2 * time.Second)
	_, err = g.Verify(token.AccessToken)
	assert.ErrorIs(t, err, organization.ErrUnauthorized)
	assert.ErrorIs(t, err, jwt.ErrExpiredToken)
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()

	g, clk := newGate(t)
	token, err := g.Issue(testOrg("org-1", "Acme", "admin@acme.io"))
	require.NoError(t, err)

	other, err := authgate.New([]byte("another-secret"), authgate.WithClock(clk.Now))
	require.NoError(t, err)
	forged, err := other.Issue(testOrg("org-1", "Acme", "admin@acme.io"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "malformed", token: "not-a-token"},
		{name: "foreign signature", token: forged.AccessToken},
		{name: "truncated", token: token.AccessToken[:len(token.AccessToken)-4]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Verify(tt.token)
			assert.ErrorIs(t, err, organization.ErrUnauthorized)
		})
	}

	t.Run("missing organization claims", func(t *testing.T) {
		token, err := g.Issue(testOrg("", "Acme", "admin@acme.io"))
		require.NoError(t, err)

		_, err = g.Verify(token.AccessToken)
		assert.ErrorIs(t, err, organization.ErrUnauthorized)
		assert.ErrorIs(t, err, authgate.ErrIncomplete)
	})
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	g, _ := newGate(t)
	acme := testOrg("org-a", "Acme", "admin@acme.io")
	globex := testOrg("org-b", "Globex", "admin@globex.io")

	token, err := g.Issue(acme)
	require.NoError(t, err)
	claims, err := g.Verify(token.AccessToken)
	require.NoError(t, err)

	t.Run("own organization", func(t *testing.T) {
		assert.NoError(t, g.Authorize(claims, acme))
	})

	t.Run("email compared case-insensitively", func(t *testing.T) {
		recased := acme.Clone()
		recased.Admin.Email = "Admin@Acme.io"
		assert.NoError(t, g.Authorize(claims, recased))
	})

	t.Run("another organization", func(t *testing.T) {
		err := g.Authorize(claims, globex)
		assert.ErrorIs(t, err, organization.ErrUnauthorized)
		assert.ErrorIs(t, err, authgate.ErrOrgMismatch)
	})

	t.Run("admin email changed", func(t *testing.T) {
		rotated := acme.Clone()
		rotated.Admin.Email = "new-admin@acme.io"

		err := g.Authorize(claims, rotated)
		assert.ErrorIs(t, err, organization.ErrUnauthorized)
		assert.ErrorIs(t, err, authgate.ErrStaleIdentity)
	})

	t.Run("renamed organization keeps access", func(t *testing.T) {
		renamed := acme.Clone()
		renamed.Name = "Acme Corp Ltd"
		assert.NoError(t, g.Authorize(claims, renamed))
	})

	t.Run("nil claims", func(t *testing.T) {
		assert.ErrorIs(t, g.Authorize(nil, acme), organization.ErrUnauthorized)
	})
}
