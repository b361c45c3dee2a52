package authgate

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/orgkit/pkg/jwt"
	"github.com/dmitrymomot/orgkit/svc/organization"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrOrgMismatch   = errors.New("token was issued for another organization")
	ErrStaleIdentity = errors.New("token subject is no longer the organization admin")
	ErrIncomplete    = errors.New("token lacks organization claims")
)

// Claims is the claim set of an admin token.
type Claims struct {
	OrgID   string `json:"org_id"`
	OrgName string `json:"org_name"`
	jwt.RegisteredClaims
}

// Email returns the admin email the token was issued to.
func (c *Claims) Email() string {
	return c.Subject
}

// Token is an issued credential.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Gate issues, verifies and authorizes admin tokens.
type Gate struct {
	codec *jwt.Service
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithTTL sets the validity window of issued tokens.
func WithTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClock overrides the clock for both issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func New(secret []byte, opts ...Option) (*Gate, error) {
	g := &Gate{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}

	codec, err := jwt.New(secret, jwt.WithTimeFunc(g.now))
	if err != nil {
		return nil, err
	}
	g.codec = codec
	return g, nil
}

func (g *Gate) TTL() time.Duration {
	return g.ttl
}

// Issue signs a token for the current admin of org.
func (g *Gate) Issue(org *organization.Organization) (Token, error) {
	// NumericDate has second precision.
	issuedAt := g.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(g.ttl)

	token, err := g.codec.Generate(&Claims{
		OrgID:   org.ID,
		OrgName: org.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   org.Admin.Email,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	if err != nil {
		return Token{}, err
	}

	return Token{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// Verify checks the signature and expiry of token and returns its claims.
// Every failure wraps organization.ErrUnauthorized.
func (g *Gate) Verify(token string) (*Claims, error) {
	var claims Claims
	if err := g.codec.Parse(token, &claims); err != nil {
		return nil, errors.Join(organization.ErrUnauthorized, err)
	}
	if claims.OrgID == "" || claims.Subject == "" {
		return nil, errors.Join(organization.ErrUnauthorized, ErrIncomplete)
	}
	return &claims, nil
}

// Authorize checks that claims were issued to the current admin of org.
func (g *Gate) Authorize(claims *Claims, org *organization.Organization) error {
	if claims == nil {
		return errors.Join(organization.ErrUnauthorized, ErrIncomplete)
	}
	if claims.OrgID != org.ID {
		return errors.Join(organization.ErrUnauthorized, ErrOrgMismatch)
	}
	if !strings.EqualFold(claims.Subject, org.Admin.Email) {
		return errors.Join(organization.ErrUnauthorized, ErrStaleIdentity)
	}
	return nil
}
