package connection

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	mongox "github.com/dmitrymomot/orgkit/pkg/mongo"
	"github.com/dmitrymomot/orgkit/pkg/pg"
	"github.com/dmitrymomot/orgkit/svc/organization"
)

// SchemeDialer picks the driver from the descriptor URI scheme.
type SchemeDialer struct {
	timeout     time.Duration
	maxPoolSize int
}

// NewSchemeDialer returns a dialer whose Mongo clients give up server
// selection after timeout and whose pools hold at most maxPoolSize connections.
func NewSchemeDialer(timeout time.Duration, maxPoolSize int) *SchemeDialer {
	return &SchemeDialer{timeout: timeout, maxPoolSize: maxPoolSize}
}

func (d *SchemeDialer) Dial(ctx context.Context, desc organization.ConnectionDescriptor) (Handle, error) {
	u, err := url.Parse(desc.URI)
	if err != nil {
		// url.Error echoes the input, which may carry credentials.
		return nil, ErrInvalidURI
	}

	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		client, err := mongox.Open(desc.URI, d.timeout, uint64(max(d.maxPoolSize, 0)))
		if err != nil {
			return nil, err
		}
		return newOwnedMongoHandle(client, desc.DatabaseName), nil

	case "postgres", "postgresql":
		pool, err := pg.Open(ctx, desc.URI, desc.DatabaseName, int32(max(d.maxPoolSize, 0)))
		if err != nil {
			return nil, err
		}
		return NewPostgresHandle(pool), nil

	default:
		return nil, errors.Join(ErrUnsupportedScheme, fmt.Errorf("scheme %q", u.Scheme))
	}
}
