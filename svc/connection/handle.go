package connection

import (
	"context"

	"github.com/dmitrymomot/orgkit/svc/organization"
)

// Handle is a live connection to a tenant database.
type Handle interface {
	// Kind names the backend, "mongo" or "postgres".
	Kind() string
	Ping(ctx context.Context) error
	// Provision creates the partition for key. It is a no-op if the partition exists.
	Provision(ctx context.Context, partitionKey string) error
	// RenamePartition moves the partition of from to to. A missing source
	// partition is provisioned under the new key instead.
	RenamePartition(ctx context.Context, from, to string) error
	// DropPartition removes the partition and its data. A missing partition is not an error.
	DropPartition(ctx context.Context, partitionKey string) error
	Close(ctx context.Context) error
}

// Dialer opens handles for dedicated tenants.
// Dial does not need to verify reachability; the resolver pings every new handle.
type Dialer interface {
	Dial(ctx context.Context, d organization.ConnectionDescriptor) (Handle, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, d organization.ConnectionDescriptor) (Handle, error)

func (f DialerFunc) Dial(ctx context.Context, d organization.ConnectionDescriptor) (Handle, error) {
	return f(ctx, d)
}
