package organization

import (
	"context"
	"time"
)

// Registry is the durable store of organizations.
type Registry interface {
	// Create stores org, setting its timestamps. It fails with ErrConflict when
	// the partition key is taken.
	Create(ctx context.Context, org *Organization) error
	// FindByName looks the organization up by the partition key derived from name.
	FindByName(ctx context.Context, name string) (*Organization, error)
	FindByID(ctx context.Context, id string) (*Organization, error)
	// Update applies patch atomically and returns the stored result.
	// It fails with ErrNotFound or, on a name collision or mode change, ErrConflict.
	Update(ctx context.Context, id string, patch Patch) (*Organization, error)
	// Delete removes the record, failing with ErrNotFound when it is already gone.
	Delete(ctx context.Context, id string) error
	CountByMode(ctx context.Context) (map[DBMode]int64, error)
}

// RegistryOption configures a registry implementation.
type RegistryOption func(*registryOptions)

// Sealer encrypts connection URIs before they are persisted.
// Seal and Open are scoped to the organization ID.
type Sealer interface {
	Seal(scope, plaintext string) (string, error)
	Open(scope, sealed string) (string, error)
}

type registryOptions struct {
	now    func() time.Time
	sealer Sealer
}

// WithClock overrides the clock used for UpdatedAt and CredentialSetAt.
func WithClock(now func() time.Time) RegistryOption {
	return func(o *registryOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSealer encrypts descriptor URIs at rest. Only the MongoRegistry uses it.
func WithSealer(s Sealer) RegistryOption {
	return func(o *registryOptions) {
		o.sealer = s
	}
}

func newRegistryOptions(opts []RegistryOption) registryOptions {
	o := registryOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// timestamp matches the millisecond precision of BSON dates.
func (o registryOptions) timestamp() time.Time {
	return o.now().UTC().Truncate(time.Millisecond)
}

func stamp(org *Organization, now time.Time) {
	org.CreatedAt = now
	org.UpdatedAt = now
	if org.Admin.CredentialSetAt.IsZero() {
		org.Admin.CredentialSetAt = now
	}
}

var (
	_ Registry = (*MemoryRegistry)(nil)
	_ Registry = (*MongoRegistry)(nil)
)
