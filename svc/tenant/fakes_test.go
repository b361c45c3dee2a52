package tenant_test

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/orgkit/pkg/password"
	"github.com/dmitrymomot/orgkit/svc/authgate"
	"github.com/dmitrymomot/orgkit/svc/connection"
	"github.com/dmitrymomot/orgkit/svc/organization"
	"github.com/dmitrymomot/orgkit/svc/tenant"
)

type memHandle struct {
	uri string

	mu         sync.Mutex
	partitions map[string]bool
	closed     bool
}

func newMemHandle(uri string) *memHandle {
	return &memHandle{uri: uri, partitions: make(map[string]bool)}
}

func (h *memHandle) Kind() string { return "memory" }
func (h *memHandle) Ping(context.Context) error { return nil }

func (h *memHandle) Provision(_ context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.partitions[key] = true
	return nil
}

func (h *memHandle) RenamePartition(_ context.Context, from, to string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.partitions[to] {
		return connection.ErrPartitionExists
	}
	delete(h.partitions, from)
	h.partitions[to] = true
	return nil
}

func (h *memHandle) DropPartition(_ context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.partitions, key)
	return nil
}

func (h *memHandle) Close(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *memHandle) Partitions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Sorted(maps.Keys(h.partitions))
}

func (h *memHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// memDialer serves one in-memory database per URI, so partitions survive reconnects.
type memDialer struct {
	mu          sync.Mutex
	unreachable map[string]bool
	databases   map[string]map[string]bool
	dialed      []*memHandle
}

func newMemDialer() *memDialer {
	return &memDialer{
		unreachable: make(map[string]bool),
		databases:   make(map[string]map[string]bool),
	}
}

var errRefused = errors.New("connection refused")

func (d *memDialer) Dial(_ context.Context, desc organization.ConnectionDescriptor) (connection.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.unreachable[desc.URI] {
		return nil, errRefused
	}
	key := desc.URI + "/" + desc.DatabaseName
	if d.databases[key] == nil {
		d.databases[key] = make(map[string]bool)
	}
	h := &memHandle{uri: desc.URI, partitions: d.databases[key]}
	d.dialed = append(d.dialed, h)
	return &sharedStateHandle{memHandle: h, mu: &d.mu}, nil
}

func (d *memDialer) setUnreachable(uri string, down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unreachable[uri] = down
}

func (d *memDialer) partitions(desc organization.ConnectionDescriptor) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.databases[desc.URI+"/"+desc.DatabaseName]))
}

func (d *memDialer) handles() []*memHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*memHandle(nil), d.dialed...)
}

// sharedStateHandle guards partition maps shared between handles of one database.
type sharedStateHandle struct {
	*memHandle
	mu *sync.Mutex
}

func (h *sharedStateHandle) Provision(ctx context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.memHandle.Provision(ctx, key)
}

func (h *sharedStateHandle) RenamePartition(ctx context.Context, from, to string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.memHandle.RenamePartition(ctx, from, to)
}

func (h *sharedStateHandle) DropPartition(ctx context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.memHandle.DropPartition(ctx, key)
}

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

type fixture struct {
	svc      tenant.Service
	registry organization.Registry
	resolver *connection.Resolver
	shared   *memHandle
	dialer   *memDialer
	gate     *authgate.Gate
	clock    *clock
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	wrapRegistry func(organization.Registry) organization.Registry
	serviceOpts  []tenant.ServiceOption
}

func withRegistry(wrap func(organization.Registry) organization.Registry) fixtureOption {
	return func(c *fixtureConfig) { c.wrapRegistry = wrap }
}

func withServiceOptions(opts ...tenant.ServiceOption) fixtureOption {
	return func(c *fixtureConfig) { c.serviceOpts = append(c.serviceOpts, opts...) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	var cfg fixtureConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	clk := &clock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}

	var registry organization.Registry = organization.NewMemoryRegistry(organization.WithClock(clk.Now))
	if cfg.wrapRegistry != nil {
		registry = cfg.wrapRegistry(registry)
	}

	shared := newMemHandle("shared")
	dialer := newMemDialer()
	resolver := connection.NewResolver(shared, connection.WithDialer(dialer))
	t.Cleanup(func() { _ = resolver.Close() })

	hasher, err := password.NewHasher(password.WithCost(4))
	require.NoError(t, err)

	gate, err := authgate.New([]byte("test-secret"), authgate.WithClock(clk.Now))
	require.NoError(t, err)

	return &fixture{
		svc:      tenant.NewService(registry, resolver, hasher, gate, cfg.serviceOpts...),
		registry: registry,
		resolver: resolver,
		shared:   shared,
		dialer:   dialer,
		gate:     gate,
		clock:    clk,
	}
}

const adminPassword = "Sup3rSecret"

func (f *fixture) create(t *testing.T, name, email string, desc *organization.ConnectionDescriptor) organization.Summary {
	t.Helper()
	sum, err := f.svc.Create(context.Background(), tenant.CreateInput{
		Name:       name,
		Email:      email,
		Password:   adminPassword,
		Descriptor: desc,
	})
	require.NoError(t, err)
	return sum
}

func (f *fixture) login(t *testing.T, name, email string) string {
	t.Helper()
	token, err := f.svc.Login(context.Background(), tenant.LoginInput{OrgName: name, Email: email, Password: adminPassword})
	require.NoError(t, err)
	return token.AccessToken
}

type failingUpdates struct {
	organization.Registry
	err error
}

func (r failingUpdates) Update(context.Context, string, organization.Patch) (*organization.Organization, error) {
	return nil, r.err
}

func ptr[T any](v T) *T { return &v }
