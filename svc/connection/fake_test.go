package connection_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/orgkit/svc/connection"
	"github.com/dmitrymomot/orgkit/svc/organization"
)

type fakeHandle struct {
	id      int64
	desc    organization.ConnectionDescriptor
	pingErr error

	mu         sync.Mutex
	closed     int
	partitions map[string]bool
}

func newFakeHandle(id int64, desc organization.ConnectionDescriptor) *fakeHandle {
	return &fakeHandle{id: id, desc: desc, partitions: make(map[string]bool)}
}

func (h *fakeHandle) Kind() string { return "fake" }

func (h *fakeHandle) Ping(context.Context) error { return h.pingErr }

func (h *fakeHandle) Provision(_ context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.partitions[key] = true
	return nil
}

func (h *fakeHandle) RenamePartition(_ context.Context, from, to string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.partitions, from)
	h.partitions[to] = true
	return nil
}

func (h *fakeHandle) DropPartition(_ context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.partitions, key)
	return nil
}

func (h *fakeHandle) Close(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	return nil
}

func (h *fakeHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed > 0
}

func (h *fakeHandle) CloseCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type fakeDialer struct {
	dials atomic.Int64

	mu      sync.Mutex
	err     error
	pingErr error
	gate    chan struct{}
	dialCtx []error
	handles []*fakeHandle
}

func (d *fakeDialer) Dial(ctx context.Context, desc organization.ConnectionDescriptor) (connection.Handle, error) {
	n := d.dials.Add(1)

	d.mu.Lock()
	gate, err, pingErr := d.gate, d.err, d.pingErr
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialCtx = append(d.dialCtx, ctx.Err())
	if err != nil {
		return nil, err
	}
	h := newFakeHandle(n, desc)
	h.pingErr = pingErr
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDialer) setPingErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pingErr = err
}

// block makes dials wait until the returned function is called.
func (d *fakeDialer) block() func() {
	gate := make(chan struct{})
	d.mu.Lock()
	d.gate = gate
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			d.gate = nil
			d.mu.Unlock()
			close(gate)
		})
	}
}

func (d *fakeDialer) all() []*fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeHandle(nil), d.handles...)
}

func (d *fakeDialer) dialContextErrors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.dialCtx...)
}

var errUnreachable = errors.New("connection refused")

func dedicatedOrg(id, uri string, version time.Time) *organization.Organization {
	return &organization.Organization{
		ID:           id,
		Name:         id,
		PartitionKey: id,
		DBMode:       organization.ModeDedicated,
		Descriptor:   &organization.ConnectionDescriptor{URI: uri, DatabaseName: "tenant"},
		UpdatedAt:    version,
	}
}
