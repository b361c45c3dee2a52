package connection_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/orgkit/svc/connection"
	"github.com/dmitrymomot/orgkit/svc/organization"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newResolver(t *testing.T, d *fakeDialer, opts ...connection.Option) (*connection.Resolver, *fakeHandle) {
	t.Helper()
	shared := newFakeHandle(0, organization.ConnectionDescriptor{})
	r := connection.NewResolver(shared, append([]connection.Option{connection.WithDialer(d)}, opts...)...)
	t.Cleanup(func() { _ = r.Close() })
	return r, shared
}

func handleOf(t *testing.T, conn *connection.Conn) *fakeHandle {
	t.Helper()
	h, ok := conn.Handle.(*fakeHandle)
	require.True(t, ok)
	return h
}

func TestResolver_Shared(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	r, shared := newResolver(t, d)

	org := &organization.Organization{ID: "acme", DBMode: organization.ModeShared}
	conn, err := r.Resolve(context.Background(), org)
	require.NoError(t, err)
	assert.Same(t, shared, handleOf(t, conn))

	conn.Release()
	conn.Release()
	assert.False(t, shared.Closed())
	assert.Zero(t, d.dials.Load())
	assert.Same(t, shared, r.Shared())
}

func TestResolver_MissingDescriptor(t *testing.T) {
	t.Parallel()

	r, _ := newResolver(t, &fakeDialer{})
	org := &organization.Organization{ID: "acme", DBMode: organization.ModeDedicated}

	_, err := r.Resolve(context.Background(), org)
	assert.ErrorIs(t, err, organization.ErrConnectionUnavailable)
	assert.ErrorIs(t, err, connection.ErrMissingDescriptor)
}

func TestResolver_ReusesCachedHandle(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	r, _ := newResolver(t, d)
	org := dedicatedOrg("acme", "mongodb://acme.example:27017", t0)

	first, err := r.Resolve(context.Background(), org)
	require.NoError(t, err)
	first.Release()

	second, err := r.Resolve(context.Background(), org)
	require.NoError(t, err)
	defer second.Release()

	assert.Same(t, handleOf(t, first), handleOf(t, second))
	assert.EqualValues(t, 1, d.dials.Load())

	stats := r.Stats()
	assert.Equal(t, 1, stats.Cache.Size)
	assert.EqualValues(t, 1, stats.Cache.Hits)
	assert.EqualValues(t, 1, stats.Cache.Misses)
	assert.EqualValues(t, 1, stats.Dials)
	assert.Equal(t, 1, stats.Cache.Leases)
}

func TestResolver_ConcurrentMissesDialOnce(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	r, _ := newResolver(t, d)
	org := dedicatedOrg("acme", "mongodb://acme.example:27017", t0)

	const callers = 50
	conns := make([]*connection.Conn, callers)
	errs := make([]error, callers)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			conns[i], errs[i] = r.Resolve(context.Background(), org)
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, d.dials.Load())
	want := d.all()[0]
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, want, handleOf(t, conns[i]))
	}
	assert.Equal(t, callers, r.Stats().Cache.Leases)

	for _, c := range conns {
		c.Release()
	}
	assert.Zero(t, r.Stats().Cache.Leases)
	assert.False(t, want.Closed())
}

func TestResolver_FailedDialIsNotCached(t *testing.T) {
	t.Parallel()

	t.Run("dial error", func(t *testing.T) {
		t.Parallel()

		d := &fakeDialer{}
		d.setErr(errUnreachable)
		r, _ := newResolver(t, d)
		org := dedicatedOrg("acme", "mongodb://acme.example:27017", t0)

		_, err := r.Resolve(context.Background(), org)
		require.ErrorIs(t, err, organization.ErrConnectionUnavailable)
		assert.ErrorIs(t, err, errUnreachable)
		assert.Zero(t, r.Stats().Cache.Size)

		d.setErr(nil)
		conn, err := r.Resolve(context.Background(), org)
		require.NoError(t, err)
		conn.Release()

		stats := r.Stats()
		assert.EqualValues(t, 2, stats.Dials)
		assert.EqualValues(t, 1, stats.DialFailures)
	})

	t.Run("ping error closes the handle", func(t *testing.T) {
		t.Parallel()

		d := &fakeDialer{}
		d.setPingErr(errUnreachable)
		r, _ := newResolver(t, d)
		org := dedicatedOrg("acme", "postgres://acme.example/app", t0)

		_, err := r.Resolve(context.Background(), org)
		require.ErrorIs(t, err, organization.ErrConnectionUnavailable)
		require.Len(t, d.all(), 1)
		assert.True(t, d.all()[0].Closed())
		assert.Zero(t, r.Stats().Cache.Size)

		d.setPingErr(nil)
		conn, err := r.Resolve(context.Background(), org)
		require.NoError(t, err)
		defer conn.Release()
		assert.Same(t, d.all()[1], handleOf(t, conn))
	})
}

func TestResolver_Invalidate(t *testing.T) {
	t.Parallel()

	t.Run("closes an idle handle", func(t *testing.T) {
		t.Parallel()

		d := &fakeDialer{}
		r, _ := newResolver(t, d)
		org := dedicatedOrg("acme", "mongodb://acme.example:27017", t0)

		conn, err := r.Resolve(context.Background(), org)
		require.NoError(t, err)
		conn.Release()

		r.Invalidate(context.Background(), org.ID)
		old := d.all()[0]
		assert.True(t, old.Closed())
		assert.EqualValues(t, 1, r.Stats().Cache.Invalidations)

		conn, err = r.Resolve(context.Background(), org)
		require.NoError(t, err)
		defer conn.Release()
		assert.NotSame(t, old, handleOf(t, conn))
	})

	t.Run("leased handle stays open until released", func(t *testing.T) {
		t.Parallel()

		d := &fakeDialer{}
		r, _ := newResolver(t, d)
		org := dedicatedOrg("acme", "mongodb://acme.example:27017", t0)

		held, err := r.Resolve(context.Background(), org)
		require.NoError(t, err)
		old := handleOf(t, held)

		r.Invalidate(context.Background(), org.ID)
		assert.False(t, old.Closed())

		fresh, err := r.Resolve(context.Background(), org)
		require.NoError(t, err)
		defer fresh.Release()
		assert.NotSame(t, old, handleOf(t, fresh))

		held.Release()
		assert.Equal(t, 1, old.CloseCount())
		held.Release()
		assert.Equal(t, 1, old.CloseCount())
	})

	t.Run("dial in flight does not reach the cache", func(t *testing.T) {
		t.Parallel()

		d := &fakeDialer{}
		r, _ := newResolver(t, d)
		org := dedicatedOrg("acme", "mongodb://acme.example:27017", t0)

		unblock := d.block()
		errc := make(chan error, 1)
		go func() {
			conn, err := r.Resolve(context.Background(), org)
			if conn != nil {
				conn.Release()
			}
			errc <- err
		}()
		require.Eventually(t, func() bool { return d.dials.Load() == 1 }, time.Second, time.Millisecond)

		r.Invalidate(context.Background(), org.ID)
		unblock()

		err := <-errc
		assert.ErrorIs(t, err, connection.ErrInvalidated)
		assert.ErrorIs(t, err, organization.ErrConnectionUnavailable)
		assert.True(t, d.all()[0].Closed())
		assert.Zero(t, r.Stats().Cache.Size)

		conn, err := r.Resolve(context.Background(), org)
		require.NoError(t, err)
		defer conn.Release()
		assert.EqualValues(t, 2, d.dials.Load())
	})

	t.Run("resolve after invalidate does not join the stale dial", func(t *testing.T) {
		t.Parallel()

		d := &fakeDialer{}
		r, _ := newResolver(t, d)
		org := dedicatedOrg("acme", "mongodb://acme.example:27017", t0)
		renamed := dedicatedOrg("acme", "mongodb://acme.example:27017", t0.Add(time.Minute))

		unblock := d.block()
		defer unblock()

		resolve := func(o *organization.Organization) <-chan error {
			errc := make(chan error, 1)
			go func() {
				conn, err := r.Resolve(context.Background(), o)
				if conn != nil {
					conn.Release()
				}
				errc <- err
			}()
			return errc
		}

		staleErr := resolve(org)
		require.Eventually(t, func() bool { return d.dials.Load() == 1 }, time.Second, time.Millisecond)

		r.Invalidate(context.Background(), org.ID)

		freshErr := resolve(renamed)
		require.Eventually(t, func() bool { return d.dials.Load() == 2 }, time.Second, time.Millisecond)
		unblock()

		assert.ErrorIs(t, <-staleErr, connection.ErrInvalidated)
		require.NoError(t, <-freshErr)
		assert.EqualValues(t, 1, r.Stats().Cache.Size)

		conn, err := r.Resolve(context.Background(), renamed)
		require.NoError(t, err)
		defer conn.Release()
		assert.EqualValues(t, 2, d.dials.Load())
	})
}

func TestResolver_DescriptorChange(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	r, _ := newResolver(t, d)
	before := dedicatedOrg("acme", "mongodb://old.example:27017", t0)
	after := dedicatedOrg("acme", "mongodb://new.example:27017", t0.Add(time.Minute))

	conn, err := r.Resolve(context.Background(), before)
	require.NoError(t, err)
	old := handleOf(t, conn)
	conn.Release()

	// No Invalidate: the fingerprint alone keeps the old handle away.
	conn, err = r.Resolve(context.Background(), after)
	require.NoError(t, err)
	fresh := handleOf(t, conn)
	conn.Release()

	assert.NotSame(t, old, fresh)
	assert.Equal(t, after.Descriptor.URI, fresh.desc.URI)
	assert.True(t, old.Closed())

	t.Run("stale record does not displace the newer handle", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), before)
		require.ErrorIs(t, err, connection.ErrInvalidated)

		handles := d.all()
		require.Len(t, handles, 3)
		assert.True(t, handles[2].Closed())

		conn, err := r.Resolve(context.Background(), after)
		require.NoError(t, err)
		defer conn.Release()
		assert.Same(t, fresh, handleOf(t, conn))
	})
}

func TestResolver_LRUEvictionKeepsLeases(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	r, _ := newResolver(t, d, connection.WithCacheSize(1))
	acme := dedicatedOrg("acme", "mongodb://acme.example:27017", t0)
	globex := dedicatedOrg("globex", "mongodb://globex.example:27017", t0)

	held, err := r.Resolve(context.Background(), acme)
	require.NoError(t, err)
	acmeHandle := handleOf(t, held)

	other, err := r.Resolve(context.Background(), globex)
	require.NoError(t, err)
	defer other.Release()

	stats := r.Stats()
	assert.Equal(t, 1, stats.Cache.Size)
	assert.EqualValues(t, 1, stats.Cache.Evictions)
	assert.False(t, acmeHandle.Closed())

	require.NoError(t, held.Ping(context.Background()))
	held.Release()
	assert.True(t, acmeHandle.Closed())
	assert.False(t, handleOf(t, other).Closed())
}

func TestResolver_CancelledCallerDoesNotAbortDial(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	r, _ := newResolver(t, d)
	org := dedicatedOrg("acme", "mongodb://acme.example:27017", t0)

	unblock := d.block()
	defer unblock()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, org)
		errc <- err
	}()
	require.Eventually(t, func() bool { return d.dials.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		conn *connection.Conn
		err  error
	}
	waiting := make(chan result, 1)
	go func() {
		conn, err := r.Resolve(context.Background(), org)
		waiting <- result{conn, err}
	}()

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	unblock()
	res := <-waiting
	require.NoError(t, res.err)
	defer res.conn.Release()

	assert.EqualValues(t, 1, d.dials.Load())
	assert.Equal(t, []error{nil}, d.dialContextErrors())
	assert.Same(t, d.all()[0], handleOf(t, res.conn))
}

func TestResolver_ProbeTimeout(t *testing.T) {
	t.Parallel()

	var dialErr error
	slow := connection.DialerFunc(func(ctx context.Context, desc organization.ConnectionDescriptor) (connection.Handle, error) {
		<-ctx.Done()
		dialErr = ctx.Err()
		return nil, dialErr
	})
	r := connection.NewResolver(newFakeHandle(0, organization.ConnectionDescriptor{}),
		connection.WithDialer(slow),
		connection.WithProbeTimeout(20*time.Millisecond),
	)
	defer func() { _ = r.Close() }()

	start := time.Now()
	_, err := r.Resolve(context.Background(), dedicatedOrg("acme", "mongodb://blackhole.example", t0))
	require.ErrorIs(t, err, organization.ErrConnectionUnavailable)
	assert.ErrorIs(t, dialErr, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolver_ProbeAndOpen(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	r, _ := newResolver(t, d)
	desc := organization.ConnectionDescriptor{URI: "mongodb://acme.example:27017", DatabaseName: "acme"}

	require.NoError(t, r.Probe(context.Background(), desc))
	require.Len(t, d.all(), 1)
	assert.True(t, d.all()[0].Closed())

	h, err := r.Open(context.Background(), desc)
	require.NoError(t, err)
	assert.False(t, h.(*fakeHandle).Closed())
	require.NoError(t, h.Close(context.Background()))

	assert.Zero(t, r.Stats().Cache.Size)

	d.setErr(errUnreachable)
	err = r.Probe(context.Background(), desc)
	assert.ErrorIs(t, err, organization.ErrConnectionUnavailable)
}

func TestResolver_Close(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	shared := newFakeHandle(0, organization.ConnectionDescriptor{})
	r := connection.NewResolver(shared, connection.WithDialer(d))
	acme := dedicatedOrg("acme", "mongodb://acme.example:27017", t0)
	globex := dedicatedOrg("globex", "mongodb://globex.example:27017", t0)

	idle, err := r.Resolve(context.Background(), acme)
	require.NoError(t, err)
	idle.Release()

	busy, err := r.Resolve(context.Background(), globex)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.True(t, handleOf(t, idle).Closed())
	assert.False(t, handleOf(t, busy).Closed())

	busy.Release()
	assert.True(t, handleOf(t, busy).Closed())

	_, err = r.Resolve(context.Background(), acme)
	assert.ErrorIs(t, err, connection.ErrResolverClosed)
	assert.ErrorIs(t, err, organization.ErrConnectionUnavailable)

	conn, err := r.Resolve(context.Background(), &organization.Organization{ID: "shared", DBMode: organization.ModeShared})
	require.NoError(t, err)
	assert.Same(t, shared, handleOf(t, conn))
	assert.False(t, shared.Closed())
}
