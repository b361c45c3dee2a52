package organization_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/orgkit/svc/organization"
)

func newOrg(name string, mode organization.DBMode) *organization.Organization {
	org := &organization.Organization{
		ID:           uuid.NewString(),
		Name:         name,
		PartitionKey: organization.PartitionKey(name),
		Admin:        organization.Admin{Email: "admin@example.com", PasswordHash: "hash"},
		DBMode:       mode,
	}
	if mode == organization.ModeDedicated {
		org.Descriptor = &organization.ConnectionDescriptor{URI: "mongodb://tenant:27017", DatabaseName: "tenant"}
	}
	return org
}

type clock struct{ ns atomic.Int64 }

func newClock() *clock {
	c := &clock{}
	c.ns.Store(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *clock) Now() time.Time { return time.Unix(0, c.ns.Load()).UTC() }

func (c *clock) Advance(d time.Duration) { c.ns.Add(int64(d)) }

func assertSameTime(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

// runRegistryContract exercises behavior every Registry implementation must share.
func runRegistryContract(t *testing.T, newRegistry func(t *testing.T, clk *clock) organization.Registry) {
	t.Helper()
	ctx := context.Background()

	t.Run("create then find by name", func(t *testing.T) {
		clk := newClock()
		reg := newRegistry(t, clk)

		org := newOrg("Acme Corporation", organization.ModeShared)
		require.NoError(t, reg.Create(ctx, org))
		assertSameTime(t, clk.Now(), org.CreatedAt)
		assertSameTime(t, clk.Now(), org.UpdatedAt)
		assertSameTime(t, clk.Now(), org.Admin.CredentialSetAt)

		got, err := reg.FindByName(ctx, "Acme Corporation")
		require.NoError(t, err)
		assert.Equal(t, org.ID, got.ID)
		assert.Equal(t, "acme_corporation", got.PartitionKey)
		assert.Equal(t, organization.ModeShared, got.DBMode)
		assert.Nil(t, got.Descriptor)

		// lookups go through the partition key
		got, err = reg.FindByName(ctx, "  ACME corporation ")
		require.NoError(t, err)
		assert.Equal(t, org.ID, got.ID)

		got, err = reg.FindByID(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Corporation", got.Name)
	})

	t.Run("dedicated record keeps descriptor", func(t *testing.T) {
		reg := newRegistry(t, newClock())
		org := newOrg("Globex", organization.ModeDedicated)
		require.NoError(t, reg.Create(ctx, org))

		got, err := reg.FindByName(ctx, "globex")
		require.NoError(t, err)
		require.NotNil(t, got.Descriptor)
		assert.Equal(t, "mongodb://tenant:27017", got.Descriptor.URI)
	})

	t.Run("missing records", func(t *testing.T) {
		reg := newRegistry(t, newClock())
		_, err := reg.FindByName(ctx, "nobody")
		assert.ErrorIs(t, err, organization.ErrNotFound)
		_, err = reg.FindByName(ctx, "!!!")
		assert.ErrorIs(t, err, organization.ErrNotFound)
		_, err = reg.FindByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, organization.ErrNotFound)
		_, err = reg.Update(ctx, uuid.NewString(), organization.Patch{})
		assert.ErrorIs(t, err, organization.ErrNotFound)
		assert.ErrorIs(t, reg.Delete(ctx, uuid.NewString()), organization.ErrNotFound)
	})

	t.Run("duplicate and near-duplicate names conflict", func(t *testing.T) {
		reg := newRegistry(t, newClock())
		require.NoError(t, reg.Create(ctx, newOrg("Acme Corporation", organization.ModeShared)))

		for _, name := range []string{"Acme Corporation", "acme corporation", "ACME-Corporation", "Acme  Corporation."} {
			err := reg.Create(ctx, newOrg(name, organization.ModeShared))
			assert.ErrorIs(t, err, organization.ErrConflict, name)
		}

		require.NoError(t, reg.Create(ctx, newOrg("Acme Corporations", organization.ModeShared)))
	})

	t.Run("concurrent creates of one name yield one winner", func(t *testing.T) {
		reg := newRegistry(t, newClock())

		var (
			wg        sync.WaitGroup
			wins      atomic.Int32
			conflicts atomic.Int32
		)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := reg.Create(ctx, newOrg("Initech", organization.ModeShared))
				switch {
				case err == nil:
					wins.Add(1)
				case assert.ErrorIs(t, err, organization.ErrConflict):
					conflicts.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(9), conflicts.Load())
	})

	t.Run("update renames and refreshes updated_at", func(t *testing.T) {
		clk := newClock()
		reg := newRegistry(t, clk)
		org := newOrg("Acme Corporation", organization.ModeShared)
		require.NoError(t, reg.Create(ctx, org))

		clk.Advance(time.Minute)
		name := "Acme Corp Ltd"
		updated, err := reg.Update(ctx, org.ID, organization.Patch{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "acme_corp_ltd", updated.PartitionKey)
		assertSameTime(t, clk.Now(), updated.UpdatedAt)
		assertSameTime(t, org.CreatedAt, updated.CreatedAt)

		_, err = reg.FindByName(ctx, "Acme Corporation")
		assert.ErrorIs(t, err, organization.ErrNotFound)

		got, err := reg.FindByName(ctx, "Acme Corp Ltd")
		require.NoError(t, err)
		assert.Equal(t, org.ID, got.ID)

		// the old key is free again
		require.NoError(t, reg.Create(ctx, newOrg("Acme Corporation", organization.ModeShared)))
	})

	t.Run("rename onto another organization conflicts without partial write", func(t *testing.T) {
		reg := newRegistry(t, newClock())
		a := newOrg("Alpha", organization.ModeShared)
		b := newOrg("Bravo", organization.ModeShared)
		require.NoError(t, reg.Create(ctx, a))
		require.NoError(t, reg.Create(ctx, b))

		name := "ALPHA"
		email := "new@bravo.io"
		_, err := reg.Update(ctx, b.ID, organization.Patch{Name: &name, AdminEmail: &email})
		assert.ErrorIs(t, err, organization.ErrConflict)

		got, err := reg.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bravo", got.Name)
		assert.Equal(t, "admin@example.com", got.Admin.Email)
	})

	t.Run("renaming to own key with different casing is allowed", func(t *testing.T) {
		reg := newRegistry(t, newClock())
		org := newOrg("Alpha", organization.ModeShared)
		require.NoError(t, reg.Create(ctx, org))

		name := "ALPHA"
		updated, err := reg.Update(ctx, org.ID, organization.Patch{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "ALPHA", updated.Name)
		assert.Equal(t, "alpha", updated.PartitionKey)
	})

	t.Run("mode change is rejected", func(t *testing.T) {
		reg := newRegistry(t, newClock())
		org := newOrg("Alpha", organization.ModeShared)
		require.NoError(t, reg.Create(ctx, org))

		mode := organization.ModeDedicated
		_, err := reg.Update(ctx, org.ID, organization.Patch{DBMode: &mode})
		assert.ErrorIs(t, err, organization.ErrConflict)
	})

	t.Run("delete is not silently repeatable", func(t *testing.T) {
		reg := newRegistry(t, newClock())
		org := newOrg("Alpha", organization.ModeShared)
		require.NoError(t, reg.Create(ctx, org))

		require.NoError(t, reg.Delete(ctx, org.ID))
		assert.ErrorIs(t, reg.Delete(ctx, org.ID), organization.ErrNotFound)
		_, err := reg.FindByName(ctx, "Alpha")
		assert.ErrorIs(t, err, organization.ErrNotFound)
	})

	t.Run("count by mode", func(t *testing.T) {
		reg := newRegistry(t, newClock())
		require.NoError(t, reg.Create(ctx, newOrg("Alpha", organization.ModeShared)))
		require.NoError(t, reg.Create(ctx, newOrg("Bravo", organization.ModeShared)))
		require.NoError(t, reg.Create(ctx, newOrg("Charlie", organization.ModeDedicated)))

		counts, err := reg.CountByMode(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts[organization.ModeShared])
		assert.Equal(t, int64(1), counts[organization.ModeDedicated])
	})
}
