package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/orgkit/pkg/logger"
	"github.com/dmitrymomot/orgkit/pkg/validator"
	"github.com/dmitrymomot/orgkit/svc/authgate"
	"github.com/dmitrymomot/orgkit/svc/connection"
	"github.com/dmitrymomot/orgkit/svc/organization"
)

// Service manages organizations.
type Service interface {
	Create(ctx context.Context, in CreateInput) (organization.Summary, error)
	Get(ctx context.Context, name string) (organization.Summary, error)
	// Update changes the organization called name on behalf of the bearer of token.
	Update(ctx context.Context, name string, in UpdateInput, token string) (organization.Summary, error)
	// Delete removes the organization called name on behalf of the bearer of token.
	Delete(ctx context.Context, name, token string) error
	// Login checks admin credentials and issues a token. Every credential
	// mismatch, including an unknown organization, is ErrInvalidCredential.
	Login(ctx context.Context, in LoginInput) (authgate.Token, error)
	Stats(ctx context.Context) (Stats, error)
}

// ConnectionResolver supplies tenant database handles.
type ConnectionResolver interface {
	Resolve(ctx context.Context, org *organization.Organization) (*connection.Conn, error)
	Open(ctx context.Context, desc organization.ConnectionDescriptor) (connection.Handle, error)
	Invalidate(ctx context.Context, orgID string)
	Stats() connection.Stats
}

// PasswordHasher is the password hashing primitive.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
}

// TokenGate issues and checks admin tokens.
type TokenGate interface {
	Issue(org *organization.Organization) (authgate.Token, error)
	Verify(token string) (*authgate.Claims, error)
	Authorize(claims *authgate.Claims, org *organization.Organization) error
}

// CreateInput describes a new organization. A non-nil Descriptor makes it dedicated.
type CreateInput struct {
	Name       string
	Email      string
	Password   string
	Descriptor *organization.ConnectionDescriptor
}

// UpdateInput lists the changes to apply. Nil fields are left alone.
// URI and DatabaseName are merged with the current descriptor.
type UpdateInput struct {
	Name         *string
	Email        *string
	Password     *string
	DBMode       *organization.DBMode
	URI          *string
	DatabaseName *string
}

type LoginInput struct {
	OrgName  string
	Email    string
	Password string
}

// Stats summarizes the registry and the connection cache.
type Stats struct {
	Organizations map[organization.DBMode]int64 `json:"organizations"`
	Connections   connection.Stats              `json:"connections"`
}

type service struct {
	registry organization.Registry
	resolver ConnectionResolver
	hasher   PasswordHasher
	gate     TokenGate
	locks    *keyedMutex
	logger   *slog.Logger

	// reservedDBs are database names a dedicated descriptor may not use.
	reservedDBs []string

	// dummyHash is verified against when login has no real hash to check,
	// so a missing organization costs as much as a wrong password.
	dummyOnce sync.Once
	dummyHash string
}

// ServiceOption configures the service.
type ServiceOption func(*service)

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithControlDatabase keeps dedicated descriptors off the database that
// holds the organization registry.
func WithControlDatabase(name string) ServiceOption {
	return func(s *service) {
		if name = strings.TrimSpace(name); name != "" {
			s.reservedDBs = append(s.reservedDBs, name)
		}
	}
}

// NewService wires the tenant service.
// It panics on a missing dependency to fail fast during initialization.
func NewService(registry organization.Registry, resolver ConnectionResolver, hasher PasswordHasher, gate TokenGate, opts ...ServiceOption) Service {
	if registry == nil {
		panic("tenant: Registry is required")
	}
	if resolver == nil {
		panic("tenant: ConnectionResolver is required")
	}
	if hasher == nil {
		panic("tenant: PasswordHasher is required")
	}
	if gate == nil {
		panic("tenant: TokenGate is required")
	}

	s := &service{
		registry: registry,
		resolver: resolver,
		hasher:   hasher,
		gate:     gate,
		locks:    newKeyedMutex(),
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("tenant"))
	return s
}

func idLock(id string) string { return "id:" + id }
func keyLock(key string) string { return "key:" + key }

func (s *service) Create(ctx context.Context, in CreateInput) (organization.Summary, error) {
	name := strings.TrimSpace(in.Name)
	email := organization.NormalizeEmail(in.Email)

	if err := organization.ValidatePassword(in.Password); err != nil {
		return organization.Summary{}, err
	}
	if err := organization.ValidateName(name); err != nil {
		return organization.Summary{}, err
	}
	if err := organization.ValidateEmail(email); err != nil {
		return organization.Summary{}, err
	}

	org := &organization.Organization{
		ID:           uuid.NewString(),
		Name:         name,
		PartitionKey: organization.PartitionKey(name),
		Admin:        organization.Admin{Email: email},
		DBMode:       organization.ModeShared,
	}
	if in.Descriptor != nil {
		if err := organization.ValidateDescriptor(*in.Descriptor, s.reservedDBs...); err != nil {
			return organization.Summary{}, err
		}
		desc := *in.Descriptor
		org.DBMode = organization.ModeDedicated
		org.Descriptor = &desc
	}

	unlock := s.locks.Lock(keyLock(org.PartitionKey))
	defer unlock()

	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return organization.Summary{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return organization.Summary{}, err
	}
	org.Admin.PasswordHash = hash

	if err := s.provision(ctx, org); err != nil {
		return organization.Summary{}, err
	}

	if err := s.registry.Create(ctx, org); err != nil {
		// The partition is left in place: on a conflict it belongs to the
		// winner, and on other failures the record may have been written.
		return organization.Summary{}, err
	}

	s.logger.InfoContext(ctx, "organization created",
		logger.OrgID(org.ID),
		logger.OrgName(org.Name),
		logger.DBMode(string(org.DBMode)),
	)
	return org.Summary(), nil
}

// ensureNameFree fails with ErrConflict if name belongs to an organization other than selfID.
func (s *service) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.registry.FindByName(ctx, name)
	switch {
	case errors.Is(err, organization.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return fmt.Errorf("%w: organization %q already exists", organization.ErrConflict, existing.Name)
	default:
		return nil
	}
}

// provision creates the partition of a new organization. Dedicated targets
// are dialed and probed without touching the connection cache.
func (s *service) provision(ctx context.Context, org *organization.Organization) error {
	if org.DBMode == organization.ModeDedicated {
		h, err := s.resolver.Open(ctx, *org.Descriptor)
		if err != nil {
			return err
		}
		defer s.closeHandle(ctx, h)

		if err := h.Provision(ctx, org.PartitionKey); err != nil {
			return errors.Join(organization.ErrConnectionUnavailable, err)
		}
		return nil
	}

	conn, err := s.resolver.Resolve(ctx, org)
	if err != nil {
		return err
	}
	defer conn.Release()

	if err := conn.Provision(ctx, org.PartitionKey); err != nil {
		return fmt.Errorf("failed to provision partition: %w", err)
	}
	return nil
}

func (s *service) closeHandle(ctx context.Context, h connection.Handle) {
	if err := h.Close(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to close tenant connection", logger.Error(err))
	}
}

func (s *service) Get(ctx context.Context, name string) (organization.Summary, error) {
	if err := validator.Apply(validator.Required("organization_name", strings.TrimSpace(name))); err != nil {
		return organization.Summary{}, errors.Join(organization.ErrValidation, err)
	}

	org, err := s.registry.FindByName(ctx, name)
	if err != nil {
		return organization.Summary{}, err
	}
	return org.Summary(), nil
}

// authorized loads the organization called name under its mutation lock and
// checks that the bearer of token administers it. The caller must call the
// returned unlock function.
func (s *service) authorized(ctx context.Context, name, token string) (*organization.Organization, func(), error) {
	claims, err := s.gate.Verify(token)
	if err != nil {
		return nil, nil, err
	}

	found, err := s.registry.FindByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	unlock := s.locks.Lock(idLock(found.ID))
	// Reload: another mutation may have finished while this one waited,
	// possibly renaming the organization away from name.
	org, err := s.registry.FindByID(ctx, found.ID)
	if err == nil && org.PartitionKey != organization.PartitionKey(name) {
		err = organization.ErrNotFound
	}
	if err != nil {
		unlock()
		return nil, nil, err
	}
	if err := s.gate.Authorize(claims, org); err != nil {
		unlock()
		return nil, nil, err
	}
	return org, unlock, nil
}

func (s *service) Update(ctx context.Context, name string, in UpdateInput, token string) (organization.Summary, error) {
	org, unlock, err := s.authorized(ctx, name, token)
	if err != nil {
		return organization.Summary{}, err
	}
	defer unlock()

	patch, err := s.buildPatch(org, in)
	if err != nil {
		return organization.Summary{}, err
	}
	if patch.IsEmpty() {
		return org.Summary(), nil
	}

	// Apply only previews the result; the registry stamps the stored one.
	next, err := patch.Apply(org, org.UpdatedAt)
	if err != nil {
		return organization.Summary{}, err
	}

	renamed := next.PartitionKey != org.PartitionKey
	if renamed {
		unlockKey := s.locks.Lock(keyLock(next.PartitionKey))
		defer unlockKey()
	}
	if patch.Name != nil {
		if err := s.ensureNameFree(ctx, next.Name, org.ID); err != nil {
			return organization.Summary{}, err
		}
	}

	finish, err := s.movePartition(ctx, org, next, patch.Descriptor != nil)
	if err != nil {
		return organization.Summary{}, err
	}

	updated, err := s.registry.Update(ctx, org.ID, patch)
	finish(err == nil)
	if err != nil {
		return organization.Summary{}, err
	}

	if org.DBMode == organization.ModeDedicated {
		s.resolver.Invalidate(ctx, org.ID)
	}

	s.logger.InfoContext(ctx, "organization updated",
		logger.OrgID(updated.ID),
		logger.OrgName(updated.Name),
		slog.Bool("renamed", renamed),
		slog.Bool("descriptor_changed", patch.Descriptor != nil),
		slog.Bool("credential_changed", patch.AdminEmail != nil || patch.PasswordHash != nil),
	)
	return updated.Summary(), nil
}

// buildPatch validates in against org and keeps only real changes.
func (s *service) buildPatch(org *organization.Organization, in UpdateInput) (organization.Patch, error) {
	var patch organization.Patch

	if in.Password != nil {
		if err := organization.ValidatePassword(*in.Password); err != nil {
			return patch, err
		}
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := organization.ValidateName(name); err != nil {
			return patch, err
		}
		if name != org.Name {
			patch.Name = &name
		}
	}
	if in.Email != nil {
		email := organization.NormalizeEmail(*in.Email)
		if err := organization.ValidateEmail(email); err != nil {
			return patch, err
		}
		if email != org.Admin.Email {
			patch.AdminEmail = &email
		}
	}
	if in.DBMode != nil && *in.DBMode != org.DBMode {
		mode := *in.DBMode
		patch.DBMode = &mode
	}
	if in.URI != nil || in.DatabaseName != nil {
		if org.DBMode != organization.ModeDedicated || org.Descriptor == nil {
			return patch, fmt.Errorf("%w: shared organizations have no connection descriptor", organization.ErrConflict)
		}
		desc := *org.Descriptor
		if in.URI != nil {
			desc.URI = strings.TrimSpace(*in.URI)
		}
		if in.DatabaseName != nil {
			desc.DatabaseName = strings.TrimSpace(*in.DatabaseName)
		}
		if err := organization.ValidateDescriptor(desc, s.reservedDBs...); err != nil {
			return patch, err
		}
		if desc != *org.Descriptor {
			patch.Descriptor = &desc
		}
	}

	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return patch, err
		}
		patch.PasswordHash = &hash
	}
	return patch, nil
}

// movePartition prepares storage for next. A new descriptor is probed and
// gets a fresh partition; a rename on the same database moves the partition.
// The returned function must be called with the outcome of the registry
// commit; it reverts the move if the commit failed.
func (s *service) movePartition(ctx context.Context, org, next *organization.Organization, newTarget bool) (func(committed bool), error) {
	noop := func(bool) {}

	if newTarget {
		h, err := s.resolver.Open(ctx, *next.Descriptor)
		if err != nil {
			return noop, err
		}
		defer s.closeHandle(ctx, h)

		if err := h.Provision(ctx, next.PartitionKey); err != nil {
			return noop, errors.Join(organization.ErrConnectionUnavailable, err)
		}
		return noop, nil
	}

	if next.PartitionKey == org.PartitionKey {
		return noop, nil
	}

	conn, err := s.resolver.Resolve(ctx, org)
	if err != nil {
		return noop, err
	}
	if err := conn.RenamePartition(ctx, org.PartitionKey, next.PartitionKey); err != nil {
		conn.Release()
		if errors.Is(err, connection.ErrPartitionExists) {
			return noop, fmt.Errorf("%w: partition for %q already exists", organization.ErrConflict, next.Name)
		}
		return noop, fmt.Errorf("failed to rename partition: %w", err)
	}

	return func(committed bool) {
		defer conn.Release()
		if committed {
			return
		}
		if err := conn.RenamePartition(context.WithoutCancel(ctx), next.PartitionKey, org.PartitionKey); err != nil {
			s.logger.ErrorContext(ctx, "failed to restore partition after aborted rename",
				logger.OrgID(org.ID),
				slog.String("partition", organization.PartitionName(next.PartitionKey)),
				logger.Error(err),
			)
		}
	}, nil
}

func (s *service) Delete(ctx context.Context, name, token string) error {
	org, unlock, err := s.authorized(ctx, name, token)
	if err != nil {
		return err
	}
	defer unlock()

	s.resolver.Invalidate(ctx, org.ID)
	if err := s.registry.Delete(ctx, org.ID); err != nil {
		return err
	}
	// Drop anything a concurrent reader cached between the two steps.
	s.resolver.Invalidate(ctx, org.ID)

	s.dropPartition(ctx, org)

	s.logger.InfoContext(ctx, "organization deleted",
		logger.OrgID(org.ID),
		logger.OrgName(org.Name),
		logger.DBMode(string(org.DBMode)),
	)
	return nil
}

// dropPartition removes the partition of a deleted organization. Failures are only logged.
func (s *service) dropPartition(ctx context.Context, org *organization.Organization) {
	ctx = context.WithoutCancel(ctx)
	fail := func(err error) {
		s.logger.WarnContext(ctx, "failed to drop partition of deleted organization",
			logger.OrgID(org.ID),
			slog.String("partition", organization.PartitionName(org.PartitionKey)),
			logger.Error(err),
		)
	}

	var h connection.Handle
	if org.DBMode == organization.ModeDedicated {
		opened, err := s.resolver.Open(ctx, *org.Descriptor)
		if err != nil {
			fail(err)
			return
		}
		defer s.closeHandle(ctx, opened)
		h = opened
	} else {
		conn, err := s.resolver.Resolve(ctx, org)
		if err != nil {
			fail(err)
			return
		}
		defer conn.Release()
		h = conn
	}

	if err := h.DropPartition(ctx, org.PartitionKey); err != nil {
		fail(err)
	}
}

func (s *service) Login(ctx context.Context, in LoginInput) (authgate.Token, error) {
	email := organization.NormalizeEmail(in.Email)
	if err := organization.ValidateEmail(email); err != nil {
		return authgate.Token{}, err
	}

	org, err := s.registry.FindByName(ctx, in.OrgName)
	if err != nil && !errors.Is(err, organization.ErrNotFound) {
		return authgate.Token{}, err
	}

	hash := s.fallbackHash()
	if org != nil && org.Admin.Email == email {
		hash = org.Admin.PasswordHash
	}

	var ok bool
	if hash != "" {
		if ok, err = s.hasher.Verify(in.Password, hash); err != nil {
			return authgate.Token{}, err
		}
	}
	if !ok || org == nil || org.Admin.Email != email {
		s.logger.InfoContext(ctx, "admin login rejected", logger.OrgName(in.OrgName))
		return authgate.Token{}, organization.ErrInvalidCredential
	}

	token, err := s.gate.Issue(org)
	if err != nil {
		return authgate.Token{}, err
	}
	s.logger.InfoContext(ctx, "admin logged in", logger.OrgID(org.ID), logger.OrgName(org.Name))
	return token, nil
}

func (s *service) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func (s *service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.registry.CountByMode(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Organizations: counts, Connections: s.resolver.Stats()}, nil
}
