package organization

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/dmitrymomot/orgkit/pkg/slug"
)

// DBMode tells where an organization's data lives.
type DBMode string

const (
	// ModeShared keeps tenant data in a partition of the shared database.
	ModeShared DBMode = "shared"
	// ModeDedicated keeps tenant data in a database supplied by the tenant.
	ModeDedicated DBMode = "dedicated"
)

func (m DBMode) Valid() bool {
	return m == ModeShared || m == ModeDedicated
}

// partitionKeyMaxLength keeps "org_" + key within the 63 byte Postgres identifier limit.
const partitionKeyMaxLength = 59

// PartitionKey derives the storage partition key from an organization name.
func PartitionKey(name string) string {
	return slug.Make(strings.TrimSpace(name), slug.Separator("_"), slug.MaxLength(partitionKeyMaxLength))
}

// PartitionName is the collection or schema name holding a shared tenant's data.
func PartitionName(partitionKey string) string {
	return "org_" + partitionKey
}

// ConnectionDescriptor locates a dedicated tenant database.
type ConnectionDescriptor struct {
	URI          string `json:"uri" bson:"uri"`
	DatabaseName string `json:"database_name" bson:"database_name"`
}

// Fingerprint identifies the descriptor without exposing the URI, which may carry credentials.
func (d ConnectionDescriptor) Fingerprint() string {
	sum := sha256.Sum256([]byte(d.URI + "\x00" + d.DatabaseName))
	return hex.EncodeToString(sum[:8])
}

// Admin is the organization's administrator credential.
type Admin struct {
	Email           string    `json:"email" bson:"email"`
	PasswordHash    string    `json:"-" bson:"password_hash"`
	CredentialSetAt time.Time `json:"credential_set_at" bson:"credential_set_at"`
}

// Organization is the persisted tenant record.
type Organization struct {
	ID           string                `json:"id" bson:"_id"`
	Name         string                `json:"organization_name" bson:"organization_name"`
	PartitionKey string                `json:"partition_key" bson:"partition_key"`
	Admin        Admin                 `json:"admin" bson:"admin"`
	DBMode       DBMode                `json:"db_mode" bson:"db_mode"`
	Descriptor   *ConnectionDescriptor `json:"-" bson:"connection_descriptor,omitempty"`
	CreatedAt    time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at" bson:"updated_at"`
}

// Clone returns a deep copy.
func (o *Organization) Clone() *Organization {
	if o == nil {
		return nil
	}
	c := *o
	if o.Descriptor != nil {
		d := *o.Descriptor
		c.Descriptor = &d
	}
	return &c
}

// Summary is the public view of an organization. It never carries the
// password hash or the connection URI.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"organization_name"`
	PartitionKey string    `json:"partition_key"`
	AdminEmail   string    `json:"admin_email"`
	DBMode       DBMode    `json:"db_mode"`
	DatabaseName string    `json:"database_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (o *Organization) Summary() Summary {
	s := Summary{
		ID:           o.ID,
		Name:         o.Name,
		PartitionKey: o.PartitionKey,
		AdminEmail:   o.Admin.Email,
		DBMode:       o.DBMode,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	if o.Descriptor != nil {
		s.DatabaseName = o.Descriptor.DatabaseName
	}
	return s
}

// Patch lists the fields an update changes. Nil fields are left alone.
// The partition key is never patched directly; it follows Name.
type Patch struct {
	Name         *string
	AdminEmail   *string
	PasswordHash *string
	DBMode       *DBMode
	Descriptor   *ConnectionDescriptor
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.AdminEmail == nil && p.PasswordHash == nil && p.DBMode == nil && p.Descriptor == nil
}

// Apply returns a copy of org with the patch applied and UpdatedAt set to now.
// It fails with ErrConflict on a mode change or a descriptor for a shared organization.
func (p Patch) Apply(org *Organization, now time.Time) (*Organization, error) {
	next := org.Clone()

	if p.DBMode != nil && *p.DBMode != org.DBMode {
		return nil, errConflict("db_mode cannot be changed")
	}
	if p.Descriptor != nil && org.DBMode != ModeDedicated {
		return nil, errConflict("shared organizations have no connection descriptor")
	}

	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
		next.PartitionKey = PartitionKey(next.Name)
	}
	if p.AdminEmail != nil {
		next.Admin.Email = *p.AdminEmail
		next.Admin.CredentialSetAt = now
	}
	if p.PasswordHash != nil {
		next.Admin.PasswordHash = *p.PasswordHash
		next.Admin.CredentialSetAt = now
	}
	if p.Descriptor != nil {
		d := *p.Descriptor
		next.Descriptor = &d
	}
	next.UpdatedAt = now

	return next, nil
}
