// Package organization holds the organization data model, the error taxonomy
// shared by the tenant services and the durable Registry of organizations.
//
// Every organization has an immutable id, a unique name and a partition key
// derived from that name with PartitionKey. Uniqueness is enforced on the
// partition key, so names that differ only in case, spacing or punctuation
// collide:
//
//	organization.PartitionKey("Acme Corporation") // "acme_corporation"
//	organization.PartitionKey("ACME  corporation!") // "acme_corporation"
//
// Two Registry implementations are provided. MemoryRegistry backs tests and
// local runs; MongoRegistry stores records in a collection of the shared
// control database and relies on a unique index over partition_key.
//
// Errors returned by this package and by the services built on it wrap one of
// ErrNotFound, ErrConflict, ErrInvalidCredential, ErrUnauthorized,
// ErrConnectionUnavailable or ErrValidation. Field-level details stay
// reachable with validator.ExtractValidationErrors.
package organization
