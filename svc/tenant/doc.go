// Package tenant orchestrates the organization lifecycle.
//
// The service validates input, hashes admin passwords, keeps each tenant's
// storage partition in step with its name, persists through an
// organization.Registry and evicts cached tenant connections whenever a
// record changes. Mutations of one organization are serialized; unrelated
// organizations never wait on each other.
//
// Update and Delete take the caller's bearer token and only proceed for the
// organization's current admin.
package tenant
