// Package authgate issues and checks organization admin tokens.
//
// A token is an HS256 JWT whose subject is the admin email. It also carries
// the organization ID and name. Authorize accepts a token for an operation
// only if both the ID and the email still match the current record, so
// changing the admin email retires every token issued before the change.
// There is no revocation list; other tokens stay valid until they expire.
package authgate
