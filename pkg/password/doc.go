// Package password hashes and verifies secrets with bcrypt.
//
// Hasher is safe for concurrent use. Verify never reports why a comparison
// failed beyond a mismatch; malformed hashes are returned as errors so callers
// can tell storage corruption apart from a wrong password.
package password
