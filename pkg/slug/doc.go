// Package slug turns free-form text into deterministic, storage-safe identifiers.
//
// The output contains only lowercase ASCII letters, digits and the configured
// separator. Diacritics are folded to their base letters, every other run of
// characters collapses into a single separator, and leading or trailing
// separators are trimmed. The same input always produces the same slug, which
// makes the result suitable as a storage partition name.
//
// # Usage
//
//	slug.Make("Acme Corporation")                  // "acme-corporation"
//	slug.Make("Acme Corporation", slug.Separator("_")) // "acme_corporation"
//	slug.Make("Café  Zürich!", slug.Separator("_"))    // "cafe_zurich"
package slug
