package token

import "github.com/oklog/ulid/v2"

// NewSessionID returns an opaque session token. ULIDs draw their entropy
// from crypto/rand and are safe to hand to clients as bearer identifiers.
func NewSessionID() string {
	return ulid.Make().String()
}
