package bundle

import (
	"strings"
	"time"
)

// SameSite values as recorded by the capturing client. A nil SameSite on a
// regular cookie is coerced to SameSiteNone on restore, because the
// destination runtime requires a concrete policy.
const (
	SameSiteStrict = "Strict"
	SameSiteLax    = "Lax"
	SameSiteNone   = "None"
)

// Cookie is one captured browser cookie with the attributes needed to
// replay it.
type Cookie struct {
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Domain   string     `json:"domain,omitempty"`
	Path     string     `json:"path,omitempty"`
	Secure   bool       `json:"secure"`
	HTTPOnly bool       `json:"httpOnly"`
	SameSite *string    `json:"sameSite,omitempty"`
	Expires  *time.Time `json:"expires,omitempty"`
}

// Class groups cookies by the security semantics their name prefix imposes
// on write.
type Class int

const (
	// ClassRegular cookies replay with their recorded attributes.
	ClassRegular Class = iota
	// ClassHostLocked (__Host- prefix) must be secure, path=/ and carry no
	// domain attribute.
	ClassHostLocked
	// ClassSecureLocked (__Secure- prefix) must be secure.
	ClassSecureLocked
)

const (
	hostPrefix   = "__Host-"
	securePrefix = "__Secure-"
)

// Classify returns the replay class the cookie's name dictates.
func (c Cookie) Classify() Class {
	switch {
	case strings.HasPrefix(c.Name, hostPrefix):
		return ClassHostLocked
	case strings.HasPrefix(c.Name, securePrefix):
		return ClassSecureLocked
	default:
		return ClassRegular
	}
}

// BaseDomain returns the last two labels of a host name, e.g.
// "www.example.com" -> "example.com". Single-label hosts return unchanged.
func BaseDomain(domain string) string {
	labels := strings.Split(strings.TrimPrefix(domain, "."), ".")
	if len(labels) <= 2 {
		return strings.Join(labels, ".")
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// RelatesTo reports whether the cookie should travel with bundles for
// domain. The rule deliberately over-includes: authentication cookies are
// often set on a sibling subdomain of the one currently loaded, and losing
// them breaks the restored session.
func (c Cookie) RelatesTo(domain string) bool {
	if c.Domain == "" {
		// No domain attribute recorded: session-scoped, always keep.
		return true
	}
	cd := strings.TrimPrefix(c.Domain, ".")
	base := BaseDomain(domain)
	if cd == domain || cd == base {
		return true
	}
	// domain is a subdomain of the cookie's domain
	if strings.HasSuffix(domain, "."+cd) {
		return true
	}
	// the cookie's domain is a subdomain of the base domain
	if strings.HasSuffix(cd, "."+base) {
		return true
	}
	return false
}
