package bundle

import "strings"

// CredentialBundle is the saved credential material for one network domain:
// every related cookie plus full copies of both key-value storages. Bundles
// have no TTL; a save overwrites the previous bundle for the domain.
type CredentialBundle struct {
	Domain       string            `json:"domain"`
	Cookies      []Cookie          `json:"cookies"`
	LocalStore   map[string]string `json:"localStorage"`
	SessionStore map[string]string `json:"sessionStorage"`
}

// FilterCookies keeps the cookies that relate to domain under the
// subdomain-or-parent rule.
func FilterCookies(cookies []Cookie, domain string) []Cookie {
	var kept []Cookie
	for _, c := range cookies {
		if c.RelatesTo(domain) {
			kept = append(kept, c)
		}
	}
	return kept
}

// HasRelevantCookies reports whether any cookie in the bundle relates to
// domain.
func (b *CredentialBundle) HasRelevantCookies(domain string) bool {
	for _, c := range b.Cookies {
		if c.RelatesTo(domain) {
			return true
		}
	}
	return false
}

// FileName returns the at-rest key for a domain's bundle. Dots are kept;
// path separators are not expected in host names but are stripped
// defensively before the name touches the filesystem.
func FileName(domain string) string {
	name := strings.ReplaceAll(domain, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	name = strings.ReplaceAll(name, "..", "")
	return name + ".json"
}
