package registry

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// profile maps user input to its ASCII (punycode) form. Underscores stay
// legal so service labels such as _acme-challenge can be managed.
var profile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.StrictDomainName(false),
)

// NormalizeDomain returns the canonical lower-case ASCII form of a domain
// name. The name must have at least two labels.
func NormalizeDomain(name string) (string, error) {
	ascii, err := toASCII(name)
	if err != nil {
		return "", err
	}
	if dns.CountLabel(ascii) < 2 {
		return "", fmt.Errorf("%w: %q needs at least two labels", ErrInvalidDomain, name)
	}
	return ascii, nil
}

// NormalizeSubdomain returns the canonical form of a relative name placed in
// front of a managed domain. Multi-label names ("a.b") are allowed.
func NormalizeSubdomain(name string) (string, error) {
	return toASCII(name)
}

// JoinFQDN builds subdomain + "." + domain.
func JoinFQDN(subdomain, domain string) string {
	return subdomain + "." + domain
}

func toASCII(name string) (string, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(name), ".")
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidDomain)
	}

	ascii, err := profile.ToASCII(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, name, err)
	}
	ascii = strings.ToLower(ascii)

	if _, ok := dns.IsDomainName(ascii); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, name)
	}
	for _, label := range dns.SplitDomainName(ascii) {
		if !validLabel(label) {
			return "", fmt.Errorf("%w: invalid label %q in %q", ErrInvalidDomain, label, name)
		}
	}
	return ascii, nil
}

func validLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
