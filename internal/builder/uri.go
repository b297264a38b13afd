package builder

import (
	"net/url"
	"strings"

	"github.com/project-kessel/oidcforge/internal/fault"
)

// parseURIs parses relative or absolute endpoint addresses
func parseURIs(param string, values []string) ([]*url.URL, error) {
	uris := make([]*url.URL, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return nil, fault.Argument(param, "URIs cannot contain empty entries")
		}
		if !wellFormed(v) {
			return nil, fault.Argumentf(param, "%q is not a well-formed URI", v)
		}
		u, err := url.Parse(v)
		if err != nil {
			return nil, fault.Argumentf(param, "%q is not a valid URI: %v", v, err)
		}
		if err := checkURI(param, u); err != nil {
			return nil, err
		}
		uris = append(uris, u)
	}
	return uris, nil
}

// checkURIs validates pre-parsed endpoint addresses and copies them
func checkURIs(param string, values []*url.URL) ([]*url.URL, error) {
	uris := make([]*url.URL, 0, len(values))
	for _, u := range values {
		if u == nil {
			return nil, fault.Argument(param, "URIs cannot contain nil entries")
		}
		if err := checkURI(param, u); err != nil {
			return nil, err
		}
		c := *u
		uris = append(uris, &c)
	}
	return uris, nil
}

func checkURI(param string, u *url.URL) error {
	switch {
	case u.Opaque != "":
		return fault.Argumentf(param, "%q is not a hierarchical URI", u.String())
	case strings.HasPrefix(u.Path, "~"):
		return fault.Argumentf(param, "%q must not start with '~'", u.String())
	case u.IsAbs() && u.Host == "":
		return fault.Argumentf(param, "%q is an absolute URI without a host", u.String())
	case !u.IsAbs() && u.Host != "":
		return fault.Argumentf(param, "%q is a scheme-relative URI", u.String())
	case u.Fragment != "":
		return fault.Argumentf(param, "%q must not contain a fragment", u.String())
	case u.String() == "":
		return fault.Argument(param, "URIs cannot contain empty entries")
	case !wellFormed(u.RawQuery):
		return fault.Argumentf(param, "%q has a malformed query", u.String())
	}
	return nil
}

// wellFormed reports whether s only uses characters allowed in an RFC 3986
// URI and every '%' starts a valid escape
func wellFormed(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c <= ' ' || c >= 0x7f:
			return false
		case strings.IndexByte(`"<>\^`+"`{|}", c) >= 0:
			return false
		case c == '%':
			if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
				return false
			}
			i += 2
		}
	}
	return true
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

// parseAbsoluteURI parses an absolute http(s) URI such as an issuer
func parseAbsoluteURI(param, value string) (*url.URL, error) {
	if strings.TrimSpace(value) == "" {
		return nil, fault.Argument(param, "must not be empty")
	}
	uris, err := parseURIs(param, []string{value})
	if err != nil {
		return nil, err
	}
	return checkAbsoluteURI(param, uris[0])
}

func checkAbsoluteURI(param string, u *url.URL) (*url.URL, error) {
	if u == nil {
		return nil, fault.Argument(param, "must not be nil")
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fault.Argumentf(param, "%q must be an absolute URI", u.String())
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fault.Argumentf(param, "%q must use the http or https scheme", u.String())
	}
	if err := checkURI(param, u); err != nil {
		return nil, err
	}
	c := *u
	return &c, nil
}
