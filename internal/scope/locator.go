package scope

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Identity describes where a source-provided identity token lives in a
// locator: a query parameter, or the path segment after a marker segment.
type Identity struct {
	QueryParam string
	PathMarker string
}

func DefaultIdentity() Identity {
	return Identity{QueryParam: "guid", PathMarker: "document"}
}

// StableID returns the identity token of a locator, or "" if it has none.
func (i Identity) StableID(locator string) string {
	u, err := url.Parse(locator)
	if err != nil {
		return ""
	}

	if i.QueryParam != "" {
		for key, values := range u.Query() {
			if strings.EqualFold(key, i.QueryParam) && len(values) > 0 && values[0] != "" {
				return values[0]
			}
		}
	}

	if i.PathMarker != "" {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		for k := 0; k < len(segments)-1; k++ {
			if strings.EqualFold(segments[k], i.PathMarker) && segments[k+1] != "" {
				return segments[k+1]
			}
		}
	}
	return ""
}

// Normalize returns the canonical form of an absolute locator: fragment
// dropped, scheme and host lowercased, query parameters sorted and the
// trailing slash removed.
func Normalize(locator string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return "", fmt.Errorf("parse locator %q: %w", locator, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("locator %q is not absolute", locator)
	}
	return normalizeURL(u), nil
}

// Resolve makes href absolute against base and normalizes it.
func Resolve(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}

	relURL, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}

	return Normalize(baseURL.ResolveReference(relURL).String())
}

func normalizeURL(u *url.URL) string {
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.RawQuery != "" {
		query := u.Query()
		keys := make([]string, 0, len(query))
		for key := range query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			values := query[key]
			sort.Strings(values)
			for _, value := range values {
				parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(value))
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}

	if u.Path == "/" {
		u.Path = ""
	} else if strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	u.RawPath = ""
	return u.String()
}

// Host returns the lowercased host name of a locator without the port.
func Host(locator string) string {
	u, err := url.Parse(locator)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
