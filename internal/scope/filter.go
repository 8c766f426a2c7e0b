package scope

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultExcludeText matches breadcrumb links that climb to the enclosing
// title of the code.
const DefaultExcludeText = `(?i)^Title\s+\d+`

type Reason string

const (
	ReasonNone       Reason = ""
	ReasonInvalid    Reason = "invalid"
	ReasonScheme     Reason = "scheme"
	ReasonAsset      Reason = "asset"
	ReasonHost       Reason = "host"
	ReasonPath       Reason = "path"
	ReasonNoStableID Reason = "no_stable_id"
	ReasonLinkText   Reason = "link_text"
)

// Decision is the outcome of a scope check. A rejection is an expected
// result, not an error.
type Decision struct {
	Allowed bool
	Reason  Reason
}

type FilterConfig struct {
	AllowedHosts        []string
	AllowedPathPrefixes []string
	RequireStableID     bool
	ExcludeLinkText     string
}

type Filter struct {
	hosts           []string
	pathPrefixes    []string
	requireStableID bool
	excludeText     *regexp.Regexp
}

var skipExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg",
	".css", ".js", ".zip", ".tar", ".gz",
	".exe", ".dmg", ".iso",
	".mp4", ".avi", ".mov",
	".mp3", ".wav",
	".doc", ".docx", ".xls", ".xlsx",
}

func NewFilter(cfg FilterConfig) (*Filter, error) {
	f := &Filter{
		pathPrefixes:    cfg.AllowedPathPrefixes,
		requireStableID: cfg.RequireStableID,
	}
	for _, host := range cfg.AllowedHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			f.hosts = append(f.hosts, host)
		}
	}

	if cfg.ExcludeLinkText != "" {
		re, err := regexp.Compile(cfg.ExcludeLinkText)
		if err != nil {
			return nil, fmt.Errorf("invalid link text exclusion %q: %w", cfg.ExcludeLinkText, err)
		}
		f.excludeText = re
	}
	return f, nil
}

// Check decides whether a discovered link may be enqueued. Filters run in
// order: scheme, asset extension, host, path prefix, identity token, link
// text.
func (f *Filter) Check(locator, stableID, linkText string) Decision {
	u, err := url.Parse(locator)
	if err != nil {
		return reject(ReasonInvalid)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return reject(ReasonScheme)
	}

	path := strings.ToLower(u.Path)
	for _, ext := range skipExtensions {
		if strings.HasSuffix(path, ext) {
			return reject(ReasonAsset)
		}
	}

	if len(f.hosts) > 0 && !f.hostAllowed(strings.ToLower(u.Hostname())) {
		return reject(ReasonHost)
	}

	if len(f.pathPrefixes) > 0 && !f.pathAllowed(u.Path) {
		return reject(ReasonPath)
	}

	if f.requireStableID && stableID == "" {
		return reject(ReasonNoStableID)
	}

	if f.excludeText != nil && f.excludeText.MatchString(strings.TrimSpace(linkText)) {
		return reject(ReasonLinkText)
	}

	return Decision{Allowed: true}
}

func (f *Filter) hostAllowed(host string) bool {
	for _, allowed := range f.hosts {
		if host == allowed {
			return true
		}
	}
	return false
}

func (f *Filter) pathAllowed(path string) bool {
	for _, prefix := range f.pathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func reject(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}
