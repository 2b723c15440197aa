package vault

import (
	"net/url"
	"strings"
)

// DomainMatcher decides whether a stored credential applies to a requested
// URL or app package. Matching is by registrable-host suffix: the credential
// for github.com matches gist.github.com but not evilgithub.com.
type DomainMatcher struct{}

// IsMatch reports whether c should be offered for requestURL / requestPackage.
// Either request field may be empty.
func (DomainMatcher) IsMatch(c Credential, requestURL, requestPackage string) bool {
	if requestPackage != "" && c.PackageName != "" && c.PackageName == requestPackage {
		return true
	}
	reqHost := hostOf(requestURL)
	if reqHost == "" {
		return false
	}
	if hostMatches(hostOf(c.Website), reqHost) {
		return true
	}
	for _, d := range c.AllowedDomains {
		if hostMatches(hostOf(d), reqHost) {
			return true
		}
	}
	return false
}

func hostOf(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func hostMatches(credHost, reqHost string) bool {
	if credHost == "" {
		return false
	}
	return reqHost == credHost || strings.HasSuffix(reqHost, "."+credHost)
}
