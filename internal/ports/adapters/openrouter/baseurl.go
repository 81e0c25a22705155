package openrouter

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://openrouter.ai"

var defaultAllowedHosts = map[string]struct{}{
	"openrouter.ai":     {},
	"api.openrouter.ai": {},
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateBaseURL accepts only https URLs whose host is allowed. Plain http
// is tolerated for loopback hosts that were allowed explicitly, which is how
// local proxies are run.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	baseURL = normalizeBaseURL(baseURL)

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid llm base url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid llm base url %q: absolute URL with host is required", baseURL)
	}
	if u.User != nil {
		return fmt.Errorf("invalid llm base url %q: userinfo is not allowed", baseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid llm base url %q: query and fragment are not allowed", baseURL)
	}

	host := strings.ToLower(u.Hostname())
	allowed := normalizeAllowedHosts(allowedHosts)
	if _, ok := allowed[host]; !ok {
		return fmt.Errorf("invalid llm base url %q: host %q is not in the allowed hosts", baseURL, host)
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if len(allowedHosts) == 0 || !isLoopback(host) {
			return fmt.Errorf("invalid llm base url %q: https is required", baseURL)
		}
	default:
		return fmt.Errorf("invalid llm base url %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func normalizeAllowedHosts(allowedHosts []string) map[string]struct{} {
	if len(allowedHosts) == 0 {
		return defaultAllowedHosts
	}

	out := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(v, "http://")
		v = strings.TrimPrefix(v, "https://")
		v = strings.Trim(v, "/")
		if v == "" {
			continue
		}
		if i := strings.LastIndex(v, ":"); i >= 0 && !strings.Contains(v[i:], "]") {
			v = v[:i]
		}
		v = strings.Trim(v, "[]")
		out[v] = struct{}{}
	}
	if len(out) == 0 {
		return defaultAllowedHosts
	}
	return out
}
