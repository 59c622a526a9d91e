package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrDisallowedURL is returned for URLs the fetcher refuses to request.
var ErrDisallowedURL = errors.New("disallowed URL")

var trackingParams = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true, "utm_term": true,
	"utm_content": true, "utm_id": true, "utm_source_platform": true,
	"utm_creative_format": true, "utm_marketing_tactic": true,
	"fbclid": true, "gclid": true, "msclkid": true, "twclid": true, "igshid": true,
	"ref": true, "_ga": true, "mc_cid": true, "mc_eid": true,
}

// ValidateURLForFetch rejects non-http(s) URLs and hosts that point at the
// local machine or a private network.
func ValidateURLForFetch(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: invalid URL %q", ErrDisallowedURL, rawURL)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrDisallowedURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: host %s", ErrDisallowedURL, host)
	}

	if ip := net.ParseIP(host); ip != nil {
		return ValidateIPForFetch(ip)
	}

	return nil
}

// ValidateIPForFetch rejects loopback, private, unspecified and link-local
// addresses. The fetcher applies it to every resolved address it dials.
func ValidateIPForFetch(ip net.IP) error {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return fmt.Errorf("%w: private address %s", ErrDisallowedURL, ip)
	}
	return nil
}

// NormalizeURL produces the stable form used for deduplication: lowercase
// scheme and host, no fragment, no tracking parameters, sorted query, and no
// trailing slash on non-root paths.
func NormalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return strings.ToLower(trimmed)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	query := u.Query()
	for key := range query {
		if trackingParams[strings.ToLower(key)] {
			query.Del(key)
		}
	}
	u.RawQuery = query.Encode()
	u.ForceQuery = false

	if u.Path == "" {
		u.Path = "/"
	}
	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	u.RawPath = ""

	return u.String()
}

// HashHex returns the hex-encoded SHA-256 of s.
func HashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
