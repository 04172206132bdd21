package push

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrInvalidScheme is returned when an image URL is not HTTPS.
	ErrInvalidScheme = errors.New("only HTTPS allowed")
	// ErrPrivateIP is returned when a URL points at a private address.
	ErrPrivateIP = errors.New("private IP addresses not allowed")
	// ErrLocalhostBlocked is returned when localhost is used.
	ErrLocalhostBlocked = errors.New("localhost not allowed")
	// ErrInvalidURL is returned when URL parsing fails.
	ErrInvalidURL = errors.New("invalid URL format")
	// ErrEmptyHost is returned when URL has no host.
	ErrEmptyHost = errors.New("URL must have a host")
	// ErrInvalidDeepLink is returned when a deep link is not an app path.
	ErrInvalidDeepLink = errors.New("deep link must be an absolute app path")
)

// BlockedCIDRs contains private/internal IP ranges.
var BlockedCIDRs = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // Link-local
	"0.0.0.0/8",      // This network
	"::1/128",        // IPv6 loopback
	"fc00::/7",       // IPv6 private
	"fe80::/10",      // IPv6 link-local
}

var blockedNetworks []*net.IPNet

func init() {
	for _, cidr := range BlockedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err == nil {
			blockedNetworks = append(blockedNetworks, network)
		}
	}
}

// ValidateImageURL checks a notification image URL. Devices and the
// gateway fetch it, so it must be public HTTPS.
func ValidateImageURL(imageURL string) error {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return ErrInvalidURL
	}
	if parsed.Scheme != "https" {
		return ErrInvalidScheme
	}

	host := parsed.Hostname()
	if host == "" {
		return ErrEmptyHost
	}
	if isLocalhostHostname(host) {
		return ErrLocalhostBlocked
	}

	// Literal IPs are checked directly; names are left to the gateway.
	if ip := net.ParseIP(host); ip != nil && isBlockedIP(ip) {
		return ErrPrivateIP
	}
	return nil
}

// ValidateDeepLink checks that a deep link is an in-app path like
// "/prayer-times".
func ValidateDeepLink(link string) error {
	if !strings.HasPrefix(link, "/") || strings.HasPrefix(link, "//") {
		return ErrInvalidDeepLink
	}
	if strings.ContainsAny(link, " \t\r\n") {
		return ErrInvalidDeepLink
	}
	return nil
}

func isLocalhostHostname(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local")
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ExtractHost extracts host from URL for safe logging.
// Never log full URLs as they may contain secrets in path/query.
func ExtractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "(invalid)"
	}
	return parsed.Host
}
