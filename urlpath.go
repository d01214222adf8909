package netq

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// RemotePath extracts the path component of a protocol URL: everything from
// the first '/' after the authority onward, including the leading slash.
// It returns "" when the URL has no path segment. Server-side single-argument
// commands (DELE, RNFR, RNTO, MKD) take a bare path rather than a full URL.
func RemotePath(rawURL string) string {
	idx := strings.Index(rawURL, "://")
	if idx == -1 {
		return ""
	}

	rest := rawURL[idx+3:]
	slash := strings.IndexByte(rest, '/')
	if slash == -1 {
		return ""
	}

	return rest[slash:]
}

// lastPathSegment returns the final segment of a local path, accepting both
// '/' and '\' separators so Windows-style attachment paths work too.
func lastPathSegment(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i != -1 {
		return p[i+1:]
	}
	return p
}

// splitEndpoint parses a protocol URL into a dialable host:port plus the
// remote path, applying the scheme's default port when none is given.
func splitEndpoint(rawURL, defaultPort string) (addr, path string, u *url.URL, err error) {
	u, err = url.Parse(rawURL)
	if err != nil {
		return "", "", nil, fmt.Errorf("invalid URL: %w", err)
	}

	host := u.Hostname()
	if host == "" {
		return "", "", nil, fmt.Errorf("missing host in URL: %s", rawURL)
	}

	port := u.Port()
	if port == "" {
		port = defaultPort
	}

	// JoinHostPort brackets IPv6 literals so the address stays dialable.
	return net.JoinHostPort(host, port), u.Path, u, nil
}
