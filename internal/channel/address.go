package channel

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Path is the fixed path of the status endpoint on the page origin
const Path = "/ws"

// ErrInvalidOrigin is returned when an origin cannot be mapped to a channel
// address
var ErrInvalidOrigin = errors.New("invalid origin")

// ResolveURL derives the channel address from a page origin. http becomes
// ws and https becomes wss; the host is kept and any path, query, or
// fragment on the origin is replaced by Path
func ResolveURL(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidOrigin, err)
	}

	var scheme string
	switch strings.ToLower(u.Scheme) {
	case "http":
		scheme = "ws"
	case "https":
		scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidOrigin,
			u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidOrigin,
			origin)
	}

	res := url.URL{Scheme: scheme, Host: u.Host, Path: Path}
	return res.String(), nil
}
