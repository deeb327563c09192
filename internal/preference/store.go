package preference

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Store keeps the panel preference for a single user
type Store interface {
	// Minimized returns the stored state, or false when nothing is stored
	Minimized(ctx context.Context) (bool, error)
	SetMinimized(ctx context.Context, minimized bool) error
	Close() error
}

const (
	// Key is the fixed name of the panel preference
	Key = "execution-panel-minimized"

	anonymousUser = "anonymous"
	redisPrefix   = "runstream"
)

var (
	ErrInvalidURL   = errors.New("invalid preference URL")
	ErrInvalidValue = errors.New("invalid stored preference")
)

// Open selects a Store by URL scheme. redis:// and rediss:// URLs use Redis;
// every other scheme is opened as a gocloud blob bucket
func Open(ctx context.Context, rawURL, userID string) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "":
		return nil, fmt.Errorf("%w: missing scheme in %q", ErrInvalidURL,
			rawURL)
	case "redis", "rediss":
		opts, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
		}
		return NewRedisStore(redis.NewClient(opts), userID), nil
	default:
		return OpenBlobStore(ctx, rawURL, userID)
	}
}

func userKey(userID string) string {
	if userID == "" {
		return anonymousUser
	}
	return userID
}

func parseValue(s string) (bool, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	return v, nil
}
