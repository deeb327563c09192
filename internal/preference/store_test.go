package preference_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/kode4food/runstream/internal/assert"
	"github.com/kode4food/runstream/internal/preference"
)

func TestRedisStore(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()

	server, err := miniredis.Run()
	as.Require.NoError(err)
	defer server.Close()

	s, err := preference.Open(ctx, "redis://"+server.Addr(), "user-1")
	as.Require.NoError(err)
	defer func() { _ = s.Close() }()

	minimized, err := s.Minimized(ctx)
	as.NoError(err)
	as.False(minimized)

	as.NoError(s.SetMinimized(ctx, true))
	minimized, err = s.Minimized(ctx)
	as.NoError(err)
	as.True(minimized)

	key := "runstream:user-1:" + preference.Key
	val, err := server.Get(key)
	as.NoError(err)
	as.Equal("true", val)

	as.NoError(server.Set(key, "sideways"))
	_, err = s.Minimized(ctx)
	as.ErrorIs(err, preference.ErrInvalidValue)
}

func TestRedisStoreUnavailable(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()

	server, err := miniredis.Run()
	as.Require.NoError(err)
	addr := server.Addr()
	server.Close()

	s, err := preference.Open(ctx, "redis://"+addr, "user-1")
	as.Require.NoError(err)
	defer func() { _ = s.Close() }()

	_, err = s.Minimized(ctx)
	as.Error(err)
}

func TestBlobStore(t *testing.T) {
	for name, url := range map[string]string{
		"mem":  "mem://",
		"file": "file://" + t.TempDir(),
	} {
		t.Run(name, func(t *testing.T) {
			as := assert.New(t)
			ctx := context.Background()

			s, err := preference.Open(ctx, url, "user-1")
			as.Require.NoError(err)
			defer func() { _ = s.Close() }()

			minimized, err := s.Minimized(ctx)
			as.NoError(err)
			as.False(minimized)

			as.NoError(s.SetMinimized(ctx, true))
			minimized, err = s.Minimized(ctx)
			as.NoError(err)
			as.True(minimized)

			as.NoError(s.SetMinimized(ctx, false))
			minimized, err = s.Minimized(ctx)
			as.NoError(err)
			as.False(minimized)
		})
	}
}

func TestBlobStorePerUser(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	url := "file://" + t.TempDir()

	alice, err := preference.Open(ctx, url, "alice")
	as.Require.NoError(err)
	defer func() { _ = alice.Close() }()
	anon, err := preference.Open(ctx, url, "")
	as.Require.NoError(err)
	defer func() { _ = anon.Close() }()

	as.NoError(alice.SetMinimized(ctx, true))

	minimized, err := anon.Minimized(ctx)
	as.NoError(err)
	as.False(minimized)

	reopened, err := preference.Open(ctx, url, "alice")
	as.Require.NoError(err)
	defer func() { _ = reopened.Close() }()
	minimized, err = reopened.Minimized(ctx)
	as.NoError(err)
	as.True(minimized)
}

func TestOpenErrors(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()

	_, err := preference.Open(ctx, "no-scheme", "u")
	as.ErrorIs(err, preference.ErrInvalidURL)

	_, err = preference.Open(ctx, "redis://:bad:port/x", "u")
	as.ErrorIs(err, preference.ErrInvalidURL)

	_, err = preference.Open(ctx, "nosuchscheme://bucket", "u")
	as.Error(err)
}
