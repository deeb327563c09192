package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

type (
	// TokenSource obtains a fresh, short-lived credential each time it is
	// called. Implementations may block and must honor ctx cancellation
	TokenSource interface {
		Token(ctx context.Context) (string, error)
	}

	// TokenFunc adapts a function to a TokenSource
	TokenFunc func(ctx context.Context) (string, error)

	// FileTokenSource re-reads a projected token file on every call, so a
	// sidecar that rotates the file is picked up without restarts
	FileTokenSource struct {
		path string
	}

	staticSource string
)

var (
	ErrNoToken     = errors.New("no token available")
	ErrEmptyPath   = errors.New("token file path is empty")
	ErrReadToken   = errors.New("failed to read token file")
	ErrNoTokenFunc = errors.New("token function is nil")
)

var (
	_ TokenSource = TokenFunc(nil)
	_ TokenSource = (*FileTokenSource)(nil)
	_ TokenSource = staticSource("")
)

// Static returns a TokenSource that always yields token
func Static(token string) TokenSource {
	return staticSource(token)
}

// NewFileTokenSource creates a source reading the token at path
func NewFileTokenSource(path string) (*FileTokenSource, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	return &FileTokenSource{path: path}, nil
}

// Token calls f
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	if f == nil {
		return "", ErrNoTokenFunc
	}
	return f(ctx)
}

// Token reads and trims the token file
func (s *FileTokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReadToken, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoToken, s.path)
	}
	return token, nil
}

func (s staticSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}
