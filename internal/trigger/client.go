package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kode4food/runstream"
	"github.com/kode4food/runstream/pkg/api"
	"github.com/kode4food/runstream/pkg/log"
)

type (
	// Starter asks the execution service to start a run of a flow,
	// returning the textual response body
	Starter interface {
		Start(ctx context.Context, flowID api.FlowID, runID string) (string, error)
	}

	// Client is the HTTP Starter
	Client struct {
		httpClient *http.Client
		baseURL    string
	}
)

const maxResponseSize = 1 << 20

var (
	ErrStartFailed   = errors.New("execution start failed")
	ErrInvalidBase   = errors.New("invalid execution service URL")
	ErrMissingFlowID = errors.New("flow id is required")
)

var userAgent = fmt.Sprintf("%s/%s", runstream.Name, runstream.Version)

var _ Starter = (*Client)(nil)

// NewClient creates a Client for the service at baseURL
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBase, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBase, baseURL)
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Start posts to /flows/{flowID}/execute. Any 2xx response yields its body
// as text; anything else is an ErrStartFailed carrying the reason
func (c *Client) Start(
	ctx context.Context, flowID api.FlowID, runID string,
) (string, error) {
	if flowID == "" {
		return "", ErrMissingFlowID
	}

	body, err := json.Marshal(api.StartRequest{RunID: runID})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/flows/%s/execute",
		c.baseURL, url.PathEscape(string(flowID)))
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint, bytes.NewReader(body),
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain, application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	dur := time.Since(start)
	if err != nil {
		slog.Error("Execution start request failed",
			log.FlowID(flowID),
			log.RunID(runID),
			slog.Duration("duration", dur),
			log.Error(err))
		return "", fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := failureReason(resp, respBody)
		slog.Error("Execution start rejected",
			log.FlowID(flowID),
			log.RunID(runID),
			slog.Int("status_code", resp.StatusCode),
			log.ErrorString(reason))
		return "", fmt.Errorf("%w: %s", ErrStartFailed, reason)
	}

	slog.Debug("Execution started",
		log.FlowID(flowID),
		log.RunID(runID),
		slog.Duration("duration", dur))
	return string(respBody), nil
}

func failureReason(resp *http.Response, body []byte) string {
	if gjson.ValidBytes(body) {
		msg := gjson.GetBytes(body, "error")
		if msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return resp.Status
}
