package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrRender is wrapped by every failure reported by the rendering service.
var ErrRender = errors.New("render failed")

// DefaultBaseURL is the public Labelary API.
const DefaultBaseURL = "http://api.labelary.com/v1"

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	DPMM       int     // print density in dots per millimetre
	Width      float64 // label width in inches
	Height     float64 // label height in inches
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// Client renders ZPL through a Labelary-compatible HTTP service.
type Client struct {
	baseURL    string
	dpmm       int
	width      float64
	height     float64
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
}

// NewClient creates a render client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		dpmm:       opts.DPMM,
		width:      opts.Width,
		height:     opts.Height,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// URL is the endpoint a label is posted to.
func (c *Client) URL() string {
	return fmt.Sprintf("%s/printers/%ddpmm/labels/%sx%s/0/", c.baseURL, c.dpmm,
		strconv.FormatFloat(c.width, 'f', -1, 64), strconv.FormatFloat(c.height, 'f', -1, 64))
}

// Key identifies the rendering parameters, for caching.
func (c *Client) Key() string {
	return fmt.Sprintf("%ddpmm/%gx%g", c.dpmm, c.width, c.height)
}

// retryableError marks failures worth another attempt (429 and 5xx).
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Render posts zpl and returns the PNG image.
func (c *Client) Render(ctx context.Context, zpl string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.backoff
			log.Warn().Int("attempt", attempt+1).Dur("backoff", backoff).Msg("Retrying render")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		img, err := c.doRequest(ctx, zpl)
		if err == nil {
			return img, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var retry *retryableError
		if !errors.As(err, &retry) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("render failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, zpl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), strings.NewReader(zpl))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/png")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{fmt.Errorf("render call: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read render response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &retryableError{fmt.Errorf("%w (status %d): %s", ErrRender, resp.StatusCode, strings.TrimSpace(string(body)))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w (status %d): %s", ErrRender, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	log.Debug().Int("bytes", len(body)).Str("url", c.URL()).Msg("Label rendered")
	return body, nil
}
