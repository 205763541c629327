package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/csvglance/internal/logging"
	"github.com/KaramelBytes/csvglance/internal/pipeline"
	"github.com/google/uuid"
)

// FileField is the multipart field the upload service reads.
const FileField = "file"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 32 << 20

// Client uploads files to the analysis service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      retryPolicy
	log        *logging.Logger
	sleep      func(time.Duration)
}

// retryPolicy spaces attempts with doubling, jittered waits capped at max.
type retryPolicy struct {
	attempts  int
	base, max time.Duration
}

// Result is one decoded upload response.
type Result struct {
	Response   *pipeline.AnalysisResponse
	StatusCode int
	OK         bool
	RequestID  string
}

// NewClient builds a client for baseURL. Zero values pick 60s timeout,
// 3 attempts and 500ms..4s backoff.
func NewClient(baseURL string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		retry:      retryPolicy{attempts: retryMax, base: baseDelay, max: maxDelay},
		log:        logging.Discard(),
		sleep:      time.Sleep,
	}
}

// WithLogger sets the logger used for retry diagnostics.
func (c *Client) WithLogger(l *logging.Logger) *Client {
	if l != nil {
		c.log = l
	}
	return c
}

// BaseURL returns the service root the client posts to.
func (c *Client) BaseURL() string { return c.baseURL }

// Upload posts one file to <base>/upload and decodes the JSON answer.
// A non-2xx status with a decodable body is not an error: the Result carries
// OK=false and the classifier decides. Network failures and undecodable
// bodies return *TransportError.
func (c *Client) Upload(ctx context.Context, filename string, content []byte) (*Result, error) {
	if c.baseURL == "" {
		return nil, &TransportError{Err: errors.New("server url is empty")}
	}
	body, contentType, err := multipartBody(filename, content)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	endpoint := c.baseURL + "/upload"
	reqID := uuid.NewString()

	var lastErr error
	for attempt := 1; attempt <= c.retry.attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, &TransportError{Err: ctx.Err()}
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, &TransportError{Err: fmt.Errorf("build request: %w", err)}
		}
		httpReq.Header.Set("Content-Type", contentType)
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set("X-Request-Id", reqID)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if transient(err) && attempt < c.retry.attempts {
				lastErr = err
				c.log.Debug("upload attempt %d/%d failed: %v", attempt, c.retry.attempts, err)
				c.sleep(c.retry.wait(attempt, ""))
				continue
			}
			return nil, &TransportError{Err: fmt.Errorf("http request: %w", err)}
		}
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		rid := responseRequestID(resp.Header)
		if rid == "" {
			rid = reqID
		}
		ok := resp.StatusCode >= 200 && resp.StatusCode < 300

		if !ok && retryable(resp.StatusCode, raw, readErr) && attempt < c.retry.attempts {
			wait := c.retry.wait(attempt, resp.Header.Get("Retry-After"))
			lastErr = &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
			c.log.Debug("upload attempt %d/%d got %d, retrying in %s", attempt, c.retry.attempts, resp.StatusCode, wait)
			c.sleep(wait)
			continue
		}
		if readErr != nil {
			return nil, &TransportError{StatusCode: resp.StatusCode, RequestID: rid, Err: fmt.Errorf("read body: %w", readErr)}
		}
		decoded, err := pipeline.DecodeResponse(raw)
		if err != nil {
			return nil, &TransportError{StatusCode: resp.StatusCode, RequestID: rid, Err: err}
		}
		return &Result{Response: decoded, StatusCode: resp.StatusCode, OK: ok, RequestID: rid}, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	var te *TransportError
	if errors.As(lastErr, &te) {
		return nil, te
	}
	return nil, &TransportError{Err: lastErr}
}

func multipartBody(filename string, content []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(FileField, filepath.Base(filename))
	if err != nil {
		return nil, "", fmt.Errorf("multipart: %w", err)
	}
	if _, err := fw.Write(content); err != nil {
		return nil, "", fmt.Errorf("multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("multipart: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// retryable reports whether a non-2xx answer is worth sending the file again.
// 429 always is; 502/503/504 only when the body carries no service error,
// since a reported error would repeat on every attempt.
func retryable(code int, body []byte, readErr error) bool {
	switch code {
	case http.StatusTooManyRequests:
		return true
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		if readErr != nil {
			return true
		}
		decoded, err := pipeline.DecodeResponse(body)
		return err != nil || decoded.Error == ""
	}
	return false
}

// wait returns the pause after a failed attempt (1-based). A positive
// Retry-After overrides the computed backoff but still respects max.
func (p retryPolicy) wait(attempt int, retryAfter string) time.Duration {
	d, ok := retryAfterDelay(retryAfter)
	if !ok {
		d = time.Duration(float64(p.base<<(attempt-1)) * (0.8 + 0.4*rand.Float64()))
	}
	if p.max > 0 && d > p.max {
		return p.max
	}
	return d
}

// retryAfterDelay reads delta-seconds or an HTTP date.
func retryAfterDelay(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, n > 0
	}
	if at, err := http.ParseTime(v); err == nil {
		d := time.Until(at)
		return d, d > 0
	}
	return 0, false
}

// transient reports timeouts and dropped connections.
func transient(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

var requestIDHeaders = []string{"X-Request-Id", "X-Correlation-Id", "X-Amzn-Requestid"}

func responseRequestID(h http.Header) string {
	for _, k := range requestIDHeaders {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}
