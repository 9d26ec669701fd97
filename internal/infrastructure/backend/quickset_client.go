package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
)

// APIKeyHeader carries the opaque QuickSet credential.
const APIKeyHeader = "X-QuickSet-Api-Key"

const requestIDHeader = "X-Request-Id"

// maxErrorBody bounds how much of an error response is read for the detail message.
const maxErrorBody = 64 << 10

var (
	// ErrUnauthorized is returned when the backend rejects the credential.
	ErrUnauthorized = errors.New("quickset backend rejected api key")
	// ErrMissingCredential is returned before any request when the credential is empty.
	ErrMissingCredential = errors.New("quickset api key is required")
)

// HTTPError describes a non-2xx backend response.
type HTTPError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("quickset backend responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("quickset backend responded %d: %s", e.StatusCode, e.Detail)
}

// QuickSetClient implements port.SessionGateway over the backend REST API.
type QuickSetClient struct {
	baseURL *url.URL
	client  *http.Client
}

var _ port.SessionGateway = (*QuickSetClient)(nil)

// NewQuickSetClient creates a client for a base URL such as http://host:8000/api.
func NewQuickSetClient(baseURL string, timeout time.Duration) (*QuickSetClient, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse quickset base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("quickset base url must be absolute: %q", baseURL)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &QuickSetClient{
		baseURL: parsed,
		client:  &http.Client{Transport: transport, Timeout: timeout},
	}, nil
}

// FetchSession returns GET /quickset/sessions/{id}.
func (c *QuickSetClient) FetchSession(ctx context.Context, sessionID, credential string) (*entity.SessionEnvelope, error) {
	var envelope entity.SessionEnvelope
	if err := c.do(ctx, http.MethodGet, c.sessionPath(sessionID), credential, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// SubmitAnswer posts the tester answer and returns the refreshed envelope.
func (c *QuickSetClient) SubmitAnswer(ctx context.Context, sessionID, credential, answer string) (*entity.SessionEnvelope, error) {
	body := map[string]string{"answer": answer}

	var envelope entity.SessionEnvelope
	if err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID)+"/answer", credential, body, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// RunScenario posts /quickset/scenarios/run.
func (c *QuickSetClient) RunScenario(ctx context.Context, credential string, cmd port.RunScenarioCommand) (*port.RunScenarioResult, error) {
	var result port.RunScenarioResult
	if err := c.do(ctx, http.MethodPost, "/quickset/scenarios/run", credential, cmd, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *QuickSetClient) sessionPath(sessionID string) string {
	return "/quickset/sessions/" + url.PathEscape(sessionID)
}

func (c *QuickSetClient) do(ctx context.Context, method, path, credential string, payload, dest interface{}) error {
	if strings.TrimSpace(credential) == "" {
		return ErrMissingCredential
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(APIKeyHeader, credential)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	httpErr := &HTTPError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, httpErr.Error())
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", entity.ErrSessionNotFound, httpErr.Error())
	default:
		return httpErr
	}
}

// errorDetail extracts FastAPI-style {"detail": ...} bodies, falling back to raw text.
func errorDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 {
		var text string
		if err := json.Unmarshal(body.Detail, &text); err == nil {
			return text
		}
		return string(body.Detail)
	}
	return strings.TrimSpace(string(raw))
}
