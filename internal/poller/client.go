package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// DefaultTimeout bounds every call to the device API.
const DefaultTimeout = 10 * time.Second

// connection pooling limits; a single device never needs more than a couple
const (
	defaultMaxIdleConns        = 4
	defaultMaxIdleConnsPerHost = 2
	defaultMaxConnsPerHost     = 2
	defaultIdleConnTimeout     = 60 * time.Second
)

// API operation names as they appear in the request path.
const (
	opGetAll      = "getAll"
	opIsConnected = "isHardwareConnected"
	opUpdate      = "update"
)

// Transport is the device API consumed by the [Coordinator].
//
// Every method fails with an [*Error] classified as [KindAuth] when the
// token is rejected and [KindTransient] for anything else.
type Transport interface {
	// FetchAll returns every pin value the device currently reports.
	FetchAll(ctx context.Context) (map[string]any, error)

	// FetchConnected reports whether the hardware is online.
	FetchConnected(ctx context.Context) (bool, error)

	// Write sets a single pin. It is never retried.
	Write(ctx context.Context, pin, value string) error
}

// Client talks to the Blynk external HTTP API used by Raypak heaters.
//
// The token and server are fixed at construction. Each call carries its own
// timeout via context rather than a global client timeout.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	timeout    time.Duration
}

// Compile-time check that Client satisfies Transport.
var _ Transport = (*Client)(nil)

// NewClient creates a [Client] for the given server and token.
//
// server is normally a bare host name ("raymote.raypak.com") and is reached
// over HTTPS. A value that already carries a scheme ("http://127.0.0.1:9999")
// is used as-is. A non-positive timeout falls back to [DefaultTimeout].
func NewClient(server, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		baseURL: baseURL(server),
		token:   token,
		timeout: timeout,
	}
}

// baseURL builds the API root for server.
func baseURL(server string) string {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	return server + "/external/api"
}

// FetchAll calls getAll and returns the pin map.
//
// Numbers are decoded as [json.Number] so their textual form survives.
// A body that is not a JSON object is a transient failure.
func (c *Client) FetchAll(ctx context.Context) (map[string]any, error) {
	body, isJSON, err := c.get(ctx, opGetAll, nil)
	if err != nil {
		return nil, err
	}
	if !isJSON && !looksLikeJSONObject(body) {
		return nil, transientError(opGetAll, fmt.Errorf("unexpected %s response", contentKind(isJSON)))
	}

	var values map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return nil, transientError(opGetAll, fmt.Errorf("unexpected response type: %w", err))
	}
	if values == nil {
		return nil, transientError(opGetAll, errors.New("unexpected response type: null"))
	}
	return values, nil
}

// FetchConnected calls isHardwareConnected.
//
// The API answers either with a JSON boolean or with plain text; anything
// other than "true" (case and surrounding space ignored) means offline.
func (c *Client) FetchConnected(ctx context.Context) (bool, error) {
	body, isJSON, err := c.get(ctx, opIsConnected, nil)
	if err != nil {
		return false, err
	}
	if isJSON {
		var b bool
		if err := json.Unmarshal(body, &b); err == nil {
			return b, nil
		}
	}
	text := strings.Trim(strings.TrimSpace(string(body)), `"`)
	return strings.EqualFold(text, "true"), nil
}

// Write calls update with a single pin=value pair.
func (c *Client) Write(ctx context.Context, pin, value string) error {
	if pin == "" {
		return transientError(opUpdate, errors.New("pin is required"))
	}
	_, _, err := c.get(ctx, opUpdate, url.Values{pin: {value}})
	return err
}

// get performs one request and classifies the outcome.
// It returns the body and whether the server labelled it as JSON.
func (c *Client) get(ctx context.Context, op string, params url.Values) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := url.Values{"token": {c.token}}
	for k, vs := range params {
		query[k] = vs
	}
	endpoint := c.baseURL + "/" + op + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, transientError(op, fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, false, transientError(op, fmt.Errorf("timeout after %s", c.timeout))
		}
		return nil, false, transientError(op, fmt.Errorf("request failed: %w", redact(err)))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, false, authError(op, errors.New("invalid token"))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, transientError(op, fmt.Errorf("API returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, false, transientError(op, fmt.Errorf("failed to read response body: %w", err))
	}
	return body, isJSONContent(resp.Header.Get("Content-Type")), nil
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times and on a nil client. The client remains
// usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// isJSONContent reports whether a Content-Type header names a JSON body.
func isJSONContent(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return strings.Contains(mediaType, "json")
}

// looksLikeJSONObject accepts object bodies served without a JSON content type.
func looksLikeJSONObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func contentKind(isJSON bool) string {
	if isJSON {
		return "json"
	}
	return "text"
}

// redact strips the request URL (and with it the token) from transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
