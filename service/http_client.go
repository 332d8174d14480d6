package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/michalshavit1/salto/element"
)

const (
	defaultRequestTimeout  = 30 * time.Second
	maxDebugBodyCharacters = 1024
	maxDebugInteractions   = 10
)

type Config struct {
	BaseURL        string            `yaml:"baseUrl" json:"baseUrl"`
	DefaultHeaders map[string]string `yaml:"defaultHeaders,omitempty" json:"defaultHeaders,omitempty"`
	Auth           *AuthConfig       `yaml:"auth,omitempty" json:"auth,omitempty"`
	Timeout        time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// RequestsPerSecond paces outbound calls; zero disables pacing.
	RequestsPerSecond  float64 `yaml:"requestsPerSecond,omitempty" json:"requestsPerSecond,omitempty"`
	InsecureSkipVerify bool    `yaml:"insecureSkipVerify,omitempty" json:"insecureSkipVerify,omitempty"`

	// APIVersionPath and APIVersionField locate the service's reported API
	// version for the registry's minimum-version gate; both optional.
	APIVersionPath  string `yaml:"apiVersionPath,omitempty" json:"apiVersionPath,omitempty"`
	APIVersionField string `yaml:"apiVersionField,omitempty" json:"apiVersionField,omitempty"`
}

type AuthConfig struct {
	BearerToken  string `yaml:"bearerToken,omitempty" json:"bearerToken,omitempty"`
	Username     string `yaml:"username,omitempty" json:"username,omitempty"`
	Password     string `yaml:"password,omitempty" json:"password,omitempty"`
	CustomHeader string `yaml:"customHeader,omitempty" json:"customHeader,omitempty"`
	CustomToken  string `yaml:"customToken,omitempty" json:"customToken,omitempty"`
}

// Interaction is a bounded trace of one request/response pair, kept for
// debug output only.
type Interaction struct {
	Method       string
	URL          string
	Status       int
	RequestBody  string
	ResponseBody string
}

// HTTPClient is the default Client over net/http. It owns base-URL
// resolution, auth headers, and pacing; it does not retry.
type HTTPClient struct {
	config  Config
	client  *http.Client
	baseURL *url.URL
	limiter *rate.Limiter
	log     logr.Logger

	debugMu      sync.Mutex
	interactions []Interaction
}

func NewHTTPClient(cfg Config, log logr.Logger) (*HTTPClient, error) {
	rawBase := strings.TrimSpace(cfg.BaseURL)
	if rawBase == "" {
		return nil, errors.New("service base url is required")
	}
	parsed, err := url.Parse(rawBase)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", rawBase, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q must include scheme and host", rawBase)
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &HTTPClient{
		config:  cfg,
		client:  &http.Client{Transport: transport},
		baseURL: parsed,
		limiter: limiter,
		log:     log,
	}, nil
}

func (c *HTTPClient) Close() {
	if c == nil || c.client == nil {
		return
	}
	if tr, ok := c.client.Transport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
}

func (c *HTTPClient) Request(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("http client is not initialized")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("request path is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	fullURL, err := c.buildURL(path, query)
	if err != nil {
		return nil, err
	}

	var payload []byte
	var bodyReader io.Reader
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request payload: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	timeout := c.config.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyDefaultHeaders(req)
	c.applyAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.recordInteraction(method, fullURL, resp.StatusCode, payload, respBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method:     method,
			URL:        fullURL,
			StatusCode: resp.StatusCode,
			Body:       respBody,
		}
	}

	result := &Response{Status: resp.StatusCode}
	if len(bytes.TrimSpace(respBody)) > 0 {
		data, err := element.FromJSON(respBody)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response body: %w", err)
		}
		result.Data = data
	}
	return result, nil
}

func (c *HTTPClient) APIVersion(ctx context.Context) string {
	path := strings.TrimSpace(c.config.APIVersionPath)
	if path == "" {
		return ""
	}
	resp, err := c.Request(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		c.log.Info("failed to read service API version", "path", path, "error", err.Error())
		return ""
	}
	obj, ok := resp.Data.(map[string]any)
	if !ok {
		return ""
	}
	field := c.config.APIVersionField
	if field == "" {
		field = "version"
	}
	version, _ := element.LookupString(obj, field)
	return version
}

func (c *HTTPClient) buildURL(path string, query url.Values) (string, error) {
	var reqURL *url.URL

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		u, err := url.Parse(path)
		if err != nil {
			return "", fmt.Errorf("invalid request path %q: %w", path, err)
		}
		reqURL = u
	} else {
		rel, err := url.Parse(strings.TrimPrefix(path, "/"))
		if err != nil {
			return "", fmt.Errorf("invalid request path %q: %w", path, err)
		}
		base := *c.baseURL
		if base.Path != "" && !strings.HasSuffix(base.Path, "/") {
			base.Path = base.Path + "/"
		}
		reqURL = base.ResolveReference(rel)
	}

	if len(query) > 0 {
		values := reqURL.Query()
		for key, items := range query {
			for _, item := range items {
				values.Add(key, item)
			}
		}
		reqURL.RawQuery = values.Encode()
	}

	return reqURL.String(), nil
}

func (c *HTTPClient) applyDefaultHeaders(req *http.Request) {
	for key, value := range c.config.DefaultHeaders {
		if strings.TrimSpace(key) == "" || value == "" {
			continue
		}
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
}

func (c *HTTPClient) applyAuth(req *http.Request) {
	auth := c.config.Auth
	if auth == nil {
		return
	}
	if header, token := strings.TrimSpace(auth.CustomHeader), strings.TrimSpace(auth.CustomToken); header != "" && token != "" {
		req.Header.Set(header, token)
		return
	}
	if token := strings.TrimSpace(auth.BearerToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		return
	}
	if auth.Username != "" {
		req.SetBasicAuth(auth.Username, auth.Password)
	}
}

func (c *HTTPClient) recordInteraction(method, fullURL string, status int, reqBody, respBody []byte) {
	c.debugMu.Lock()
	defer c.debugMu.Unlock()
	c.interactions = append(c.interactions, Interaction{
		Method:       method,
		URL:          fullURL,
		Status:       status,
		RequestBody:  limitDebugString(string(reqBody)),
		ResponseBody: limitDebugString(string(respBody)),
	})
	if len(c.interactions) > maxDebugInteractions {
		c.interactions = c.interactions[len(c.interactions)-maxDebugInteractions:]
	}
}

// Interactions returns a copy of the recent request/response trace.
func (c *HTTPClient) Interactions() []Interaction {
	c.debugMu.Lock()
	defer c.debugMu.Unlock()
	out := make([]Interaction, len(c.interactions))
	copy(out, c.interactions)
	return out
}

func limitDebugString(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) <= maxDebugBodyCharacters {
		return trimmed
	}
	return trimmed[:maxDebugBodyCharacters] + "... (truncated)"
}
