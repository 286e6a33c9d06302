package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	URL        *url.URL // Final URL after redirects
	Body       []byte
}

func (r *Response) Text() string {
	return string(r.Body)
}

// API issues requests relative to a base URL with a default header set.
type API struct {
	client  *http.Client
	baseURL *url.URL
	headers map[string]string
}

func NewAPI(baseURL string, timeout time.Duration, headers map[string]string) (*API, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: missing scheme or host", baseURL)
	}
	return &API{
		client:  &http.Client{Timeout: timeout},
		baseURL: base,
		headers: headers,
	}, nil
}

// BaseURL returns the base URL without a trailing slash.
func (a *API) BaseURL() string {
	return strings.TrimSuffix(a.baseURL.String(), "/")
}

// URL resolves ref against the base URL. Absolute references are kept.
func (a *API) URL(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return a.BaseURL() + "/" + strings.TrimPrefix(ref, "/")
	}
	return a.baseURL.ResolveReference(u).String()
}

// RelativeKey turns an absolute URL on the base host into its path and
// query. Foreign URLs are returned unchanged.
func (a *API) RelativeKey(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ref
	}
	if !strings.EqualFold(u.Host, a.baseURL.Host) {
		return ref
	}
	key := u.EscapedPath()
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

func (a *API) Get(ctx context.Context, ref string, params url.Values, headers map[string]string) (*Response, error) {
	target := a.URL(ref)
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return a.do(req, headers)
}

func (a *API) PostForm(ctx context.Context, ref string, form url.Values, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL(ref), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req, headers)
}

// GetJSON decodes a JSON response body into v.
func (a *API) GetJSON(ctx context.Context, ref string, params url.Values, v any) error {
	resp, err := a.Get(ctx, ref, params, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	return json.Unmarshal(resp.Body, v)
}

func (a *API) do(req *http.Request, headers map[string]string) (*Response, error) {
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        resp.Request.URL,
		Body:       body,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}
	return out, nil
}
