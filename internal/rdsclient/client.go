// Package rdsclient implements the transport-layer concerns of the
// dispatch server's HTTP/JSON API (component C4): session login, transparent
// re-login on session expiry, and the two idempotent work-site mutators the
// sync loop consumes.
package rdsclient

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wwhai/worksite-bridge/internal/apperror"
)

const sessionCookieName = "JSESSIONID"

// Client is a session-aware HTTP/JSON client for the dispatch server. The
// session token is guarded by a mutex; the login request itself is not
// serialised, so concurrent calls that find no session may each log in.
type Client struct {
	baseURL    string
	user       string
	pass       string
	language   string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// New creates a Client. baseURL is the dispatch server's root, e.g.
// "http://10.0.0.5:8080".
func New(baseURL, user, pass, language string, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		user:     user,
		pass:     pass,
		language: language,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Login authenticates with the dispatch server and stores the resulting
// session token. The response body is ignored; absence of the session
// cookie on a 2xx response is a fatal login error.
func (c *Client) Login() error {
	sum := md5.Sum([]byte(c.pass))
	body := map[string]string{
		"username": c.user,
		"password": hex.EncodeToString(sum[:]),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return apperror.Wrap(apperror.KindRdsAuth, "encode login request", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/admin/login", bytes.NewReader(payload))
	if err != nil {
		return apperror.Wrap(apperror.KindRdsAuth, "build login request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Language", c.language)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.Wrap(apperror.KindRdsAuth, "login request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperror.New(apperror.KindRdsAuth, fmt.Sprintf("login: unexpected status %d", resp.StatusCode))
	}

	token := extractSessionToken(resp.Header)
	if token == "" {
		return apperror.New(apperror.KindRdsAuth, "login: response carried no session cookie")
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return nil
}

// extractSessionToken scans every Set-Cookie header (there may be more than
// one) for the well-known session cookie name, case-insensitively.
func extractSessionToken(header http.Header) string {
	for _, line := range header.Values("Set-Cookie") {
		for _, part := range strings.Split(line, ";") {
			part = strings.TrimSpace(part)
			kv := strings.SplitN(part, "=", 2)
			if len(kv) != 2 {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(kv[0]), sessionCookieName) {
				return strings.TrimSpace(kv[1])
			}
		}
	}
	return ""
}

// call sends a JSON request against path, logging in first if no session
// token is held, and retrying exactly once with a fresh token if the
// session has expired (401/403 only — never 400).
func (c *Client) call(path string, body any) (any, error) {
	c.mu.Lock()
	hasToken := c.token != ""
	c.mu.Unlock()
	if !hasToken {
		if err := c.Login(); err != nil {
			return nil, err
		}
	}

	result, status, err := c.doOnce(path, body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		if err := c.Login(); err != nil {
			return nil, err
		}
		result, status, err = c.doOnce(path, body)
		if err != nil {
			return nil, err
		}
	}
	if status < 200 || status >= 300 {
		return nil, apperror.New(apperror.KindRdsRequest, fmt.Sprintf("%s: unexpected status %d", path, status))
	}
	return result, nil
}

// doOnce issues a single request against path with the current session
// token, returning the decoded body (or nil for an empty body) and the HTTP
// status. A 401/403 is returned with a nil error so the caller can re-login;
// a transport failure or any other non-2xx status returns an error.
func (c *Client) doOnce(path string, body any) (any, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, apperror.Wrap(apperror.KindRdsRequest, "encode request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, apperror.Wrap(apperror.KindRdsRequest, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Language", c.language)

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, apperror.Wrap(apperror.KindRdsRequest, path+": request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, apperror.Wrap(apperror.KindRdsRequest, path+": read response body", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, apperror.New(apperror.KindRdsRequest,
			fmt.Sprintf("%s: status %d: %s", path, resp.StatusCode, string(raw)))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, resp.StatusCode, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw), resp.StatusCode, nil
	}
	return decoded, resp.StatusCode, nil
}

// SetWorkSiteFilled marks siteID as filled. The endpoint is idempotent; the
// sync loop calls it every tick regardless of prior state.
func (c *Client) SetWorkSiteFilled(siteID string) error {
	_, err := c.call("/api/work-sites/worksiteFiled", map[string][]string{"workSiteIds": {siteID}})
	return err
}

// SetWorkSiteEmpty marks siteID as empty. The endpoint is idempotent; the
// sync loop calls it every tick regardless of prior state.
func (c *Client) SetWorkSiteEmpty(siteID string) error {
	_, err := c.call("/api/work-sites/worksiteUnFiled", map[string][]string{"workSiteIds": {siteID}})
	return err
}

// HasSession reports whether a session token is currently held, without
// triggering a login.
func (c *Client) HasSession() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}
