// Package api drives the platform's private JSON API: credential login
// with a persisted token, the episode-list endpoint, and the per-episode
// ticket exchange that gates content access.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/bayue48/pia-scrap/auth"
	"github.com/bayue48/pia-scrap/model"
	"github.com/bayue48/pia-scrap/utils"
	"github.com/go-resty/resty/v2"
)

const (
	BaseURL    = "https://global.novelpia.com"
	APIBaseURL = "https://api-global.novelpia.com"

	errTokenExpired = "The token has expired."
)

// Options configures a Client. Email and Password may be empty when the
// session store already holds a usable token.
type Options struct {
	Email     string
	Password  string
	Proxy     string
	UserAgent string
	Throttle  time.Duration
	Debug     bool

	// BaseURL and APIBaseURL override the production endpoints in tests.
	BaseURL    string
	APIBaseURL string
}

type Client struct {
	http    *resty.Client
	base    string
	apiBase string

	session  *auth.Session
	email    string
	password string

	throttle time.Duration
	debug    bool
}

func New(session *auth.Session, opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = BaseURL
	}
	apiBase := opts.APIBaseURL
	if apiBase == "" {
		apiBase = APIBaseURL
	}

	httpClient := utils.NewRestyClient(opts.Proxy, opts.UserAgent)
	httpClient.SetHeaders(map[string]string{
		"accept":           "application/json, text/plain, */*",
		"accept-language":  "en-US,en;q=0.9",
		"origin":           base,
		"referer":          base + "/",
		"x-requested-with": "XMLHttpRequest",
	})
	httpClient.SetCookie(&http.Cookie{
		Name:   "USERKEY",
		Value:  session.UserKey,
		Domain: ".novelpia.com",
		Path:   "/",
	})

	return &Client{
		http:     httpClient,
		base:     base,
		apiBase:  apiBase,
		session:  session,
		email:    opts.Email,
		password: opts.Password,
		throttle: opts.Throttle,
		debug:    opts.Debug,
	}
}

// Session exposes the credential state so callers can persist it after a
// successful login or refresh.
func (c *Client) Session() *auth.Session { return c.session }

// HTTP exposes the underlying client for asset downloads.
func (c *Client) HTTP() *resty.Client { return c.http }

// SetPassword supplies a password obtained after construction, such as
// from an interactive prompt.
func (c *Client) SetPassword(password string) { c.password = password }

type loginResponse struct {
	Result struct {
		LoginAt string `json:"LOGINAT"`
	} `json:"result"`
	ErrMsg string `json:"errmsg"`
}

// Login exchanges the configured credentials for a login token.
func (c *Client) Login(ctx context.Context) error {
	if c.email == "" || c.password == "" {
		return &model.AuthError{Stage: "login", Err: fmt.Errorf("no credentials and no stored token")}
	}

	resp, err := utils.Request(c.http).
		SetContext(ctx).
		SetBody(map[string]string{"email": c.email, "passwd": c.password}).
		Post(c.apiBase + "/v1/member/login")
	if err != nil {
		return &model.AuthError{Stage: "login", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &model.AuthError{Stage: "login", Err: fmt.Errorf("unexpected status %v", resp.Status())}
	}

	var body loginResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return &model.AuthError{Stage: "login", Err: fmt.Errorf("unexpected response shape: %v", err)}
	}
	if body.Result.LoginAt == "" {
		return &model.AuthError{Stage: "login", Err: fmt.Errorf("no token in response: %s", body.ErrMsg)}
	}

	c.session.LoginAt = body.Result.LoginAt
	c.logDebug("login ok")
	return nil
}

// Refresh trades the current token for a fresh one. Called once when a
// downstream call reports an expired token.
func (c *Client) Refresh(ctx context.Context) error {
	resp, err := utils.Request(c.http).
		SetContext(ctx).
		SetHeader("login-at", c.session.LoginAt).
		Get(c.apiBase + "/v1/login/refresh")
	if err != nil {
		return &model.AuthError{Stage: "refresh", Err: err}
	}
	var body loginResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body.Result.LoginAt == "" {
		// Refresh rejected: fall back to a full re-login when we can.
		if c.email != "" && c.password != "" {
			return c.Login(ctx)
		}
		return &model.AuthError{Stage: "refresh", Err: fmt.Errorf("token refresh rejected")}
	}
	c.session.LoginAt = body.Result.LoginAt
	c.logDebug("token refreshed")
	return nil
}

// Me validates the current token.
func (c *Client) Me(ctx context.Context) error {
	var out map[string]any
	if err := c.getJSON(ctx, c.apiBase+"/v1/login/me", nil, &out, true); err != nil {
		return &model.AuthError{Stage: "validate token", Err: err}
	}
	return nil
}

// getJSON performs an authenticated GET and decodes the JSON body. When
// allowRefresh is set and the body reports an expired token, the token
// is refreshed once and the call retried.
func (c *Client) getJSON(ctx context.Context, url string, params map[string]string, out any, allowRefresh bool) error {
	body, errMsg, err := c.getOnce(ctx, url, params)
	if err != nil {
		return err
	}
	if errMsg == errTokenExpired && allowRefresh {
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		body, errMsg, err = c.getOnce(ctx, url, params)
		if err != nil {
			return err
		}
	}
	if errMsg == errTokenExpired {
		return &model.AuthError{Stage: "api call", Err: fmt.Errorf("token expired and refresh did not help")}
	}
	return json.Unmarshal(body, out)
}

func (c *Client) getOnce(ctx context.Context, url string, params map[string]string) ([]byte, string, error) {
	req := utils.Request(c.http).SetContext(ctx)
	if c.session.LoginAt != "" {
		req.SetHeader("login-at", c.session.LoginAt)
	}
	if params != nil {
		req.SetQueryParams(params)
	}
	c.logDebug("GET %s %v", url, params)
	resp, err := req.Get(url)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return nil, "", &model.RateLimitError{Err: fmt.Errorf("%v from %s", resp.Status(), url)}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %v from %s", resp.Status(), url)
	}

	var probe struct {
		ErrMsg string `json:"errmsg"`
	}
	_ = json.Unmarshal(resp.Body(), &probe)
	return resp.Body(), probe.ErrMsg, nil
}

// wait enforces the minimum delay between episode-related calls, with a
// little jitter so requests do not land on a fixed cadence.
func (c *Client) wait() {
	if c.throttle <= 0 {
		return
	}
	jitter := time.Duration(50+rand.Intn(200)) * time.Millisecond
	time.Sleep(c.throttle + jitter)
}

func (c *Client) logDebug(format string, args ...any) {
	if c.debug {
		log.Printf("[api] "+format, args...)
	}
}
