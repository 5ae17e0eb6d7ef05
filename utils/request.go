package utils

import (
	"net"
	"net/http"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// NewRestyClient builds the shared HTTP client: browser-consistent
// headers via the cloudflare bypass round tripper, bounded retries, and
// a Retry-After aware backoff for 429 responses. An empty userAgent
// selects the default.
func NewRestyClient(proxy, userAgent string) *resty.Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	client := resty.New()
	client.SetTransport(cloudflarebp.AddCloudFlareByPass(transport))
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", userAgent)
	if proxy != "" {
		client.SetProxy(proxy)
	}
	client.SetRetryCount(4).
		SetRetryWaitTime(3 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp.StatusCode() == http.StatusTooManyRequests {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
					if t, err := http.ParseTime(retryAfter); err == nil {
						return time.Until(t), nil
					}
				}
				return 3 * time.Second, nil
			}
			return 0, nil
		}).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil ||
				r.StatusCode() == http.StatusTooManyRequests ||
				r.StatusCode() >= http.StatusInternalServerError
		})

	return client
}

// Request returns a prepared request on the given client with the quiet
// logger and default headers applied.
func Request(client *resty.Client) *resty.Request {
	return client.R().
		SetLogger(disableLogger{}).
		SetHeader("Accept-Charset", "utf-8")
}

type disableLogger struct{}

func (d disableLogger) Errorf(string, ...interface{}) {}
func (d disableLogger) Warnf(string, ...interface{})  {}
func (d disableLogger) Debugf(string, ...interface{}) {}
