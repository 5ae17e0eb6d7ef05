// Package browser drives the rendered-page pipeline in headless Chrome:
// metadata extraction from the novel landing page, paginated ToC
// discovery with navigation-and-return locator capture, and per-chapter
// reader extraction.
package browser

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	navTimeout   = 25 * time.Second
	pollInterval = 250 * time.Millisecond

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"
)

// Session owns the single browser tab a run works in. All navigation is
// sequential; the ToC walker depends on the tab's history being its own.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewSession(headless bool) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1280, 2100),
	)

	s := &Session{}
	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	s.ctx, s.cancel = chromedp.NewContext(s.allocCtx)

	if err := chromedp.Run(s.ctx, network.Enable(), chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize browser: %v", err)
	}

	log.Println("Browser initialized")
	return s, nil
}

func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// run executes actions under the navigation timeout.
func (s *Session) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// SetCookies installs cookie params into the browser profile.
func (s *Session) SetCookies(cookies []*network.CookieParam) error {
	if len(cookies) == 0 {
		return nil
	}
	err := s.run(navTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(cookies).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to set cookies: %v", err)
	}
	log.Printf("Loaded %d cookies into browser", len(cookies))
	return nil
}

const dismissConsentJS = `(() => {
	const labels = [/^i agree$/i, /^agree$/i, /^accept$/i, /^ok$/i, /^close$/i];
	const btns = Array.from(document.querySelectorAll('button'));
	for (const re of labels) {
		const b = btns.find(el => re.test((el.textContent || '').trim()));
		if (b) { b.click(); return true; }
	}
	return false;
})()`

// Navigate loads a URL, waits for the document, and dismisses any
// consent dialog that popped up over it.
func (s *Session) Navigate(url string) error {
	err := s.run(navTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %v", url, err)
	}

	var clicked bool
	if err := s.Evaluate(dismissConsentJS, &clicked); err == nil && clicked {
		time.Sleep(300 * time.Millisecond)
	}
	return nil
}

func (s *Session) Location() (string, error) {
	var url string
	if err := s.run(5*time.Second, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// HTML returns the full rendered document.
func (s *Session) HTML() (string, error) {
	var html string
	err := s.run(navTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("failed to get page html: %v", err)
	}
	return html, nil
}

// Evaluate runs a script and decodes its JSON result into out. Scripts
// must always return a serializable value.
func (s *Session) Evaluate(js string, out any) error {
	return s.run(10*time.Second, chromedp.Evaluate(js, out))
}

// WaitVisible blocks until the selector is visible or the timeout hits.
func (s *Session) WaitVisible(sel string, timeout time.Duration) error {
	return s.run(timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

// WaitFor polls the predicate script until it returns true.
func (s *Session) WaitFor(js string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var ok bool
		if err := s.Evaluate(js, &ok); err == nil && ok {
			return true
		}
		time.Sleep(pollInterval)
	}
	return false
}

const loggedOutJS = `(() => {
	const els = Array.from(document.querySelectorAll('a,button,span'));
	return els.some(el => /^\s*Sign In\s*$/i.test(el.textContent || ''));
})()`

// LooksLoggedOut is a heuristic for expired cookies: a login route in
// the URL, or the Sign In affordance showing on the list page.
func (s *Session) LooksLoggedOut() bool {
	if url, err := s.Location(); err == nil {
		lower := strings.ToLower(url)
		if strings.Contains(lower, "/auth") || strings.Contains(lower, "/login") || strings.Contains(lower, "/signin") {
			return true
		}
	}
	var out bool
	if err := s.Evaluate(loggedOutJS, &out); err != nil {
		return false
	}
	return out
}

// MaybeReauth re-installs cookies and reloads the novel page when the
// session looks logged out. Returns true when a reauth happened.
func (s *Session) MaybeReauth(cookies []*network.CookieParam, novelURL, where string) bool {
	if len(cookies) == 0 || !s.LooksLoggedOut() {
		return false
	}
	log.Printf("Login UI detected (%s); reauthenticating and reloading", where)
	if err := s.SetCookies(cookies); err != nil {
		log.Printf("Reauth failed: %v", err)
		return false
	}
	if err := s.Navigate(novelURL); err != nil {
		log.Printf("Reload after reauth failed: %v", err)
	}
	return true
}
