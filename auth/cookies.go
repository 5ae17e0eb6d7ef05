package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bayue48/pia-scrap/model"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

var whitespace = regexp.MustCompile(`\s+`)

// ParseNetscapeCookies reads a cookies.txt file in Netscape format and
// returns cookie params ready to install into the browser session.
// Comment lines and blank lines are skipped; a file that yields no
// cookies at all is treated as malformed.
func ParseNetscapeCookies(path string) ([]*network.CookieParam, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.MalformedInputError{Path: path, Err: err}
	}

	cookies := make([]*network.CookieParam, 0)
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) != 7 {
			parts = whitespace.Split(line, -1)
		}
		if len(parts) < 7 {
			continue
		}
		domain, _, cookiePath, secure, expiry, name, value := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5], parts[6]
		if cookiePath == "" {
			cookiePath = "/"
		}
		c := &network.CookieParam{
			Name:     name,
			Value:    value,
			Domain:   domain,
			Path:     cookiePath,
			Secure:   strings.EqualFold(secure, "TRUE"),
			HTTPOnly: false,
			SameSite: network.CookieSameSiteLax,
		}
		if exp, err := strconv.ParseInt(expiry, 10, 64); err == nil && exp > 0 {
			t := cdp.TimeSinceEpoch(time.Unix(exp, 0))
			c.Expires = &t
		}
		cookies = append(cookies, c)
	}

	if len(cookies) == 0 {
		return nil, &model.MalformedInputError{Path: path, Err: fmt.Errorf("no cookie entries found")}
	}
	return cookies, nil
}

// storageState mirrors the browser storage-state JSON layout: either a
// bare cookie array or an object with a "cookies" field.
type storageState struct {
	Cookies []storageCookie `json:"cookies"`
}

type storageCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// ParseStorageState reads a storage-state JSON file and returns cookie
// params for the browser session.
func ParseStorageState(path string) ([]*network.CookieParam, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.MalformedInputError{Path: path, Err: err}
	}

	var entries []storageCookie
	var state storageState
	if err := json.Unmarshal(data, &state); err == nil && len(state.Cookies) > 0 {
		entries = state.Cookies
	} else if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &model.MalformedInputError{Path: path, Err: err}
	}
	if len(entries) == 0 {
		return nil, &model.MalformedInputError{Path: path, Err: fmt.Errorf("no cookie entries found")}
	}

	cookies := make([]*network.CookieParam, 0, len(entries))
	for _, e := range entries {
		c := &network.CookieParam{
			Name:     e.Name,
			Value:    e.Value,
			Domain:   e.Domain,
			Path:     e.Path,
			Secure:   e.Secure,
			HTTPOnly: e.HTTPOnly,
			SameSite: sameSiteFrom(e.SameSite),
		}
		if e.Expires > 0 {
			t := cdp.TimeSinceEpoch(time.Unix(int64(e.Expires), 0))
			c.Expires = &t
		}
		cookies = append(cookies, c)
	}
	return cookies, nil
}

func sameSiteFrom(s string) network.CookieSameSite {
	switch strings.ToLower(s) {
	case "strict":
		return network.CookieSameSiteStrict
	case "none":
		return network.CookieSameSiteNone
	default:
		return network.CookieSameSiteLax
	}
}
