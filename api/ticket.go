package api

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// LooksLikeJWT reports whether the string has the three base64url
// segments of a JWT. Ticket responses carry the content token in
// different places; JWT-shaped candidates win over other strings.
func LooksLikeJWT(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		if _, err := base64.RawURLEncoding.DecodeString(p); err != nil {
			return false
		}
	}
	return true
}

// ExtractTicketToken digs the short-lived content token out of an
// episode ticket response. It checks the well-known keys on result,
// then nested objects, then any URL pointing at the content endpoint.
// Returns the token and, when the token came from a URL, that URL.
func ExtractTicketToken(payload map[string]any) (string, string) {
	result, _ := payload["result"].(map[string]any)

	fallback := ""
	keep := func(v string) {
		if fallback == "" {
			fallback = v
		}
	}

	for _, k := range []string{"_t", "t", "token"} {
		if v, ok := result[k].(string); ok && v != "" {
			if LooksLikeJWT(v) {
				return v, ""
			}
			keep(v)
		}
	}

	for _, v := range result {
		nested, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for _, k := range []string{"_t", "t", "token"} {
			if vv, ok := nested[k].(string); ok && vv != "" {
				if LooksLikeJWT(vv) {
					return vv, ""
				}
				keep(vv)
			}
		}
	}

	for _, s := range iterStrings(payload) {
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			continue
		}
		u, err := url.Parse(s)
		if err != nil {
			continue
		}
		if !strings.HasSuffix(u.Path, "/v1/novel/episode/content") {
			continue
		}
		if cand := u.Query().Get("_t"); cand != "" {
			if LooksLikeJWT(cand) {
				return cand, s
			}
			keep(cand)
		}
	}

	return fallback, ""
}

func iterStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case map[string]any:
		var out []string
		for _, vv := range t {
			out = append(out, iterStrings(vv)...)
		}
		return out
	case []any:
		var out []string
		for _, vv := range t {
			out = append(out, iterStrings(vv)...)
		}
		return out
	default:
		return nil
	}
}
