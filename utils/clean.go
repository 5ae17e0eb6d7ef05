package utils

import (
	"regexp"
	"strings"
)

var (
	dirUnsafe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	nonSlug   = regexp.MustCompile(`[^a-z0-9]+`)
)

// CleanDirName replaces characters that are unsafe in file names.
func CleanDirName(input string) string {
	cleaned := dirUnsafe.ReplaceAllString(input, "_")
	return strings.TrimSpace(cleaned)
}

// Slugify produces the lowercase kebab-case identifier used for the
// per-novel output directory and the epub file name.
func Slugify(input string) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(input), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "novel"
	}
	return slug
}

// Unique keeps the first occurrence of each string, preserving order.
func Unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
