package utils

import (
	"crypto/sha256"
	"fmt"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// NormalizeURL resolves protocol-relative and site-relative references
// against the given base origin.
func NormalizeURL(base, u string) string {
	switch {
	case u == "":
		return u
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "/"):
		return strings.TrimSuffix(base, "/") + u
	default:
		return u
	}
}

// ImageExt returns a safe image extension for the URL path, defaulting
// to .jpg for anything unrecognized.
func ImageExt(u string) string {
	ext := strings.ToLower(path.Ext(strings.SplitN(u, "?", 2)[0]))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	default:
		return ".jpg"
	}
}

// MediaTypeFromExt maps an image extension to its EPUB media type.
func MediaTypeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// EmbedImages downloads every <img> in the fragment and rewrites its src
// to a relative EPUB asset path. Images that fail to download keep the
// reference the source page carried so a single broken image never fails
// a chapter.
// File names are derived from the source URL so repeated references
// dedupe to one asset.
func EmbedImages(client *resty.Client, base, referer, html string) (string, map[string][]byte, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse html: %v", err)
	}

	images := make(map[string][]byte)
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		raw := s.AttrOr("data-src", "")
		if raw == "" {
			raw = s.AttrOr("src", "")
			if raw == "" {
				return
			}
		}
		imgURL := NormalizeURL(base, raw)

		hash := sha256.Sum256([]byte(imgURL))
		name := fmt.Sprintf("%x%s", hash[:8], ImageExt(imgURL))

		if _, ok := images[name]; !ok {
			data, err := DownloadImage(client, referer, imgURL)
			if err != nil {
				// Keep the reference exactly as the source had it, not
				// the resolved form.
				log.Printf("image download failed, keeping original link: %s: %v", imgURL, err)
				s.SetAttr("src", raw)
				s.RemoveAttr("data-src")
				return
			}
			images[name] = data
		}

		s.SetAttr("src", "../Images/"+name)
		s.RemoveAttr("data-src")
		s.RemoveAttr("style")
		s.RemoveAttr("class")
		if s.AttrOr("alt", "") == "" {
			s.SetAttr("alt", fmt.Sprintf("image-%03d", i+1))
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", nil, err
	}
	return out, images, nil
}

// DownloadImage fetches one image, with the referer the source site
// expects on asset requests.
func DownloadImage(client *resty.Client, referer, url string) ([]byte, error) {
	resp, err := Request(client).SetHeader("Referer", referer).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("failed to get image: %v", resp.Status())
	}
	return resp.Body(), nil
}
