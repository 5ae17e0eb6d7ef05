package utils

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEmbedImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/images/ok.png":
			if r.Header.Get("Referer") == "" {
				t.Error("image request without referer")
			}
			_, _ = w.Write([]byte("pngbytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	html := `<body>
		<p>text</p>
		<img src="/images/ok.png"/>
		<img src="/images/ok.png"/>
		<img data-src="` + srv.URL + `/images/gone.jpg"/>
	</body>`

	client := NewRestyClient("", "")
	out, images, err := EmbedImages(client, srv.URL, srv.URL+"/", html)
	if err != nil {
		t.Fatalf("EmbedImages: %v", err)
	}

	okURL := srv.URL + "/images/ok.png"
	hash := sha256.Sum256([]byte(okURL))
	wantName := fmt.Sprintf("%x.png", hash[:8])

	if len(images) != 1 {
		t.Fatalf("got %d downloaded images, want the deduped one", len(images))
	}
	if string(images[wantName]) != "pngbytes" {
		t.Errorf("image bytes = %q under names %v", images[wantName], images)
	}
	if strings.Count(out, `src="../Images/`+wantName+`"`) != 2 {
		t.Errorf("both references should point at the embedded asset: %s", out)
	}
	if !strings.Contains(out, `src="`+srv.URL+`/images/gone.jpg"`) {
		t.Errorf("failed download should keep the external link: %s", out)
	}
	if strings.Contains(out, "data-src") {
		t.Errorf("data-src should be stripped: %s", out)
	}
}

func TestEmbedImagesSiteRelativeAgainstOrigin(t *testing.T) {
	// The embed base is always an origin; a site-relative src must
	// resolve to origin + path even when the chapter page lives under a
	// deeper route.
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		if r.URL.Path == "/imgs/a.jpg" {
			_, _ = w.Write([]byte("jpegbytes"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewRestyClient("", "")
	out, images, err := EmbedImages(client, srv.URL, srv.URL+"/", `<body><img src="/imgs/a.jpg"/></body>`)
	if err != nil {
		t.Fatalf("EmbedImages: %v", err)
	}
	if len(requested) != 1 || requested[0] != "/imgs/a.jpg" {
		t.Errorf("requested paths = %v", requested)
	}
	if len(images) != 1 {
		t.Fatalf("got %d images", len(images))
	}
	if !strings.Contains(out, `src="../Images/`) {
		t.Errorf("src not rewritten to the embedded asset: %s", out)
	}
}

func TestEmbedImagesFailureKeepsRawReference(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := NewRestyClient("", "")
	out, images, err := EmbedImages(client, srv.URL, srv.URL+"/", `<body><img src="/imgs/a.jpg"/></body>`)
	if err != nil {
		t.Fatalf("EmbedImages: %v", err)
	}
	if len(images) != 0 {
		t.Fatalf("got %d images for a 404", len(images))
	}
	if !strings.Contains(out, `src="/imgs/a.jpg"`) {
		t.Errorf("failed download should keep the reference as written, got: %s", out)
	}
	if strings.Contains(out, srv.URL) {
		t.Errorf("resolved form leaked into the output: %s", out)
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		base, in, want string
	}{
		{"https://x.com", "//cdn.x.com/a.jpg", "https://cdn.x.com/a.jpg"},
		{"https://x.com", "/a.jpg", "https://x.com/a.jpg"},
		{"https://x.com", "https://y.com/a.jpg", "https://y.com/a.jpg"},
	}
	for _, c := range cases {
		if got := NormalizeURL(c.base, c.in); got != c.want {
			t.Errorf("NormalizeURL(%q, %q) = %q, want %q", c.base, c.in, got, c.want)
		}
	}
}

func TestImageExt(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://x.com/a.png?v=2", ".png"},
		{"https://x.com/a.webp", ".webp"},
		{"https://x.com/a", ".jpg"},
		{"https://x.com/a.exe", ".jpg"},
	}
	for _, c := range cases {
		if got := ImageExt(c.in); got != c.want {
			t.Errorf("ImageExt(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
