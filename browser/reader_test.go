package browser

import (
	"strings"
	"testing"
)

func longParagraph() string {
	return strings.Repeat("The rain kept falling over the harbor town. ", 8)
}

func TestExtractReadableFromViewerContainer(t *testing.T) {
	page := `<html><head><title>Novelpia - Some Novel</title></head><body>
		<div id="viewer-body">
			<h1 class="chapter-title">Chapter 12. The Harbor</h1>
			<p>` + longParagraph() + `</p>
		</div>
		<div class="comment-list-wrapper"><p>first!!</p></div>
	</body></html>`

	title, body, err := ExtractReadable(page, "https://global.novelpia.com/viewer/100", "", "Some Novel")
	if err != nil {
		t.Fatalf("ExtractReadable: %v", err)
	}
	if title != "Chapter 12. The Harbor" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(body, "harbor town") {
		t.Errorf("body lost the chapter text: %q", body)
	}
	if strings.Contains(body, "first!!") {
		t.Errorf("comment text leaked into body: %q", body)
	}
}

func TestExtractReadableStripsCommentWidgets(t *testing.T) {
	page := `<html><body><article>
		<p>` + longParagraph() + `</p>
		<div class="comment-write-box">Write a comment</div>
		<ul class="comment-list-wrapper"><li>great chapter</li></ul>
		<p>There are no comments</p>
		<p>HOT</p>
	</article></body></html>`

	_, body, err := ExtractReadable(page, "https://global.novelpia.com/viewer/1", "Chapter 1", "")
	if err != nil {
		t.Fatalf("ExtractReadable: %v", err)
	}
	for _, junk := range []string{"Write a comment", "great chapter", "no comments", "HOT"} {
		if strings.Contains(body, junk) {
			t.Errorf("junk %q survived extraction", junk)
		}
	}
}

func TestExtractReadableFallsBackToListTitle(t *testing.T) {
	page := `<html><head><title>Novelpia - Some Novel</title></head><body>
		<div class="viewer"><p>` + longParagraph() + `</p></div>
	</body></html>`

	title, _, err := ExtractReadable(page, "https://global.novelpia.com/viewer/2", "5. Landfall", "Some Novel")
	if err != nil {
		t.Fatalf("ExtractReadable: %v", err)
	}
	if title != "5. Landfall" {
		t.Errorf("title = %q, want the listing title", title)
	}
}

func TestExtractReadableParagraphHarvest(t *testing.T) {
	// No known container and too little text for readability: the bare
	// paragraph harvest is the last resort.
	page := `<html><body>
		<p>A short but real paragraph of story text.</p>
		<p>ok</p>
	</body></html>`

	title, body, err := ExtractReadable(page, "https://global.novelpia.com/viewer/3", "", "")
	if err != nil {
		t.Fatalf("ExtractReadable: %v", err)
	}
	if title != "Chapter" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(body, "real paragraph") {
		t.Errorf("harvest missed the paragraph: %q", body)
	}
	if strings.Contains(body, "<p>ok</p>") {
		t.Errorf("harvest kept a sub-threshold paragraph: %q", body)
	}
}

func TestExtractReadableGatedPage(t *testing.T) {
	page := `<html><body><div class="paywall">Sign in to continue</div></body></html>`
	_, _, err := ExtractReadable(page, "https://global.novelpia.com/viewer/4", "", "")
	if err == nil {
		t.Fatal("expected an error for a gated page")
	}
}

func TestIsGoodTitle(t *testing.T) {
	cases := []struct {
		title, novel string
		want         bool
	}{
		{"Chapter 3. Ashes", "Some Novel", true},
		{"", "Some Novel", false},
		{"ok", "Some Novel", false},
		{"Novelpia - Some Novel", "Some Novel", false},
		{"Some Novel", "Some Novel", false},
	}
	for _, c := range cases {
		if got := isGoodTitle(c.title, c.novel); got != c.want {
			t.Errorf("isGoodTitle(%q, %q) = %v, want %v", c.title, c.novel, got, c.want)
		}
	}
}
