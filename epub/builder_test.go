package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bayue48/pia-scrap/model"
)

func sampleNovel() *model.Novel {
	return &model.Novel{
		ID:          7719,
		Title:       "Harbor Lights",
		Author:      "mika",
		Status:      model.StatusOngoing,
		Tags:        []string{"fantasy", "slice of life"},
		Description: "A story.",
		URL:         "https://global.novelpia.com/novel/7719",
	}
}

func sampleChapters() []*model.Chapter {
	return []*model.Chapter{
		{Index: 1, Title: "One", Content: &model.ChapterContent{HTML: "<p>first</p>"}},
		{Index: 2, Title: "Two & Three", Content: &model.ChapterContent{
			HTML: `<p>second</p><img src="../Images/abc12345.jpg"/>`,
			Images: map[string][]byte{
				"abc12345.jpg": []byte("jpegbytes"),
			},
		}},
	}
}

func readZip(t *testing.T, data []byte) *zip.Reader {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a zip: %v", err)
	}
	return r
}

func entryContent(t *testing.T, r *zip.Reader, name string) string {
	t.Helper()
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func TestBuildZipLayout(t *testing.T) {
	data, err := Build(sampleNovel(), sampleChapters(), []byte("coverbytes"), "en")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r := readZip(t, data)

	first := r.File[0]
	if first.Name != "mimetype" || first.Method != zip.Store {
		t.Errorf("first entry = %s method %d, want stored mimetype", first.Name, first.Method)
	}
	if got := entryContent(t, r, "mimetype"); got != "application/epub+zip" {
		t.Errorf("mimetype = %q", got)
	}

	for _, name := range []string{
		"META-INF/container.xml",
		"OEBPS/content.opf",
		"OEBPS/toc.ncx",
		"OEBPS/Styles/style.css",
		"OEBPS/Text/about.xhtml",
		"OEBPS/Text/contents.xhtml",
		"OEBPS/Text/chapter-0001.xhtml",
		"OEBPS/Text/chapter-0002.xhtml",
		"OEBPS/Images/cover.jpg",
		"OEBPS/Images/abc12345.jpg",
	} {
		entryContent(t, r, name)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	first, err := Build(sampleNovel(), sampleChapters(), []byte("coverbytes"), "en")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := Build(sampleNovel(), sampleChapters(), []byte("coverbytes"), "en")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("two builds from the same inputs differ")
	}
}

func TestBuildOPF(t *testing.T) {
	data, err := Build(sampleNovel(), sampleChapters(), []byte("coverbytes"), "ko")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	opf := entryContent(t, readZip(t, data), "OEBPS/content.opf")

	for _, want := range []string{
		"urn:novelpia:7719",
		"Harbor Lights",
		"mika",
		"<dc:language>ko</dc:language>",
		"fantasy",
		`properties="nav"`,
		`properties="cover-image"`,
		"Text/chapter-0002.xhtml",
	} {
		if !strings.Contains(opf, want) {
			t.Errorf("opf missing %q", want)
		}
	}
}

func TestBuildWithoutCover(t *testing.T) {
	data, err := Build(sampleNovel(), sampleChapters(), nil, "en")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r := readZip(t, data)
	for _, f := range r.File {
		if f.Name == "OEBPS/Images/cover.jpg" {
			t.Fatal("cover entry present without cover bytes")
		}
	}
	if strings.Contains(entryContent(t, r, "OEBPS/Text/about.xhtml"), "cover.jpg") {
		t.Error("about page references a missing cover")
	}
}

func TestBuildEscapesTitles(t *testing.T) {
	data, err := Build(sampleNovel(), sampleChapters(), nil, "en")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r := readZip(t, data)

	nav := entryContent(t, r, "OEBPS/Text/contents.xhtml")
	if !strings.Contains(nav, "Two &amp; Three") {
		t.Errorf("nav did not escape the chapter title: %s", nav)
	}
	doc := entryContent(t, r, "OEBPS/Text/chapter-0002.xhtml")
	if !strings.Contains(doc, "Two &amp; Three") {
		t.Errorf("chapter header did not escape the title: %s", doc)
	}
}

func TestBuildTruncatesDescriptionOnRuneBoundary(t *testing.T) {
	novel := sampleNovel()
	novel.Description = strings.Repeat("한", 1500)

	data, err := Build(novel, sampleChapters(), nil, "ko")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	about := entryContent(t, readZip(t, data), "OEBPS/Text/about.xhtml")
	if !utf8.ValidString(about) {
		t.Fatal("about.xhtml contains invalid UTF-8")
	}
	if strings.ContainsRune(about, utf8.RuneError) {
		t.Fatal("about.xhtml contains a replacement rune")
	}
}

func TestTruncate(t *testing.T) {
	// 3-byte runes: a 2000-byte cut lands mid-rune and must walk back.
	s := strings.Repeat("한", 700)
	got := truncate(s, 2000)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8")
	}
	if len(got) != 1998 {
		t.Errorf("len = %d, want 1998", len(got))
	}
	if truncate("short", 2000) != "short" {
		t.Error("short strings should pass through")
	}
}

func TestChapterFileName(t *testing.T) {
	if got := ChapterFileName(7); got != "chapter-0007.xhtml" {
		t.Errorf("ChapterFileName(7) = %q", got)
	}
	if got := ChapterFileName(1234); got != "chapter-1234.xhtml" {
		t.Errorf("ChapterFileName(1234) = %q", got)
	}
}
