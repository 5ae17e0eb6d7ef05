// Package epub assembles the final book: an About document, one XHTML
// document per chapter, the EPUB3 nav and NCX tables of contents, and a
// shared stylesheet, packed into the EPUB zip container.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bayue48/pia-scrap/model"
	"github.com/bayue48/pia-scrap/template"
	"github.com/bayue48/pia-scrap/utils"
)

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// Build produces the EPUB bytes for a novel and its ordered chapters.
// Chapter documents are named by their dense 1-based index, and every
// entry is written in one fixed sequence with no timestamps, so the same
// inputs always produce the same archive.
func Build(novel *model.Novel, chapters []*model.Chapter, cover []byte, lang string) ([]byte, error) {
	if lang == "" {
		lang = "en"
	}

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)

	if err := addEntry(w, "mimetype", []byte("application/epub+zip"), zip.Store); err != nil {
		return nil, err
	}
	if err := addEntry(w, "META-INF/container.xml", []byte(containerXML), zip.Deflate); err != nil {
		return nil, err
	}

	opf, err := contentOPF(novel, chapters, cover != nil, lang)
	if err != nil {
		return nil, fmt.Errorf("failed to build content opf: %v", err)
	}
	if err := addEntry(w, "OEBPS/content.opf", []byte(opf), zip.Deflate); err != nil {
		return nil, err
	}

	ncx, err := tocNCX(novel, chapters)
	if err != nil {
		return nil, fmt.Errorf("failed to build toc ncx: %v", err)
	}
	if err := addEntry(w, "OEBPS/toc.ncx", []byte(ncx), zip.Deflate); err != nil {
		return nil, err
	}

	if err := addEntry(w, "OEBPS/Styles/style.css", []byte(template.StyleCSS), zip.Deflate); err != nil {
		return nil, err
	}
	if err := addEntry(w, "OEBPS/Text/about.xhtml", []byte(aboutXHTML(novel, chapters, cover != nil, lang)), zip.Deflate); err != nil {
		return nil, err
	}
	if err := addEntry(w, "OEBPS/Text/contents.xhtml", []byte(navXHTML(chapters, lang)), zip.Deflate); err != nil {
		return nil, err
	}

	for _, chapter := range chapters {
		doc := chapterXHTML(chapter, lang)
		name := fmt.Sprintf("OEBPS/Text/%s", ChapterFileName(chapter.Index))
		if err := addEntry(w, name, []byte(doc), zip.Deflate); err != nil {
			return nil, err
		}
	}

	if cover != nil {
		if err := addEntry(w, "OEBPS/Images/cover.jpg", cover, zip.Deflate); err != nil {
			return nil, err
		}
	}
	for _, chapter := range chapters {
		for _, name := range sortedImageNames(chapter) {
			if err := addEntry(w, "OEBPS/Images/"+name, chapter.Content.Images[name], zip.Deflate); err != nil {
				return nil, err
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ChapterFileName is the zero-padded document name for a chapter index.
// Source numbering may restart or skip; internal names never do.
func ChapterFileName(index int) string {
	return fmt.Sprintf("chapter-%04d.xhtml", index)
}

func addEntry(w *zip.Writer, name string, data []byte, method uint16) error {
	// Bare headers carry no modification time, which keeps rebuilds
	// byte-identical.
	header := &zip.FileHeader{Name: name, Method: method}
	writer, err := w.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = writer.Write(data)
	return err
}

func sortedImageNames(chapter *model.Chapter) []string {
	if chapter.Content == nil || len(chapter.Content.Images) == 0 {
		return nil
	}
	names := make([]string, 0, len(chapter.Content.Images))
	for name := range chapter.Content.Images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Identifier derives the deterministic package identifier.
func Identifier(novel *model.Novel) string {
	if novel.ID != 0 {
		return fmt.Sprintf("urn:novelpia:%d", novel.ID)
	}
	return "urn:novelpia:" + utils.Slugify(novel.Title)
}

func contentOPF(novel *model.Novel, chapters []*model.Chapter, hasCover bool, lang string) (string, error) {
	dc := &model.DublinCoreMetadata{
		Titles:      []model.DCTitle{{Value: novel.Title}},
		Identifiers: []model.DCIdentifier{{Value: Identifier(novel), ID: "book-id"}},
		Languages:   []model.DCLanguage{{Value: lang}},
	}
	if novel.Author != "" {
		dc.Creators = []model.DCCreator{{Value: novel.Author, Role: "aut"}}
	}
	if novel.Description != "" {
		dc.Descriptions = []model.DCDescription{{Value: novel.Description}}
	}
	for _, tag := range novel.Tags {
		dc.Subjects = append(dc.Subjects, model.DCSubject{Value: tag})
	}
	if novel.URL != "" {
		dc.Sources = []model.DCSource{{Value: novel.URL}}
	}
	if hasCover {
		dc.Metas = append(dc.Metas, model.DublinCoreMeta{Name: "cover", Content: "Images/cover.jpg"})
	}

	manifest := &model.Manifest{Items: []model.ManifestItem{
		{ID: "ncx", Link: "toc.ncx", Media: "application/x-dtbncx+xml"},
		{ID: "style", Link: "Styles/style.css", Media: "text/css"},
		{ID: "about", Link: "Text/about.xhtml", Media: "application/xhtml+xml"},
		{ID: "contents", Link: "Text/contents.xhtml", Media: "application/xhtml+xml", Properties: "nav"},
	}}
	if hasCover {
		manifest.Items = append(manifest.Items, model.ManifestItem{
			ID: "cover-image", Link: "Images/cover.jpg", Media: "image/jpeg", Properties: "cover-image",
		})
	}
	for _, chapter := range chapters {
		name := ChapterFileName(chapter.Index)
		manifest.Items = append(manifest.Items, model.ManifestItem{
			ID:    strings.TrimSuffix(name, ".xhtml"),
			Link:  "Text/" + name,
			Media: "application/xhtml+xml",
		})
		for _, img := range sortedImageNames(chapter) {
			manifest.Items = append(manifest.Items, model.ManifestItem{
				ID:    "img-" + strings.TrimSuffix(img, utils.ImageExt(img)),
				Link:  "Images/" + img,
				Media: utils.MediaTypeFromExt(utils.ImageExt(img)),
			})
		}
	}

	spine := &model.Spine{Toc: "ncx", Items: []model.SpineItem{{IDref: "about"}, {IDref: "contents"}}}
	for _, chapter := range chapters {
		spine.Items = append(spine.Items, model.SpineItem{
			IDref: strings.TrimSuffix(ChapterFileName(chapter.Index), ".xhtml"),
		})
	}

	dcXML, err := dc.Marshal()
	if err != nil {
		return "", err
	}
	manifestXML, err := manifest.Marshal()
	if err != nil {
		return "", err
	}
	spineXML, err := spine.Marshal()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<package xmlns="http://www.idpf.org/2007/opf" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="book-id">`)
	b.WriteString(dcXML)
	b.WriteString(manifestXML)
	b.WriteString(spineXML)
	b.WriteString(`</package>`)
	return b.String(), nil
}

func tocNCX(novel *model.Novel, chapters []*model.Chapter) (string, error) {
	head := &model.TocNCXHead{
		Meta: []model.TocNCXHeadMeta{
			{Name: "dtb:uid", Content: Identifier(novel)},
			{Name: "dtb:depth", Content: "1"},
		},
	}

	navMap := &model.NavMap{Points: []*model.NavPoint{
		{
			Id:        "about",
			PlayOrder: 1,
			Label:     "About",
			Content:   model.NavPointContent{Src: "Text/about.xhtml"},
		},
	}}
	for _, chapter := range chapters {
		navMap.Points = append(navMap.Points, &model.NavPoint{
			Id:        strings.TrimSuffix(ChapterFileName(chapter.Index), ".xhtml"),
			PlayOrder: len(navMap.Points) + 1,
			Label:     chapter.Title,
			Content:   model.NavPointContent{Src: "Text/" + ChapterFileName(chapter.Index)},
		})
	}

	headXML, err := head.Marshal()
	if err != nil {
		return "", err
	}
	navXML, err := navMap.Marshal()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">`)
	b.WriteString(headXML)
	b.WriteString(`<docTitle><text>` + html.EscapeString(novel.Title) + `</text></docTitle>`)
	b.WriteString(navXML)
	b.WriteString(`</ncx>`)
	return b.String(), nil
}

func xhtmlDocument(title, body, lang string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" xml:lang="` + lang + `">`)
	b.WriteString(`<head><title>` + html.EscapeString(title) + `</title>`)
	b.WriteString(`<link rel="stylesheet" type="text/css" href="../Styles/style.css"/></head>`)
	b.WriteString(`<body>` + body + `</body></html>`)
	return b.String()
}

func aboutXHTML(novel *model.Novel, chapters []*model.Chapter, hasCover bool, lang string) string {
	var b strings.Builder
	b.WriteString(`<h1>` + html.EscapeString(novel.Title) + `</h1>`)
	if hasCover {
		b.WriteString(`<p><img class="cover" src="../Images/cover.jpg" alt="Cover"/></p>`)
	}
	author := novel.Author
	if author == "" {
		author = "Unknown"
	}
	b.WriteString(`<p><strong>Author:</strong> ` + html.EscapeString(author) + `</p>`)
	b.WriteString(`<p><strong>Status:</strong> ` + html.EscapeString(string(novel.Status)) + `</p>`)
	b.WriteString(fmt.Sprintf(`<p><strong>Chapters:</strong> %d</p>`, len(chapters)))
	if len(novel.Tags) > 0 {
		b.WriteString(`<p><strong>Tags:</strong> ` + html.EscapeString(strings.Join(novel.Tags, ", ")) + `</p>`)
	}
	if novel.URL != "" {
		u := html.EscapeString(novel.URL)
		b.WriteString(`<p><strong>Source:</strong> <a href="` + u + `">` + u + `</a></p>`)
	}
	if novel.Description != "" {
		b.WriteString(`<p>` + html.EscapeString(truncate(novel.Description, 2000)) + `</p>`)
	}
	return xhtmlDocument("About", b.String(), lang)
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func navXHTML(chapters []*model.Chapter, lang string) string {
	var b strings.Builder
	b.WriteString(`<nav epub:type="toc" id="toc"><h2>Contents</h2><ol>`)
	b.WriteString(`<li><a href="about.xhtml">About</a></li>`)
	for _, chapter := range chapters {
		b.WriteString(`<li><a href="` + ChapterFileName(chapter.Index) + `">` +
			html.EscapeString(chapter.Title) + `</a></li>`)
	}
	b.WriteString(`</ol></nav>`)
	return xhtmlDocument("Contents", b.String(), lang)
}

func chapterXHTML(chapter *model.Chapter, lang string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(`<h2 class="chapter-title">%d. %s</h2>`, chapter.Index, html.EscapeString(chapter.Title)))
	if chapter.Content != nil {
		b.WriteString(chapter.Content.HTML)
	}
	return xhtmlDocument(chapter.Title, b.String(), lang)
}
