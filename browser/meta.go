package browser

import (
	"log"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bayue48/pia-scrap/model"
	"github.com/bayue48/pia-scrap/utils"
	"github.com/go-resty/resty/v2"
)

var siteTitlePrefix = regexp.MustCompile(`(?i)^\s*Novelpia\s*-\s*`)
var siteTitleSuffix = regexp.MustCompile(`(?i)\s*-\s*Novelpia\s*$`)

const metaFieldsJS = `(() => {
	const txt = (el) => (el && (el.textContent || '').trim()) || '';
	const all = Array.from(document.querySelectorAll('*'));

	let author = '';
	for (const el of all) {
		if (/^Author$/i.test(txt(el))) {
			author = txt(el.nextElementSibling);
			if (author) break;
		}
	}
	if (!author) {
		const m = all.map(e => txt(e)).find(t => /^Author\s*[:\-]?\s*\S/i.test(t));
		if (m) author = m.replace(/^Author\s*[:\-]?/i, '').trim();
	}

	const tags = Array.from(new Set(
		Array.from(document.querySelectorAll('a,span'))
			.map(e => txt(e))
			.filter(t => /^#/.test(t))
			.map(t => t.replace(/^#/, '').trim())
	));

	let status = txt(document.querySelector('.nv-stat-badge'));
	if (/comp|completed/i.test(status)) status = 'Completed';
	else if (/ongoing|up/i.test(status)) status = 'Ongoing';
	else status = '';

	return {author: author, tags: tags, status: status};
})()`

type metaFields struct {
	Author string   `json:"author"`
	Tags   []string `json:"tags"`
	Status string   `json:"status"`
}

// ExtractMeta builds the Novel record from the rendered landing page.
func ExtractMeta(session *Session, novelURL string) (*model.Novel, error) {
	log.Println("Extracting metadata")

	pageHTML, err := session.HTML()
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	}
	title = siteTitleSuffix.ReplaceAllString(siteTitlePrefix.ReplaceAllString(title, ""), "")
	if title == "" {
		title = "Untitled"
	}

	var fields metaFields
	if err := session.Evaluate(metaFieldsJS, &fields); err != nil {
		log.Printf("Metadata script failed, continuing with partial metadata: %v", err)
	}

	status := model.StatusUnknown
	switch fields.Status {
	case "Completed":
		status = model.StatusCompleted
	case "Ongoing":
		status = model.StatusOngoing
	}

	// Longest text block among the usual description homes.
	description := ""
	blocks := doc.Find("article, .description, .prose, .detail, .content, p")
	limit := blocks.Length()
	if limit > 60 {
		limit = 60
	}
	blocks.Slice(0, limit).Each(func(i int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if len(t) > len(description) {
			description = t
		}
	})

	novel := &model.Novel{
		Title:       title,
		Author:      fields.Author,
		Status:      status,
		Tags:        utils.Unique(fields.Tags),
		Description: description,
		URL:         novelURL,
		CoverURL:    coverURL(doc, novelURL),
	}
	log.Printf("Metadata: title=%q status=%q author=%q", novel.Title, novel.Status, novel.Author)
	return novel, nil
}

// coverURL resolves the cover in preference order: og:image, the
// twitter card image, then the first plausible cover <img>.
func coverURL(doc *goquery.Document, novelURL string) string {
	base := originOf(novelURL)
	if u := doc.Find(`meta[property="og:image"]`).AttrOr("content", ""); u != "" {
		return absoluteURL(base, u)
	}
	if u := doc.Find(`meta[name="twitter:image"]`).AttrOr("content", ""); u != "" {
		return absoluteURL(base, u)
	}
	if u := doc.Find(`.nv-cover img, .cover img, img[src*='cover']`).First().AttrOr("src", ""); u != "" {
		return absoluteURL(base, u)
	}
	return ""
}

func originOf(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		rest := u[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			return u[:i+3+j]
		}
	}
	return u
}

// FetchCover downloads the resolved cover image; a missing or failing
// cover is not an error, the EPUB just goes without one.
func FetchCover(client *resty.Client, novel *model.Novel) []byte {
	if novel.CoverURL == "" {
		return nil
	}
	data, err := utils.DownloadImage(client, novel.URL, novel.CoverURL)
	if err != nil {
		log.Printf("Cover download failed: %v", err)
		return nil
	}
	return data
}
