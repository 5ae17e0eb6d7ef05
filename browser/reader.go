package browser

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bayue48/pia-scrap/model"
	"github.com/bayue48/pia-scrap/utils"
	readability "github.com/go-shiori/go-readability"
	"github.com/go-resty/resty/v2"
)

// Selectors for comment widgets and other chrome that must never land
// in a chapter document.
var commentSelectors = []string{
	".comment-all-wrapper", ".comment-header", ".comment-write-box", ".comment-list-wrapper",
	".cmtbox", ".comment-txt", ".comment-action-btn", ".reply-write-input", ".btn-reply-input",
	".user-info", ".user-nic", ".input-date", ".nv-comments", ".comments", ".comment",
	"#comments", "#comment", "[data-comments]", "[data-comment]",
}

// Candidate reading containers, most specific first.
var containerSelectors = []string{
	"[id*='viewer']", ".viewer", ".view-contents", ".read-contents",
	"article", ".article", ".reader", ".chapter", ".prose",
	".ql-editor", ".content", "[data-reader]", "[data-contents]",
}

var (
	noCommentsPattern = regexp.MustCompile(`(?i)^\s*(there (are )?no comments|no comments)\s*$`)
	timestampPattern  = regexp.MustCompile(`(?i)^(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{1,2},\s+\d{4}\s+at\s+\d{1,2}:\d{2}\s*(am|pm)\s*$`)
)

func stripCommentBlocks(doc *goquery.Document) {
	for _, sel := range commentSelectors {
		doc.Find(sel).Remove()
	}

	doc.Find("div,section,ul,ol,aside,article").Each(func(i int, s *goquery.Selection) {
		class := strings.ToLower(s.AttrOr("class", ""))
		id := strings.ToLower(s.AttrOr("id", ""))
		if strings.Contains(class, "comment") || strings.Contains(class, "reply") ||
			strings.Contains(id, "comment") || strings.Contains(id, "reply") {
			s.Remove()
		}
	})

	doc.Find("p,div,li").Each(func(i int, s *goquery.Selection) {
		txt := strings.TrimSpace(s.Text())
		if noCommentsPattern.MatchString(txt) || timestampPattern.MatchString(txt) ||
			txt == "HOT" || txt == "NEWEST" || txt == "ADD" {
			// Climb to a list item (comment rows) but never to the
			// reading container itself.
			parent := s.Closest("li")
			if parent.Length() > 0 {
				parent.Remove()
			} else {
				s.Remove()
			}
		}
	})
}

func isGoodTitle(t, novelTitle string) bool {
	s := strings.TrimSpace(t)
	if s == "" || len(s) < 4 {
		return false
	}
	if strings.HasPrefix(strings.ToLower(s), "novelpia -") {
		return false
	}
	if novelTitle != "" && s == strings.TrimSpace(novelTitle) {
		return false
	}
	return true
}

// ExtractReadable pulls the chapter body out of a rendered reader page:
// comment widgets and chrome are stripped, the first container with a
// substantial amount of text wins, and when no known container matches
// the page goes through readability extraction and finally a bare
// paragraph harvest.
func ExtractReadable(pageHTML, pageURL, listTitle, novelTitle string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse html: %v", err)
	}
	stripCommentBlocks(doc)

	var node *goquery.Selection
	for _, sel := range containerSelectors {
		cand := doc.Find(sel).First()
		if cand.Length() > 0 && len(strings.TrimSpace(cand.Text())) > 200 {
			node = cand
			break
		}
	}

	if node == nil {
		return extractFallback(doc, pageHTML, pageURL, listTitle, novelTitle)
	}

	title := ""
	for _, sel := range []string{".chapter-title", ".ep-title", ".title", "header h1", "h1", "h2"} {
		if h := strings.TrimSpace(node.Find(sel).First().Text()); h != "" {
			title = h
			break
		}
	}
	if !isGoodTitle(title, novelTitle) {
		if listTitle != "" {
			title = listTitle
		} else if title == "" {
			title = "Chapter"
		}
	}

	body, err := node.Html()
	if err != nil {
		return "", "", err
	}
	return title, strings.TrimSpace(body), nil
}

func extractFallback(doc *goquery.Document, pageHTML, pageURL, listTitle, novelTitle string) (string, string, error) {
	pageTitle := strings.TrimSpace(doc.Find("title").First().Text())
	title := listTitle
	if title == "" {
		if isGoodTitle(pageTitle, novelTitle) {
			title = pageTitle
		} else {
			title = "Chapter"
		}
	}

	// Readability gets a shot before the crude paragraph harvest.
	if parsed, err := url.Parse(pageURL); err == nil {
		article, err := readability.FromReader(strings.NewReader(pageHTML), parsed)
		if err == nil && len(strings.TrimSpace(article.TextContent)) > 200 {
			if isGoodTitle(article.Title, novelTitle) && listTitle == "" {
				title = article.Title
			}
			return title, strings.TrimSpace(article.Content), nil
		}
	}

	var paras []string
	doc.Find("p").Each(func(i int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if len(t) > 10 {
			paras = append(paras, "<p>"+html.EscapeString(t)+"</p>")
		}
	})
	if len(paras) == 0 {
		return "", "", fmt.Errorf("no readable content found (might be gated)")
	}
	return title, strings.Join(paras, ""), nil
}

// FetchChapter navigates to the chapter's reader page and fills in its
// content, downloading embedded images through the HTTP client.
// Site-relative image references resolve against the viewer URL's
// origin, never a page path.
func FetchChapter(session *Session, httpClient *resty.Client, chapter *model.Chapter, novelTitle string) error {
	if err := session.Navigate(chapter.URL); err != nil {
		return &model.FetchError{Index: chapter.Index, Title: chapter.Title, Err: err}
	}
	pageHTML, err := session.HTML()
	if err != nil {
		return &model.FetchError{Index: chapter.Index, Title: chapter.Title, Err: err}
	}

	title, body, err := ExtractReadable(pageHTML, chapter.URL, chapter.Title, novelTitle)
	if err != nil {
		return &model.FetchError{Index: chapter.Index, Title: chapter.Title, Err: err}
	}
	if title != "" {
		chapter.Title = title
	}

	origin := originOf(chapter.URL)
	rewritten, images, err := utils.EmbedImages(httpClient, origin, origin+"/", body)
	if err != nil {
		return &model.FetchError{Index: chapter.Index, Title: chapter.Title, Err: err}
	}
	chapter.Content = &model.ChapterContent{HTML: rewritten, Images: images}
	return nil
}
