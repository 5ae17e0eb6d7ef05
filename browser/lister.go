package browser

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/bayue48/pia-scrap/model"
	"github.com/bayue48/pia-scrap/utils"
	"github.com/chromedp/cdproto/network"
)

// errNotApplicable signals that a discovery strategy found nothing to
// work with, so the next strategy in the chain should run.
var errNotApplicable = errors.New("strategy not applicable")

// reauthCookies carries the cookie material a strategy may re-install
// when the session looks logged out mid-walk.
type reauthCookies struct {
	params []*network.CookieParam
}

type listStrategy interface {
	name() string
	list(session *Session, novelURL string, maxChapters int) ([]*model.Chapter, error)
}

// ListChapters discovers the ordered chapter list by trying each
// strategy in turn: the paginated ToC section, then a static scan for
// viewer links, then walking a reader page via its Next affordance.
// Order always follows the source; indices come out dense and 1-based.
func ListChapters(session *Session, novelURL string, maxChapters int, cookies []*network.CookieParam) ([]*model.Chapter, error) {
	strategies := []listStrategy{
		tocStrategy{cookies: reauthCookies{params: cookies}},
		anchorScanStrategy{},
		walkNextStrategy{},
	}

	for _, strat := range strategies {
		chapters, err := strat.list(session, novelURL, maxChapters)
		if errors.Is(err, errNotApplicable) {
			log.Printf("Strategy %q not applicable, trying next", strat.name())
			continue
		}
		if err != nil {
			return nil, &model.DiscoveryError{Stage: "collecting chapters", Err: err}
		}
		log.Printf("Strategy %q discovered %d chapters", strat.name(), len(chapters))
		return chapters, nil
	}

	return nil, &model.DiscoveryError{Stage: "collecting chapters"}
}

// absoluteURL resolves href against the origin of base.
func absoluteURL(base, href string) string {
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	u, err := url.Parse(base)
	if err != nil {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return u.Scheme + "://" + u.Host + href
	}
	return href
}

const viewerLinksJS = `(() => {
	const urls = [];
	const push = (h) => {
		if (h && /\/viewer\//.test(h)) urls.push(h);
	};
	document.querySelectorAll('a[href]').forEach(a => push(a.getAttribute('href')));
	document.querySelectorAll('[onclick]').forEach(el => {
		const m = (el.getAttribute('onclick') || '').match(/\/viewer\/[0-9]+/);
		if (m) urls.push(m[0]);
	});
	document.querySelectorAll('[aria-label]').forEach(el => {
		const m = (el.getAttribute('aria-label') || '').match(/\/viewer\/[0-9]+/);
		if (m) urls.push(m[0]);
	});
	return urls;
})()`

// anchorScanStrategy harvests reader links that are statically present
// in anchors, onclick handlers, or ARIA attributes.
type anchorScanStrategy struct{}

func (anchorScanStrategy) name() string { return "anchor scan" }

func (anchorScanStrategy) list(session *Session, novelURL string, maxChapters int) ([]*model.Chapter, error) {
	var hrefs []string
	if err := session.Evaluate(viewerLinksJS, &hrefs); err != nil || len(hrefs) == 0 {
		return nil, errNotApplicable
	}

	urls := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		urls = append(urls, absoluteURL(novelURL, href))
	}

	chapters := make([]*model.Chapter, 0, len(urls))
	for _, u := range utils.Unique(urls) {
		chapters = append(chapters, &model.Chapter{
			Index: len(chapters) + 1,
			Title: fmt.Sprintf("Chapter %d", len(chapters)+1),
			URL:   u,
		})
		if maxChapters > 0 && len(chapters) >= maxChapters {
			break
		}
	}
	if len(chapters) == 0 {
		return nil, errNotApplicable
	}
	return chapters, nil
}

const startReadingJS = `(() => {
	const labels = [/^start reading$/i, /^read$/i, /^start$/i, /^continue$/i];
	const els = Array.from(document.querySelectorAll('a,button'));
	for (const re of labels) {
		const el = els.find(e => re.test((e.textContent || '').trim()));
		if (el) {
			const href = el.getAttribute('href');
			if (href) return href;
			el.click();
			return '__clicked__';
		}
	}
	return '';
})()`

const nextChapterJS = `(() => {
	const labels = [/^next$/i, /^next episode$/i, /^next chapter$/i, /^다음$/, /^다음 화$/, /^▶$/, /^›$/];
	const els = Array.from(document.querySelectorAll('a,button'));
	for (const re of labels) {
		const el = els.find(e => re.test((e.textContent || '').trim()));
		if (el) {
			const href = el.getAttribute('href');
			if (href) return href;
			el.click();
			return '__clicked__';
		}
	}
	const rel = document.querySelector("a[rel='next']");
	if (rel) return rel.getAttribute('href') || '';
	return '';
})()`

const pageTitleJS = `(document.title || '').trim()`

// walkNextStrategy seeds a reader page through the start-reading
// affordance (or the first viewer link it can find) and then follows
// "next chapter" until none remains, assigning positions as discovered.
type walkNextStrategy struct{}

func (walkNextStrategy) name() string { return "walk next" }

func (w walkNextStrategy) list(session *Session, novelURL string, maxChapters int) ([]*model.Chapter, error) {
	startURL, err := w.seedViewer(session, novelURL)
	if err != nil || startURL == "" {
		return nil, errNotApplicable
	}

	maxSteps := maxChapters
	if maxSteps <= 0 {
		maxSteps = 300
	}

	chapters := make([]*model.Chapter, 0)
	seen := make(map[string]struct{})
	current := startURL

	for step := 0; step < maxSteps; step++ {
		if current == "" {
			break
		}
		if _, dup := seen[current]; dup {
			break
		}
		seen[current] = struct{}{}

		if err := session.Navigate(current); err != nil {
			break
		}
		title := ""
		_ = session.Evaluate(pageTitleJS, &title)
		if title == "" {
			title = fmt.Sprintf("Chapter %d", len(chapters)+1)
		}
		chapters = append(chapters, &model.Chapter{
			Index: len(chapters) + 1,
			Title: title,
			URL:   current,
		})

		next := w.follow(session, nextChapterJS)
		if next == "" || next == current {
			break
		}
		current = absoluteURL(novelURL, next)
		time.Sleep(700 * time.Millisecond)
	}

	if len(chapters) == 0 {
		return nil, errNotApplicable
	}
	return chapters, nil
}

func (w walkNextStrategy) seedViewer(session *Session, novelURL string) (string, error) {
	if result := w.follow(session, startReadingJS); result != "" {
		u := absoluteURL(novelURL, result)
		if strings.Contains(u, "/viewer/") {
			return u, nil
		}
	}

	var hrefs []string
	if err := session.Evaluate(viewerLinksJS, &hrefs); err == nil && len(hrefs) > 0 {
		return absoluteURL(novelURL, hrefs[0]), nil
	}
	return "", nil
}

// follow evaluates an affordance script that either returns an href or
// clicks and reports __clicked__, in which case the landed URL is read
// back from the page.
func (w walkNextStrategy) follow(session *Session, js string) string {
	var result string
	if err := session.Evaluate(js, &result); err != nil || result == "" {
		return ""
	}
	if result != "__clicked__" {
		return result
	}
	time.Sleep(time.Second)
	url, err := session.Location()
	if err != nil {
		return ""
	}
	return url
}
