package browser

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bayue48/pia-scrap/model"
	"github.com/chromedp/cdproto/network"
)

const (
	// The rendered ToC always paginates chapter rows 20 at a time.
	PageSize = 20

	listSectionSel = ".ch-list-section"
	safetyPages    = 200
)

// TotalPages computes how many list pages cover total chapters.
func TotalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// navState tracks where the walker is relative to the chapter list. The
// viewer locator only exists after a click, so every capture is a
// navigate-away-and-restore cycle; making the cycle explicit keeps the
// list page identity restorable at every step.
type navState int

const (
	stateOnListPage navState = iota
	stateOnItemPage
	stateReturnedToListPage
)

func (s navState) String() string {
	switch s {
	case stateOnListPage:
		return "OnListPage"
	case stateOnItemPage:
		return "OnItemPage"
	case stateReturnedToListPage:
		return "ReturnedToListPage"
	}
	return "unknown"
}

// listNav is the pure state machine: OnListPage(page) -> OnItemPage ->
// ReturnedToListPage(page) -> OnListPage(page).
type listNav struct {
	state navState
	page  int
}

func (n *listNav) openItem() error {
	if n.state != stateOnListPage {
		return fmt.Errorf("cannot open item from state %s", n.state)
	}
	n.state = stateOnItemPage
	return nil
}

// stayed records that a click produced no navigation at all, so the
// walker is still on the same list page.
func (n *listNav) stayed() {
	n.state = stateOnListPage
}

func (n *listNav) returnToList() error {
	if n.state != stateOnItemPage {
		return fmt.Errorf("cannot return to list from state %s", n.state)
	}
	n.state = stateReturnedToListPage
	return nil
}

func (n *listNav) settle(page int) error {
	if n.state != stateReturnedToListPage && n.state != stateOnListPage {
		return fmt.Errorf("cannot settle on page from state %s", n.state)
	}
	n.state = stateOnListPage
	n.page = page
	return nil
}

const totalChaptersJS = `(() => {
	const el = document.querySelector('.ch-list-header .header-tit .text-primary-text');
	if (!el) return -1;
	const n = parseInt((el.textContent || '').replace(/[^0-9]/g, ''), 10);
	return Number.isFinite(n) ? n : -1;
})()`

const currentPageJS = `(() => {
	const el = document.querySelector('.pagination .page-btn.current');
	if (!el) return -1;
	const n = parseInt((el.textContent || '').trim(), 10);
	return Number.isFinite(n) ? n : -1;
})()`

const listItemsJS = `(() =>
	Array.from(document.querySelectorAll('.ch-list-section .list-item')).map(el => ({
		num: ((el.querySelector('.chapter-number') || {}).textContent || '').trim(),
		title: ((el.querySelector('.chapter-title') || {}).textContent || '').trim(),
	}))
)()`

type listItem struct {
	Num   string `json:"num"`
	Title string `json:"title"`
}

// tocPager is what the page-walk loop needs from a chapter list: the
// live tocWalker implements it against the browser tab, tests drive the
// loop with a fake.
type tocPager interface {
	totalChapters() int
	settleCurrent() int
	pageNo() int
	listItems() []listItem
	captureItemURL(idx int) (string, error)
	gotoPage(target int) bool
	maybeReauth(where string)
}

// tocWalker binds the state machine to the live browser tab.
type tocWalker struct {
	session  *Session
	novelURL string
	cookies  []*network.CookieParam
	nav      listNav
}

// settleCurrent reads the pagination's current page off the DOM and
// settles the state machine on it.
func (w *tocWalker) settleCurrent() int {
	page := w.currentPage()
	_ = w.nav.settle(page)
	return page
}

func (w *tocWalker) pageNo() int {
	return w.nav.page
}

func (w *tocWalker) maybeReauth(where string) {
	w.session.MaybeReauth(w.cookies, w.novelURL, where)
}

func (w *tocWalker) totalChapters() int {
	var n int
	if err := w.session.Evaluate(totalChaptersJS, &n); err != nil || n < 0 {
		return 0
	}
	return n
}

func (w *tocWalker) currentPage() int {
	var n int
	if err := w.session.Evaluate(currentPageJS, &n); err != nil || n < 0 {
		return 1
	}
	return n
}

func (w *tocWalker) listItems() []listItem {
	var items []listItem
	if err := w.session.Evaluate(listItemsJS, &items); err != nil {
		return nil
	}
	return items
}

func pageButtonJS(target int) string {
	return fmt.Sprintf(`(() => {
		const btn = Array.from(document.querySelectorAll('.pagination .page-btn:not(.arrow)'))
			.find(el => (el.textContent || '').trim() === '%d');
		if (!btn) return false;
		btn.click();
		return true;
	})()`, target)
}

func onPageJS(target int) string {
	return fmt.Sprintf(
		`(document.querySelector('.pagination .page-btn.current') || {textContent:''}).textContent.trim() === '%d'`,
		target)
}

const nextArrowJS = `(() => {
	const btn = Array.from(document.querySelectorAll('.pagination .page-btn.arrow'))
		.find(el => (el.textContent || '').trim() === '›');
	if (!btn) return false;
	btn.click();
	return true;
})()`

// gotoPage brings the pagination to the target page number, stepping
// through arrow groups when the number is not yet visible.
func (w *tocWalker) gotoPage(target int) bool {
	if w.currentPage() == target {
		_ = w.nav.settle(target)
		return true
	}

	for attempt := 0; attempt < 40; attempt++ {
		var clicked bool
		if err := w.session.Evaluate(pageButtonJS(target), &clicked); err == nil && clicked {
			if w.session.WaitFor(onPageJS(target), 6*time.Second) {
				_ = w.nav.settle(target)
				return true
			}
			return false
		}

		var stepped bool
		if err := w.session.Evaluate(nextArrowJS, &stepped); err != nil || !stepped {
			return false
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}

func clickItemJS(idx int) string {
	return fmt.Sprintf(`(() => {
		const idx = %d;
		const items = document.querySelectorAll('.ch-list-section .list-item');
		if (idx >= items.length) return false;
		const el = items[idx];
		el.scrollIntoView({block: 'center'});
		const inner = el.querySelector('.ch-info-wrapper') || el.querySelector('.ch-info') || el;
		inner.click();
		return true;
	})()`, idx)
}

func nestedViewerHrefJS(idx int) string {
	return fmt.Sprintf(`(() => {
		const items = document.querySelectorAll('.ch-list-section .list-item');
		if (%d >= items.length) return '';
		const a = items[%d].querySelector("a[href*='/viewer/']");
		return a ? (a.getAttribute('href') || '') : '';
	})()`, idx, idx)
}

// captureItemURL resolves the viewer URL of the idx-th row on the
// current list page. The locator is not statically present, so the row
// is clicked, the resulting route captured, and the walker navigates
// back and restores the very same list page.
func (w *tocWalker) captureItemURL(idx int) (string, error) {
	page := w.nav.page
	if err := w.nav.openItem(); err != nil {
		return "", err
	}

	before, _ := w.session.Location()
	var clicked bool
	if err := w.session.Evaluate(clickItemJS(idx), &clicked); err != nil || !clicked {
		w.nav.stayed()
		return "", nil
	}

	viewerURL := ""
	deadline := time.Now().Add(2500 * time.Millisecond)
	for time.Now().Before(deadline) {
		url, err := w.session.Location()
		if err == nil && url != before && strings.Contains(url, "/viewer/") {
			viewerURL = url
			break
		}
		time.Sleep(pollInterval)
	}

	if viewerURL == "" {
		// No SPA route happened; sniff a nested href before going back.
		var href string
		if err := w.session.Evaluate(nestedViewerHrefJS(idx), &href); err == nil && href != "" {
			viewerURL = absoluteURL(w.novelURL, href)
		}
		here, _ := w.session.Location()
		if here == before {
			w.nav.stayed()
			return viewerURL, nil
		}
	}

	if err := w.nav.returnToList(); err != nil {
		return viewerURL, err
	}
	if err := w.session.Navigate(w.novelURL); err != nil {
		return viewerURL, err
	}
	if err := w.session.WaitVisible(listSectionSel, 6*time.Second); err != nil {
		return viewerURL, fmt.Errorf("chapter list did not come back: %v", err)
	}
	_ = w.nav.settle(w.currentPage())
	if w.nav.page != page && !w.gotoPage(page) {
		return viewerURL, fmt.Errorf("could not restore list page %d", page)
	}
	return viewerURL, nil
}

// tocStrategy walks the paginated chapter-list section. The page budget
// limits how many list pages may be visited; item tries are capped so a
// reached --max-chapters never flips to one more page.
type tocStrategy struct {
	cookies reauthCookies
}

func (tocStrategy) name() string { return "rendered ToC" }

func (s tocStrategy) list(session *Session, novelURL string, maxChapters int) ([]*model.Chapter, error) {
	if err := session.WaitVisible(listSectionSel, 8*time.Second); err != nil {
		log.Printf("Chapter list section not found, falling back")
		return nil, errNotApplicable
	}
	w := &tocWalker{session: session, novelURL: novelURL, cookies: s.cookies.params}
	return walkToc(w, maxChapters)
}

// walkToc drives the page-by-page capture over any tocPager. The page
// budget is the computed page count, or safetyPages when the header
// gives no total.
func walkToc(p tocPager, maxChapters int) ([]*model.Chapter, error) {
	total := p.totalChapters()
	totalPages := TotalPages(total, PageSize)
	log.Printf("ToC: total_chapters=%d per_page=%d total_pages=%d", total, PageSize, totalPages)

	budget := totalPages
	if budget == 0 {
		budget = safetyPages
	}
	p.settleCurrent()

	chapters := make([]*model.Chapter, 0)
	seen := make(map[string]struct{})
	itemsTried := 0

	for pageVisit := 0; pageVisit < budget; pageVisit++ {
		if maxChapters > 0 && itemsTried >= maxChapters {
			break
		}

		cur := p.pageNo()
		items := p.listItems()
		log.Printf("ToC page %d: %d items", cur, len(items))

		limit := len(items)
		if maxChapters > 0 {
			remaining := maxChapters - itemsTried
			if remaining <= 0 {
				break
			}
			if limit > remaining {
				limit = remaining
			}
		}

		for i := 0; i < limit; i++ {
			p.maybeReauth("toc-item")

			title := strings.TrimSpace(items[i].Num + " " + items[i].Title)
			if title == "" {
				title = fmt.Sprintf("Chapter %d", len(chapters)+1)
			}

			url, err := p.captureItemURL(i)
			itemsTried++
			if err != nil {
				log.Printf("ToC item %d/%d on page %d: %v", i+1, len(items), cur, err)
				continue
			}
			if url == "" || !strings.Contains(url, "/viewer/") {
				continue
			}
			if _, dup := seen[url]; dup {
				continue
			}
			seen[url] = struct{}{}
			chapters = append(chapters, &model.Chapter{
				Index: len(chapters) + 1,
				Title: title,
				URL:   url,
			})
			if maxChapters > 0 && len(chapters) >= maxChapters {
				return chapters, nil
			}
		}

		if totalPages > 0 && cur >= totalPages {
			break
		}
		if maxChapters > 0 && itemsTried >= maxChapters {
			break
		}
		if !p.gotoPage(cur + 1) {
			break
		}
	}

	if len(chapters) == 0 {
		return nil, errNotApplicable
	}
	return chapters, nil
}
