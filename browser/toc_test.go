package browser

import (
	"fmt"
	"testing"
)

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total, perPage, want int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{41, 20, 3},
		{400, 20, 20},
		{10, 0, 0},
	}
	for _, c := range cases {
		if got := TotalPages(c.total, c.perPage); got != c.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", c.total, c.perPage, got, c.want)
		}
	}
}

func TestListNavCycle(t *testing.T) {
	nav := listNav{state: stateOnListPage, page: 1}

	if err := nav.openItem(); err != nil {
		t.Fatalf("openItem: %v", err)
	}
	if nav.state != stateOnItemPage {
		t.Fatalf("after openItem state = %s", nav.state)
	}
	if err := nav.returnToList(); err != nil {
		t.Fatalf("returnToList: %v", err)
	}
	if err := nav.settle(3); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if nav.state != stateOnListPage || nav.page != 3 {
		t.Fatalf("after settle state = %s page = %d", nav.state, nav.page)
	}
}

func TestListNavRejectsOutOfOrderTransitions(t *testing.T) {
	nav := listNav{state: stateOnListPage, page: 1}
	if err := nav.returnToList(); err == nil {
		t.Error("returnToList from OnListPage should fail")
	}

	nav = listNav{state: stateOnItemPage, page: 1}
	if err := nav.openItem(); err == nil {
		t.Error("openItem from OnItemPage should fail")
	}
	if err := nav.settle(2); err == nil {
		t.Error("settle from OnItemPage should fail")
	}
}

func TestListNavStayedAfterDeadClick(t *testing.T) {
	nav := listNav{state: stateOnListPage, page: 2}
	if err := nav.openItem(); err != nil {
		t.Fatalf("openItem: %v", err)
	}
	nav.stayed()
	if nav.state != stateOnListPage || nav.page != 2 {
		t.Fatalf("stayed should keep the walker on page 2, got state %s page %d", nav.state, nav.page)
	}
	// A dead click must not poison the next capture attempt.
	if err := nav.openItem(); err != nil {
		t.Fatalf("openItem after stayed: %v", err)
	}
}

// fakePager simulates a paginated 20-per-page chapter list in memory so
// the walk loop can be exercised without a browser.
type fakePager struct {
	total      int
	page       int
	pageVisits int
	gotoCalls  int
}

func (f *fakePager) totalChapters() int { return f.total }
func (f *fakePager) settleCurrent() int { f.page = 1; return 1 }
func (f *fakePager) pageNo() int        { return f.page }

func (f *fakePager) listItems() []listItem {
	f.pageVisits++
	start := (f.page - 1) * PageSize
	end := start + PageSize
	if end > f.total {
		end = f.total
	}
	items := make([]listItem, 0, end-start)
	for n := start + 1; n <= end; n++ {
		items = append(items, listItem{Num: fmt.Sprintf("%d", n), Title: fmt.Sprintf("Episode %d", n)})
	}
	return items
}

func (f *fakePager) captureItemURL(idx int) (string, error) {
	n := (f.page-1)*PageSize + idx + 1
	return fmt.Sprintf("https://example.com/viewer/%d", n), nil
}

func (f *fakePager) gotoPage(target int) bool {
	f.gotoCalls++
	if target < 1 || target > TotalPages(f.total, PageSize) {
		return false
	}
	f.page = target
	return true
}

func (f *fakePager) maybeReauth(string) {}

func TestWalkTocVisitsExactlyComputedPages(t *testing.T) {
	p := &fakePager{total: 41}
	chapters, err := walkToc(p, 0)
	if err != nil {
		t.Fatalf("walkToc: %v", err)
	}
	if len(chapters) != 41 {
		t.Fatalf("got %d chapters, want 41", len(chapters))
	}
	if p.pageVisits != 3 {
		t.Errorf("visited %d list pages, want 3", p.pageVisits)
	}
	for i, ch := range chapters {
		if ch.Index != i+1 {
			t.Fatalf("chapter %d has index %d", i, ch.Index)
		}
	}
	if got := chapters[40].URL; got != "https://example.com/viewer/41" {
		t.Errorf("last chapter URL = %q", got)
	}
}

func TestWalkTocStopsAtMaxChapters(t *testing.T) {
	p := &fakePager{total: 41}
	chapters, err := walkToc(p, 5)
	if err != nil {
		t.Fatalf("walkToc: %v", err)
	}
	if len(chapters) != 5 {
		t.Fatalf("got %d chapters, want 5", len(chapters))
	}
	if p.pageVisits != 1 {
		t.Errorf("visited %d list pages, want 1", p.pageVisits)
	}
	if got := chapters[4].URL; got != "https://example.com/viewer/5" {
		t.Errorf("last chapter URL = %q", got)
	}
}

func TestWalkTocDeduplicatesRepeatedViewerURLs(t *testing.T) {
	p := &stuckPager{fakePager: fakePager{total: 41}}
	chapters, err := walkToc(p, 0)
	if err != nil {
		t.Fatalf("walkToc: %v", err)
	}
	// Page 2 serves the same rows as page 1, so only the first 20
	// distinct URLs plus page 3's single row survive.
	if len(chapters) != 21 {
		t.Fatalf("got %d chapters, want 21", len(chapters))
	}
	if got := chapters[20].URL; got != "https://example.com/viewer/41" {
		t.Errorf("last chapter URL = %q", got)
	}
}

// stuckPager repeats page 1's rows on page 2, as a list does when a
// pagination click silently fails to re-render.
type stuckPager struct {
	fakePager
}

func (s *stuckPager) captureItemURL(idx int) (string, error) {
	page := s.page
	if page == 2 {
		page = 1
	}
	n := (page-1)*PageSize + idx + 1
	return fmt.Sprintf("https://example.com/viewer/%d", n), nil
}
