package model

import "strconv"

// NovelStatus is the publication state reported by the source.
type NovelStatus string

const (
	StatusOngoing   NovelStatus = "Ongoing"
	StatusCompleted NovelStatus = "Completed"
	StatusUnknown   NovelStatus = "Unknown"
)

// Novel holds the metadata extracted once per run from the novel landing
// page or the novel API endpoint. It is not mutated afterwards.
type Novel struct {
	ID          int         `json:"id,omitempty"`
	Title       string      `json:"title"`
	Author      string      `json:"author,omitempty"`
	Status      NovelStatus `json:"status"`
	Tags        []string    `json:"tags,omitempty"`
	Description string      `json:"description,omitempty"`
	URL         string      `json:"url"`
	CoverURL    string      `json:"cover_url,omitempty"`
}

// ChapterContent is the fetched body of one chapter. Images maps an
// EPUB-internal file name to the downloaded bytes; references that could
// not be downloaded stay as external links inside HTML.
type ChapterContent struct {
	HTML   string
	Images map[string][]byte
}

// Chapter starts its life as a stub produced by listing (index, title and
// a locator) and is enriched with content by the fetch stage. Index is
// 1-based and dense in discovery order, independent of the source's own
// numbering.
type Chapter struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	EpisodeNo int    `json:"episode_no,omitempty"`

	Content *ChapterContent `json:"-"`
}

// Locator returns whichever chapter locator the listing strategy filled
// in, for logs and the chapters.jsonl index.
func (c *Chapter) Locator() string {
	if c.URL != "" {
		return c.URL
	}
	if c.EpisodeNo != 0 {
		return "episode:" + strconv.Itoa(c.EpisodeNo)
	}
	return ""
}
