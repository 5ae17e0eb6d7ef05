package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bayue48/pia-scrap/model"
	"github.com/bayue48/pia-scrap/utils"
)

type novelResponse struct {
	Result struct {
		Novel struct {
			NovelNo      json.Number `json:"novel_no"`
			NovelName    string      `json:"novel_name"`
			NovelStory   string      `json:"novel_story"`
			NovelImg     string      `json:"novel_img"`
			NovelFullImg string      `json:"novel_full_img"`
			FlagComplete json.Number `json:"flag_complete"`
		} `json:"novel"`
		WriterList []struct {
			WriterName string `json:"writer_name"`
		} `json:"writer_list"`
		Info struct {
			EpiCnt json.Number `json:"epi_cnt"`
		} `json:"info"`
	} `json:"result"`
}

// Novel fetches the novel record and maps it onto the shared model. The
// second return value is the episode count the platform reports, used to
// size the single list call.
func (c *Client) Novel(ctx context.Context, novelID int) (*model.Novel, int, error) {
	var body novelResponse
	err := c.getJSON(ctx, c.apiBase+"/v1/novel",
		map[string]string{"novel_no": fmt.Sprint(novelID)}, &body, true)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get novel info: %w", err)
	}

	nv := body.Result.Novel
	if nv.NovelName == "" {
		return nil, 0, fmt.Errorf("unexpected novel response shape for novel %d", novelID)
	}

	novel := &model.Novel{
		ID:          novelID,
		Title:       nv.NovelName,
		Description: strings.TrimSpace(nv.NovelStory),
		URL:         fmt.Sprintf("%s/novel/%d", c.base, novelID),
		Status:      model.StatusOngoing,
	}
	if flag, _ := nv.FlagComplete.Int64(); flag == 1 {
		novel.Status = model.StatusCompleted
	}
	if len(body.Result.WriterList) > 0 && body.Result.WriterList[0].WriterName != "" {
		novel.Author = body.Result.WriterList[0].WriterName
	}
	cover := nv.NovelFullImg
	if cover == "" {
		cover = nv.NovelImg
	}
	novel.CoverURL = utils.NormalizeURL(c.base, cover)

	epiCnt, _ := body.Result.Info.EpiCnt.Int64()
	return novel, int(epiCnt), nil
}

type episodeListResponse struct {
	Result struct {
		List []struct {
			EpisodeNo json.Number `json:"episode_no"`
			EpiNum    json.Number `json:"epi_num"`
			EpiTitle  string      `json:"epi_title"`
		} `json:"list"`
	} `json:"result"`
}

// ListChapters calls the episode-list endpoint once, sized to the full
// episode count, and maps each row to a chapter stub in list order.
// maxChapters > 0 caps the result.
func (c *Client) ListChapters(ctx context.Context, novelID, episodeCount, maxChapters int) ([]*model.Chapter, error) {
	rows := episodeCount
	if rows <= 0 {
		rows = 1000
	}

	var body episodeListResponse
	err := c.getJSON(ctx, c.apiBase+"/v1/novel/episode/list", map[string]string{
		"novel_no": fmt.Sprint(novelID),
		"rows":     fmt.Sprint(rows),
		"sort":     "ASC",
	}, &body, true)
	if err != nil {
		return nil, &model.DiscoveryError{Stage: "listing episodes", Err: err}
	}

	chapters := make([]*model.Chapter, 0, len(body.Result.List))
	for _, row := range body.Result.List {
		if maxChapters > 0 && len(chapters) >= maxChapters {
			break
		}
		episodeNo, err := row.EpisodeNo.Int64()
		if err != nil {
			continue
		}
		title := strings.TrimSpace(row.EpiTitle)
		if title == "" {
			title = fmt.Sprintf("Episode %s", row.EpiNum.String())
		}
		chapters = append(chapters, &model.Chapter{
			Index:     len(chapters) + 1,
			Title:     title,
			EpisodeNo: int(episodeNo),
			URL:       fmt.Sprintf("%s/viewer/%d", c.base, episodeNo),
		})
	}
	if len(chapters) == 0 {
		return nil, &model.DiscoveryError{Stage: "listing episodes"}
	}
	return chapters, nil
}

// FetchChapter runs the two-step ticket exchange for one episode and
// fills in the chapter content. Tickets authorize exactly one content
// fetch and may expire between request and use, so an expired ticket is
// retried once with a fresh one before the chapter is marked failed.
func (c *Client) FetchChapter(ctx context.Context, chapter *model.Chapter) error {
	content, err := c.fetchEpisodeContent(ctx, chapter.EpisodeNo)
	if err != nil {
		if errors.Is(err, errTicketExpired) {
			c.logDebug("ticket expired for episode %d, retrying with a fresh one", chapter.EpisodeNo)
			content, err = c.fetchEpisodeContent(ctx, chapter.EpisodeNo)
		}
		if err != nil {
			return &model.FetchError{Index: chapter.Index, Title: chapter.Title, Err: err}
		}
	}

	html := wrapEpisodeHTML(content)
	rewritten, images, err := utils.EmbedImages(c.http, c.base, c.base+"/", html)
	if err != nil {
		return &model.FetchError{Index: chapter.Index, Title: chapter.Title, Err: err}
	}

	chapter.Content = &model.ChapterContent{HTML: rewritten, Images: images}
	return nil
}

var errTicketExpired = errors.New("episode ticket expired")

func (c *Client) fetchEpisodeContent(ctx context.Context, episodeNo int) (string, error) {
	c.wait()
	var ticket map[string]any
	err := c.getJSON(ctx, c.apiBase+"/v1/novel/episode",
		map[string]string{"episode_no": fmt.Sprint(episodeNo)}, &ticket, true)
	if err != nil {
		return "", fmt.Errorf("failed to get episode ticket: %w", err)
	}

	token, directURL := ExtractTicketToken(ticket)
	if token == "" && directURL == "" {
		return "", fmt.Errorf("no content token in ticket for episode %d", episodeNo)
	}

	c.wait()
	url := directURL
	params := map[string]string{}
	if url == "" {
		url = c.apiBase + "/v1/novel/episode/content"
		params["_t"] = token
	}

	var body map[string]any
	// No refresh here: a rejected _t means the ticket died, not the login
	// token, and tickets are never reusable anyway.
	if err := c.getJSON(ctx, url, params, &body, false); err != nil {
		return "", fmt.Errorf("failed to get episode content: %w", err)
	}
	if msg, _ := body["errmsg"].(string); msg != "" && strings.Contains(strings.ToLower(msg), "expired") {
		return "", errTicketExpired
	}

	html := assembleEpisodeHTML(body)
	if html == "" {
		return "", fmt.Errorf("empty content for episode %d", episodeNo)
	}
	return html, nil
}

var contentKeySuffix = regexp.MustCompile(`(\d+)$`)

// assembleEpisodeHTML concatenates the epi_content* fields under
// result.data in natural order (epi_content, epi_content2, ...), with
// the older flat fields as fallbacks.
func assembleEpisodeHTML(body map[string]any) string {
	result, _ := body["result"].(map[string]any)
	data, _ := result["data"].(map[string]any)

	keys := make([]string, 0, len(data))
	for k := range data {
		if strings.HasPrefix(k, "epi_content") {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return contentKeyOrder(keys[i]) < contentKeyOrder(keys[j])
	})

	var parts []string
	for _, k := range keys {
		if v, ok := data[k].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	if html := strings.TrimSpace(strings.Join(parts, "")); html != "" {
		return html
	}

	for _, k := range []string{"content", "html", "text"} {
		if v, ok := result[k].(string); ok && v != "" {
			return v
		}
	}
	if v, ok := body["content"].(string); ok {
		return v
	}
	return ""
}

func contentKeyOrder(key string) int {
	if key == "epi_content" {
		return 0
	}
	if m := contentKeySuffix.FindStringSubmatch(key); m != nil {
		n := 0
		fmt.Sscanf(m[1], "%d", &n)
		return n
	}
	return 1
}

// wrapEpisodeHTML gives bare episode markup a body so downstream
// parsing always sees a document fragment it can walk.
func wrapEpisodeHTML(html string) string {
	if strings.Contains(html, "<body") {
		return html
	}
	return "<div>" + html + "</div>"
}
