// Package output lays out the on-disk artifacts of a run: a per-novel
// directory holding metadata.json, chapters.jsonl and the finished EPUB.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bayue48/pia-scrap/model"
	"github.com/bayue48/pia-scrap/utils"
)

// Writer places all artifacts of one novel under <root>/<slug>/.
type Writer struct {
	root string
	slug string
}

// NewWriter creates the book directory for the novel and returns a writer
// bound to it. Titles with no ASCII letters collapse to an empty slug,
// so those fall back to the title itself with unsafe characters removed.
func NewWriter(root string, novel *model.Novel) (*Writer, error) {
	slug := utils.Slugify(novel.Title)
	if slug == "novel" {
		if cleaned := utils.CleanDirName(novel.Title); cleaned != "" {
			slug = cleaned
		}
	}
	dir := filepath.Join(root, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create book directory: %v", err)
	}
	return &Writer{root: root, slug: slug}, nil
}

// Dir is the book directory this writer targets.
func (w *Writer) Dir() string {
	return filepath.Join(w.root, w.slug)
}

// Slug is the directory and file stem derived from the novel title.
func (w *Writer) Slug() string {
	return w.slug
}

type metadataFile struct {
	*model.Novel
	ChapterCount int `json:"chapter_count"`
}

// WriteMetadata persists metadata.json. It is written as soon as metadata
// is known so a later discovery or fetch failure still leaves it behind.
func (w *Writer) WriteMetadata(novel *model.Novel, chapterCount int) error {
	data, err := json.MarshalIndent(metadataFile{Novel: novel, ChapterCount: chapterCount}, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(w.Dir(), "metadata.json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %v", err)
	}
	return nil
}

type chapterIndexLine struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Fetched bool   `json:"fetched"`
}

// WriteChapterIndex persists chapters.jsonl, one line per discovered
// chapter in order, marking which ones actually yielded content.
func (w *Writer) WriteChapterIndex(chapters []*model.Chapter) error {
	file, err := os.Create(filepath.Join(w.Dir(), "chapters.jsonl"))
	if err != nil {
		return fmt.Errorf("failed to write chapter index: %v", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for _, chapter := range chapters {
		line := chapterIndexLine{
			Index:   chapter.Index,
			Title:   chapter.Title,
			URL:     chapter.Locator(),
			Fetched: chapter.Content != nil,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write chapter index: %v", err)
		}
	}
	return nil
}

// WriteEpub persists the finished book as <slug>.epub and returns its path.
func (w *Writer) WriteEpub(data []byte) (string, error) {
	path := filepath.Join(w.Dir(), w.slug+".epub")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write epub: %v", err)
	}
	return path, nil
}
