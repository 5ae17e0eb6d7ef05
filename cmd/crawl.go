package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/spf13/cobra"

	"github.com/bayue48/pia-scrap/auth"
	"github.com/bayue48/pia-scrap/browser"
	"github.com/bayue48/pia-scrap/epub"
	"github.com/bayue48/pia-scrap/model"
	"github.com/bayue48/pia-scrap/output"
	"github.com/bayue48/pia-scrap/ui"
	"github.com/bayue48/pia-scrap/utils"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Download a novel by driving the website in a browser",
	Long:  "Download a novel by driving the website in a browser",
	RunE:  runCrawl,
}

type crawlArgs struct {
	NovelURL    string `validate:"required"`
	cookiesTxt  string
	cookiesJSON string
	outputPath  string
	maxChapters int
	noHeadless  bool
}

var cArgs crawlArgs

func init() {
	crawlCmd.Flags().StringVarP(&cArgs.NovelURL, "url", "u", "", "novel page url")
	crawlCmd.Flags().StringVar(&cArgs.cookiesTxt, "cookies-txt", "", "Netscape cookies.txt file")
	crawlCmd.Flags().StringVar(&cArgs.cookiesJSON, "cookies-json", "", "browser storage-state json file")
	crawlCmd.Flags().StringVarP(&cArgs.outputPath, "out", "o", "", "output path (default from config)")
	crawlCmd.Flags().IntVar(&cArgs.maxChapters, "max-chapters", 0, "stop after this many chapters, 0 for all")
	crawlCmd.Flags().BoolVar(&cArgs.noHeadless, "no-headless", false, "show the browser window")
	RootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	if cArgs.NovelURL == "" {
		return fmt.Errorf("novel url is required")
	}
	outputPath := cArgs.outputPath
	if outputPath == "" {
		outputPath = cfg.Output
	}

	cookies, err := loadCookies()
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		log.Printf("no cookies given, gated chapters will likely be skipped")
	}

	session, err := browser.NewSession(!cArgs.noHeadless)
	if err != nil {
		return fmt.Errorf("failed to start browser: %v", err)
	}
	defer session.Close()

	if err := session.SetCookies(cookies); err != nil {
		return fmt.Errorf("failed to set cookies: %v", err)
	}
	if err := session.Navigate(cArgs.NovelURL); err != nil {
		return &model.DiscoveryError{Stage: "opening novel page", Err: err}
	}

	novel, err := browser.ExtractMeta(session, cArgs.NovelURL)
	if err != nil {
		return fmt.Errorf("failed to extract metadata: %v", err)
	}
	log.Printf("novel: %s by %s (%s)", novel.Title, novel.Author, novel.Status)

	writer, err := output.NewWriter(outputPath, novel)
	if err != nil {
		return err
	}
	// Metadata goes to disk before discovery so a listing failure still
	// leaves it behind.
	if err := writer.WriteMetadata(novel, 0); err != nil {
		return err
	}

	httpClient := utils.NewRestyClient(cfg.Proxy, cfg.UserAgent)
	cover := browser.FetchCover(httpClient, novel)

	chapters, err := browser.ListChapters(session, cArgs.NovelURL, cArgs.maxChapters, cookies)
	if err != nil {
		return err
	}
	log.Printf("discovered %d chapters", len(chapters))
	if err := writer.WriteMetadata(novel, len(chapters)); err != nil {
		return err
	}

	progress := ui.NewProgress()
	bar := progress.ChapterBar(writer.Slug(), len(chapters))
	fetched := make([]*model.Chapter, 0, len(chapters))
	for _, chapter := range chapters {
		err := browser.FetchChapter(session, httpClient, chapter, novel.Title)
		if err != nil {
			log.Printf("skipping chapter %d: %v", chapter.Index, err)
		} else {
			fetched = append(fetched, chapter)
		}
		bar.Increment()
		time.Sleep(time.Duration(cfg.Throttle * float64(time.Second)))
	}
	bar.SetTotal(int64(len(chapters)), true)
	progress.Wait()

	if err := writer.WriteChapterIndex(chapters); err != nil {
		return err
	}
	if len(fetched) == 0 {
		return fmt.Errorf("no chapter could be fetched, nothing to pack")
	}

	book, err := epub.Build(novel, fetched, cover, cfg.Language)
	if err != nil {
		return fmt.Errorf("failed to build epub: %v", err)
	}
	path, err := writer.WriteEpub(book)
	if err != nil {
		return err
	}
	log.Printf("wrote %s (%d/%d chapters)", path, len(fetched), len(chapters))
	return nil
}

func loadCookies() ([]*network.CookieParam, error) {
	var cookies []*network.CookieParam
	if cArgs.cookiesTxt != "" {
		parsed, err := auth.ParseNetscapeCookies(cArgs.cookiesTxt)
		if err != nil {
			return nil, err
		}
		cookies = append(cookies, parsed...)
	}
	if cArgs.cookiesJSON != "" {
		parsed, err := auth.ParseStorageState(cArgs.cookiesJSON)
		if err != nil {
			return nil, err
		}
		cookies = append(cookies, parsed...)
	}
	return cookies, nil
}
