package cmd

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/bayue48/pia-scrap/api"
	"github.com/bayue48/pia-scrap/auth"
	"github.com/bayue48/pia-scrap/epub"
	"github.com/bayue48/pia-scrap/model"
	"github.com/bayue48/pia-scrap/output"
	"github.com/bayue48/pia-scrap/ui"
	"github.com/bayue48/pia-scrap/utils"
)

var apiCmd = &cobra.Command{
	Use:   "api NOVEL_ID",
	Short: "Download a novel through the JSON API",
	Long:  "Download a novel through the JSON API, logging in with credentials or a stored token",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPI,
}

type apiArgs struct {
	email       string
	password    string
	outputPath  string
	maxChapters int
	language    string
	proxy       string
	throttle    float64
	debug       bool
}

var aArgs apiArgs

func init() {
	apiCmd.Flags().StringVar(&aArgs.email, "user", "", "account email")
	apiCmd.Flags().StringVar(&aArgs.password, "pass", "", "account password (prompted if omitted)")
	apiCmd.Flags().StringVarP(&aArgs.outputPath, "out", "o", "", "output path (default from config)")
	apiCmd.Flags().IntVar(&aArgs.maxChapters, "max-chapters", 0, "stop after this many chapters, 0 for all")
	apiCmd.Flags().StringVar(&aArgs.language, "lang", "", "epub language tag (default from config)")
	apiCmd.Flags().StringVar(&aArgs.proxy, "proxy", "", "proxy url")
	apiCmd.Flags().Float64Var(&aArgs.throttle, "throttle", 0, "seconds between requests (default from config)")
	apiCmd.Flags().BoolVar(&aArgs.debug, "debug", false, "log request traffic")
	RootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	novelID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("novel id must be numeric, got %q", args[0])
	}

	outputPath := aArgs.outputPath
	if outputPath == "" {
		outputPath = cfg.Output
	}
	language := aArgs.language
	if language == "" {
		language = cfg.Language
	}
	throttle := aArgs.throttle
	if throttle == 0 {
		throttle = cfg.Throttle
	}
	proxy := aArgs.proxy
	if proxy == "" {
		proxy = cfg.Proxy
	}

	sessionPath := auth.SessionPath(outputPath)
	session, err := auth.LoadSession(sessionPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	client := api.New(session, api.Options{
		Email:     aArgs.email,
		Password:  aArgs.password,
		Proxy:     proxy,
		UserAgent: cfg.UserAgent,
		Throttle:  time.Duration(throttle * float64(time.Second)),
		Debug:     aArgs.debug || cfg.Debug,
	})

	if err := ensureLogin(ctx, client, sessionPath); err != nil {
		return err
	}

	novel, episodeCount, err := client.Novel(ctx, novelID)
	if err != nil {
		return err
	}
	log.Printf("novel: %s by %s (%s)", novel.Title, novel.Author, novel.Status)

	writer, err := output.NewWriter(outputPath, novel)
	if err != nil {
		return err
	}
	if err := writer.WriteMetadata(novel, 0); err != nil {
		return err
	}

	chapters, err := client.ListChapters(ctx, novelID, episodeCount, aArgs.maxChapters)
	if err != nil {
		return err
	}
	log.Printf("discovered %d chapters", len(chapters))
	if err := writer.WriteMetadata(novel, len(chapters)); err != nil {
		return err
	}

	var cover []byte
	if novel.CoverURL != "" {
		cover, err = utils.DownloadImage(client.HTTP(), api.BaseURL+"/", novel.CoverURL)
		if err != nil {
			log.Printf("cover download failed, continuing without: %v", err)
			cover = nil
		}
	}

	progress := ui.NewProgress()
	bar := progress.ChapterBar(writer.Slug(), len(chapters))
	fetched := make([]*model.Chapter, 0, len(chapters))
	for _, chapter := range chapters {
		err := client.FetchChapter(ctx, chapter)
		if err != nil {
			log.Printf("skipping chapter %d: %v", chapter.Index, err)
		} else {
			fetched = append(fetched, chapter)
		}
		bar.Increment()
	}
	bar.SetTotal(int64(len(chapters)), true)
	progress.Wait()

	if err := writer.WriteChapterIndex(chapters); err != nil {
		return err
	}
	if len(fetched) == 0 {
		return fmt.Errorf("no chapter could be fetched, nothing to pack")
	}

	book, err := epub.Build(novel, fetched, cover, language)
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

// ensureLogin validates a stored token or performs a credential login,
// persisting the refreshed session either way.
func ensureLogin(ctx context.Context, client *api.Client, sessionPath string) error {
	if client.Session().Valid() {
		if err := client.Me(ctx); err == nil {
			return nil
		}
		log.Printf("stored token rejected, logging in again")
	}

	if aArgs.email != "" && aArgs.password == "" {
		prompt := promptui.Prompt{Label: "Password", Mask: '*'}
		password, err := prompt.Run()
		if err != nil {
			return fmt.Errorf("login cancelled")
		}
		client.SetPassword(password)
	}

	if err := client.Login(ctx); err != nil {
		return err
	}
	if err := auth.SaveSession(sessionPath, client.Session()); err != nil {
		return err
	}
	return nil
}
