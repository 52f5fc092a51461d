package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/socialpost/postctl/internal/models"
	"github.com/spf13/cobra"
)

var uploadThroughAPI bool

var uploadCmd = &cobra.Command{
	Use:   "upload FILE [FILE...]",
	Short: "Upload media files and print their public urls",
	Long: `Upload media files to object storage with temporary credentials from the
API, in parallel multipart uploads. With --via-api the files are sent to the
API upload endpoints instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runUpload),
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadThroughAPI, "via-api", false, "send the files through the API upload endpoints")
	rootCmd.AddCommand(uploadCmd)
}

// progressPrinter writes the total upload progress every time it moves by at least 5 percent.
func progressPrinter(w io.Writer) func(int) {
	var mu sync.Mutex
	last := -1
	return func(pct int) {
		mu.Lock()
		defer mu.Unlock()
		if pct == last || (pct < 100 && last >= 0 && pct-last < 5) {
			return
		}
		last = pct
		fmt.Fprintf(w, "uploading... %d%%\n", pct)
	}
}

func runUpload(cmd *cobra.Command, args []string, a *app) error {
	ctx := cmd.Context()
	_, err := a.session.RequirePasswordChosen(ctx)
	if err != nil {
		return err
	}
	var urls []string
	switch {
	case uploadThroughAPI && len(args) == 1:
		urls, err = a.client.UploadSingle(ctx, args[0])
	case uploadThroughAPI:
		urls, err = a.client.UploadMultiple(ctx, args)
	default:
		medias := make([]models.ComposerMedia, 0, len(args))
		for _, path := range args {
			media, err := composerMedia(path)
			if err != nil {
				return err
			}
			medias = append(medias, media)
		}
		uploader, err := a.uploader()
		if err != nil {
			return err
		}
		urls, err = uploader.UploadMultiple(ctx, medias, progressPrinter(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), urls)
}
