package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/socialpost/postctl/internal/apierrors"
	"github.com/socialpost/postctl/internal/models"
	"github.com/spf13/cobra"
)

// postFlags are the composer fields, shared by the post commands.
type postFlags struct {
	content       string
	pages         []string
	medias        []string
	postType      string
	public        bool
	schedule      string
	videoTitle    string
	videoDuration time.Duration
	thumbnail     string
	ratio         string
	fromDraft     bool
	asForm        bool
}

var post postFlags

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Compose, validate and publish posts",
}

var postPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a post now or schedule it",
	Long: `Publish a post to one or more pages. Media files are uploaded to object
storage first, unless --form is set, in which case they are sent along with
the post.

Examples:
  postctl post publish --page 1234 --content "Hello"
  postctl post publish --page 1234 --media launch.mp4 --video-title Launch --type REEL
  postctl post publish --page 1234 --media a.jpg --media b.jpg --schedule 2026-12-24T18:00:00Z
  postctl post publish --draft`,
	RunE: withApp(runPostPublish),
}

var postValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a post without publishing it",
	RunE:  withApp(runPostValidate),
}

var postSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the post as your draft",
	RunE:  withApp(runPostSave),
}

func init() {
	for _, cmd := range []*cobra.Command{postPublishCmd, postValidateCmd, postSaveCmd} {
		flags := cmd.Flags()
		flags.StringVar(&post.content, "content", "", "text of the post")
		flags.StringSliceVar(&post.pages, "page", nil, "id of a page to publish to, repeatable")
		flags.StringSliceVar(&post.medias, "media", nil, "image or video file, repeatable")
		flags.StringVar(&post.postType, "type", "", "IMAGE, VIDEO, REEL, STORY or TEXT (guessed from the media when empty)")
		flags.BoolVar(&post.public, "public", true, "make the post public")
		flags.StringVar(&post.schedule, "schedule", "", "publish at this RFC 3339 time instead of now")
		flags.StringVar(&post.videoTitle, "video-title", "", "title of the video")
		flags.DurationVar(&post.videoDuration, "video-duration", 0, "duration of the video, enables the duration checks")
		flags.StringVar(&post.thumbnail, "thumbnail", "", "thumbnail image of the video")
		flags.StringVar(&post.ratio, "ratio", "", "video ratio: original, 1:1, 16:9 or 9:16")
	}
	for _, cmd := range []*cobra.Command{postPublishCmd, postValidateCmd} {
		cmd.Flags().BoolVar(&post.fromDraft, "draft", false, "use the saved draft instead of the flags")
	}
	postPublishCmd.Flags().BoolVar(&post.asForm, "form", false, "send the media files with the post instead of uploading them first")
	postCmd.AddCommand(postPublishCmd, postValidateCmd, postSaveCmd)
	rootCmd.AddCommand(postCmd)
}

func composerMedia(path string) (models.ComposerMedia, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.ComposerMedia{}, err
	}
	if info.IsDir() {
		return models.ComposerMedia{}, fmt.Errorf("%s is a directory", path)
	}
	return models.ComposerMedia{
		Path:     path,
		FileName: filepath.Base(path),
		Type:     models.MediaTypeFor(path),
		Size:     info.Size(),
	}, nil
}

// composition builds the post from the flags.
func (f postFlags) composition() (models.Composition, error) {
	composition := models.Composition{
		Content:       f.content,
		IsPublic:      f.public,
		PostType:      models.PostType(f.postType),
		VideoTitle:    f.videoTitle,
		ThumbnailPath: f.thumbnail,
		VideoRatio:    models.VideoRatio(f.ratio),
	}
	for _, pageID := range f.pages {
		composition.SelectedPages = append(composition.SelectedPages, models.Page{PageID: pageID})
	}
	for _, path := range f.medias {
		media, err := composerMedia(path)
		if err != nil {
			return models.Composition{}, err
		}
		if media.Type == models.MediaTypeVideo {
			media.Duration = f.videoDuration
		}
		composition.Medias = append(composition.Medias, media)
	}
	if len(composition.Medias) > 0 {
		// a post mixes no media types, the first media decides
		composition.MediaType = composition.Medias[0].Type
	}
	if f.schedule != "" {
		scheduled, err := time.Parse(time.RFC3339, f.schedule)
		if err != nil {
			return models.Composition{}, fmt.Errorf("invalid schedule %q, expected an RFC 3339 time: %w", f.schedule, err)
		}
		scheduled = scheduled.UTC()
		composition.IsScheduled = true
		composition.ScheduledDate = &scheduled
	}
	return composition, nil
}

func (a *app) loadComposition(cmd *cobra.Command) (models.Composition, int, error) {
	owner, err := a.draftOwner(cmd.Context())
	if err != nil {
		return models.Composition{}, 0, err
	}
	if !post.fromDraft {
		composition, err := post.composition()
		return composition, owner, err
	}
	draft, err := a.drafts.LoadPost(cmd.Context(), owner)
	if errors.Is(err, apierrors.ErrDraftNotFound) {
		return models.Composition{}, 0, fmt.Errorf("there is no saved post draft, use `postctl post save` first")
	}
	return draft.Composition, owner, err
}

func validationFailure(problems []error) error {
	return fmt.Errorf("the post cannot be published: %w", errors.Join(problems...))
}

func runPostValidate(cmd *cobra.Command, _ []string, a *app) error {
	composition, _, err := a.loadComposition(cmd)
	if err != nil {
		return err
	}
	problems := composition.Validate()
	if len(problems) > 0 {
		for _, problem := range problems {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", problem)
		}
		return validationFailure(problems)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "The post is ready to be published")
	return nil
}

func runPostSave(cmd *cobra.Command, _ []string, a *app) error {
	composition, err := post.composition()
	if err != nil {
		return err
	}
	owner, err := a.draftOwner(cmd.Context())
	if err != nil {
		return err
	}
	draft, err := a.drafts.SavePost(cmd.Context(), owner, composition)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Draft %s saved\n", draft.ID)
	return nil
}

func runPostPublish(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	_, err := a.session.RequirePasswordChosen(ctx)
	if err != nil {
		return err
	}
	composition, owner, err := a.loadComposition(cmd)
	if err != nil {
		return err
	}
	if problems := composition.Validate(); len(problems) > 0 {
		return validationFailure(problems)
	}
	if post.asForm {
		err = a.client.PublishPostForm(ctx, composition)
	} else {
		composition, err = a.uploadMedias(cmd, composition)
		if err != nil {
			return err
		}
		err = a.client.PublishPost(ctx, composition.PostData())
	}
	if err != nil {
		return err
	}
	if post.fromDraft {
		err = a.drafts.DiscardPost(ctx, owner)
		if err != nil {
			return err
		}
	}
	if composition.IsScheduled {
		fmt.Fprintf(cmd.OutOrStdout(), "Post scheduled for %s\n", composition.ScheduledDate.Format(time.RFC1123))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Post published")
	return nil
}

// uploadMedias uploads the media files and the thumbnail to object storage and records their urls.
func (a *app) uploadMedias(cmd *cobra.Command, composition models.Composition) (models.Composition, error) {
	medias := make([]models.ComposerMedia, 0, len(composition.Medias)+1)
	for _, media := range composition.Medias {
		if media.URL == "" {
			medias = append(medias, media)
		}
	}
	if composition.ThumbnailPath != "" && composition.ThumbnailURL == "" {
		thumbnail, err := composerMedia(composition.ThumbnailPath)
		if err != nil {
			return models.Composition{}, err
		}
		medias = append(medias, thumbnail)
	}
	if len(medias) == 0 {
		return composition, nil
	}
	uploader, err := a.uploader()
	if err != nil {
		return models.Composition{}, err
	}
	urls, err := uploader.UploadMultiple(cmd.Context(), medias, progressPrinter(cmd.ErrOrStderr()))
	if err != nil {
		return models.Composition{}, err
	}
	byPath := map[string]string{}
	for i, media := range medias {
		byPath[media.Path] = urls[i]
	}
	for i := range composition.Medias {
		if url, ok := byPath[composition.Medias[i].Path]; ok {
			composition.Medias[i].URL = url
		}
	}
	if url, ok := byPath[composition.ThumbnailPath]; ok && composition.ThumbnailPath != "" {
		composition.ThumbnailURL = url
	}
	return composition, nil
}
