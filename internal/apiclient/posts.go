package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/socialpost/postctl/internal/models"
)

// PublishPost publishes a post whose medias are already uploaded.
func (c *Client) PublishPost(ctx context.Context, post models.PostData) error {
	err := post.Validate()
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, c.endpoint("post", "publish"), post, nil)
}

// PublishPostForm publishes a post and sends its media files along in a multipart form.
func (c *Client) PublishPostForm(ctx context.Context, composition models.Composition) error {
	if problems := composition.Validate(); len(problems) > 0 {
		return fmt.Errorf("the post cannot be published: %w", problems[0])
	}
	form := newMultipartForm()
	form.addField("description", composition.Content)
	form.addField("isPublic", strconv.FormatBool(composition.IsPublic))
	form.addField("postType", string(composition.ResolvedPostType()))
	if composition.MediaType != "" {
		form.addField("mediaType", string(composition.MediaType))
	}
	videoRatio := composition.VideoRatio
	if videoRatio == "" {
		videoRatio = models.VideoRatioOriginal
	}
	form.addField("videoRatio", string(videoRatio))
	for _, page := range composition.SelectedPages {
		form.addField("pagesIds[]", page.PageID)
	}
	if composition.IsScheduled && composition.ScheduledDate != nil {
		form.addField("scheduledFor", strconv.FormatInt(composition.ScheduledDate.UnixMilli(), 10))
	}
	switch composition.MediaType {
	case models.MediaTypeVideo:
		if len(composition.Medias) > 0 {
			form.addFile("video", composition.Medias[0].Path)
			if composition.VideoTitle != "" {
				form.addField("videoTitle", composition.VideoTitle)
			}
			if composition.ThumbnailPath != "" {
				form.addFile("thumbnail", composition.ThumbnailPath)
			}
		}
	case models.MediaTypeImage:
		for _, media := range composition.Medias {
			form.addFile("images", media.Path)
		}
	}
	req, err := form.newRequest(ctx, http.MethodPost, c.endpoint("post", "publish"))
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
