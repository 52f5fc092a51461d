package models

import (
	"errors"
	"fmt"
	"time"
)

type PostType string

const (
	PostTypeImage PostType = "IMAGE"
	PostTypeVideo PostType = "VIDEO"
	PostTypeReel  PostType = "REEL"
	PostTypeStory PostType = "STORY"
	PostTypeText  PostType = "TEXT"
)

type MediaType string

const (
	MediaTypeImage MediaType = "IMAGE"
	MediaTypeVideo MediaType = "VIDEO"
)

type VideoRatio string

const (
	VideoRatioOriginal  VideoRatio = "original"
	VideoRatioSquare    VideoRatio = "1:1"
	VideoRatioLandscape VideoRatio = "16:9"
	VideoRatioPortrait  VideoRatio = "9:16"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "DRAFT"
	PostStatusScheduled PostStatus = "SCHEDULED"
	PostStatusPublished PostStatus = "PUBLISHED"
	PostStatusFailed    PostStatus = "FAILED"
)

const (
	MinVideoDuration time.Duration = 3 * time.Second
	MaxReelDuration  time.Duration = 90 * time.Second
	MaxStoryDuration time.Duration = 60 * time.Second
)

type PostMedia struct {
	URL  string    `json:"url" validate:"required,url"`
	Type MediaType `json:"type" validate:"required,oneof=IMAGE VIDEO"`
}

// PostData is the JSON body accepted by POST /post/publish.
type PostData struct {
	Description  string      `json:"description"`
	IsPublic     bool        `json:"isPublic"`
	MediaType    *MediaType  `json:"mediaType"`
	PostType     PostType    `json:"postType" validate:"required,oneof=IMAGE VIDEO REEL STORY TEXT"`
	ScheduledFor *int64      `json:"scheduledFor,omitempty"`
	PagesIDs     []string    `json:"pagesIds" validate:"min=1,dive,required"`
	Medias       []PostMedia `json:"medias,omitempty" validate:"dive"`
	VideoTitle   string      `json:"videoTitle,omitempty"`
	ThumbnailURL string      `json:"thumbnailUrl,omitempty"`
	VideoRatio   VideoRatio  `json:"videoRatio,omitempty" validate:"omitempty,oneof=original 1:1 16:9 9:16"`
}

func (p PostData) Validate() error {
	return validateStruct(p)
}

// ComposerMedia is a file picked for a post, before or after upload.
type ComposerMedia struct {
	Path     string        `json:"path"`
	FileName string        `json:"fileName"`
	Type     MediaType     `json:"type"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration,omitempty"`
	URL      string        `json:"url,omitempty"`
}

// Composition holds everything the post composer collects before publishing.
type Composition struct {
	Content       string          `json:"content"`
	SelectedPages []Page          `json:"selectedPages"`
	IsScheduled   bool            `json:"isScheduled"`
	ScheduledDate *time.Time      `json:"scheduledDate,omitempty"`
	MediaType     MediaType       `json:"mediaType,omitempty"`
	PostType      PostType        `json:"postType"`
	IsPublic      bool            `json:"isPublic"`
	Medias        []ComposerMedia `json:"medias"`
	VideoTitle    string          `json:"videoTitle,omitempty"`
	ThumbnailURL  string          `json:"thumbnailUrl,omitempty"`
	ThumbnailPath string          `json:"thumbnailPath,omitempty"`
	VideoRatio    VideoRatio      `json:"videoRatio,omitempty"`
}

var (
	ErrPostEmpty           = errors.New("post content or at least one media is required")
	ErrVideoTitleMissing   = errors.New("a video title is required")
	ErrVideoTooShort       = fmt.Errorf("videos must be at least %v long", MinVideoDuration)
	ErrReelTooLong         = fmt.Errorf("reels must be at most %v long", MaxReelDuration)
	ErrStoryTooLong        = fmt.Errorf("stories must be at most %v long", MaxStoryDuration)
	ErrScheduleDateMissing = errors.New("a date is required for scheduled posts")
	ErrNoPageSelected      = errors.New("at least one page must be selected")
)

// Validate returns every problem with the composition, nil when it can be published.
func (c Composition) Validate() []error {
	var problems []error
	if c.Content == "" && len(c.Medias) == 0 {
		problems = append(problems, ErrPostEmpty)
	}
	if c.MediaType == MediaTypeVideo {
		if c.VideoTitle == "" {
			problems = append(problems, ErrVideoTitleMissing)
		}
		for _, m := range c.Medias {
			if m.Type != MediaTypeVideo || m.Duration == 0 {
				continue
			}
			if m.Duration < MinVideoDuration {
				problems = append(problems, ErrVideoTooShort)
			}
			if c.PostType == PostTypeReel && m.Duration > MaxReelDuration {
				problems = append(problems, ErrReelTooLong)
			}
			if c.PostType == PostTypeStory && m.Duration > MaxStoryDuration {
				problems = append(problems, ErrStoryTooLong)
			}
		}
	}
	if c.IsScheduled && c.ScheduledDate == nil {
		problems = append(problems, ErrScheduleDateMissing)
	}
	if len(c.SelectedPages) == 0 {
		problems = append(problems, ErrNoPageSelected)
	}
	return problems
}

// ResolvedPostType picks the post type from the media when none was chosen explicitly.
func (c Composition) ResolvedPostType() PostType {
	if c.PostType != "" {
		return c.PostType
	}
	switch c.MediaType {
	case MediaTypeVideo:
		return PostTypeVideo
	case MediaTypeImage:
		return PostTypeImage
	default:
		return PostTypeText
	}
}

// PostData converts the composition into the publish payload. Medias without
// an uploaded URL are skipped.
func (c Composition) PostData() PostData {
	out := PostData{
		Description:  c.Content,
		IsPublic:     c.IsPublic,
		PostType:     c.ResolvedPostType(),
		PagesIDs:     make([]string, 0, len(c.SelectedPages)),
		VideoTitle:   c.VideoTitle,
		ThumbnailURL: c.ThumbnailURL,
		VideoRatio:   c.VideoRatio,
	}
	if c.MediaType != "" {
		mt := c.MediaType
		out.MediaType = &mt
	}
	if c.IsScheduled && c.ScheduledDate != nil {
		ms := c.ScheduledDate.UnixMilli()
		out.ScheduledFor = &ms
	}
	for _, p := range c.SelectedPages {
		out.PagesIDs = append(out.PagesIDs, p.PageID)
	}
	for _, m := range c.Medias {
		if m.URL == "" {
			continue
		}
		out.Medias = append(out.Medias, PostMedia{URL: m.URL, Type: m.Type})
	}
	return out
}
