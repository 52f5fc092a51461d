package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validComposition() Composition {
	return Composition{
		Content:       "hello",
		SelectedPages: []Page{{PageID: "p1", Name: "Page one"}},
	}
}

func TestCompositionValidate(t *testing.T) {
	scheduled := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		mutate   func(c *Composition)
		expected []error
	}{
		{name: "valid text post", mutate: func(c *Composition) {}},
		{
			name:     "empty post",
			mutate:   func(c *Composition) { c.Content = "" },
			expected: []error{ErrPostEmpty},
		},
		{
			name: "media only is fine",
			mutate: func(c *Composition) {
				c.Content = ""
				c.MediaType = MediaTypeImage
				c.Medias = []ComposerMedia{{FileName: "a.png", Type: MediaTypeImage}}
			},
		},
		{
			name: "video without title",
			mutate: func(c *Composition) {
				c.MediaType = MediaTypeVideo
				c.Medias = []ComposerMedia{{FileName: "a.mp4", Type: MediaTypeVideo, Duration: 10 * time.Second}}
			},
			expected: []error{ErrVideoTitleMissing},
		},
		{
			name: "video too short",
			mutate: func(c *Composition) {
				c.MediaType = MediaTypeVideo
				c.VideoTitle = "clip"
				c.Medias = []ComposerMedia{{FileName: "a.mp4", Type: MediaTypeVideo, Duration: 2 * time.Second}}
			},
			expected: []error{ErrVideoTooShort},
		},
		{
			name: "reel too long",
			mutate: func(c *Composition) {
				c.MediaType = MediaTypeVideo
				c.PostType = PostTypeReel
				c.VideoTitle = "clip"
				c.Medias = []ComposerMedia{{FileName: "a.mp4", Type: MediaTypeVideo, Duration: 91 * time.Second}}
			},
			expected: []error{ErrReelTooLong},
		},
		{
			name: "story too long",
			mutate: func(c *Composition) {
				c.MediaType = MediaTypeVideo
				c.PostType = PostTypeStory
				c.VideoTitle = "clip"
				c.Medias = []ComposerMedia{{FileName: "a.mp4", Type: MediaTypeVideo, Duration: 61 * time.Second}}
			},
			expected: []error{ErrStoryTooLong},
		},
		{
			name: "70s reel is fine",
			mutate: func(c *Composition) {
				c.MediaType = MediaTypeVideo
				c.PostType = PostTypeReel
				c.VideoTitle = "clip"
				c.Medias = []ComposerMedia{{FileName: "a.mp4", Type: MediaTypeVideo, Duration: 70 * time.Second}}
			},
		},
		{
			name:     "scheduled without date",
			mutate:   func(c *Composition) { c.IsScheduled = true },
			expected: []error{ErrScheduleDateMissing},
		},
		{
			name: "scheduled with date",
			mutate: func(c *Composition) {
				c.IsScheduled = true
				c.ScheduledDate = &scheduled
			},
		},
		{
			name: "all problems at once",
			mutate: func(c *Composition) {
				c.Content = ""
				c.SelectedPages = nil
				c.IsScheduled = true
			},
			expected: []error{ErrPostEmpty, ErrScheduleDateMissing, ErrNoPageSelected},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validComposition()
			tt.mutate(&c)
			assert.Equal(t, tt.expected, c.Validate())
		})
	}
}

func TestCompositionPostData(t *testing.T) {
	scheduled := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	c := Composition{
		Content:       "launch",
		SelectedPages: []Page{{PageID: "p1"}, {PageID: "p2"}},
		IsScheduled:   true,
		ScheduledDate: &scheduled,
		MediaType:     MediaTypeVideo,
		VideoTitle:    "teaser",
		VideoRatio:    VideoRatioPortrait,
		Medias: []ComposerMedia{
			{FileName: "a.mp4", Type: MediaTypeVideo, URL: "https://b.s3.eu-west-1.amazonaws.com/a.mp4"},
			{FileName: "pending.mp4", Type: MediaTypeVideo},
		},
	}
	data := c.PostData()

	assert.Equal(t, PostTypeVideo, data.PostType)
	require.NotNil(t, data.MediaType)
	assert.Equal(t, MediaTypeVideo, *data.MediaType)
	require.NotNil(t, data.ScheduledFor)
	assert.Equal(t, scheduled.UnixMilli(), *data.ScheduledFor)
	assert.Equal(t, []string{"p1", "p2"}, data.PagesIDs)
	assert.Len(t, data.Medias, 1)
	assert.NoError(t, data.Validate())

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"pagesIds":["p1","p2"]`)
	assert.Contains(t, string(raw), `"videoRatio":"9:16"`)
}

func TestTextPostDataHasNullMediaType(t *testing.T) {
	data := validComposition().PostData()
	assert.Equal(t, PostTypeText, data.PostType)
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"mediaType":null`)
	assert.NotContains(t, string(raw), "scheduledFor")
}

func TestPostDataValidate(t *testing.T) {
	data := PostData{PostType: "GIF"}
	err := data.Validate()
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Len(t, validationErr.Problems, 2)
}
