package models

import (
	"mime"
	"path/filepath"
	"strings"
)

// the mime package relies on system tables for video types, which are often missing in containers
var mediaContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

// ContentTypeFor guesses the media type of a file from its extension.
func ContentTypeFor(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ct, ok := mediaContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// MediaTypeFor classifies a file as image or video, empty when it is neither.
func MediaTypeFor(fileName string) MediaType {
	ct := ContentTypeFor(fileName)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaTypeImage
	case strings.HasPrefix(ct, "video/"):
		return MediaTypeVideo
	default:
		return ""
	}
}
