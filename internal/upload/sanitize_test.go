package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"photo.jpg", "photo.jpg"},
		{"Été à la plage.JPG", "Ete-a-la-plage.jpg"},
		{"  --weird__name!!--.mp4", "weird-name.mp4"},
		{"crème brûlée (final) v2.mov", "creme-brulee-final-v2.mov"},
		{"archive.tar.gz", "archive-tar.gz"},
		{"no-extension", "no-extension"},
		{"ñandú.png", "nandu.png"},
		{"???.png", "file.png"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.out, SanitizeFileName(tt.in))
		})
	}
}
