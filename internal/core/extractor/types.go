package extractor

import (
	"regexp"
	"strings"

	"github.com/guiyumin/mediasnap/internal/core/platform"
)

// MediaKind represents the type of media a URL resolved to
type MediaKind string

const (
	KindImage      MediaKind = "image"
	KindVideo      MediaKind = "video"
	KindAudio      MediaKind = "audio"
	KindCollection MediaKind = "collection"
)

// Media is a resolved, directly fetchable media resource
type Media struct {
	Kind           MediaKind         `json:"kind"`
	MediaURL       string            `json:"media_url"`
	ThumbnailURL   string            `json:"thumbnail_url,omitempty"`
	Title          string            `json:"title,omitempty"`
	CollectionURLs []string          `json:"collection_urls,omitempty"`
	SourcePlatform platform.Platform `json:"source_platform"`
}

// Valid reports whether m carries a usable result: a media URL, and
// collection entries exactly when the kind is a collection.
func (m *Media) Valid() bool {
	if m == nil || m.MediaURL == "" {
		return false
	}
	if m.Kind == KindCollection {
		return len(m.CollectionURLs) > 0
	}
	return len(m.CollectionURLs) == 0
}

// Ext guesses a file extension for the media URL
func (m *Media) Ext() string {
	lower := strings.ToLower(m.MediaURL)
	switch {
	case strings.Contains(lower, ".mp4"):
		return "mp4"
	case strings.Contains(lower, ".m4a"):
		return "m4a"
	case strings.Contains(lower, ".png"):
		return "png"
	case strings.Contains(lower, ".webp"):
		return "webp"
	case strings.Contains(lower, ".jpg"), strings.Contains(lower, ".jpeg"):
		return "jpg"
	}
	switch m.Kind {
	case KindVideo:
		return "mp4"
	case KindAudio:
		return "m4a"
	default:
		return "jpg"
	}
}

var (
	urlInTitleRegex = regexp.MustCompile(`https?://[^\s]+`)
	spaceRegex      = regexp.MustCompile(`\s+`)
)

// SanitizeFilename removes or replaces characters that are invalid in filenames
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
		"\n", " ",
		"\r", "",
	)
	result := urlInTitleRegex.ReplaceAllString(name, "")
	result = replacer.Replace(result)

	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	result = spaceRegex.ReplaceAllString(result, " ")

	// Most filesystems limit names to 255 bytes; 60 runes leaves room for
	// multi-byte characters and the extension.
	const maxRunes = 60
	runes := []rune(result)
	if len(runes) > maxRunes {
		result = string(runes[:maxRunes])
	}

	return strings.TrimSpace(result)
}
