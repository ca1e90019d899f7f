// Package platform recognises the supported sites from a raw URL and pulls
// out the identifier each site uses to address a post or recording.
package platform

import (
	"net/url"
	"regexp"
	"strings"
)

// Platform identifies the site a URL belongs to
type Platform string

const (
	None      Platform = ""
	Instagram Platform = "instagram"
	StarMaker Platform = "starmaker"
	YouTube   Platform = "youtube"
)

// Supported lists every platform Classify can return
var Supported = []Platform{Instagram, StarMaker, YouTube}

// DisplayName returns a human-readable platform name
func (p Platform) DisplayName() string {
	switch p {
	case Instagram:
		return "Instagram"
	case StarMaker:
		return "StarMaker"
	case YouTube:
		return "YouTube"
	default:
		return "Unknown"
	}
}

const instagramDomain = "instagram.com"

// starmakerDomains are the two host variants share links are published under
var starmakerDomains = []string{"starmakerstudios.com", "starmaker.co"}

var (
	youtubeDomainRegex = regexp.MustCompile(`(?i)(?:^|[/.])(?:youtube\.com|youtu\.be)(?:[/:?#]|$)`)
	youtubeURLRegex    = regexp.MustCompile(`(?i)^(?:https?://)?(?:(?:www|m|music)\.)?(?:youtube\.com|youtu\.be)/.+$`)
)

// instagramPatterns are tried in order; the first capture group is the short
// code (or numeric story id).
var instagramPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?instagram\.com/p/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?instagram\.com/reel/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?instagram\.com/reels/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?instagram\.com/stories/[A-Za-z0-9._]+/(\d+)`),
}

var recordingIDRegex = regexp.MustCompile(`^\d+$`)

// Classify determines which platform a URL belongs to. It only looks at the
// domain; path shape is checked by Validate.
func Classify(rawURL string) Platform {
	lower := strings.ToLower(strings.TrimSpace(rawURL))
	if lower == "" {
		return None
	}

	if strings.Contains(lower, instagramDomain) {
		return Instagram
	}
	for _, domain := range starmakerDomains {
		if strings.Contains(lower, domain) {
			return StarMaker
		}
	}
	if youtubeDomainRegex.MatchString(lower) {
		return YouTube
	}
	return None
}

// Validate reports whether the URL is well-formed for the given platform.
// It never panics on malformed input.
func Validate(rawURL string, p Platform) bool {
	rawURL = strings.TrimSpace(rawURL)
	switch p {
	case Instagram:
		for _, re := range instagramPatterns {
			if re.MatchString(rawURL) {
				return true
			}
		}
		return false
	case StarMaker:
		return recordingID(rawURL) != ""
	case YouTube:
		return youtubeURLRegex.MatchString(rawURL)
	default:
		return false
	}
}

// ExtractIdentifier returns the platform-specific identifier, or "" when the
// URL shape is not recognised. YouTube URLs are passed downstream whole, so
// the trimmed URL itself is returned.
func ExtractIdentifier(rawURL string, p Platform) string {
	rawURL = strings.TrimSpace(rawURL)
	switch p {
	case Instagram:
		for _, re := range instagramPatterns {
			if m := re.FindStringSubmatch(rawURL); len(m) > 1 {
				return m[1]
			}
		}
		return ""
	case StarMaker:
		return recordingID(rawURL)
	case YouTube:
		if !youtubeURLRegex.MatchString(rawURL) {
			return ""
		}
		return rawURL
	default:
		return ""
	}
}

// CanonicalURL builds the canonical share URL for an identifier
func CanonicalURL(p Platform, id string) string {
	switch p {
	case Instagram:
		return "https://www.instagram.com/p/" + id + "/"
	case StarMaker:
		return "https://www.starmakerstudios.com/d/playrecording?recordingId=" + url.QueryEscape(id)
	case YouTube:
		return id
	default:
		return ""
	}
}

func recordingID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	id := u.Query().Get("recordingId")
	if !recordingIDRegex.MatchString(id) {
		return ""
	}
	return id
}
