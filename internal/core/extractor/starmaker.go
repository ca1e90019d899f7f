package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultStarMakerCDNPrimary   = "https://static.starmakerstudios.com/production/uploading/recordings/{id}/master.mp4"
	DefaultStarMakerCDNSecondary = "https://cdn.starmakerstudios.com/production/uploading/recordings/{id}/master.mp4"
)

// StarMakerOptions configures the CDN templates. "{id}" is replaced with
// the recording id.
type StarMakerOptions struct {
	CDNPrimary   string
	CDNSecondary string
}

func starmakerStrategies(f *fetcher, opts StarMakerOptions) []Strategy {
	if opts.CDNPrimary == "" {
		opts.CDNPrimary = DefaultStarMakerCDNPrimary
	}
	if opts.CDNSecondary == "" {
		opts.CDNSecondary = DefaultStarMakerCDNSecondary
	}
	return []Strategy{
		&cdnStrategy{name: "cdn-primary", template: opts.CDNPrimary, fetcher: f},
		&cdnStrategy{name: "cdn-secondary", template: opts.CDNSecondary, fetcher: f},
	}
}

// cdnStrategy builds the media URL from a template and checks it exists
type cdnStrategy struct {
	name     string
	template string
	fetcher  *fetcher
}

func (s *cdnStrategy) Name() string { return s.name }

func (s *cdnStrategy) Attempt(ctx context.Context, t Target) (*Media, error) {
	mediaURL := strings.ReplaceAll(s.template, "{id}", t.ID)
	if err := s.fetcher.head(ctx, mediaURL); err != nil {
		return nil, err
	}
	return &Media{
		Kind:     KindVideo,
		MediaURL: mediaURL,
		Title:    defaultRecordingTitle(t.ID),
	}, nil
}

func defaultRecordingTitle(id string) string {
	return fmt.Sprintf("StarMaker Recording %s", id)
}

// pageMeta holds the Open Graph tags of a share page
type pageMeta struct {
	Title string
	Image string
}

// fetchPageMeta loads a share page and reads its og:title and og:image
func fetchPageMeta(ctx context.Context, f *fetcher, pageURL string) (*pageMeta, error) {
	body, err := f.fetch(ctx, requestSpec{
		url:     pageURL,
		headers: map[string]string{"Accept": "text/html"},
	})
	if err != nil {
		return nil, err
	}
	return parsePageMeta(body)
}

func parsePageMeta(body []byte) (*pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse share page: %w", err)
	}

	meta := &pageMeta{
		Title: metaContent(doc, "og:title"),
		Image: metaContent(doc, "og:image"),
	}
	if meta.Title == "" && meta.Image == "" {
		return nil, fmt.Errorf("share page has no og tags")
	}
	return meta, nil
}

func metaContent(doc *goquery.Document, property string) string {
	sel := doc.Find(fmt.Sprintf(`meta[property="%s"]`, property)).First()
	if sel.Length() == 0 {
		sel = doc.Find(fmt.Sprintf(`meta[name="%s"]`, property)).First()
	}
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}
