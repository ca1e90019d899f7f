package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultInstagramEmbedBase = "https://www.instagram.com"
	DefaultPartnerAPIURL      = "https://instagram-downloader-api.p.rapidapi.com/v1/post"
	DefaultAggregatorURL      = "https://api.cobalt.tools/"
	DefaultScraperURL         = "https://v3.saveig.app/api/ajaxSearch"
)

// InstagramOptions configures the Instagram strategy chain. The partner
// strategy is only part of the chain when PartnerAPIKey is set.
type InstagramOptions struct {
	EmbedBaseURL  string
	PartnerAPIKey string
	PartnerAPIURL string
	AggregatorURL string
	ScraperURL    string
}

func (o InstagramOptions) withDefaults() InstagramOptions {
	if o.EmbedBaseURL == "" {
		o.EmbedBaseURL = DefaultInstagramEmbedBase
	}
	if o.PartnerAPIURL == "" {
		o.PartnerAPIURL = DefaultPartnerAPIURL
	}
	if o.AggregatorURL == "" {
		o.AggregatorURL = DefaultAggregatorURL
	}
	if o.ScraperURL == "" {
		o.ScraperURL = DefaultScraperURL
	}
	return o
}

// instagramStrategies returns the Instagram strategies in priority order
func instagramStrategies(f *fetcher, opts InstagramOptions) []Strategy {
	opts = opts.withDefaults()
	strategies := []Strategy{
		&embedStrategy{fetcher: f, baseURL: strings.TrimRight(opts.EmbedBaseURL, "/")},
	}
	if opts.PartnerAPIKey != "" {
		strategies = append(strategies, &partnerStrategy{fetcher: f, endpoint: opts.PartnerAPIURL, apiKey: opts.PartnerAPIKey})
	}
	strategies = append(strategies,
		&aggregatorStrategy{fetcher: f, endpoint: opts.AggregatorURL},
		&scraperStrategy{fetcher: f, endpoint: opts.ScraperURL},
	)
	return strategies
}

// cleanURL drops the query string and fragment (share tracking params)
func cleanURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// embedStrategy scrapes the public embed rendering of a post
type embedStrategy struct {
	fetcher *fetcher
	baseURL string
}

func (s *embedStrategy) Name() string { return "embed" }

func (s *embedStrategy) Attempt(ctx context.Context, t Target) (*Media, error) {
	embedURL := fmt.Sprintf("%s/p/%s/embed/captioned/", s.baseURL, url.PathEscape(t.ID))
	body, err := s.fetcher.fetch(ctx, requestSpec{
		url:     embedURL,
		headers: map[string]string{"Accept": "text/html"},
	})
	if err != nil {
		return nil, err
	}

	page := string(body)
	image := findEmbedImageURL(page)
	if video := findEmbedVideoURL(page); video != "" {
		return &Media{Kind: KindVideo, MediaURL: video, ThumbnailURL: image}, nil
	}
	if image != "" {
		return &Media{Kind: KindImage, MediaURL: image, ThumbnailURL: image}, nil
	}
	return nil, fmt.Errorf("no media marker in embed page")
}

var (
	escapedQuoteRegex = regexp.MustCompile(`\\+"`)
	embedVideoJSON    = regexp.MustCompile(`"video_url"\s*:\s*"([^"]+)"`)
	embedVideoTag     = regexp.MustCompile(`<video[^>]*\ssrc="([^"]+)"`)
	embedImageJSON    = regexp.MustCompile(`"display_url"\s*:\s*"([^"]+)"`)
	embedImageTag     = regexp.MustCompile(`class="EmbeddedMediaImage"[^>]*\ssrc="([^"]+)"`)
	mediaLinkRegex    = regexp.MustCompile(`(?i)\.(?:mp4|jpg)`)
	urlEscapes        = strings.NewReplacer(`\\u0026`, "&", `\u0026`, "&", `\\/`, "/", `\/`, "/")
	backslashes       = strings.NewReplacer(`\`, "")
)

// findEmbedVideoURL looks for a video source in embed markup
func findEmbedVideoURL(page string) string {
	return firstMatch(escapedQuoteRegex.ReplaceAllString(page, `"`), embedVideoJSON, embedVideoTag)
}

// findEmbedImageURL looks for an image source in embed markup
func findEmbedImageURL(page string) string {
	return firstMatch(escapedQuoteRegex.ReplaceAllString(page, `"`), embedImageJSON, embedImageTag)
}

func firstMatch(s string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); len(m) > 1 {
			if u := unescapeMediaURL(m[1]); u != "" {
				return u
			}
		}
	}
	return ""
}

// unescapeMediaURL undoes JSON and HTML escaping of a captured URL. JSON
// embedded in a string literal is escaped twice, so decoding repeats while
// backslashes remain.
func unescapeMediaURL(s string) string {
	for i := 0; i < 3 && strings.Contains(s, `\`); i++ {
		var decoded string
		if err := json.Unmarshal([]byte(`"`+s+`"`), &decoded); err != nil {
			s = backslashes.Replace(urlEscapes.Replace(s))
			break
		}
		s = decoded
	}
	return strings.TrimSpace(html.UnescapeString(s))
}

// partnerStrategy submits the URL to a paid resolution API
type partnerStrategy struct {
	fetcher  *fetcher
	endpoint string
	apiKey   string
}

type partnerResponse struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Media []struct {
		Type      string `json:"type"`
		URL       string `json:"url"`
		Thumbnail string `json:"thumbnail"`
	} `json:"media"`
}

func (s *partnerStrategy) Name() string { return "partner" }

func (s *partnerStrategy) Attempt(ctx context.Context, t Target) (*Media, error) {
	payload, _ := json.Marshal(map[string]string{"url": t.CleanURL})
	body, err := s.fetcher.fetch(ctx, requestSpec{
		method:      http.MethodPost,
		url:         s.endpoint,
		body:        string(payload),
		contentType: "application/json",
		headers: map[string]string{
			"Accept":         "application/json",
			"X-RapidAPI-Key": s.apiKey,
		},
	})
	if err != nil {
		return nil, err
	}
	return parsePartnerResponse(body)
}

func parsePartnerResponse(body []byte) (*Media, error) {
	var resp partnerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse partner response: %w", err)
	}
	if !strings.EqualFold(resp.Type, "Post") && !strings.EqualFold(resp.Type, "Reel") {
		return nil, fmt.Errorf("unsupported partner response type %q", resp.Type)
	}
	if len(resp.Media) == 0 || resp.Media[0].URL == "" {
		return nil, fmt.Errorf("partner response has no media")
	}

	entry := resp.Media[0]
	kind := KindImage
	if strings.EqualFold(entry.Type, "video") {
		kind = KindVideo
	}
	return &Media{
		Kind:         kind,
		MediaURL:     entry.URL,
		ThumbnailURL: entry.Thumbnail,
		Title:        resp.Title,
	}, nil
}

// aggregatorStrategy submits the URL to an open aggregation service
type aggregatorStrategy struct {
	fetcher  *fetcher
	endpoint string
}

type aggregatorResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
	Type   string `json:"type"`
	Picker []struct {
		Type  string `json:"type"`
		URL   string `json:"url"`
		Thumb string `json:"thumb"`
	} `json:"picker"`
}

func (s *aggregatorStrategy) Name() string { return "aggregator" }

func (s *aggregatorStrategy) Attempt(ctx context.Context, t Target) (*Media, error) {
	payload, _ := json.Marshal(map[string]string{"url": t.CleanURL})
	body, err := s.fetcher.fetch(ctx, requestSpec{
		method:      http.MethodPost,
		url:         s.endpoint,
		body:        string(payload),
		contentType: "application/json",
		headers:     map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, err
	}
	return parseAggregatorResponse(body)
}

func parseAggregatorResponse(body []byte) (*Media, error) {
	var resp aggregatorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse aggregator response: %w", err)
	}

	switch resp.Status {
	case "stream", "redirect":
		if resp.URL == "" {
			return nil, fmt.Errorf("aggregator returned %s without url", resp.Status)
		}
		kind := KindImage
		if resp.Type == "video" || strings.Contains(strings.ToLower(resp.URL), ".mp4") {
			kind = KindVideo
		}
		return &Media{Kind: kind, MediaURL: resp.URL}, nil

	case "picker":
		urls := make([]string, 0, len(resp.Picker))
		for _, item := range resp.Picker {
			if item.URL != "" {
				urls = append(urls, item.URL)
			}
		}
		if len(urls) == 0 {
			return nil, fmt.Errorf("aggregator picker is empty")
		}
		return &Media{
			Kind:           KindCollection,
			MediaURL:       urls[0],
			ThumbnailURL:   resp.Picker[0].Thumb,
			CollectionURLs: urls,
		}, nil

	default:
		return nil, fmt.Errorf("aggregator status %q", resp.Status)
	}
}

// scraperStrategy posts the URL to a scraping site and pulls the download
// link out of the markup it returns
type scraperStrategy struct {
	fetcher  *fetcher
	endpoint string
}

func (s *scraperStrategy) Name() string { return "scraper" }

func (s *scraperStrategy) Attempt(ctx context.Context, t Target) (*Media, error) {
	form := url.Values{}
	form.Set("q", t.CleanURL)
	form.Set("t", "media")
	form.Set("lang", "en")

	body, err := s.fetcher.fetch(ctx, requestSpec{
		method:      http.MethodPost,
		url:         s.endpoint,
		body:        form.Encode(),
		contentType: "application/x-www-form-urlencoded; charset=UTF-8",
		headers:     map[string]string{"Accept": "*/*", "X-Requested-With": "XMLHttpRequest"},
	})
	if err != nil {
		return nil, err
	}

	link := findScraperDownloadLink(scraperMarkup(body))
	if link == "" {
		return nil, fmt.Errorf("no download link in scraper response")
	}
	kind := KindImage
	if strings.Contains(strings.ToLower(link), ".mp4") {
		kind = KindVideo
	}
	return &Media{Kind: kind, MediaURL: link}, nil
}

// scraperMarkup returns the markup of a scraper response, which is either
// raw HTML or a JSON envelope with the HTML in "data"
func scraperMarkup(body []byte) string {
	var envelope struct {
		Data string `json:"data"`
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal(body, &envelope) == nil && envelope.Data != "" {
		return envelope.Data
	}
	return trimmed
}

// findScraperDownloadLink returns the first anchor pointing at an .mp4 or
// .jpg file
func findScraperDownloadLink(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(escapedQuoteRegex.ReplaceAllString(markup, `"`)))
	if err != nil {
		return ""
	}
	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if mediaLinkRegex.MatchString(href) {
			link = href
			return false
		}
		return true
	})
	return link
}
