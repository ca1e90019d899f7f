package extractor

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guiyumin/mediasnap/internal/core/platform"
)

// Options configures a Resolver
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
	Instagram  InstagramOptions
	StarMaker  StarMakerOptions
	Logger     *logrus.Logger
}

// Resolver turns Instagram and StarMaker URLs into a single media
// descriptor. YouTube URLs resolve to a format catalog instead and are
// rejected here.
type Resolver struct {
	fetcher   *fetcher
	instagram *Chain
	starmaker *Chain
	log       *logrus.Logger
}

// NewResolver creates a resolver with the strategy chains for each platform
func NewResolver(opts Options) *Resolver {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	f := newFetcher(opts.HTTPClient, opts.Timeout, opts.UserAgent)
	return &Resolver{
		fetcher:   f,
		instagram: NewChain(platform.Instagram, log, instagramStrategies(f, opts.Instagram)...),
		starmaker: NewChain(platform.StarMaker, log, starmakerStrategies(f, opts.StarMaker)...),
		log:       log,
	}
}

// Chain returns the strategy chain used for a platform, or nil
func (r *Resolver) Chain(p platform.Platform) *Chain {
	switch p {
	case platform.Instagram:
		return r.instagram
	case platform.StarMaker:
		return r.starmaker
	default:
		return nil
	}
}

// Resolve classifies the URL, extracts its identifier and runs the
// platform's strategy chain.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Media, error) {
	p := platform.Classify(rawURL)
	if p == platform.None || !platform.Validate(rawURL, p) {
		return nil, NewError(CodeInvalidURL, "unsupported or malformed url", nil)
	}

	id := platform.ExtractIdentifier(rawURL, p)
	if id == "" {
		return nil, NewError(CodeInvalidURL, "could not find a post or recording id in url", nil)
	}

	target := Target{
		URL:      rawURL,
		CleanURL: cleanURL(rawURL),
		ID:       id,
		Platform: p,
	}

	switch p {
	case platform.Instagram:
		return r.resolveInstagram(ctx, target)
	case platform.StarMaker:
		return r.resolveStarMaker(ctx, target)
	default:
		return nil, NewError(CodeInvalidURL, p.DisplayName()+" urls resolve to a format catalog", nil)
	}
}

func (r *Resolver) resolveInstagram(ctx context.Context, t Target) (*Media, error) {
	media, attempts := r.instagram.Run(ctx, t)
	if media != nil {
		return media, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, NewError(CodeUpstreamBlocked, "could not extract media from instagram", lastError(attempts))
}

func (r *Resolver) resolveStarMaker(ctx context.Context, t Target) (*Media, error) {
	media, attempts := r.starmaker.Run(ctx, t)
	if media == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, NewError(CodeResourceUnavailable, "recording unavailable", lastError(attempts))
	}

	meta, err := fetchPageMeta(ctx, r.fetcher, t.URL)
	if err != nil {
		r.log.WithField("platform", string(t.Platform)).WithError(err).Debug("share page enrichment skipped")
		return media, nil
	}
	if meta.Title != "" {
		media.Title = meta.Title
	}
	if meta.Image != "" {
		media.ThumbnailURL = meta.Image
	}
	return media, nil
}
