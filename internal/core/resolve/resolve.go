// Package resolve is the single entry point the CLI and the server use to
// turn a URL into media, a format catalog or a relayed stream.
package resolve

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guiyumin/mediasnap/internal/core/catalog"
	"github.com/guiyumin/mediasnap/internal/core/config"
	"github.com/guiyumin/mediasnap/internal/core/extractor"
	"github.com/guiyumin/mediasnap/internal/core/platform"
	"github.com/guiyumin/mediasnap/internal/core/relay"
	"github.com/guiyumin/mediasnap/internal/core/youtube"
)

// Result is the outcome of resolving one URL. Media is set for Instagram
// and StarMaker, Catalog for YouTube.
type Result struct {
	URL      string            `json:"url"`
	Platform platform.Platform `json:"platform"`
	Media    *extractor.Media  `json:"media,omitempty"`
	Catalog  *catalog.Catalog  `json:"catalog,omitempty"`
}

// Service dispatches URLs to the right pipeline
type Service struct {
	resolver *extractor.Resolver
	source   catalog.Source
	relay    *relay.Relay
	timeout  time.Duration
}

// Deps holds the pipelines a Service dispatches to
type Deps struct {
	Resolver *extractor.Resolver
	Source   catalog.Source
	Relay    *relay.Relay
	Timeout  time.Duration
}

// New wires a Service from configuration
func New(cfg *config.Config, log *logrus.Logger) *Service {
	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
	}
	yt := youtube.New(client)

	resolver := extractor.NewResolver(extractor.Options{
		HTTPClient: client,
		Timeout:    cfg.UpstreamTimeout(),
		UserAgent:  cfg.UserAgent,
		Logger:     log,
		Instagram: extractor.InstagramOptions{
			PartnerAPIKey: cfg.Instagram.PartnerAPIKey,
			PartnerAPIURL: cfg.Instagram.PartnerAPIURL,
			AggregatorURL: cfg.Instagram.AggregatorURL,
			ScraperURL:    cfg.Instagram.ScraperURL,
		},
		StarMaker: extractor.StarMakerOptions{
			CDNPrimary:   cfg.StarMaker.CDNPrimary,
			CDNSecondary: cfg.StarMaker.CDNSecondary,
		},
	})

	return NewService(Deps{
		Resolver: resolver,
		Source:   yt,
		Relay:    relay.New(yt, cfg.RelayBufferSize(), log),
		Timeout:  cfg.UpstreamTimeout(),
	})
}

// NewService creates a Service from already built pipelines
func NewService(d Deps) *Service {
	return &Service{
		resolver: d.Resolver,
		source:   d.Source,
		relay:    d.Relay,
		timeout:  d.Timeout,
	}
}

// Resolve classifies the URL and runs the matching pipeline
func (s *Service) Resolve(ctx context.Context, rawURL string) (*Result, error) {
	p := platform.Classify(rawURL)
	res := &Result{URL: rawURL, Platform: p}

	if p == platform.YouTube {
		c, err := s.Formats(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		res.Catalog = c
		return res, nil
	}

	media, err := s.resolver.Resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	res.Media = media
	return res, nil
}

// Formats builds the format catalog of a YouTube URL
func (s *Service) Formats(ctx context.Context, rawURL string) (*catalog.Catalog, error) {
	return catalog.Fetch(ctx, s.source, rawURL, s.timeout)
}

// Relay returns the stream relay
func (s *Service) Relay() *relay.Relay {
	return s.relay
}
