package resolve

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guiyumin/mediasnap/internal/core/catalog"
	"github.com/guiyumin/mediasnap/internal/core/config"
	"github.com/guiyumin/mediasnap/internal/core/extractor"
	"github.com/guiyumin/mediasnap/internal/core/platform"
)

type fakeSource struct {
	calls int
}

func (f *fakeSource) GetInfo(ctx context.Context, rawURL string) (*catalog.Info, error) {
	f.calls++
	return &catalog.Info{
		Title: "clip",
		Formats: []catalog.StreamDescriptor{
			{Itag: 18, QualityLabel: "360p", Container: "mp4", HasVideo: true, HasAudio: true},
		},
	}, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestResolveYouTubeBuildsCatalog(t *testing.T) {
	src := &fakeSource{}
	svc := NewService(Deps{
		Resolver: extractor.NewResolver(extractor.Options{Logger: quietLogger()}),
		Source:   src,
		Timeout:  time.Second,
	})

	res, err := svc.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Platform != platform.YouTube || res.Catalog == nil || res.Media != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Catalog.Video) != 1 || src.calls != 1 {
		t.Errorf("catalog = %+v, calls = %d", res.Catalog, src.calls)
	}
}

func TestResolveRejectsUnknownURL(t *testing.T) {
	src := &fakeSource{}
	svc := NewService(Deps{
		Resolver: extractor.NewResolver(extractor.Options{Logger: quietLogger()}),
		Source:   src,
	})

	_, err := svc.Resolve(context.Background(), "https://example.com/video")
	if !errors.Is(err, extractor.ErrInvalidURL) {
		t.Errorf("err = %v, want ErrInvalidURL", err)
	}
	if src.calls != 0 {
		t.Error("metadata source should not be called for unknown URLs")
	}
}

func TestNewWiresFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Instagram.PartnerAPIKey = "secret"

	svc := New(cfg, quietLogger())
	if svc.Relay() == nil {
		t.Fatal("relay not wired")
	}

	names := svc.resolver.Chain(platform.Instagram).Strategies()
	if len(names) != 4 || names[1] != "partner" {
		t.Errorf("instagram strategies = %v", names)
	}
}
