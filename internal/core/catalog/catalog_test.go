package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guiyumin/mediasnap/internal/core/extractor"
)

func labels(list []StreamDescriptor) []string {
	out := make([]string, len(list))
	for i, f := range list {
		out[i] = f.QualityLabel
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildVideoDedup(t *testing.T) {
	info := &Info{Formats: []StreamDescriptor{
		{Itag: 22, QualityLabel: "720p", Container: "mp4", HasVideo: true, HasAudio: true},
		{Itag: 122, QualityLabel: "720p", Container: "mp4", HasVideo: true, HasAudio: true},
		{Itag: 136, QualityLabel: "720p", Container: "mp4", HasVideo: true},
		{Itag: 247, QualityLabel: "720p", Container: "webm", HasVideo: true},
	}}

	c := Build(info)
	if len(c.Video) != 3 {
		t.Fatalf("expected 3 video entries, got %d: %+v", len(c.Video), c.Video)
	}
	if c.Video[0].Itag != 22 {
		t.Errorf("first-seen entry should be kept, got itag %d", c.Video[0].Itag)
	}
}

func TestBuildVideoOrdering(t *testing.T) {
	info := &Info{Formats: []StreamDescriptor{
		{Itag: 1, QualityLabel: "360p", Container: "mp4", HasVideo: true},
		{Itag: 2, QualityLabel: "", Container: "mp4", HasVideo: true},
		{Itag: 3, QualityLabel: "1080p", Container: "mp4", HasVideo: true},
		{Itag: 4, QualityLabel: "720p60", Container: "mp4", HasVideo: true},
	}}

	got := labels(Build(info).Video)
	want := []string{"1080p", "720p60", "360p", ""}
	if !equal(got, want) {
		t.Errorf("video order = %v, want %v", got, want)
	}
}

func TestBuildAudioCatalog(t *testing.T) {
	info := &Info{Formats: []StreamDescriptor{
		{Itag: 139, Container: "mp4", HasAudio: true, Bitrate: 48000},
		{Itag: 251, Container: "webm", HasAudio: true, Bitrate: 160000},
		{Itag: 140, Container: "mp4", HasAudio: true, Bitrate: 129500},
		{Itag: 251, Container: "webm", HasAudio: true, Bitrate: 999000},
		{Itag: 999, Container: "mp4", HasAudio: true},
		{Itag: 18, QualityLabel: "360p", Container: "mp4", HasVideo: true, HasAudio: true},
	}}

	c := Build(info)

	got := labels(c.Audio)
	want := []string{"160kbps", "130kbps", "48kbps", "0kbps"}
	if !equal(got, want) {
		t.Errorf("audio labels = %v, want %v", got, want)
	}
	if c.BestAudio == nil || c.BestAudio.Itag != 251 {
		t.Errorf("BestAudio = %+v, want itag 251", c.BestAudio)
	}
	for _, f := range c.Audio {
		if f.HasVideo {
			t.Errorf("audio catalog contains video-bearing itag %d", f.Itag)
		}
	}
	if len(c.Video) != 1 || c.Video[0].Itag != 18 {
		t.Errorf("combined stream belongs to the video catalog only, got %+v", c.Video)
	}
}

func TestBuildNoAudio(t *testing.T) {
	c := Build(&Info{Formats: []StreamDescriptor{{Itag: 137, QualityLabel: "1080p", HasVideo: true}}})
	if c.BestAudio != nil {
		t.Errorf("BestAudio = %+v, want nil", c.BestAudio)
	}
}

func TestBuildDropsStreamsWithNeither(t *testing.T) {
	c := Build(&Info{Formats: []StreamDescriptor{{Itag: 5}}})
	if len(c.Video) != 0 || len(c.Audio) != 0 {
		t.Errorf("expected empty catalogs, got %+v", c)
	}
}

func TestBuildThumbnailAndMetadata(t *testing.T) {
	c := Build(&Info{
		Title:           "Never Gonna Give You Up",
		Thumbnails:      []string{"https://i.ytimg.com/default.jpg", "https://i.ytimg.com/hqdefault.jpg", "https://i.ytimg.com/maxresdefault.jpg"},
		DurationSeconds: 213,
	})
	if c.ThumbnailURL != "https://i.ytimg.com/maxresdefault.jpg" {
		t.Errorf("ThumbnailURL = %q", c.ThumbnailURL)
	}
	if c.Title != "Never Gonna Give You Up" || c.DurationSeconds != 213 {
		t.Errorf("unexpected metadata: %+v", c)
	}
}

func TestEstimateSize(t *testing.T) {
	tests := []struct {
		name     string
		f        StreamDescriptor
		duration int
		want     int64
	}{
		{"content length wins", StreamDescriptor{ContentLength: 42, Bitrate: 1_000_000}, 8, 42},
		{"bitrate times duration", StreamDescriptor{Bitrate: 1_000_000}, 8, 1_000_000},
		{"floors", StreamDescriptor{Bitrate: 7}, 3, 2},
		{"unknown duration", StreamDescriptor{Bitrate: 1_000_000}, 0, 0},
		{"unknown bitrate", StreamDescriptor{}, 8, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateSize(tt.f, tt.duration); got != tt.want {
				t.Errorf("EstimateSize() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSizeLabel(t *testing.T) {
	if got := SizeLabel(0); got != "Unknown" {
		t.Errorf("SizeLabel(0) = %q", got)
	}
	if got := SizeLabel(1_000_000); got != "1.0 MB" {
		t.Errorf("SizeLabel(1e6) = %q", got)
	}
}

type fakeSource struct {
	info  *Info
	err   error
	calls int
}

func (f *fakeSource) GetInfo(ctx context.Context, rawURL string) (*Info, error) {
	f.calls++
	return f.info, f.err
}

func TestFetchScenario(t *testing.T) {
	src := &fakeSource{info: &Info{
		Title:           "clip",
		DurationSeconds: 10,
		Formats: []StreamDescriptor{
			{Itag: 22, QualityLabel: "720p", Container: "mp4", HasVideo: true, HasAudio: true, Bitrate: 800_000},
			{Itag: 22, QualityLabel: "720p", Container: "mp4", HasVideo: true, HasAudio: true, Bitrate: 800_000},
			{Itag: 244, QualityLabel: "480p", Container: "webm", HasVideo: true},
		},
	}}

	c, err := Fetch(context.Background(), src, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", time.Second)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if got := labels(c.Video); !equal(got, []string{"720p", "480p"}) {
		t.Errorf("video catalog = %v", got)
	}
	if c.Video[0].EstimatedSizeBytes != 1_000_000 {
		t.Errorf("estimated size = %d, want 1000000", c.Video[0].EstimatedSizeBytes)
	}
	if c.Video[1].Size != "Unknown" {
		t.Errorf("size label for unknown size = %q", c.Video[1].Size)
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		src  *fakeSource
		want *extractor.Error
	}{
		{
			name: "not youtube",
			url:  "https://vimeo.com/123",
			src:  &fakeSource{},
			want: extractor.ErrInvalidURL,
		},
		{
			name: "zero formats",
			url:  "https://youtu.be/dQw4w9WgXcQ",
			src:  &fakeSource{info: &Info{Title: "x"}},
			want: extractor.ErrNoFormats,
		},
		{
			name: "untyped source error",
			url:  "https://youtu.be/dQw4w9WgXcQ",
			src:  &fakeSource{err: errors.New("connection reset")},
			want: extractor.ErrUpstreamTransient,
		},
		{
			name: "typed source error passes through",
			url:  "https://youtu.be/dQw4w9WgXcQ",
			src:  &fakeSource{err: extractor.NewError(extractor.CodeResourceUnavailable, "video is private", nil)},
			want: extractor.ErrResourceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fetch(context.Background(), tt.src, tt.url, time.Second)
			if !errors.Is(err, tt.want) {
				t.Errorf("Fetch() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCatalogFind(t *testing.T) {
	c := Build(&Info{Formats: []StreamDescriptor{
		{Itag: 18, QualityLabel: "360p", HasVideo: true, HasAudio: true},
		{Itag: 140, HasAudio: true, Bitrate: 128000},
	}})

	if f, ok := c.Find(140); !ok || f.QualityLabel != "128kbps" {
		t.Errorf("Find(140) = %+v, %v", f, ok)
	}
	if _, ok := c.Find(1); ok {
		t.Error("Find(1) should miss")
	}
}
