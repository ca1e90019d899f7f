// Package catalog turns the raw stream list of a video into deduplicated,
// quality-ordered video and audio catalogs.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/guiyumin/mediasnap/internal/core/extractor"
	"github.com/guiyumin/mediasnap/internal/core/platform"
)

// StreamDescriptor is one encoded variant of a source video
type StreamDescriptor struct {
	Itag               int    `json:"itag"`
	QualityLabel       string `json:"quality_label,omitempty"`
	Container          string `json:"container"`
	MimeType           string `json:"mime_type,omitempty"`
	HasVideo           bool   `json:"has_video"`
	HasAudio           bool   `json:"has_audio"`
	Bitrate            int    `json:"bitrate,omitempty"`
	ContentLength      int64  `json:"content_length,omitempty"`
	EstimatedSizeBytes int64  `json:"estimated_size_bytes"`
	Size               string `json:"size"`
}

// Info is what the metadata source reports for a video
type Info struct {
	Title           string
	Thumbnails      []string // ordered smallest to largest
	DurationSeconds int
	Formats         []StreamDescriptor
}

// Source fetches video metadata and its raw stream list
type Source interface {
	GetInfo(ctx context.Context, rawURL string) (*Info, error)
}

// Catalog is the presentable format list of one video
type Catalog struct {
	Title           string             `json:"title"`
	ThumbnailURL    string             `json:"thumbnail_url,omitempty"`
	DurationSeconds int                `json:"duration_seconds"`
	Video           []StreamDescriptor `json:"video"`
	Audio           []StreamDescriptor `json:"audio"`
	BestAudio       *StreamDescriptor  `json:"best_audio,omitempty"`
}

// Fetch validates the URL, loads its metadata within timeout and builds
// the catalog. A video with no usable formats fails with ErrNoFormats,
// distinct from a failed fetch.
func Fetch(ctx context.Context, src Source, rawURL string, timeout time.Duration) (*Catalog, error) {
	if platform.Classify(rawURL) != platform.YouTube || !platform.Validate(rawURL, platform.YouTube) {
		return nil, extractor.NewError(extractor.CodeInvalidURL, "not a youtube url", nil)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	info, err := src.GetInfo(ctx, rawURL)
	if err != nil {
		var typed *extractor.Error
		if errors.As(err, &typed) {
			return nil, err
		}
		return nil, extractor.NewError(extractor.CodeUpstreamTransient, "failed to fetch video metadata", err)
	}
	if len(info.Formats) == 0 {
		return nil, extractor.NewError(extractor.CodeNoFormats, "video has no downloadable formats", nil)
	}

	c := Build(info)
	if len(c.Video) == 0 && len(c.Audio) == 0 {
		return nil, extractor.NewError(extractor.CodeNoFormats, "video has no audio or video streams", nil)
	}
	return c, nil
}

// Build partitions, deduplicates and orders the raw formats. It is a pure
// function of info.
func Build(info *Info) *Catalog {
	formats := make([]StreamDescriptor, len(info.Formats))
	for i, f := range info.Formats {
		f.EstimatedSizeBytes = EstimateSize(f, info.DurationSeconds)
		f.Size = SizeLabel(f.EstimatedSizeBytes)
		formats[i] = f
	}

	video := lo.Filter(formats, func(f StreamDescriptor, _ int) bool { return f.HasVideo })
	video = lo.UniqBy(video, videoKey)
	sort.SliceStable(video, func(i, j int) bool {
		return qualityRank(video[i].QualityLabel) > qualityRank(video[j].QualityLabel)
	})

	audio := lo.Filter(formats, func(f StreamDescriptor, _ int) bool { return f.HasAudio && !f.HasVideo })
	audio = lo.UniqBy(audio, func(f StreamDescriptor) int { return f.Itag })
	sort.SliceStable(audio, func(i, j int) bool {
		return audio[i].Bitrate > audio[j].Bitrate
	})
	for i := range audio {
		audio[i].QualityLabel = AudioLabel(audio[i].Bitrate)
	}

	c := &Catalog{
		Title:           info.Title,
		DurationSeconds: info.DurationSeconds,
		Video:           video,
		Audio:           audio,
	}
	if len(info.Thumbnails) > 0 {
		c.ThumbnailURL = info.Thumbnails[len(info.Thumbnails)-1]
	}
	if len(audio) > 0 {
		best := audio[0]
		c.BestAudio = &best
	}
	return c
}

// Find returns the catalog entry with the given itag
func (c *Catalog) Find(itag int) (*StreamDescriptor, bool) {
	for _, list := range [][]StreamDescriptor{c.Video, c.Audio} {
		for i := range list {
			if list[i].Itag == itag {
				return &list[i], true
			}
		}
	}
	return nil, false
}

type videoDedupKey struct {
	label     string
	container string
	hasAudio  bool
}

func videoKey(f StreamDescriptor) videoDedupKey {
	return videoDedupKey{label: f.QualityLabel, container: f.Container, hasAudio: f.HasAudio}
}

var qualityPrefixRegex = regexp.MustCompile(`^\d+`)

// qualityRank is the numeric prefix of a label such as "720p60", or 0
func qualityRank(label string) int {
	n, err := strconv.Atoi(qualityPrefixRegex.FindString(label))
	if err != nil {
		return 0
	}
	return n
}

// EstimateSize prefers the authoritative content length and otherwise
// derives bytes from bitrate and duration. 0 means unknown.
func EstimateSize(f StreamDescriptor, durationSeconds int) int64 {
	if f.ContentLength > 0 {
		return f.ContentLength
	}
	if f.Bitrate > 0 && durationSeconds > 0 {
		return int64(f.Bitrate) * int64(durationSeconds) / 8
	}
	return 0
}

// AudioLabel renders a bitrate in bits per second as e.g. "128kbps"
func AudioLabel(bitrate int) string {
	return fmt.Sprintf("%dkbps", (bitrate+500)/1000)
}

// SizeLabel renders a byte count for display
func SizeLabel(size int64) string {
	if size <= 0 {
		return "Unknown"
	}
	return humanize.Bytes(uint64(size))
}
