// Package youtube adapts github.com/kkdai/youtube to the metadata and
// stream interfaces used by the catalog builder and the relay.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	yt "github.com/kkdai/youtube/v2"

	"github.com/guiyumin/mediasnap/internal/core/catalog"
	"github.com/guiyumin/mediasnap/internal/core/extractor"
)

// Client fetches video metadata and opens streams
type Client struct {
	yt *yt.Client
}

// New creates a client. A nil httpClient uses the library default.
func New(httpClient *http.Client) *Client {
	c := &yt.Client{}
	if httpClient != nil {
		c.HTTPClient = httpClient
	}
	return &Client{yt: c}
}

// GetInfo loads the title, thumbnails, duration and raw formats of a video
func (c *Client) GetInfo(ctx context.Context, rawURL string) (*catalog.Info, error) {
	video, err := c.yt.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, mapError(err, "failed to fetch video metadata")
	}

	info := &catalog.Info{
		Title:           video.Title,
		DurationSeconds: int(video.Duration.Seconds()),
		Thumbnails:      make([]string, 0, len(video.Thumbnails)),
		Formats:         make([]catalog.StreamDescriptor, 0, len(video.Formats)),
	}
	for _, thumb := range video.Thumbnails {
		info.Thumbnails = append(info.Thumbnails, thumb.URL)
	}
	for i := range video.Formats {
		info.Formats = append(info.Formats, Descriptor(&video.Formats[i]))
	}
	return info, nil
}

// OpenStream opens the byte stream of one format. The caller must close
// the returned reader; cancelling ctx aborts the download.
func (c *Client) OpenStream(ctx context.Context, rawURL string, itag int) (io.ReadCloser, *catalog.StreamDescriptor, error) {
	video, err := c.yt.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, nil, mapError(err, "failed to fetch video metadata")
	}

	format, err := findFormat(video, itag)
	if err != nil {
		return nil, nil, err
	}

	stream, size, err := c.yt.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, nil, mapError(err, "failed to open stream")
	}

	desc := streamDescriptor(format, size)
	return stream, &desc, nil
}

// findFormat picks the format with the given itag
func findFormat(video *yt.Video, itag int) (*yt.Format, error) {
	if l := video.Formats.Itag(itag); len(l) > 0 {
		return &l[0], nil
	}
	return nil, extractor.NewError(extractor.CodeResourceUnavailable, fmt.Sprintf("format %d not available", itag), nil)
}

// streamDescriptor describes an opened stream; the size reported by the
// stream wins over the advertised content length
func streamDescriptor(f *yt.Format, size int64) catalog.StreamDescriptor {
	desc := Descriptor(f)
	if size > 0 {
		desc.ContentLength = size
	}
	return desc
}

// Descriptor converts a library format to a stream descriptor
func Descriptor(f *yt.Format) catalog.StreamDescriptor {
	mime := strings.ToLower(f.MimeType)
	bitrate := f.Bitrate
	if bitrate <= 0 {
		bitrate = f.AverageBitrate
	}
	return catalog.StreamDescriptor{
		Itag:          f.ItagNo,
		QualityLabel:  f.QualityLabel,
		Container:     containerFromMime(mime),
		MimeType:      f.MimeType,
		HasVideo:      strings.HasPrefix(mime, "video/") && (f.Width > 0 || f.QualityLabel != ""),
		HasAudio:      f.AudioChannels > 0 || strings.HasPrefix(mime, "audio/"),
		Bitrate:       bitrate,
		ContentLength: f.ContentLength,
	}
}

// containerFromMime turns "video/mp4; codecs=..." into "mp4"
func containerFromMime(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	_, sub, ok := strings.Cut(strings.TrimSpace(mime), "/")
	if !ok || sub == "" {
		return "bin"
	}
	if sub == "3gpp" {
		return "3gp"
	}
	return sub
}

// mapError classifies library errors into the resolution error taxonomy
func mapError(err error, message string) error {
	switch {
	case errors.Is(err, yt.ErrInvalidCharactersInVideoID),
		errors.Is(err, yt.ErrVideoIDMinLength):
		return extractor.NewError(extractor.CodeInvalidURL, "invalid video id", err)
	case errors.Is(err, yt.ErrLoginRequired),
		errors.Is(err, yt.ErrVideoPrivate),
		errors.Is(err, yt.ErrNotPlayableInEmbed):
		return extractor.NewError(extractor.CodeResourceUnavailable, "video is restricted", err)
	case errors.Is(err, context.Canceled):
		return err
	}

	var statusErr *yt.ErrPlayabiltyStatus
	if errors.As(err, &statusErr) {
		return extractor.NewError(extractor.CodeResourceUnavailable, "video is unavailable", err)
	}

	var codeErr yt.ErrUnexpectedStatusCode
	if errors.As(err, &codeErr) && int(codeErr) == http.StatusNotFound {
		return extractor.NewError(extractor.CodeResourceUnavailable, "video not found", err)
	}

	return extractor.NewError(extractor.CodeUpstreamTransient, message, err)
}
