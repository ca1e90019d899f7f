// Package relay streams a selected YouTube format to a client as a
// downloadable attachment.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/guiyumin/mediasnap/internal/core/catalog"
	"github.com/guiyumin/mediasnap/internal/core/extractor"
	"github.com/guiyumin/mediasnap/internal/core/platform"
)

const (
	// DefaultBufferSize is how much upstream data may be read ahead of the client
	DefaultBufferSize = 1 << 20

	chunkSize       = 64 << 10
	maxFilenameBase = 100
)

// Opener opens the byte stream of one format of a video
type Opener interface {
	OpenStream(ctx context.Context, rawURL string, itag int) (io.ReadCloser, *catalog.StreamDescriptor, error)
}

// Request selects what to relay
type Request struct {
	URL       string
	Itag      int
	Title     string
	Container string
}

// Relay opens upstream streams and copies them to clients
type Relay struct {
	opener     Opener
	bufferSize int
	log        *logrus.Logger
}

// New creates a relay. bufferSize <= 0 uses DefaultBufferSize.
func New(opener Opener, bufferSize int, log *logrus.Logger) *Relay {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Relay{opener: opener, bufferSize: bufferSize, log: log}
}

// Stream is an opened upstream ready to be copied out
type Stream struct {
	Filename      string
	ContentType   string
	ContentLength int64
	Descriptor    *catalog.StreamDescriptor

	ctx       context.Context
	body      io.ReadCloser
	depth     int
	closeOnce sync.Once
	log       *logrus.Entry
}

// Open validates the request and opens the upstream stream. The stream is
// released when ctx is cancelled or Close is called, whichever comes first.
func (r *Relay) Open(ctx context.Context, req Request) (*Stream, error) {
	if platform.Classify(req.URL) != platform.YouTube || !platform.Validate(req.URL, platform.YouTube) {
		return nil, extractor.NewError(extractor.CodeInvalidURL, "not a youtube url", nil)
	}
	if req.Itag <= 0 {
		return nil, extractor.NewError(extractor.CodeInvalidURL, "missing format selector", nil)
	}

	body, desc, err := r.opener.OpenStream(ctx, req.URL, req.Itag)
	if err != nil {
		return nil, err
	}

	container := req.Container
	if container == "" && desc != nil {
		container = desc.Container
	}

	s := &Stream{
		Filename:    Filename(req.Title, container),
		ContentType: "application/octet-stream",
		Descriptor:  desc,
		ctx:         ctx,
		body:        body,
		depth:       max(r.bufferSize/chunkSize, 1),
		log:         r.log.WithFields(logrus.Fields{"platform": string(platform.YouTube), "itag": req.Itag}),
	}
	if desc != nil {
		s.ContentLength = desc.ContentLength
		if mt, _, err := mime.ParseMediaType(desc.MimeType); err == nil {
			s.ContentType = mt
		}
	}
	return s, nil
}

// SetHeaders marks the response as a downloadable attachment
func (s *Stream) SetHeaders(h http.Header) {
	h.Set("Content-Type", s.ContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": s.Filename}))
	if s.ContentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(s.ContentLength, 10))
	}
}

type chunk struct {
	data []byte
	err  error
}

// WriteTo copies the stream to w through a bounded read-ahead buffer. Any
// upstream failure, short read, client write error or cancellation is
// reported as ErrRelayAborted.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	ctx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()
	defer cancel()

	chunks := make(chan chunk, s.depth)
	go s.produce(ctx, chunks)

	var written int64
	for c := range chunks {
		if len(c.data) > 0 {
			n, err := w.Write(c.data)
			written += int64(n)
			if err != nil {
				s.log.WithError(err).Debug("client went away")
				s.Close()
				return written, extractor.NewError(extractor.CodeRelayAborted, "failed to write to client", err)
			}
		}
		if c.err == nil {
			continue
		}
		if errors.Is(c.err, io.EOF) {
			break
		}
		if err := ctx.Err(); err != nil {
			return written, extractor.NewError(extractor.CodeRelayAborted, "relay cancelled", err)
		}
		s.log.WithError(c.err).Warn("upstream stream failed")
		return written, extractor.NewError(extractor.CodeRelayAborted, "upstream stream failed", c.err)
	}

	if err := ctx.Err(); err != nil {
		return written, extractor.NewError(extractor.CodeRelayAborted, "relay cancelled", err)
	}
	if s.ContentLength > 0 && written < s.ContentLength {
		return written, extractor.NewError(extractor.CodeRelayAborted,
			fmt.Sprintf("upstream ended after %d of %d bytes", written, s.ContentLength), io.ErrUnexpectedEOF)
	}
	return written, nil
}

func (s *Stream) produce(ctx context.Context, out chan<- chunk) {
	defer close(out)
	for {
		buf := make([]byte, chunkSize)
		n, err := s.body.Read(buf)
		if n == 0 && err == nil {
			continue
		}
		select {
		case out <- chunk{data: buf[:n], err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Close releases the upstream stream
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

// Serve opens the stream and writes it as an attachment response. Errors
// before any header is written are returned untouched so the caller can
// render them; after that the caller must abort the connection.
func (r *Relay) Serve(w http.ResponseWriter, req *http.Request, rr Request) (headersSent bool, err error) {
	s, err := r.Open(req.Context(), rr)
	if err != nil {
		return false, err
	}
	defer s.Close()

	s.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	n, err := s.WriteTo(w)
	entry := s.log.WithField("bytes", n)
	if err != nil {
		entry.WithError(err).Info("relay aborted")
		return true, err
	}
	entry.Debug("relay complete")
	return true, nil
}

var nonAlnumRegex = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Filename builds an attachment name from the title and container. The base
// keeps ASCII letters and digits; each run of other characters becomes a
// single "_" separator rather than being dropped, so "My Clip!" is saved
// as "My_Clip". The extension is letters and digits only.
func Filename(title, container string) string {
	base := strings.Trim(nonAlnumRegex.ReplaceAllString(title, "_"), "_")
	if len(base) > maxFilenameBase {
		base = strings.TrimRight(base[:maxFilenameBase], "_")
	}
	if base == "" {
		base = "video"
	}

	ext := nonAlnumRegex.ReplaceAllString(container, "")
	if ext == "" {
		ext = "mp4"
	}
	return base + "." + strings.ToLower(ext)
}
