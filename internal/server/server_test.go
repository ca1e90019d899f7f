package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/guiyumin/mediasnap/internal/core/catalog"
	"github.com/guiyumin/mediasnap/internal/core/config"
	"github.com/guiyumin/mediasnap/internal/core/extractor"
	"github.com/guiyumin/mediasnap/internal/core/platform"
	"github.com/guiyumin/mediasnap/internal/core/relay"
	"github.com/guiyumin/mediasnap/internal/core/resolve"
)

const videoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	result  *resolve.Result
	catalog *catalog.Catalog
	err     error
}

func (f *fakeResolver) Resolve(ctx context.Context, rawURL string) (*resolve.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeResolver) Formats(ctx context.Context, rawURL string) (*catalog.Catalog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.catalog, nil
}

type fakeOpener struct {
	body io.ReadCloser
	desc *catalog.StreamDescriptor
	err  error
}

func (f *fakeOpener) OpenStream(ctx context.Context, rawURL string, itag int) (io.ReadCloser, *catalog.StreamDescriptor, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.body, f.desc, nil
}

// brokenBody yields data once and then fails
type brokenBody struct {
	data []byte
	done bool
}

func (b *brokenBody) Read(p []byte) (int, error) {
	if b.done {
		return 0, errors.New("connection reset by peer")
	}
	b.done = true
	return copy(p, b.data), nil
}

func (b *brokenBody) Close() error { return nil }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestServer(t *testing.T, cfg *config.Config, r Resolver, opener relay.Opener) *Server {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if opener == nil {
		opener = &fakeOpener{err: extractor.ErrResourceUnavailable}
	}
	log := quietLogger()
	return newServer(cfg, r, relay.New(opener, 0, log), log)
}

func doJSON(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, &fakeResolver{}, nil)

	rec := doJSON(s.Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestResolveReturnsMedia(t *testing.T) {
	media := &extractor.Media{
		Kind:           extractor.KindVideo,
		MediaURL:       "https://cdn.example.com/v.mp4",
		SourcePlatform: platform.Instagram,
	}
	s := newTestServer(t, nil, &fakeResolver{result: &resolve.Result{Platform: platform.Instagram, Media: media}}, nil)

	rec := doJSON(s.Handler(), http.MethodPost, "/api/resolve", `{"url":"https://www.instagram.com/p/ABC123/"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var res resolve.Result
	if err := json.Unmarshal(decode(t, rec).Data, &res); err != nil {
		t.Fatal(err)
	}
	if res.Media == nil || res.Media.MediaURL != media.MediaURL || res.Media.Kind != extractor.KindVideo {
		t.Errorf("media = %+v", res.Media)
	}
}

func TestResolveErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		fallback bool
	}{
		{"invalid url", extractor.NewError(extractor.CodeInvalidURL, "bad", nil), http.StatusBadRequest, "invalid_url", false},
		{"blocked", extractor.NewError(extractor.CodeUpstreamBlocked, "blocked", nil), http.StatusBadGateway, "upstream_blocked", true},
		{"unavailable", extractor.NewError(extractor.CodeResourceUnavailable, "gone", nil), http.StatusNotFound, "resource_unavailable", false},
		{"no formats", extractor.ErrNoFormats, http.StatusNotFound, "no_formats", false},
		{"transient", extractor.NewError(extractor.CodeUpstreamTransient, "reset", nil), http.StatusBadGateway, "upstream_transient", false},
		{"timeout", extractor.NewError(extractor.CodeUpstreamTransient, "slow", context.DeadlineExceeded), http.StatusGatewayTimeout, "upstream_transient", false},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "internal", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil, &fakeResolver{err: tt.err}, nil)
			rec := doJSON(s.Handler(), http.MethodPost, "/api/resolve", `{"url":"https://www.instagram.com/p/ABC123/"}`)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}

			var data struct {
				Error    string `json:"error"`
				Fallback bool   `json:"fallback"`
			}
			env := decode(t, rec)
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatal(err)
			}
			if data.Error != tt.code || data.Fallback != tt.fallback {
				t.Errorf("data = %+v, want code %q fallback %v", data, tt.code, tt.fallback)
			}
			if env.Message == "" {
				t.Error("expected a user-facing message")
			}
		})
	}
}

func TestResolveRequiresURL(t *testing.T) {
	s := newTestServer(t, nil, &fakeResolver{}, nil)

	rec := doJSON(s.Handler(), http.MethodPost, "/api/resolve", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFormats(t *testing.T) {
	cat := &catalog.Catalog{
		Title: "clip",
		Video: []catalog.StreamDescriptor{{Itag: 22, QualityLabel: "720p", Container: "mp4", HasVideo: true, HasAudio: true}},
	}
	s := newTestServer(t, nil, &fakeResolver{catalog: cat}, nil)

	rec := doJSON(s.Handler(), http.MethodPost, "/api/formats", fmt.Sprintf(`{"url":%q}`, videoURL))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got catalog.Catalog
	if err := json.Unmarshal(decode(t, rec).Data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Video) != 1 || got.Video[0].Itag != 22 {
		t.Errorf("catalog = %+v", got)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.APIKey = "s3cret"
	s := newTestServer(t, cfg, &fakeResolver{result: &resolve.Result{}}, nil)

	if rec := doJSON(s.Handler(), http.MethodGet, "/api/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without key", rec.Code)
	}

	rec := doJSON(s.Handler(), http.MethodPost, "/api/resolve", `{"url":"https://www.instagram.com/p/ABC123/"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/resolve", strings.NewReader(`{"url":"https://www.instagram.com/p/ABC123/"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "s3cret")
	ok := httptest.NewRecorder()
	s.Handler().ServeHTTP(ok, req)
	if ok.Code != http.StatusOK {
		t.Errorf("status with key = %d, want 200", ok.Code)
	}
}

func TestStreamWritesAttachment(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 4096)
	opener := &fakeOpener{
		body: io.NopCloser(bytes.NewReader(payload)),
		desc: &catalog.StreamDescriptor{Itag: 18, Container: "mp4", MimeType: "video/mp4", ContentLength: int64(len(payload))},
	}
	s := newTestServer(t, nil, &fakeResolver{}, opener)

	rec := doJSON(s.Handler(), http.MethodGet, "/api/stream?url="+url.QueryEscape(videoURL)+"&itag=18&title=My%20Clip", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=My_Clip.mp4` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("body length = %d, want %d", rec.Body.Len(), len(payload))
	}
}

func TestStreamRejectsBadQuery(t *testing.T) {
	s := newTestServer(t, nil, &fakeResolver{}, nil)

	tests := []string{
		"/api/stream?url=" + url.QueryEscape(videoURL),
		"/api/stream?url=" + url.QueryEscape(videoURL) + "&itag=0",
		"/api/stream?itag=18",
		"/api/stream?url=https://example.com/x&itag=18",
	}
	for _, path := range tests {
		rec := doJSON(s.Handler(), http.MethodGet, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestStreamOpenFailureRendersError(t *testing.T) {
	s := newTestServer(t, nil, &fakeResolver{}, &fakeOpener{err: extractor.NewError(extractor.CodeResourceUnavailable, "gone", nil)})

	rec := doJSON(s.Handler(), http.MethodGet, "/api/stream?url="+url.QueryEscape(videoURL)+"&itag=18", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStreamMidwayFailureDropsConnection(t *testing.T) {
	opener := &fakeOpener{
		body: &brokenBody{data: []byte("partial")},
		desc: &catalog.StreamDescriptor{Itag: 18, Container: "mp4", MimeType: "video/mp4", ContentLength: 1000},
	}
	s := newTestServer(t, nil, &fakeResolver{}, opener)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stream?url=" + url.QueryEscape(videoURL) + "&itag=18")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, err := io.ReadAll(resp.Body); err == nil {
		t.Error("expected a truncated body error")
	}
}

func TestJobsLifecycle(t *testing.T) {
	s := newTestServer(t, nil, &fakeResolver{result: &resolve.Result{Platform: platform.StarMaker}}, nil)
	s.jobQueue.Start()
	defer s.jobQueue.Stop()

	rec := doJSON(s.Handler(), http.MethodPost, "/api/jobs", `{"url":"https://www.starmakerstudios.com/share?recordingId=987654"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var job Job
	if err := json.Unmarshal(decode(t, rec).Data, &job); err != nil {
		t.Fatal(err)
	}

	waitForStatus(t, s.jobQueue, job.ID, JobStatusCompleted)

	rec = doJSON(s.Handler(), http.MethodGet, "/api/jobs/"+job.ID, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"completed"`) {
		t.Errorf("get job: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(s.Handler(), http.MethodGet, "/api/jobs", "")
	if !strings.Contains(rec.Body.String(), job.ID) {
		t.Errorf("job list missing %s: %s", job.ID, rec.Body.String())
	}

	rec = doJSON(s.Handler(), http.MethodDelete, "/api/jobs/"+job.ID, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "job removed") {
		t.Errorf("delete job: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(s.Handler(), http.MethodGet, "/api/jobs/"+job.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", rec.Code)
	}
}

func TestAddJobRejectsUnknownURL(t *testing.T) {
	s := newTestServer(t, nil, &fakeResolver{}, nil)

	rec := doJSON(s.Handler(), http.MethodPost, "/api/jobs", `{"url":"https://example.com/video"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil, &fakeResolver{}, nil)

	rec := doJSON(s.Handler(), http.MethodGet, "/api/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	s := newTestServer(t, nil, &fakeResolver{}, nil)
	s.engine.GET("/api/panic", func(c *gin.Context) { panic("boom") })

	rec := doJSON(s.Handler(), http.MethodGet, "/api/panic", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
