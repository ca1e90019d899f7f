package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/guiyumin/mediasnap/internal/core/catalog"
	"github.com/guiyumin/mediasnap/internal/core/config"
	"github.com/guiyumin/mediasnap/internal/core/extractor"
	"github.com/guiyumin/mediasnap/internal/core/i18n"
	"github.com/guiyumin/mediasnap/internal/core/platform"
	"github.com/guiyumin/mediasnap/internal/core/relay"
	"github.com/guiyumin/mediasnap/internal/core/resolve"
	"github.com/guiyumin/mediasnap/internal/core/version"
)

const requestIDHeader = "X-Request-ID"

// Response is the standard API response structure
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// URLRequest is the request body for the resolve, formats and jobs routes
type URLRequest struct {
	URL string `json:"url" binding:"required"`
}

// StreamQuery holds the query parameters of GET /api/stream
type StreamQuery struct {
	URL   string `form:"url" binding:"required"`
	Itag  int    `form:"itag" binding:"required,min=1"`
	Title string `form:"title"`
	Ext   string `form:"ext"`
}

// Resolver is what the API needs from the resolution service
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (*resolve.Result, error)
	Formats(ctx context.Context, rawURL string) (*catalog.Catalog, error)
}

// Streamer relays a selected format as an attachment response
type Streamer interface {
	Serve(w http.ResponseWriter, req *http.Request, rr relay.Request) (headersSent bool, err error)
}

// Server is the HTTP server for mediasnap
type Server struct {
	port     int
	apiKey   string
	lang     string
	resolver Resolver
	streamer Streamer
	jobQueue *JobQueue
	log      *logrus.Logger
	server   *http.Server
	engine   *gin.Engine
}

// NewServer creates a new HTTP server backed by svc
func NewServer(cfg *config.Config, svc *resolve.Service, log *logrus.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	return newServer(cfg, svc, svc.Relay(), log)
}

func newServer(cfg *config.Config, resolver Resolver, streamer Streamer, log *logrus.Logger) *Server {
	s := &Server{
		port:     cfg.ListenPort(),
		apiKey:   cfg.Server.APIKey,
		lang:     cfg.Language,
		resolver: resolver,
		streamer: streamer,
		log:      log,
	}
	if s.lang == "" {
		s.lang = "en"
	}
	s.jobQueue = NewJobQueue(cfg.JobConcurrency(), resolver.Resolve, log)
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	engine := gin.New()

	engine.Use(s.loggingMiddleware())
	engine.Use(s.recoveryMiddleware())
	if s.apiKey != "" {
		engine.Use(s.authMiddleware())
	}

	api := engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/i18n", s.handleI18n)
	api.POST("/resolve", s.handleResolve)
	api.POST("/formats", s.handleFormats)
	api.GET("/stream", s.handleStream)
	api.POST("/jobs", s.handleAddJob)
	api.GET("/jobs", s.handleGetJobs)
	api.GET("/jobs/:id", s.handleGetJob)
	api.DELETE("/jobs", s.handleClearJobs)
	api.DELETE("/jobs/:id", s.handleDeleteJob)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "not found",
		})
	})

	return engine
}

// Start starts the job workers and the HTTP server
func (s *Server) Start() error {
	if !config.Exists() {
		t := i18n.GetTranslations(s.lang)
		s.log.Warn(t.Server.NoConfigWarning)
		s.log.Info(t.Server.RunInitHint)
	}

	s.jobQueue.Start()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     s.engine,
		ReadTimeout: 30 * time.Second,
		// Streams may run for a long time
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	s.log.WithField("port", s.port).Info("starting mediasnap server")
	if s.apiKey != "" {
		s.log.Info("API key authentication enabled")
	}

	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.jobQueue.Stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Middleware

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		// Health and translations stay public
		if path == "/api/health" || path == "/api/i18n" || !strings.HasPrefix(path, "/api/") {
			c.Next()
			return
		}

		if c.GetHeader("X-API-Key") != s.apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Code:    401,
				Data:    nil,
				Message: i18n.T(s.lang).Server.Unauthorized,
			})
			return
		}
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		// Deferred so aborted streams are logged too
		defer func() {
			s.log.WithFields(logrus.Fields{
				"request_id": id,
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"status":     c.Writer.Status(),
				"latency":    time.Since(start),
			}).Info("request")
		}()

		c.Next()
	}
}

// recoveryMiddleware turns handler panics into a 500 response. A panic with
// http.ErrAbortHandler is passed on so net/http drops the connection.
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			s.log.WithField("panic", rec).Error("handler panicked")
			if c.Writer.Written() {
				panic(http.ErrAbortHandler)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
				Code:    500,
				Data:    nil,
				Message: i18n.T(s.lang).Errors.Internal,
			})
		}()
		c.Next()
	}
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"status":  "ok",
			"version": version.Version,
		},
		Message: "everything is good",
	})
}

func (s *Server) handleI18n(c *gin.Context) {
	t := i18n.GetTranslations(s.lang)

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"language":      s.lang,
			"errors":        t.Errors,
			"server":        t.Server,
			"config_exists": config.Exists(),
		},
		Message: "translations retrieved",
	})
}

func (s *Server) handleResolve(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, extractor.NewError(extractor.CodeInvalidURL, "url is required", err))
		return
	}

	result, err := s.resolver.Resolve(c.Request.Context(), req.URL)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    result,
		Message: "resolved",
	})
}

func (s *Server) handleFormats(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, extractor.NewError(extractor.CodeInvalidURL, "url is required", err))
		return
	}

	cat, err := s.resolver.Formats(c.Request.Context(), req.URL)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    cat,
		Message: fmt.Sprintf("%d video and %d audio formats", len(cat.Video), len(cat.Audio)),
	})
}

func (s *Server) handleStream(c *gin.Context) {
	var q StreamQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, extractor.NewError(extractor.CodeInvalidURL, "url and itag are required", err))
		return
	}

	headersSent, err := s.streamer.Serve(c.Writer, c.Request, relay.Request{
		URL:       q.URL,
		Itag:      q.Itag,
		Title:     q.Title,
		Container: q.Ext,
	})
	if err == nil {
		return
	}
	if !headersSent {
		s.fail(c, err)
		return
	}
	// The client already has a status line and a partial body; closing the
	// connection is the only way to mark the download as failed.
	panic(http.ErrAbortHandler)
}

func (s *Server) handleAddJob(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, extractor.NewError(extractor.CodeInvalidURL, "url is required", err))
		return
	}
	if platform.Classify(req.URL) == platform.None {
		s.fail(c, extractor.NewError(extractor.CodeInvalidURL, "unsupported url", nil))
		return
	}

	job, err := s.jobQueue.AddJob(req.URL)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, Response{
			Code:    503,
			Data:    nil,
			Message: i18n.T(s.lang).Server.QueueFull,
		})
		return
	}

	c.JSON(http.StatusAccepted, Response{
		Code:    202,
		Data:    job,
		Message: "job queued",
	})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job := s.jobQueue.GetJob(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: i18n.T(s.lang).Server.JobNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    job,
		Message: string(job.Status),
	})
}

func (s *Server) handleGetJobs(c *gin.Context) {
	jobs := s.jobQueue.GetAllJobs()

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"jobs": jobs,
		},
		Message: fmt.Sprintf("%d jobs found", len(jobs)),
	})
}

func (s *Server) handleClearJobs(c *gin.Context) {
	count := s.jobQueue.ClearHistory()
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"cleared": count,
		},
		Message: fmt.Sprintf("%d jobs cleared", count),
	})
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	id := c.Param("id")

	// Try to cancel an active job first, then remove a finished one
	if s.jobQueue.CancelJob(id) {
		c.JSON(http.StatusOK, Response{
			Code:    200,
			Data:    gin.H{"id": id},
			Message: "job cancelled",
		})
	} else if s.jobQueue.RemoveJob(id) {
		c.JSON(http.StatusOK, Response{
			Code:    200,
			Data:    gin.H{"id": id},
			Message: "job removed",
		})
	} else {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: i18n.T(s.lang).Server.JobNotFound,
		})
	}
}

// fail renders a resolution error with its status, code and localized message
func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) && c.Request.Context().Err() != nil {
		// Client went away, nobody is listening
		c.Abort()
		return
	}

	status, code := statusFor(err)
	c.AbortWithStatusJSON(status, Response{
		Code: status,
		Data: gin.H{
			"error":    code,
			"fallback": extractor.HasFallback(err),
		},
		Message: i18n.T(s.lang).Errors.Message(string(code)),
	})
}

// statusFor maps an error to its HTTP status and error code
func statusFor(err error) (int, extractor.ErrorCode) {
	code := extractor.CodeOf(err)
	switch code {
	case extractor.CodeInvalidURL:
		return http.StatusBadRequest, code
	case extractor.CodeUpstreamBlocked, extractor.CodeRelayAborted:
		return http.StatusBadGateway, code
	case extractor.CodeResourceUnavailable, extractor.CodeNoFormats:
		return http.StatusNotFound, code
	case extractor.CodeUpstreamTransient:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, code
		}
		return http.StatusBadGateway, code
	default:
		return http.StatusInternalServerError, "internal"
	}
}
