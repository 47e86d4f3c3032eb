package api

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"lexibrief/internal/models"
	"lexibrief/internal/pipeline"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	indexTemplate   = "index.tmpl"
	multipartMemory = 32 << 20
	bodySlack       = 1 << 20
)

// Pipeline runs one summarization request end to end.
type Pipeline interface {
	RunText(ctx context.Context, text string) pipeline.Outcome
	RunDocument(ctx context.Context, file *models.UploadedFile) pipeline.Outcome
}

// EngineStatus reports whether the summarizer came up at startup.
type EngineStatus interface {
	Available() bool
	Name() string
}

type Options struct {
	MaxUploadBytes     int64
	RateLimitPerMinute int
	Logo               template.URL
}

// Handler wires HTTP routes to the summarization pipeline.
type Handler struct {
	pipeline  Pipeline
	engine    EngineStatus
	templates *template.Template
	limiter   *rateLimiter
	maxBytes  int64
	logo      template.URL
}

// NewHandler constructs a Handler instance.
func NewHandler(p Pipeline, engine EngineStatus, opts Options) *Handler {
	maxBytes := opts.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 10_000_000
	}
	return &Handler{
		pipeline:  p,
		engine:    engine,
		templates: template.Must(template.New("").ParseFS(templateFS, "templates/*.tmpl")),
		limiter:   newRateLimiter(opts.RateLimitPerMinute, rateWindow),
		maxBytes:  maxBytes,
		logo:      opts.Logo,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(h.templates)
	router.GET("/", h.index)
	router.GET("/healthz", h.health)

	limited := h.rateLimit()
	router.POST("/summarize/text", limited, h.summarizeTextPage)
	router.POST("/summarize/document", limited, h.summarizeDocumentPage)

	api := router.Group("/api")
	api.Use(limited)
	api.POST("/summarize/text", h.summarizeText)
	api.POST("/summarize/document", h.summarizeDocument)
}

func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		log.Warn().Str("client_ip", c.ClientIP()).Msg("rate limit exceeded")
		msg := "Too many requests, please retry in a minute"
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": msg})
			return
		}
		page := h.newPage(modeFromPath(c.Request.URL.Path))
		page.Alert = &alert{Level: "error", Message: msg}
		c.HTML(http.StatusTooManyRequests, indexTemplate, page)
		c.Abort()
	}
}

func (h *Handler) engineReady() bool {
	return h.engine != nil && h.engine.Available()
}

func (h *Handler) health(c *gin.Context) {
	state := "unavailable"
	name := ""
	if h.engineReady() {
		state = "ready"
		name = h.engine.Name()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "summarizer": state, "engine": name})
}

// HTML UI

type alert struct {
	Level   string
	Message string
}

type pageData struct {
	Mode        models.Mode
	Logo        template.URL
	MaxUploadMB int64
	EngineReady bool
	Text        string
	Filename    string
	SourceLabel string
	Result      *models.SummaryResult
	Alert       *alert
}

func (h *Handler) newPage(mode models.Mode) pageData {
	return pageData{
		Mode:        mode,
		Logo:        h.logo,
		MaxUploadMB: h.maxBytes / 1_000_000,
		EngineReady: h.engineReady(),
	}
}

func (h *Handler) render(c *gin.Context, page pageData, out pipeline.Outcome) {
	page.Result = out.Result
	if out.Failure != nil {
		level := "error"
		if out.Failure.Warning {
			level = "warning"
		}
		page.Alert = &alert{Level: level, Message: out.Failure.Message}
	}
	c.HTML(statusFor(out), indexTemplate, page)
}

func (h *Handler) index(c *gin.Context) {
	c.HTML(http.StatusOK, indexTemplate, h.newPage(modeFromQuery(c.Query("mode"))))
}

func (h *Handler) summarizeTextPage(c *gin.Context) {
	text := c.PostForm("text")
	page := h.newPage(models.ModeText)
	page.Text = text
	page.SourceLabel = "Original Text"
	h.render(c, page, h.pipeline.RunText(c.Request.Context(), text))
}

func (h *Handler) summarizeDocumentPage(c *gin.Context) {
	page := h.newPage(models.ModeDocument)
	page.SourceLabel = "Extracted Text"
	file, failure := h.readUpload(c)
	if failure != nil {
		h.render(c, page, rejected(failure))
		return
	}
	page.Filename = file.Filename
	h.render(c, page, h.pipeline.RunDocument(c.Request.Context(), file))
}

// JSON API

type textRequest struct {
	Text string `json:"text"`
}

func (h *Handler) summarizeText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	respondJSON(c, h.pipeline.RunText(c.Request.Context(), req.Text))
}

func (h *Handler) summarizeDocument(c *gin.Context) {
	file, failure := h.readUpload(c)
	if failure != nil {
		respondJSON(c, rejected(failure))
		return
	}
	respondJSON(c, h.pipeline.RunDocument(c.Request.Context(), file))
}

func respondJSON(c *gin.Context, out pipeline.Outcome) {
	status := statusFor(out)
	if out.Failure != nil {
		c.JSON(status, gin.H{
			"error": out.Failure.Message,
			"kind":  out.Failure.Kind,
			"state": out.State,
		})
		return
	}
	c.JSON(status, gin.H{
		"state":            out.State,
		"original_excerpt": out.Result.OriginalExcerpt,
		"summary":          out.Result.Summary,
		"truncated":        out.Result.Truncated,
		"pages":            out.Result.Pages,
		"text_pages":       out.Result.TextPages,
	})
}

// readUpload pulls the "file" field out of a multipart body capped slightly
// above the upload limit, so oversized files are refused without being
// buffered in full.
func (h *Handler) readUpload(c *gin.Context) (*models.UploadedFile, *models.Failure) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+bodySlack)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, models.FileTooLarge()
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, models.NoFile()
		}
		return nil, models.NewFailure(models.InputRejected, "Invalid upload form", err)
	}
	defer func() {
		if err := c.Request.MultipartForm.RemoveAll(); err != nil {
			log.Warn().Err(err).Msg("remove multipart spill files")
		}
	}()

	header, err := c.FormFile("file")
	if err != nil {
		return nil, models.NoFile()
	}
	if header.Size > h.maxBytes {
		return nil, models.FileTooLarge()
	}
	data, err := readPart(header, h.maxBytes)
	if err != nil {
		return nil, models.NewFailure(models.ExtractionFailed, "File processing error: "+err.Error(), err)
	}
	return &models.UploadedFile{
		Data:        data,
		Size:        header.Size,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}

func readPart(header *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}

func rejected(f *models.Failure) pipeline.Outcome {
	state := pipeline.StateRejected
	if f.Kind == models.ExtractionFailed {
		state = pipeline.StateExtractionFailed
	}
	return pipeline.Outcome{
		State:   state,
		Trace:   []pipeline.State{pipeline.StateIdle, state},
		Failure: f,
	}
}

// statusFor maps a terminal outcome onto an HTTP status.
func statusFor(out pipeline.Outcome) int {
	f := out.Failure
	if f == nil {
		return http.StatusOK
	}
	switch f.Kind {
	case models.InputRejected:
		switch {
		case errors.Is(f, models.ErrFileTooLarge):
			return http.StatusRequestEntityTooLarge
		case errors.Is(f, models.ErrUnsupportedType):
			return http.StatusUnsupportedMediaType
		}
		return http.StatusBadRequest
	case models.ExtractionFailed:
		return http.StatusUnprocessableEntity
	case models.ServiceUnavailable:
		if errors.Is(f, models.ErrBusy) {
			return http.StatusTooManyRequests
		}
		return http.StatusServiceUnavailable
	case models.InferenceFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func modeFromQuery(v string) models.Mode {
	if models.Mode(strings.ToLower(strings.TrimSpace(v))) == models.ModeDocument {
		return models.ModeDocument
	}
	return models.ModeText
}

func modeFromPath(path string) models.Mode {
	if strings.HasSuffix(path, "/document") {
		return models.ModeDocument
	}
	return models.ModeText
}
