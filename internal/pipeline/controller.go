package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"lexibrief/internal/extract"
	"lexibrief/internal/models"
)

const (
	tempFilePattern = "lexibrief-*.pdf"
	pdfMIME         = "application/pdf"
)

// Extractor reads the text of a PDF stored on disk.
type Extractor interface {
	ExtractFile(ctx context.Context, path string) (*extract.Result, error)
}

// Summarizer is the shared inference engine. Implementations must report
// Available() == false when the engine failed to initialize, including on
// a nil receiver.
type Summarizer interface {
	Available() bool
	Summarize(ctx context.Context, req models.SummaryRequest) (string, error)
}

type Options struct {
	MaxBytes         int64
	TempDir          string
	ExcerptChars     int
	MinLength        int
	MaxLength        int
	InferenceTimeout time.Duration
}

// Outcome is the terminal result of one run. Exactly one of Result and
// Failure is set.
type Outcome struct {
	State   State
	Trace   []State
	Result  *models.SummaryResult
	Failure *models.Failure
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.Trace = append(o.Trace, s)
}

func (o *Outcome) fail(s State, f *models.Failure) Outcome {
	o.enter(s)
	o.Failure = f
	return *o
}

// Controller drives one request through extraction and summarization.
type Controller struct {
	extractor  Extractor
	summarizer Summarizer
	opts       Options
}

func New(extractor Extractor, summarizer Summarizer, opts Options) *Controller {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10_000_000
	}
	if opts.ExcerptChars <= 0 {
		opts.ExcerptChars = 2000
	}
	if opts.MinLength <= 0 {
		opts.MinLength = 50
	}
	if opts.MaxLength < opts.MinLength {
		opts.MaxLength = 150
	}
	return &Controller{extractor: extractor, summarizer: summarizer, opts: opts}
}

func (c *Controller) available() bool {
	return c.summarizer != nil && c.summarizer.Available()
}

// Run dispatches on the input mode.
func (c *Controller) Run(ctx context.Context, input models.InputDocument) Outcome {
	if input.Mode == models.ModeDocument {
		return c.RunDocument(ctx, input.File)
	}
	return c.RunText(ctx, input.Text)
}

// RunText summarizes pasted text. The full input is echoed back.
func (c *Controller) RunText(ctx context.Context, text string) Outcome {
	out := Outcome{}
	out.enter(StateIdle)
	out.enter(StateTextReceived)

	if strings.TrimSpace(text) == "" {
		return out.fail(StateRejected, models.EmptyText())
	}
	out.enter(StateValidated)
	if !c.available() {
		return out.fail(StateRejected, models.Unavailable())
	}

	summary, failure := c.summarize(ctx, text)
	if failure != nil {
		return out.fail(failedState(failure), failure)
	}
	out.enter(StateSummarized)
	out.Result = &models.SummaryResult{
		OriginalExcerpt: text,
		Summary:         summary,
	}
	out.enter(StateRendered)
	return out
}

// RunDocument checks, stores, extracts and summarizes an uploaded PDF. The
// temp file never outlives the call.
func (c *Controller) RunDocument(ctx context.Context, file *models.UploadedFile) Outcome {
	out := Outcome{}
	out.enter(StateIdle)
	if file == nil {
		return out.fail(StateRejected, models.NoFile())
	}
	out.enter(StateFileReceived)

	size := file.Size
	if n := int64(len(file.Data)); n > size {
		size = n
	}
	if size > c.opts.MaxBytes {
		return out.fail(StateRejected, models.FileTooLarge())
	}
	if !isPDF(file) {
		return out.fail(StateRejected, models.UnsupportedType())
	}
	out.enter(StateSizeChecked)
	if !c.available() {
		return out.fail(StateRejected, models.Unavailable())
	}

	tmp, err := c.writeTemp(file)
	if err != nil {
		return out.fail(StateExtractionFailed, models.NewFailure(models.ExtractionFailed, fmt.Sprintf("File processing error: %v", err), err))
	}
	defer removeTemp(tmp)

	res, err := c.extractor.ExtractFile(ctx, tmp.StoredPath)
	if err != nil {
		log.Warn().Err(err).Str("file", file.Filename).Msg("pdf extraction failed")
		return out.fail(StateExtractionFailed, models.NewFailure(models.ExtractionFailed, fmt.Sprintf("PDF processing error: %v", err), err))
	}
	if res == nil || res.Text == "" {
		return out.fail(StateExtractionFailed, models.NewFailure(models.ExtractionFailed, models.MsgNoText, models.ErrNoText))
	}
	out.enter(StateExtracted)
	out.enter(StateValidated)

	summary, failure := c.summarize(ctx, res.Text)
	if failure != nil {
		return out.fail(failedState(failure), failure)
	}
	out.enter(StateSummarized)

	excerpt, truncated := models.Excerpt(res.Text, c.opts.ExcerptChars)
	out.Result = &models.SummaryResult{
		OriginalExcerpt: excerpt,
		Summary:         summary,
		Truncated:       truncated,
		Pages:           res.Pages,
		TextPages:       res.TextPages,
	}
	out.enter(StateRendered)
	return out
}

// failedState keeps an engine that stopped accepting requests (revoked token,
// removed model) on the same Rejected path as one that never came up.
func failedState(f *models.Failure) State {
	if f.Kind == models.ServiceUnavailable && errors.Is(f, models.ErrUnavailable) {
		return StateRejected
	}
	return StateFailed
}

func (c *Controller) summarize(ctx context.Context, text string) (string, *models.Failure) {
	if c.opts.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.InferenceTimeout)
		defer cancel()
	}
	start := time.Now()
	summary, err := c.summarizer.Summarize(ctx, models.SummaryRequest{
		Text:      text,
		MinLength: c.opts.MinLength,
		MaxLength: c.opts.MaxLength,
	})
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("summarization failed")
		switch {
		case errors.Is(err, models.ErrBusy):
			return "", models.NewFailure(models.ServiceUnavailable, models.MsgBusy, err)
		case errors.Is(err, models.ErrUnavailable):
			return "", models.Unavailable()
		}
		return "", models.NewFailure(models.InferenceFailed, fmt.Sprintf("Summarization failed: %v", err), err)
	}
	log.Info().Int("input_chars", len(text)).Dur("elapsed", time.Since(start)).Msg("summary generated")
	return summary, nil
}

func (c *Controller) writeTemp(file *models.UploadedFile) (*models.TempFile, error) {
	f, err := os.CreateTemp(c.opts.TempDir, tempFilePattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmp := &models.TempFile{
		FileName:   file.Filename,
		StoredPath: f.Name(),
		Size:       int64(len(file.Data)),
		CreatedAt:  time.Now(),
	}
	if _, err := f.Write(file.Data); err != nil {
		f.Close()
		removeTemp(tmp)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		removeTemp(tmp)
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	return tmp, nil
}

func removeTemp(tmp *models.TempFile) {
	if err := os.Remove(tmp.StoredPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", tmp.StoredPath).Msg("remove temp file")
	}
}

// isPDF requires both the .pdf extension and the PDF magic bytes.
func isPDF(file *models.UploadedFile) bool {
	if !file.HasPDFExtension() {
		return false
	}
	return mimetype.Detect(file.Data).Is(pdfMIME)
}
