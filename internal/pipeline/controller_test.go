package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"

	"lexibrief/internal/extract"
	"lexibrief/internal/models"
)

type fakeExtractor struct {
	result *extract.Result
	err    error
	calls  int
	paths  []string
}

func (f *fakeExtractor) ExtractFile(ctx context.Context, path string) (*extract.Result, error) {
	f.calls++
	f.paths = append(f.paths, path)
	if _, err := os.Stat(path); err != nil {
		return &extract.Result{}, err
	}
	if f.err != nil {
		return &extract.Result{}, f.err
	}
	return f.result, nil
}

type fakeSummarizer struct {
	mu       sync.Mutex
	down     bool
	reply    string
	err      error
	calls    int
	lastText string
	deadline bool
}

func (f *fakeSummarizer) Available() bool { return f != nil && !f.down }

func (f *fakeSummarizer) Summarize(ctx context.Context, req models.SummaryRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastText = req.Text
	_, f.deadline = ctx.Deadline()
	if req.MinLength != 50 || req.MaxLength != 150 {
		return "", errors.New("unexpected length bounds")
	}
	return f.reply, f.err
}

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func newController(t *testing.T, ex Extractor, sum Summarizer) (*Controller, string) {
	t.Helper()
	dir := t.TempDir()
	return New(ex, sum, Options{
		MaxBytes:         10_000_000,
		TempDir:          dir,
		ExcerptChars:     2000,
		MinLength:        50,
		MaxLength:        150,
		InferenceTimeout: time.Minute,
	}), dir
}

func assertTrace(t *testing.T, got []State, want ...State) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("trace mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trace mismatch at %d: got %v want %v", i, got, want)
		}
	}
	if !got[len(got)-1].Terminal() {
		t.Fatalf("trace must end in a terminal state: %v", got)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp dir not cleaned up: %d entries left", len(entries))
	}
}

func upload(name string, data []byte) *models.UploadedFile {
	return &models.UploadedFile{Data: data, Size: int64(len(data)), Filename: name, ContentType: "application/pdf"}
}

func TestRunTextSuccess(t *testing.T) {
	sum := &fakeSummarizer{reply: "Short version."}
	c, _ := newController(t, &fakeExtractor{}, sum)

	out := c.RunText(context.Background(), "A long article about things.")
	if out.State != StateRendered || out.Failure != nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	assertTrace(t, out.Trace, StateIdle, StateTextReceived, StateValidated, StateSummarized, StateRendered)
	if out.Result.OriginalExcerpt != "A long article about things." || out.Result.Summary != "Short version." {
		t.Fatalf("unexpected result: %+v", out.Result)
	}
	if !sum.deadline {
		t.Fatalf("inference call should carry the configured timeout")
	}
}

func TestRunTextShowsFullInput(t *testing.T) {
	text := strings.Repeat("word ", 1000)
	c, _ := newController(t, &fakeExtractor{}, &fakeSummarizer{reply: "ok"})
	out := c.RunText(context.Background(), text)
	if out.Result == nil || out.Result.OriginalExcerpt != text || out.Result.Truncated {
		t.Fatalf("text mode must echo the full input")
	}
}

func TestRunTextBlankIsRejectedWithoutInference(t *testing.T) {
	sum := &fakeSummarizer{reply: "never"}
	c, _ := newController(t, &fakeExtractor{}, sum)

	for _, text := range []string{"", "   ", "\n\t "} {
		out := c.RunText(context.Background(), text)
		if out.State != StateRejected || out.Failure == nil || !out.Failure.Warning || out.Failure.Message != models.MsgEmptyText {
			t.Fatalf("unexpected outcome for %q: %+v", text, out)
		}
	}
	if sum.calls != 0 {
		t.Fatalf("inference must not run for blank text")
	}
}

func TestRunTextUnavailable(t *testing.T) {
	c, _ := newController(t, &fakeExtractor{}, &fakeSummarizer{down: true})
	out := c.RunText(context.Background(), "text")
	if out.State != StateRejected || out.Failure.Kind != models.ServiceUnavailable || out.Failure.Message != models.MsgUnavailable {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	var nilSummarizer *fakeSummarizer
	c, _ = newController(t, &fakeExtractor{}, nilSummarizer)
	if out := c.RunText(context.Background(), "text"); out.Failure == nil || out.Failure.Kind != models.ServiceUnavailable {
		t.Fatalf("nil summarizer must be unavailable: %+v", out)
	}
}

func TestRunTextInferenceFailure(t *testing.T) {
	c, _ := newController(t, &fakeExtractor{}, &fakeSummarizer{err: errors.New("CUDA out of memory")})
	out := c.RunText(context.Background(), "text")
	if out.State != StateFailed || out.Failure.Kind != models.InferenceFailed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Failure.Message != "Summarization failed: CUDA out of memory" {
		t.Fatalf("unexpected message %q", out.Failure.Message)
	}
}

func TestRunTextBusy(t *testing.T) {
	c, _ := newController(t, &fakeExtractor{}, &fakeSummarizer{err: models.ErrBusy})
	out := c.RunText(context.Background(), "text")
	if out.State != StateFailed || out.Failure.Message != models.MsgBusy || !errors.Is(out.Failure, models.ErrBusy) {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestRunDocumentSuccess(t *testing.T) {
	long := strings.Repeat("x", 2500)
	ex := &fakeExtractor{result: &extract.Result{Text: long, Pages: 3, TextPages: 2}}
	sum := &fakeSummarizer{reply: "Doc summary."}
	c, dir := newController(t, ex, sum)

	out := c.RunDocument(context.Background(), upload("report.pdf", pdfBytes))
	if out.State != StateRendered {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	assertTrace(t, out.Trace, StateIdle, StateFileReceived, StateSizeChecked, StateExtracted, StateValidated, StateSummarized, StateRendered)
	if out.Result.OriginalExcerpt != strings.Repeat("x", 2000)+"..." || !out.Result.Truncated {
		t.Fatalf("excerpt not truncated for display")
	}
	if sum.lastText != long {
		t.Fatalf("model must receive the full extracted text")
	}
	if out.Result.Pages != 3 || out.Result.TextPages != 2 {
		t.Fatalf("unexpected page counts: %+v", out.Result)
	}
	if len(ex.paths) != 1 || !strings.HasPrefix(ex.paths[0], dir) || !strings.HasSuffix(ex.paths[0], ".pdf") {
		t.Fatalf("unexpected temp path %v", ex.paths)
	}
	assertEmptyDir(t, dir)
}

func TestRunDocumentShortTextNotTruncated(t *testing.T) {
	ex := &fakeExtractor{result: &extract.Result{Text: "brief", Pages: 1, TextPages: 1}}
	c, _ := newController(t, ex, &fakeSummarizer{reply: "ok"})
	out := c.RunDocument(context.Background(), upload("a.pdf", pdfBytes))
	if out.Result == nil || out.Result.OriginalExcerpt != "brief" || out.Result.Truncated {
		t.Fatalf("unexpected result: %+v", out.Result)
	}
}

func TestRunDocumentRejections(t *testing.T) {
	oversized := upload("big.pdf", pdfBytes)
	oversized.Size = 10_000_001

	cases := []struct {
		name    string
		file    *models.UploadedFile
		message string
	}{
		{"missing", nil, models.MsgNoFile},
		{"oversized", oversized, models.MsgFileTooLarge},
		{"wrong extension", upload("notes.txt", pdfBytes), models.MsgUnsupportedType},
		{"wrong content", upload("fake.pdf", []byte("just some plain text")), models.MsgUnsupportedType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex := &fakeExtractor{}
			sum := &fakeSummarizer{reply: "never"}
			c, dir := newController(t, ex, sum)
			out := c.RunDocument(context.Background(), tc.file)
			if out.State != StateRejected || out.Failure == nil || out.Failure.Message != tc.message {
				t.Fatalf("unexpected outcome: %+v", out)
			}
			if ex.calls != 0 || sum.calls != 0 {
				t.Fatalf("rejected input must not reach extraction or inference")
			}
			assertEmptyDir(t, dir)
		})
	}
}

func TestRunDocumentBoundarySizeAccepted(t *testing.T) {
	file := upload("edge.pdf", pdfBytes)
	file.Size = 10_000_000
	ex := &fakeExtractor{result: &extract.Result{Text: "text", Pages: 1, TextPages: 1}}
	c, _ := newController(t, ex, &fakeSummarizer{reply: "ok"})
	if out := c.RunDocument(context.Background(), file); out.State != StateRendered {
		t.Fatalf("file at the limit should be accepted: %+v", out)
	}
}

func TestRunDocumentUnavailableBeforeIO(t *testing.T) {
	ex := &fakeExtractor{}
	c, dir := newController(t, ex, &fakeSummarizer{down: true})
	out := c.RunDocument(context.Background(), upload("a.pdf", pdfBytes))
	if out.State != StateRejected || out.Failure.Kind != models.ServiceUnavailable {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if ex.calls != 0 {
		t.Fatalf("extraction must not run when the engine is unavailable")
	}
	assertEmptyDir(t, dir)
}

func TestRunDocumentExtractionFailures(t *testing.T) {
	t.Run("empty text", func(t *testing.T) {
		sum := &fakeSummarizer{reply: "never"}
		c, dir := newController(t, &fakeExtractor{result: &extract.Result{Pages: 2}}, sum)
		out := c.RunDocument(context.Background(), upload("scan.pdf", pdfBytes))
		if out.State != StateExtractionFailed || out.Failure.Message != models.MsgNoText {
			t.Fatalf("unexpected outcome: %+v", out)
		}
		if sum.calls != 0 {
			t.Fatalf("summarizer must not run after failed extraction")
		}
		assertEmptyDir(t, dir)
	})

	t.Run("parse error", func(t *testing.T) {
		sum := &fakeSummarizer{reply: "never"}
		c, dir := newController(t, &fakeExtractor{err: errors.New("malformed xref")}, sum)
		out := c.RunDocument(context.Background(), upload("bad.pdf", pdfBytes))
		if out.State != StateExtractionFailed || out.Failure.Message != "PDF processing error: malformed xref" {
			t.Fatalf("unexpected outcome: %+v", out)
		}
		if sum.calls != 0 {
			t.Fatalf("summarizer must not run after failed extraction")
		}
		assertEmptyDir(t, dir)
	})

	t.Run("temp dir missing", func(t *testing.T) {
		c := New(&fakeExtractor{}, &fakeSummarizer{reply: "x"}, Options{TempDir: t.TempDir() + "/missing"})
		out := c.RunDocument(context.Background(), upload("a.pdf", pdfBytes))
		if out.State != StateExtractionFailed || !strings.HasPrefix(out.Failure.Message, "File processing error: ") {
			t.Fatalf("unexpected outcome: %+v", out)
		}
	})
}

func TestRunDocumentInferenceFailureCleansUp(t *testing.T) {
	ex := &fakeExtractor{result: &extract.Result{Text: "text", Pages: 1, TextPages: 1}}
	c, dir := newController(t, ex, &fakeSummarizer{err: errors.New("timeout")})
	out := c.RunDocument(context.Background(), upload("a.pdf", pdfBytes))
	if out.State != StateFailed || out.Failure.Kind != models.InferenceFailed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	assertEmptyDir(t, dir)
}

func TestRunDocumentWithRealExtractor(t *testing.T) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	doc.Text(20, 20, "Quarterly revenue grew")
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("build pdf: %v", err)
	}

	ex, err := extract.NewExtractor(context.Background())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	sum := &fakeSummarizer{reply: "Revenue grew."}
	c, dir := newController(t, ex, sum)
	out := c.Run(context.Background(), models.Uploaded(*upload("q3.pdf", buf.Bytes())))
	if out.State != StateRendered {
		t.Fatalf("unexpected outcome: %+v (failure %v)", out, out.Failure)
	}
	if !strings.Contains(sum.lastText, "Quarterly revenue grew") {
		t.Fatalf("extracted text missing, got %q", sum.lastText)
	}
	assertEmptyDir(t, dir)
}

func TestRunDocumentFivePageExcerpt(t *testing.T) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 8)
	for i := 0; i < 5; i++ {
		doc.AddPage()
		doc.Text(10, 20, strings.Repeat("lorem ipsum ", 60))
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("build pdf: %v", err)
	}

	ex, err := extract.NewExtractor(context.Background())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	sum := &fakeSummarizer{reply: "Lorem summary."}
	c, dir := newController(t, ex, sum)
	out := c.RunDocument(context.Background(), upload("five.pdf", buf.Bytes()))
	if out.State != StateRendered {
		t.Fatalf("unexpected outcome: %+v (failure %v)", out, out.Failure)
	}
	if out.Result.TextPages != 5 || out.Result.Pages != 5 {
		t.Fatalf("expected 5 pages with text, got %+v", out.Result)
	}
	if !out.Result.Truncated || !strings.HasSuffix(out.Result.OriginalExcerpt, "...") {
		t.Fatalf("long document excerpt must be truncated for display")
	}
	if len([]rune(out.Result.OriginalExcerpt)) != 2003 {
		t.Fatalf("unexpected excerpt length %d", len([]rune(out.Result.OriginalExcerpt)))
	}
	if len([]rune(sum.lastText)) <= 2000 {
		t.Fatalf("model must receive the full text")
	}
	assertEmptyDir(t, dir)
}

func TestRunTextEngineLostAccessIsUnavailable(t *testing.T) {
	lost := fmt.Errorf("%w: inference api status 401: Invalid credentials", models.ErrUnavailable)
	c, _ := newController(t, &fakeExtractor{}, &fakeSummarizer{err: lost})
	out := c.RunText(context.Background(), "text")
	if out.State != StateRejected || out.Failure.Kind != models.ServiceUnavailable || out.Failure.Message != models.MsgUnavailable {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}
