package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// ErrUnsupportedFile is returned by ExtractFile for paths without a .pdf extension.
var ErrUnsupportedFile = errors.New("unsupported file extension")

// Result is the text extracted from one PDF.
type Result struct {
	Text      string
	Pages     int
	TextPages int
}

// Extractor reads PDFs either from memory or from a file on disk.
type Extractor struct {
	parser *PDFParser
	loader *file.FileLoader
}

// NewExtractor wires the PDF parser into an eino file loader. Files with any
// other extension are refused by the fallback parser.
func NewExtractor(ctx context.Context) (*Extractor, error) {
	pdfParser := &PDFParser{}
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers:        map[string]parser.Parser{pdfExtension: pdfParser},
		FallbackParser: rejectParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init pdf parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		Parser: parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &Extractor{parser: pdfParser, loader: loader}, nil
}

// Extract returns the text of an in-memory PDF. It is the entry point for
// callers that hold the upload bytes and need no file on disk, such as
// validating fixtures; request handling goes through ExtractFile so the
// upload copy can be inspected by pdfcpu. On failure the returned Result has
// empty Text and the cause is reported as the error.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*Result, error) {
	docs, err := e.parser.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return &Result{}, err
	}
	return join(docs, 0), nil
}

// ExtractFile loads the PDF at path. The page count comes from pdfcpu when it
// can read the file and from the parser otherwise.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	docs, err := e.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return &Result{}, err
	}
	return join(docs, pageCount(path)), nil
}

// pageCount returns 0 when pdfcpu cannot read the file.
func pageCount(path string) (pages int) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Interface("panic", r).Str("path", path).Msg("pdfcpu page count panicked")
			pages = 0
		}
	}()
	pages, err := api.PageCountFile(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("pdfcpu page count failed")
		return 0
	}
	return pages
}

func join(docs []*schema.Document, pages int) *Result {
	var builder strings.Builder
	res := &Result{Pages: pages}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		builder.WriteString(doc.Content)
		builder.WriteString(pageSeparator)
		res.TextPages++
		if res.Pages == 0 {
			if n, ok := doc.MetaData[MetaPageCount].(int); ok {
				res.Pages = n
			}
		}
	}
	res.Text = strings.TrimSpace(builder.String())
	return res
}

type rejectParser struct{}

func (rejectParser) Parse(_ context.Context, _ io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	options := parser.GetCommonOptions(&parser.Options{}, opts...)
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, options.URI)
}
