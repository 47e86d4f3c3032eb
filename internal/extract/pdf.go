package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/ledongthuc/pdf"
)

// Metadata keys set on every page document.
const (
	MetaPage      = "page"
	MetaPageCount = "page_count"
	MetaSourceURI = "source"
)

const (
	pageSeparator = "\n\n"
	pdfExtension  = ".pdf"
)

// PDFParser turns a PDF stream into one document per page that yields text.
// Pages without extractable text (scanned images, blank pages) are skipped.
type PDFParser struct{}

var _ parser.Parser = (*PDFParser)(nil)

// Parse implements parser.Parser. The PDF library panics on some malformed
// inputs; those panics are returned as errors.
func (p *PDFParser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) (docs []*schema.Document, err error) {
	options := parser.GetCommonOptions(&parser.Options{}, opts...)

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("open pdf: empty content")
	}

	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		meta := make(map[string]any, len(options.ExtraMeta)+3)
		for k, v := range options.ExtraMeta {
			meta[k] = v
		}
		meta[MetaPage] = i
		meta[MetaPageCount] = numPages
		if options.URI != "" {
			meta[MetaSourceURI] = options.URI
		}
		docs = append(docs, &schema.Document{
			ID:       fmt.Sprintf("page-%d", i),
			Content:  text,
			MetaData: meta,
		})
	}
	return docs, nil
}
