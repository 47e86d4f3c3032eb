package models

import (
	"path/filepath"
	"strings"
)

// Mode tells which of the two input modes produced an InputDocument.
type Mode string

const (
	ModeText     Mode = "text"
	ModeDocument Mode = "document"
)

// UploadedFile is a PDF received from the document form.
type UploadedFile struct {
	Data        []byte `json:"-"`
	Size        int64  `json:"size"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// HasPDFExtension reports whether the client-side file name ends in .pdf.
func (f UploadedFile) HasPDFExtension() bool {
	return strings.EqualFold(filepath.Ext(f.Filename), ".pdf")
}

// InputDocument is either raw text or an uploaded file.
type InputDocument struct {
	Mode Mode
	Text string
	File *UploadedFile
}

// RawText wraps pasted text.
func RawText(text string) InputDocument {
	return InputDocument{Mode: ModeText, Text: text}
}

// Uploaded wraps an uploaded file.
func Uploaded(file UploadedFile) InputDocument {
	return InputDocument{Mode: ModeDocument, File: &file}
}
