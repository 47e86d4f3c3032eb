package models

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a request ended without a summary.
type FailureKind string

const (
	InputRejected      FailureKind = "input_rejected"
	ExtractionFailed   FailureKind = "extraction_failed"
	ServiceUnavailable FailureKind = "service_unavailable"
	InferenceFailed    FailureKind = "inference_failed"
	AssetLoadFailed    FailureKind = "asset_load_failed"
)

var (
	ErrEmptyText       = errors.New("text is empty")
	ErrNoFile          = errors.New("no file uploaded")
	ErrFileTooLarge    = errors.New("file exceeds upload limit")
	ErrUnsupportedType = errors.New("file is not a PDF")
	ErrNoText          = errors.New("no extractable text")
	ErrUnavailable     = errors.New("summarizer unavailable")
	ErrBusy            = errors.New("summarizer busy")
)

// User-facing messages.
const (
	MsgEmptyText       = "Please enter some text to summarize"
	MsgNoFile          = "Please choose a PDF document to summarize"
	MsgFileTooLarge    = "Please upload PDFs smaller than 10MB"
	MsgUnsupportedType = "Only PDF documents are supported"
	MsgUnavailable     = "Summarization engine not available"
	MsgNoText          = "No text could be extracted from the document"
	MsgBusy            = "Summarization engine is busy, please retry"
)

// Failure is the terminal value of a request that did not produce a summary.
// Warning marks failures shown as a warning rather than an error.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Warning bool        `json:"warning"`
	Err     error       `json:"-"`
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// NewFailure builds a Failure with the given cause.
func NewFailure(kind FailureKind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

// EmptyText is the warning shown for blank text input.
func EmptyText() *Failure {
	return &Failure{Kind: InputRejected, Message: MsgEmptyText, Warning: true, Err: ErrEmptyText}
}

// NoFile is the warning shown when the document form is submitted without a file.
func NoFile() *Failure {
	return &Failure{Kind: InputRejected, Message: MsgNoFile, Warning: true, Err: ErrNoFile}
}

// FileTooLarge rejects uploads above the size limit.
func FileTooLarge() *Failure {
	return NewFailure(InputRejected, MsgFileTooLarge, ErrFileTooLarge)
}

// UnsupportedType rejects non-PDF uploads.
func UnsupportedType() *Failure {
	return NewFailure(InputRejected, MsgUnsupportedType, ErrUnsupportedType)
}

// Unavailable is reported when the summarizer failed to initialize.
func Unavailable() *Failure {
	return NewFailure(ServiceUnavailable, MsgUnavailable, ErrUnavailable)
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
