// Package extract turns downloaded document bytes into plain text.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ziadkadry99/clinrag/internal/config"
)

// Result is the extracted text plus backend information.
type Result struct {
	Text  string
	Pages int
	Info  string
}

// TextExtractor converts raw bytes of the given MIME type into text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*Result, error)
}

// ErrUnsupportedType is returned for content a backend cannot read.
type ErrUnsupportedType struct {
	MimeType string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported content type %q", e.MimeType)
}

// PlainExtractor reads text-like content as UTF-8.
type PlainExtractor struct{}

func (PlainExtractor) Extract(_ context.Context, data []byte, mimeType string) (*Result, error) {
	if !isTextual(mimeType) {
		return nil, &ErrUnsupportedType{MimeType: mimeType}
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("plain extractor: content is not valid UTF-8")
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return &Result{Text: text, Pages: 1, Info: "plain"}, nil
}

func isTextual(mimeType string) bool {
	mt, _, _ := strings.Cut(mimeType, ";")
	mt = strings.TrimSpace(mt)
	return mt == "" || strings.HasPrefix(mt, "text/") || mt == "application/json"
}

// Router sends text content to the plain extractor and everything else to
// the document backend. A nil document backend means binary documents
// cannot be read in this process.
type Router struct {
	Plain    TextExtractor
	Document TextExtractor
}

func (r *Router) Extract(ctx context.Context, data []byte, mimeType string) (*Result, error) {
	if isTextual(mimeType) {
		return r.Plain.Extract(ctx, data, mimeType)
	}
	if r.Document == nil {
		return nil, &ErrUnsupportedType{MimeType: mimeType}
	}
	return r.Document.Extract(ctx, data, mimeType)
}

// NewFromConfig builds the extractor for retrieval.extractor. With
// "documentai" the caller owns the returned closer.
func NewFromConfig(ctx context.Context, cfg config.RetrievalConfig) (TextExtractor, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Extractor {
	case config.ExtractorPlain:
		return &Router{Plain: PlainExtractor{}}, noop, nil
	case config.ExtractorDocumentAI:
		dai, err := NewDocumentAIExtractor(ctx, cfg.DocumentAI)
		if err != nil {
			return nil, nil, err
		}
		return &Router{Plain: PlainExtractor{}, Document: dai}, dai.Close, nil
	default:
		return nil, nil, &config.ConfigurationError{
			Field:  "retrieval.extractor",
			Reason: fmt.Sprintf("unsupported extractor %q", cfg.Extractor),
		}
	}
}
