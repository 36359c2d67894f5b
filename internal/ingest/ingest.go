// Package ingest turns uploaded files into content the model can summarize.
package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/jpeg"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	MIMEText = "text/plain"
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"

	// RenderScale is applied to the first page of a scanned PDF.
	RenderScale = 2
	// JPEGQuality is used when a rendered page is encoded.
	JPEGQuality = 95
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyDocument       = errors.New("document is empty")
	ErrUnreadableDocument  = errors.New("document could not be read")
)

// File is an uploaded document.
type File struct {
	Name     string
	MIMEType string // as declared by the client, may be empty
	Data     []byte
}

// Result is ready for summarization. Image content is base64 encoded.
type Result struct {
	Name     string
	Content  string
	MIMEType string
}

// IsImage reports whether Content holds base64 image bytes.
func (r Result) IsImage() bool {
	return strings.HasPrefix(r.MIMEType, "image/")
}

// Ingester reads files. Renderer is used only for PDFs without a text layer.
type Ingester struct {
	renderer PageRenderer
	log      *zap.Logger
}

func New(renderer PageRenderer, log *zap.Logger) *Ingester {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingester{renderer: renderer, log: log.Named("ingest")}
}

// Read extracts content from f according to its MIME type.
func (in *Ingester) Read(ctx context.Context, f File) (Result, error) {
	mimeType := DetectMIMEType(f.MIMEType, f.Data)
	res := Result{Name: f.Name, MIMEType: mimeType}

	switch {
	case mimeType == MIMEText:
		res.Content = string(f.Data)
	case strings.HasPrefix(mimeType, "image/"):
		if len(f.Data) > 0 {
			res.Content = base64.StdEncoding.EncodeToString(f.Data)
		}
	case mimeType == MIMEPDF:
		text, err := ExtractPDFText(f.Data)
		if err != nil {
			return Result{}, err
		}
		if strings.TrimSpace(text) != "" {
			res.Content = text
			break
		}
		in.log.Info("pdf has no text layer, rendering first page", zap.String("name", f.Name))
		content, err := in.renderFirstPage(ctx, f.Data)
		if err != nil {
			return Result{}, err
		}
		res.Content = content
		res.MIMEType = MIMEJPEG
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, mimeType)
	}

	if strings.TrimSpace(res.Content) == "" {
		return Result{}, ErrEmptyDocument
	}
	return res, nil
}

func (in *Ingester) renderFirstPage(ctx context.Context, data []byte) (string, error) {
	if in.renderer == nil {
		return "", fmt.Errorf("%w: no page renderer configured", ErrUnreadableDocument)
	}
	img, err := in.renderer.RenderFirstPage(ctx, data, RenderScale)
	if err != nil {
		return "", fmt.Errorf("%w: rendering first page: %v", ErrUnreadableDocument, err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return "", fmt.Errorf("encoding page image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DetectMIMEType returns the declared type without parameters, sniffing the
// content when the client did not send a useful one.
func DetectMIMEType(declared string, data []byte) string {
	if declared == "" || declared == "application/octet-stream" {
		declared = mimetype.Detect(data).String()
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return mediaType
}
