package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PageRenderer rasterizes the first page of a PDF. scale 1 is 72 DPI.
type PageRenderer interface {
	RenderFirstPage(ctx context.Context, pdf []byte, scale int) (image.Image, error)
}

// PageRendererFunc adapts a function to the PageRenderer interface.
type PageRendererFunc func(ctx context.Context, pdf []byte, scale int) (image.Image, error)

func (f PageRendererFunc) RenderFirstPage(ctx context.Context, pdf []byte, scale int) (image.Image, error) {
	return f(ctx, pdf, scale)
}

// PopplerRenderer shells out to pdftoppm.
type PopplerRenderer struct {
	Path string // pdftoppm binary, looked up in PATH when empty
}

func (r PopplerRenderer) RenderFirstPage(ctx context.Context, pdf []byte, scale int) (image.Image, error) {
	bin := r.Path
	if bin == "" {
		bin = "pdftoppm"
	}

	dir, err := os.MkdirTemp("", "studybuddy-render-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input, err := saveTempFile(dir, pdf, "document.pdf")
	if err != nil {
		return nil, err
	}
	outPrefix := filepath.Join(dir, "page")

	dpi := strconv.Itoa(72 * scale)
	cmd := exec.CommandContext(ctx, bin, "-f", "1", "-l", "1", "-r", dpi, "-png", "-singlefile", input, outPrefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", bin, err, strings.TrimSpace(stderr.String()))
	}

	f, err := os.Open(outPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("failed to open rendered page: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered page: %w", err)
	}
	return img, nil
}

// saveTempFile saves data under dir with a unique name
func saveTempFile(dir string, data []byte, filename string) (string, error) {
	path := filepath.Join(dir, uuid.New().String()+"_"+filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save temporary file: %w", err)
	}
	return path, nil
}
