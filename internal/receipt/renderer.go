// Package receipt renders PDF receipts to images so the vision-based
// extractor can read them.
package receipt

import (
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// Renderer converts the first page of a PDF to a JPEG on disk.
type Renderer struct {
	outputDir string
	logger    *zap.Logger
}

// NewRenderer creates a PDF renderer writing into outputDir.
func NewRenderer(outputDir string, logger *zap.Logger) *Renderer {
	return &Renderer{
		outputDir: outputDir,
		logger:    logger,
	}
}

// RenderFirstPage rasterizes page one of the PDF and returns the image
// path. Later pages are ignored; a receipt is a single-page document and
// anything beyond that is noise for extraction.
func (r *Renderer) RenderFirstPage(pdfPath string) (string, error) {
	if _, err := os.Stat(pdfPath); os.IsNotExist(err) {
		return "", fmt.Errorf("PDF file not found: %s", pdfPath)
	}
	if ext := strings.ToLower(filepath.Ext(pdfPath)); ext != ".pdf" {
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	img, err := doc.Image(0)
	if err != nil {
		return "", fmt.Errorf("failed to rasterize page: %w", err)
	}

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	imagePath := filepath.Join(r.outputDir, base+".jpg")
	out, err := os.Create(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: 90}); err != nil {
		os.Remove(imagePath)
		return "", fmt.Errorf("failed to encode page image: %w", err)
	}

	r.logger.Debug("Rendered PDF receipt",
		zap.String("pdf", pdfPath),
		zap.String("image", imagePath),
		zap.Int("pages", doc.NumPage()))
	return imagePath, nil
}
