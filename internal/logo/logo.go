// Package logo downscales channel logo images to a bounded size so catalog
// posters stay lightweight.
package logo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

// Thumbnailer fetches logo images and writes downscaled copies.
type Thumbnailer struct {
	Client      *http.Client
	OutputDir   string
	MaxSize     int
	Format      string
	JPEGQuality int
	MaxBodySize int64
}

// NewThumbnailer applies the thumbnailer defaults.
func NewThumbnailer(outputDir string) *Thumbnailer {
	return &Thumbnailer{
		Client:      &http.Client{Timeout: 15 * time.Second},
		OutputDir:   outputDir,
		MaxSize:     256,
		Format:      "jpeg",
		JPEGQuality: 80,
		MaxBodySize: 8 << 20,
	}
}

// Fetch downloads a logo and writes its thumbnail under the output directory,
// named after the given channel id. It returns the written file path.
func (t *Thumbnailer) Fetch(ctx context.Context, channelID, logoURL string) (string, error) {
	if channelID == "" || logoURL == "" {
		return "", errors.New("channel id and logo url are required")
	}
	if t.MaxSize < 64 || t.MaxSize > 1024 {
		return "", errors.New("max thumbnail size must be between 64 and 1024")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logoURL, nil)
	if err != nil {
		return "", fmt.Errorf("build logo request: %w", err)
	}

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch logo: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch logo: unexpected status %d", resp.StatusCode)
	}

	limit := t.MaxBodySize
	if limit <= 0 {
		limit = 8 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", fmt.Errorf("read logo: %w", err)
	}

	if err := os.MkdirAll(t.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create logo directory: %w", err)
	}

	outPath := filepath.Join(t.OutputDir, safeName(channelID)+"."+extFor(t.Format))
	if err := t.writeThumbnail(bytes.NewReader(data), outPath); err != nil {
		return "", fmt.Errorf("thumbnail %s: %w", channelID, err)
	}
	return outPath, nil
}

func (t *Thumbnailer) writeThumbnail(r io.Reader, outPath string) error {
	srcImg, _, err := image.Decode(r)
	if err != nil {
		return err
	}

	bounds := srcImg.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return errors.New("invalid image dimensions")
	}

	scale := float64(t.MaxSize) / float64(max(width, height))
	if scale > 1 {
		scale = 1
	}
	newW := max(int(float64(width)*scale), 1)
	newH := max(int(float64(height)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), srcImg, bounds, draw.Over, nil)

	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close() // nolint:errcheck

	return t.encode(outFile, dst)
}

func (t *Thumbnailer) encode(w io.Writer, img image.Image) error {
	switch strings.ToLower(t.Format) {
	case "png":
		return png.Encode(w, img)
	case "jpeg", "jpg", "":
		q := min(max(t.JPEGQuality, 1), 100)
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	default:
		return fmt.Errorf("unsupported format: %s", t.Format)
	}
}

func extFor(format string) string {
	if strings.ToLower(format) == "png" {
		return "png"
	}
	return "jpg"
}

var nameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

func safeName(id string) string {
	return nameReplacer.Replace(id)
}
