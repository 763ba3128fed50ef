// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging normalizes uploaded event and profile pictures.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// MaxUploadSize is the largest accepted upload in bytes.
const MaxUploadSize = 5 << 20

// Errors returned for rejected uploads.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("image exceeds maximum upload size")
)

// Kind selects the storage directory and geometry of a stored image.
type Kind struct {
	Dir     string
	Width   int
	Height  int
	Crop    bool
	Quality int
}

// Image kinds.
var (
	// KindEvent is fitted inside 1600x1600 keeping its aspect ratio.
	KindEvent = Kind{Dir: "events", Width: 1600, Height: 1600, Quality: 85}
	// KindProfile is center-cropped to a 400x400 square.
	KindProfile = Kind{Dir: "profiles", Width: 400, Height: 400, Crop: true, Quality: 85}
)

// Processor stores images below an upload directory.
type Processor struct {
	uploadDir string
}

// NewProcessor creates a new image processor.
func NewProcessor(uploadDir string) *Processor {
	return &Processor{
		uploadDir: uploadDir,
	}
}

// UploadDir returns the root directory images are stored in.
func (p *Processor) UploadDir() string {
	return p.uploadDir
}

// Save decodes the image in r, applies its EXIF orientation, resizes it for
// kind and writes it under a random name. It returns the slash-separated
// path relative to the upload directory, e.g. "events/<uuid>.jpg".
func (p *Processor) Save(r io.Reader, kind Kind) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxUploadSize {
		return "", ErrTooLarge
	}

	format := detectFormat(data)
	if format == "" {
		return "", ErrUnsupportedFormat
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))
	img = resize(img, kind)

	// WebP has no pure Go encoder; those uploads are stored as JPEG.
	if format == "webp" {
		format = "jpeg"
	}

	encoded, err := encodeImage(img, format, kind.Quality)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	filename := uuid.New().String() + extension(format)
	if _, err := p.saveImageFile(kind.Dir, filename, encoded); err != nil {
		return "", err
	}
	return kind.Dir + "/" + filename, nil
}

// Delete removes a stored image by its relative path. Missing files are ignored.
func (p *Processor) Delete(relPath string) error {
	if relPath == "" {
		return nil
	}
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("invalid image path %q", relPath)
	}
	if err := os.Remove(filepath.Join(p.uploadDir, clean)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// Dimensions returns the dimensions of a stored image.
func (p *Processor) Dimensions(relPath string) (width, height int, err error) {
	file, err := os.Open(filepath.Join(p.uploadDir, filepath.FromSlash(relPath)))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = file.Close() }()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image config: %w", err)
	}
	return config.Width, config.Height, nil
}

func resize(img image.Image, kind Kind) image.Image {
	if kind.Crop {
		return imaging.Fill(img, kind.Width, kind.Height, imaging.Center, imaging.Lanczos)
	}
	b := img.Bounds()
	if b.Dx() <= kind.Width && b.Dy() <= kind.Height {
		return img
	}
	return imaging.Fit(img, kind.Width, kind.Height, imaging.Lanczos)
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// applyOrientation undoes the camera rotation recorded in EXIF tag values 2-8.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// TIFF is rejected outright (CVE-2023-36308 in disintegration/imaging).
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

func extension(format string) string {
	switch format {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// saveImageFile creates the directory if needed and saves image data to a file.
// The target directory is validated to be within uploadDir.
func (p *Processor) saveImageFile(subDir, filename string, data []byte) (string, error) {
	safeFilename := filepath.Base(filename)
	if safeFilename == "." || safeFilename == ".." || safeFilename == "" {
		return "", fmt.Errorf("invalid filename")
	}

	cleanSubDir := filepath.Clean(subDir)
	if strings.Contains(cleanSubDir, "..") || filepath.IsAbs(cleanSubDir) {
		return "", fmt.Errorf("invalid subdirectory path")
	}

	absBase, err := filepath.Abs(p.uploadDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absTarget := filepath.Join(absBase, cleanSubDir)

	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path traversal detected")
	}

	if err := os.MkdirAll(absTarget, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	filePath := filepath.Join(absTarget, safeFilename)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return filePath, nil
}
