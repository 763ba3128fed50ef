// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// createTestImage creates a simple test image with the given dimensions.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(width, height)); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestSaveEventImage(t *testing.T) {
	p := NewProcessor(t.TempDir())

	rel, err := p.Save(bytes.NewReader(pngBytes(t, 40, 20)), KindEvent)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(rel, "events/") || !strings.HasSuffix(rel, ".png") {
		t.Errorf("Save() = %q, want events/<uuid>.png", rel)
	}

	w, h, err := p.Dimensions(rel)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 40 || h != 20 {
		t.Errorf("Dimensions() = %dx%d, want 40x20 (small images are not upscaled)", w, h)
	}
}

func TestSaveProfileImageCropsSquare(t *testing.T) {
	p := NewProcessor(t.TempDir())

	rel, err := p.Save(bytes.NewReader(pngBytes(t, 60, 30)), KindProfile)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	w, h, err := p.Dimensions(rel)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != KindProfile.Width || h != KindProfile.Height {
		t.Errorf("Dimensions() = %dx%d, want %dx%d", w, h, KindProfile.Width, KindProfile.Height)
	}
}

func TestSaveRejectsNonImage(t *testing.T) {
	p := NewProcessor(t.TempDir())

	_, err := p.Save(strings.NewReader("not an image at all"), KindEvent)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestSaveRejectsOversized(t *testing.T) {
	p := NewProcessor(t.TempDir())

	_, err := p.Save(bytes.NewReader(make([]byte, MaxUploadSize+1)), KindEvent)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(dir)

	rel, err := p.Save(bytes.NewReader(pngBytes(t, 10, 10)), KindEvent)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := p.Delete(rel); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, rel)); !os.IsNotExist(err) {
		t.Errorf("file still exists after Delete")
	}

	if err := p.Delete(rel); err != nil {
		t.Errorf("Delete of missing file = %v, want nil", err)
	}
	if err := p.Delete("../outside.jpg"); err == nil {
		t.Error("Delete(../outside.jpg) = nil, want error")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg magic bytes", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "jpeg"},
		{"png magic bytes", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "png"},
		{"gif magic bytes", []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61}, "gif"},
		{"unknown", []byte{0x00, 0x01, 0x02, 0x03}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectFormat(tt.data); got != tt.want {
				t.Errorf("detectFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyOrientation(t *testing.T) {
	for orientation := 0; orientation <= 9; orientation++ {
		t.Run(fmt.Sprintf("orientation_%d", orientation), func(t *testing.T) {
			img := createTestImage(10, 6)
			result := applyOrientation(img, orientation)
			if result == nil {
				t.Fatal("applyOrientation returned nil")
			}
			b := result.Bounds()
			rotated := orientation >= 5 && orientation <= 8
			if rotated && (b.Dx() != 6 || b.Dy() != 10) {
				t.Errorf("bounds = %dx%d, want 6x10", b.Dx(), b.Dy())
			}
			if !rotated && (b.Dx() != 10 || b.Dy() != 6) {
				t.Errorf("bounds = %dx%d, want 10x6", b.Dx(), b.Dy())
			}
		})
	}
}
