package intake

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Gray{Y: 128})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadPNG(t *testing.T) {
	data := pngBytes(t, 120, 90)
	u, err := Read("photo.png", "", bytes.NewReader(data), Limits{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if u.MIME != "image/png" {
		t.Errorf("MIME = %q, want image/png", u.MIME)
	}
	if u.Image == nil {
		t.Fatal("expected decoded image")
	}
	if b := u.Image.Bounds(); b.Dx() != 120 || b.Dy() != 90 {
		t.Errorf("bounds = %v", b)
	}
	if u.Size != int64(len(data)) {
		t.Errorf("size = %d, want %d", u.Size, len(data))
	}
}

func TestReadTextFile(t *testing.T) {
	u, err := Read("notes.txt", "", strings.NewReader("just some notes\n"), Limits{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if u.IsImage() {
		t.Errorf("text file reported as image: %q", u.MIME)
	}
	if u.Image != nil {
		t.Error("text file should not decode")
	}
}

func TestReadCorruptImage(t *testing.T) {
	data := pngBytes(t, 10, 10)[:20]
	u, err := Read("broken.png", "", bytes.NewReader(data), Limits{})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if u == nil || !u.IsImage() {
		t.Errorf("expected image-typed upload alongside the error, got %+v", u)
	}
}

func TestReadTooLarge(t *testing.T) {
	_, err := Read("big.png", "", bytes.NewReader(make([]byte, 101)), Limits{Bytes: 100})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	_, err = Read("exact.bin", "", bytes.NewReader(make([]byte, 100)), Limits{Bytes: 100})
	if err != nil {
		t.Fatalf("input at the limit should be accepted: %v", err)
	}
}

// pngHeader returns a grayscale PNG signature and IHDR chunk declaring
// w x h pixels, with no image data after it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 17)
	copy(ihdr, "IHDR")
	binary.BigEndian.PutUint32(ihdr[4:], w)
	binary.BigEndian.PutUint32(ihdr[8:], h)
	ihdr[12] = 8 // 8-bit grayscale

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr))
	return buf.Bytes()
}

func TestFromBytesRejectsHugeDimensions(t *testing.T) {
	data := pngHeader(65535, 65535)
	u, err := FromBytes("bomb.png", "", data, Limits{})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if u != nil {
		t.Errorf("expected no upload, got %+v", u)
	}
	if !strings.Contains(err.Error(), "65535x65535") {
		t.Errorf("error should name the dimensions: %v", err)
	}
}

func TestReadPixelLimit(t *testing.T) {
	data := pngBytes(t, 20, 20)

	_, err := Read("wide.png", "", bytes.NewReader(data), Limits{Pixels: 399})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge over the pixel limit, got %v", err)
	}

	u, err := Read("fits.png", "", bytes.NewReader(data), Limits{Pixels: 400})
	if err != nil || u.Image == nil {
		t.Fatalf("image at the pixel limit should decode: %v", err)
	}
}

func TestFromBytesByteLimit(t *testing.T) {
	_, err := FromBytes("big.bin", "", make([]byte, 11), Limits{Bytes: 10})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	if err := os.WriteFile(path, pngBytes(t, 5, 5), 0o644); err != nil {
		t.Fatal(err)
	}
	u, err := Open(path, Limits{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if u.Name != "img.png" {
		t.Errorf("name = %q, want base name", u.Name)
	}

	if _, err := Open(filepath.Join(dir, "missing.png"), Limits{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		data     []byte
		want     string
	}{
		{"a.bin", "", pngBytes(t, 1, 1), "image/png"},
		{"a.txt", "", []byte("hello"), "text/plain"},
		{"a", "image/webp", []byte("RIFF????"), "image/webp"},
		{"a.gif", "", []byte("not really"), "image/gif"},
		{"a", "", []byte{0x00, 0x01, 0x02}, "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := DetectMIME(tt.name, tt.declared, tt.data); got != tt.want {
			t.Errorf("DetectMIME(%q, %q) = %q, want %q", tt.name, tt.declared, got, tt.want)
		}
	}
}
