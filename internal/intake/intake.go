// Package intake reads user-supplied files and decodes images.
package intake

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultLimit is the largest upload accepted, 25 MiB.
	DefaultLimit int64 = 25 << 20
	// DefaultMaxPixels is the largest image decoded, 40 megapixels.
	DefaultMaxPixels int64 = 40_000_000
)

var (
	// ErrTooLarge is returned when the input exceeds the byte or pixel limit.
	ErrTooLarge = errors.New("file exceeds upload limit")
	// ErrDecode is returned when an image-typed file cannot be decoded.
	ErrDecode = errors.New("unable to decode image")
)

// Limits bounds what an upload may cost. Zero fields take the defaults.
type Limits struct {
	Bytes  int64
	Pixels int64
}

func (l Limits) withDefaults() Limits {
	if l.Bytes <= 0 {
		l.Bytes = DefaultLimit
	}
	if l.Pixels <= 0 {
		l.Pixels = DefaultMaxPixels
	}
	return l
}

// Upload is a file selected by the user.
type Upload struct {
	Name  string
	Size  int64
	MIME  string
	Image image.Image // nil unless MIME is an image type and decoding succeeded
}

// IsImage reports whether the upload declares an image MIME type.
func (u *Upload) IsImage() bool {
	return IsImageMIME(u.MIME)
}

// IsImageMIME reports whether mt is an image/* type.
func IsImageMIME(mt string) bool {
	return strings.HasPrefix(mt, "image/")
}

// Read consumes r up to lim.Bytes and returns the upload. declared is the
// client-supplied MIME type, if any. Files that are not images are returned
// without error and with a nil Image; callers decide how to report that.
func Read(name, declared string, r io.Reader, lim Limits) (*Upload, error) {
	lim = lim.withDefaults()

	data, err := io.ReadAll(io.LimitReader(r, lim.Bytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if int64(len(data)) > lim.Bytes {
		return nil, fmt.Errorf("%s: %w (%d MB)", name, ErrTooLarge, lim.Bytes>>20)
	}

	return FromBytes(name, declared, data, lim)
}

// FromBytes builds an upload from an in-memory file. declared is the MIME
// type supplied by the client, if any; sniffed content wins when it
// identifies an image. Images whose header declares more than lim.Pixels
// are rejected with ErrTooLarge before any pixel data is decoded.
func FromBytes(name, declared string, data []byte, lim Limits) (*Upload, error) {
	lim = lim.withDefaults()
	if int64(len(data)) > lim.Bytes {
		return nil, fmt.Errorf("%s: %w (%d MB)", filepath.Base(name), ErrTooLarge, lim.Bytes>>20)
	}

	u := &Upload{
		Name: filepath.Base(name),
		Size: int64(len(data)),
		MIME: DetectMIME(name, declared, data),
	}
	if !u.IsImage() {
		return u, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return u, fmt.Errorf("%s: %w: %v", u.Name, ErrDecode, err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > lim.Pixels {
		return nil, fmt.Errorf("%s: %w (%dx%d exceeds %d pixels)", u.Name, ErrTooLarge, cfg.Width, cfg.Height, lim.Pixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return u, fmt.Errorf("%s: %w: %v", u.Name, ErrDecode, err)
	}
	u.Image = img
	return u, nil
}

// Open reads the file at path.
func Open(path string, lim Limits) (*Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()
	return Read(path, "", f, lim)
}

// DetectMIME picks a media type from the content, then the declared type,
// then the file extension.
func DetectMIME(name, declared string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if IsImageMIME(sniffed) {
		return sniffed
	}
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	if mt, _, err := mime.ParseMediaType(sniffed); err == nil {
		return mt
	}
	return "application/octet-stream"
}
