// Package sampler splits an image into fixed-size tiles and labels each one
// with the pixel-uniformity heuristic.
package sampler

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/detectoo/detectoo/internal/chance"
	"github.com/detectoo/detectoo/internal/model"
)

// Defaults for the tile grid and the classification threshold.
const (
	DefaultTileSize  = 80
	DefaultThreshold = 20.0
)

// TileReader returns the non-premultiplied pixels of one tile.
type TileReader interface {
	ReadTile(r image.Rectangle) (*image.NRGBA, error)
}

// Sampler labels image tiles. The zero value is usable and falls back to
// the defaults and the process-wide random source.
type Sampler struct {
	TileSize  int
	Threshold float64
	Rand      chance.Source
	Logger    *slog.Logger
}

// New returns a Sampler with the default grid and threshold.
func New(src chance.Source, logger *slog.Logger) *Sampler {
	return &Sampler{
		TileSize:  DefaultTileSize,
		Threshold: DefaultThreshold,
		Rand:      src,
		Logger:    logger,
	}
}

// Sample tiles img and returns one region per readable tile in raster order.
func (s *Sampler) Sample(img image.Image) []model.Region {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	return s.SampleReader(NewImageReader(img), b.Dx(), b.Dy())
}

// SampleReader tiles a w×h image served by r. Tiles that fail to read are
// logged and left out of the result.
func (s *Sampler) SampleReader(r TileReader, w, h int) []model.Region {
	tile := s.tileSize()
	var regions []model.Region
	id := 0

	for y := 0; y < h; y += tile {
		for x := 0; x < w; x += tile {
			tw := min(tile, w-x)
			th := min(tile, h-y)
			rect := image.Rect(x, y, x+tw, y+th)

			px, err := r.ReadTile(rect)
			if err != nil {
				s.logger().Warn("region processing error", "x", x, "y", y, "error", err)
				continue
			}

			isAI := Uniformity(px) < s.threshold()
			regions = append(regions, model.Region{
				ID:         id,
				X:          x,
				Y:          y,
				Width:      tw,
				Height:     th,
				IsAI:       isAI,
				Confidence: s.confidence(isAI),
			})
			id++
		}
	}

	return regions
}

// confidence draws a score in [70,100) for AI tiles and [30,70) otherwise.
func (s *Sampler) confidence(isAI bool) int {
	r := s.source().Float64()
	if isAI {
		return 70 + int(r*30)
	}
	return 30 + int(r*40)
}

// Uniformity is the mean over all pixels of |R-G| + |G-B|.
// It returns 0 for an empty tile.
func Uniformity(px *image.NRGBA) float64 {
	b := px.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}

	var sum int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := px.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl := int(px.Pix[i]), int(px.Pix[i+1]), int(px.Pix[i+2])
			sum += abs(r-g) + abs(g-bl)
			i += 4
		}
	}
	return float64(sum) / float64(n)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (s *Sampler) tileSize() int {
	if s.TileSize <= 0 {
		return DefaultTileSize
	}
	return s.TileSize
}

func (s *Sampler) threshold() float64 {
	if s.Threshold <= 0 {
		return DefaultThreshold
	}
	return s.Threshold
}

func (s *Sampler) source() chance.Source {
	if s.Rand == nil {
		return chance.Default()
	}
	return s.Rand
}

func (s *Sampler) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// ImageReader serves tiles from a decoded image.
type ImageReader struct {
	px *image.NRGBA
}

// NewImageReader converts img to non-premultiplied RGBA anchored at (0,0).
func NewImageReader(img image.Image) *ImageReader {
	return &ImageReader{px: imaging.Clone(img)}
}

// ReadTile returns the sub-image for rect. Rectangles that are empty or
// reach outside the image are rejected.
func (r *ImageReader) ReadTile(rect image.Rectangle) (*image.NRGBA, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("empty tile %v", rect)
	}
	if !rect.In(r.px.Bounds()) {
		return nil, fmt.Errorf("tile %v outside image bounds %v", rect, r.px.Bounds())
	}
	return r.px.SubImage(rect).(*image.NRGBA), nil
}
