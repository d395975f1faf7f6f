// Package heatmap draws region labels over the source image.
package heatmap

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"slices"
	"strconv"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/detectoo/detectoo/internal/model"
)

// Overlay colors.
var (
	aiFill     = color.NRGBA{255, 100, 100, 128}
	realFill   = color.NRGBA{50, 200, 100, 77}
	aiStroke   = color.NRGBA{255, 0, 0, 204}
	realStroke = color.NRGBA{0, 150, 0, 204}
	labelColor = color.NRGBA{255, 255, 255, 230}
)

const strokeWidth = 2

// Options controls optional decorations.
type Options struct {
	// Labels prints each region's confidence in its top-left corner.
	Labels bool
}

// Render returns a copy of img, anchored at (0,0), with a translucent fill
// and border for every region: red for AI, green for real.
func Render(img image.Image, regions []model.Region, opts Options) *image.NRGBA {
	dst := imaging.Clone(img)

	for _, r := range regions {
		fill, stroke := realFill, realStroke
		if r.IsAI {
			fill, stroke = aiFill, aiStroke
		}
		rect := r.Rect().Intersect(dst.Bounds())
		if rect.Empty() {
			continue
		}
		draw.Draw(dst, rect, image.NewUniform(fill), image.Point{}, draw.Over)
		strokeRect(dst, rect, stroke)
	}

	if opts.Labels && len(regions) > 0 {
		dst = imaging.Overlay(dst, labels(dst.Bounds(), regions), image.Pt(0, 0), 1.0)
	}
	return dst
}

// strokeRect draws a border of strokeWidth pixels just inside rect.
func strokeRect(dst draw.Image, rect image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	sw := min(strokeWidth, rect.Dx(), rect.Dy())
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+sw),
		image.Rect(rect.Min.X, rect.Max.Y-sw, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y+sw, rect.Min.X+sw, rect.Max.Y-sw),
		image.Rect(rect.Max.X-sw, rect.Min.Y+sw, rect.Max.X, rect.Max.Y-sw),
	}
	for _, e := range edges {
		if !e.Empty() {
			draw.Draw(dst, e, src, image.Point{}, draw.Over)
		}
	}
}

// labels draws confidence figures on a transparent layer the size of bounds.
// Regions too small to hold the text are left unlabeled.
func labels(bounds image.Rectangle, regions []model.Region) *image.NRGBA {
	layer := imaging.New(bounds.Dx(), bounds.Dy(), color.Transparent)
	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()

	d := &font.Drawer{
		Dst:  layer,
		Src:  image.NewUniform(labelColor),
		Face: face,
	}

	for _, r := range regions {
		text := strconv.Itoa(r.Confidence) + "%"
		width := d.MeasureString(text).Ceil()
		if width+2*strokeWidth+2 > r.Width || lineHeight+2*strokeWidth+2 > r.Height {
			continue
		}
		d.Dot = fixed.Point26_6{
			X: fixed.I(r.X + strokeWidth + 2),
			Y: fixed.I(r.Y+strokeWidth+1) + metrics.Ascent,
		}
		d.DrawString(text)
	}
	return layer
}

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding heatmap: %w", err)
	}
	return nil
}

// DataURL returns img as a base64 PNG data URL.
func DataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Memo caches the most recent render. A new render happens only when the
// image reference or the region contents change.
type Memo struct {
	Options Options

	mu      sync.Mutex
	img     image.Image
	regions []model.Region
	out     *image.NRGBA
}

// Get returns the heatmap for img and regions, rendering it if needed.
func (m *Memo) Get(img image.Image, regions []model.Region) *image.NRGBA {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.out != nil && m.img == img && slices.Equal(m.regions, regions) {
		return m.out
	}
	m.out = Render(img, regions, m.Options)
	m.img = img
	m.regions = slices.Clone(regions)
	return m.out
}

// Reset drops the cached render.
func (m *Memo) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.img, m.regions, m.out = nil, nil, nil
}
