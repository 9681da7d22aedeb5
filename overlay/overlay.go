// Package overlay draws a small diagnostic panel onto a rendered frame.
//
// The overlay is a development aid. Its layout and wording are not a stable
// contract.
package overlay

import (
	"image"
	"image/color"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/vizctx/perf"
	"github.com/gogpu/vizctx/render"
)

const (
	margin  = 4
	padding = 4
)

var (
	// Background is the panel fill.
	Background = color.RGBA{0, 0, 0, 160}

	// Foreground is the text color.
	Foreground = color.RGBA{0x7c, 0xfc, 0x00, 0xff}
)

// Info is what the panel shows.
type Info struct {
	FPS        int
	FrameTime  time.Duration
	Tier       string
	Geometries int
	Textures   int
	DrawCalls  int
	Triangles  int
}

// FromFrame collects the panel values of one frame.
func FromFrame(fi render.FrameInfo, mem perf.MemoryCounters) Info {
	return Info{
		FPS:        fi.FPS,
		FrameTime:  fi.FrameTime,
		Tier:       fi.Tier.String(),
		Geometries: mem.Geometries,
		Textures:   mem.Textures,
		DrawCalls:  mem.DrawCalls,
		Triangles:  mem.Triangles,
	}
}

// Lines formats info as the panel text, one entry per row.
func Lines(info Info) []string {
	p := message.NewPrinter(language.English)
	ms := float64(info.FrameTime) / float64(time.Millisecond)
	return []string{
		p.Sprintf("%d fps  %.1f ms", info.FPS, ms),
		p.Sprintf("tier %s", info.Tier),
		p.Sprintf("geo %d  tex %d", info.Geometries, info.Textures),
		p.Sprintf("calls %d  tris %d", info.DrawCalls, info.Triangles),
	}
}

// Draw paints the panel into the top-left corner of dst and returns the
// panel bounds. Text that does not fit is clipped.
func Draw(dst *image.RGBA, info Info) image.Rectangle {
	face := basicfont.Face7x13
	lines := Lines(info)

	d := &font.Drawer{Dst: dst, Src: image.NewUniform(Foreground), Face: face}
	width := 0
	for _, l := range lines {
		width = max(width, d.MeasureString(l).Ceil())
	}
	lineHeight := face.Metrics().Height.Ceil()

	origin := dst.Bounds().Min.Add(image.Pt(margin, margin))
	panel := image.Rectangle{
		Min: origin,
		Max: origin.Add(image.Pt(width+2*padding, len(lines)*lineHeight+2*padding)),
	}.Intersect(dst.Bounds())
	if panel.Empty() {
		return panel
	}
	xdraw.Draw(dst, panel, image.NewUniform(Background), image.Point{}, xdraw.Over)

	ascent := face.Metrics().Ascent.Ceil()
	for i, l := range lines {
		d.Dot = fixed.P(origin.X+padding, origin.Y+padding+ascent+i*lineHeight)
		d.DrawString(l)
	}
	return panel
}
