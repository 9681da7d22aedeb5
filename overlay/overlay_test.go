package overlay

import (
	"image"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/vizctx/perf"
	"github.com/gogpu/vizctx/quality"
	"github.com/gogpu/vizctx/render"
)

func TestLines(t *testing.T) {
	info := Info{
		FPS:        58,
		FrameTime:  16500 * time.Microsecond,
		Tier:       "medium",
		Geometries: 12,
		Textures:   3,
		DrawCalls:  24,
		Triangles:  12345,
	}
	want := []string{
		"58 fps  16.5 ms",
		"tier medium",
		"geo 12  tex 3",
		"calls 24  tris 12,345",
	}
	if diff := cmp.Diff(want, Lines(info)); diff != "" {
		t.Errorf("Lines() mismatch (-want +got):\n%s", diff)
	}
}

func TestFromFrame(t *testing.T) {
	fi := render.FrameInfo{FPS: 30, FrameTime: 33 * time.Millisecond, Tier: quality.Low}
	mem := perf.MemoryCounters{Geometries: 5, Textures: 2, DrawCalls: 7, Triangles: 99}
	want := Info{FPS: 30, FrameTime: 33 * time.Millisecond, Tier: "low",
		Geometries: 5, Textures: 2, DrawCalls: 7, Triangles: 99}
	if diff := cmp.Diff(want, FromFrame(fi, mem)); diff != "" {
		t.Errorf("FromFrame() mismatch (-want +got):\n%s", diff)
	}
}

func TestDrawPaintsPanel(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 320, 200))
	r := Draw(dst, Info{FPS: 60, Tier: "high"})

	if r.Empty() || r.Min != image.Pt(margin, margin) {
		t.Fatalf("panel = %v", r)
	}
	if got := dst.RGBAAt(r.Min.X, r.Min.Y); got.A == 0 {
		t.Error("panel background not drawn")
	}
	if got := dst.RGBAAt(r.Max.X+1, r.Max.Y+1); got.A != 0 {
		t.Errorf("pixel outside panel touched: %v", got)
	}

	text := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if c := dst.RGBAAt(x, y); c.G > 200 {
				text++
			}
		}
	}
	if text == 0 {
		t.Error("no text pixels drawn")
	}
}

func TestDrawClipsToSmallFrame(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 20, 10))
	r := Draw(dst, Info{})
	if !r.In(dst.Bounds()) {
		t.Errorf("panel %v exceeds frame %v", r, dst.Bounds())
	}

	tiny := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if r := Draw(tiny, Info{}); !r.Empty() {
		t.Errorf("panel on 2x2 frame = %v, want empty", r)
	}
}
