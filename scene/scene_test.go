package scene

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestNodeTree(t *testing.T) {
	root := NewNode("root")
	a := NewNode("a")
	b := NewNode("b")
	root.AddChild(a)
	a.AddChild(b)

	if b.Parent() != a || len(root.Children()) != 1 {
		t.Fatal("AddChild did not link nodes")
	}
	if root.Find("b") != b {
		t.Error("Find(b) failed")
	}
	if root.Find("missing") != nil {
		t.Error("Find(missing) should be nil")
	}

	root.AddChild(b) // reparent
	if b.Parent() != root || len(a.Children()) != 0 || len(root.Children()) != 2 {
		t.Error("AddChild should detach from the previous parent")
	}

	c := NewNode("c")
	if !root.ReplaceChild(a, c) {
		t.Fatal("ReplaceChild(a, c) = false")
	}
	if a.Parent() != nil || c.Parent() != root || root.Children()[0] != c {
		t.Error("ReplaceChild did not swap in place")
	}
	if root.RemoveChild(a) {
		t.Error("RemoveChild of a detached node should be false")
	}
}

func TestWorldMatrix(t *testing.T) {
	root := NewNode("root")
	root.Transform.Position = mgl32.Vec3{1, 0, 0}
	child := NewNode("child")
	child.Transform.Position = mgl32.Vec3{0, 2, 0}
	root.AddChild(child)

	p := child.WorldMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !approx(p[0], 1) || !approx(p[1], 2) || !approx(p[2], 0) {
		t.Errorf("world origin = %v, want (1,2,0)", p)
	}
}

func TestApplyIsPure(t *testing.T) {
	base := IdentityTransform()
	base.Position = mgl32.Vec3{0, 1, 0}

	tests := []struct {
		name  string
		anim  Animation
		check func(Transform) bool
	}{
		{"rotate", Rotate{Speed: 2}, func(tr Transform) bool { return approx(tr.Rotation[1], 3) }},
		{"float", Float{Speed: math.Pi, Amplitude: 0.5}, func(tr Transform) bool {
			return approx(tr.Position[1], 1+float32(math.Sin(1.5*math.Pi)*0.5))
		}},
		{"pulse", Pulse{Speed: math.Pi, Amplitude: 0.1}, func(tr Transform) bool {
			return approx(tr.Scale[0], 1+float32(math.Sin(1.5*math.Pi)*0.1))
		}},
		{"nil", nil, func(tr Transform) bool { return tr == base }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := Apply(tt.anim, base, 1.5)
			second := Apply(tt.anim, base, 1.5)
			if first != second {
				t.Errorf("Apply not deterministic: %v != %v", first, second)
			}
			if !tt.check(first) {
				t.Errorf("Apply() = %+v", first)
			}
		})
	}
}

func TestAnimateUsesBase(t *testing.T) {
	root := NewNode("root")
	spin := NewNode("spin")
	spin.Animation = Rotate{Speed: 1}
	root.AddChild(spin)

	if n := Animate(root, 2); n != 1 {
		t.Fatalf("Animate() = %d, want 1", n)
	}
	Animate(root, 2)
	if !approx(spin.Transform.Rotation[1], 2) {
		t.Errorf("rotation = %v, want 2 (no accumulation)", spin.Transform.Rotation[1])
	}
}

func TestDisposeTreeIdempotent(t *testing.T) {
	root := NewNode("root")
	shared := &Material{Name: "shared"}
	root.AddChild(NewMeshNode("a", &Mesh{Geometry: NewBox(1, 1, 1), Material: shared}))
	root.AddChild(NewMeshNode("b", &Mesh{Geometry: NewCylinder(1, 2, 8), Material: shared}))

	got := DisposeTree(root)
	want := DisposeStats{Geometries: 2, Materials: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DisposeTree() mismatch (-want +got):\n%s", diff)
	}
	if again := DisposeTree(root); again != (DisposeStats{}) {
		t.Errorf("second DisposeTree() = %+v, want zero", again)
	}
	if !shared.Disposed() || !root.Find("a").Mesh.Geometry.Disposed() {
		t.Error("resources not marked disposed")
	}
}

func TestPrimitives(t *testing.T) {
	tests := []struct {
		name      string
		g         *Geometry
		triangles int
		topology  Topology
	}{
		{"box", NewBox(1, 2, 3), 12, Triangles},
		{"wirebox", NewWireBox(1, 1, 1), 0, Lines},
		{"cylinder", NewCylinder(1, 2, 16), 64, Triangles},
		{"plane", NewPlane(2, 2), 2, Triangles},
		{"grid", NewGrid(10, 10), 0, Lines},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.TriangleCount(); got != tt.triangles {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.triangles)
			}
			if tt.g.Topology != tt.topology {
				t.Errorf("Topology = %v, want %v", tt.g.Topology, tt.topology)
			}
		})
	}

	lo, hi := NewBox(1, 2, 3).Bounds()
	if lo != (mgl32.Vec3{-0.5, -1, -1.5}) || hi != (mgl32.Vec3{0.5, 1, 1.5}) {
		t.Errorf("Bounds() = %v, %v", lo, hi)
	}
}

func TestParticlesLiveInPlace(t *testing.T) {
	p := NewParticles(50, mgl32.Vec3{-1, 0, -1}, mgl32.Vec3{1, 2, 1}, 7)
	buf := p.Geometry.Positions
	for i := 0; i < 600; i++ {
		p.Step(1.0 / 60)
	}
	if &p.Geometry.Positions[0] != &buf[0] {
		t.Error("live positions must be updated in place")
	}
	for i := 0; i < p.Geometry.VertexCount(); i++ {
		if y := p.Geometry.Vertex(i)[1]; y < 0 || y > 2 {
			t.Fatalf("particle %d y = %v escaped the box", i, y)
		}
	}

	q := NewParticles(50, mgl32.Vec3{-1, 0, -1}, mgl32.Vec3{1, 2, 1}, 7)
	if q.Geometry.Positions[0] != NewParticles(50, mgl32.Vec3{-1, 0, -1}, mgl32.Vec3{1, 2, 1}, 7).Geometry.Positions[0] {
		t.Error("same seed should give same particles")
	}
}

func TestStepLive(t *testing.T) {
	root := NewNode("root")
	p := NewParticles(4, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 1)
	n := NewMeshNode("bubbles", &Mesh{Geometry: p.Geometry})
	n.Live = p
	root.AddChild(n)
	if got := StepLive(root, 0.1); got != 1 {
		t.Errorf("StepLive() = %d, want 1", got)
	}
}

func TestPick(t *testing.T) {
	root := NewNode("root")
	cell := NewNode("cell")
	cell.Component = "anode"
	box := NewMeshNode("anode-mesh", &Mesh{Geometry: NewBox(1, 1, 1)})
	cell.AddChild(box)
	root.AddChild(cell)

	far := NewMeshNode("far", &Mesh{Geometry: NewBox(1, 1, 1)})
	far.Transform.Position = mgl32.Vec3{0, 0, -10}
	far.Component = "cathode"
	root.AddChild(far)

	cam := NewCamera(mgl32.Vec3{0, 0, 5}, 1)

	got, ok := Pick(root, cam, 0, 0)
	if !ok || got != box {
		t.Fatalf("Pick(center) = %v, %v; want anode mesh", got, ok)
	}
	if c := ComponentOf(got); c != "anode" {
		t.Errorf("ComponentOf() = %q, want anode", c)
	}
	if _, ok := Pick(root, cam, 0.95, 0.95); ok {
		t.Error("Pick(corner) should miss")
	}

	cell.Visible = false
	got, ok = Pick(root, cam, 0, 0)
	if !ok || got != far {
		t.Errorf("Pick with hidden cell = %v, %v; want far box", got, ok)
	}
}

func TestOrbitControls(t *testing.T) {
	cam := NewCamera(mgl32.Vec3{0, 0, 10}, 1)
	o := NewOrbitControls(cam)
	if math.Abs(o.Radius()-10) > 1e-4 {
		t.Fatalf("Radius() = %v, want 10", o.Radius())
	}

	o.AutoRotate = true
	o.RotationSpeed = 1
	o.Update(0.5)
	if math.Abs(o.Azimuth()-0.5) > 1e-6 {
		t.Errorf("Azimuth() = %v, want 0.5", o.Azimuth())
	}
	if d := cam.Position.Sub(cam.Target).Len(); !approx(d, 10) {
		t.Errorf("camera distance = %v, want 10", d)
	}

	o.Enabled = false
	o.Zoom(0.5)
	if math.Abs(o.Radius()-10) > 1e-4 {
		t.Error("Zoom should be ignored when disabled")
	}
	o.Enabled = true
	o.Zoom(0.01)
	if o.Radius() != o.MinRadius {
		t.Errorf("Radius() = %v, want clamp to %v", o.Radius(), o.MinRadius)
	}
	o.Rotate(0, 10)
	o.Update(0)
	if o.Elevation() > maxElevation {
		t.Errorf("Elevation() = %v exceeds limit", o.Elevation())
	}
}

func TestCount(t *testing.T) {
	root := NewNode("root")
	root.AddChild(NewMeshNode("box", &Mesh{Geometry: NewBox(1, 1, 1), Material: &Material{}}))
	hidden := NewMeshNode("hidden", &Mesh{Geometry: NewBox(1, 1, 1)})
	hidden.Visible = false
	root.AddChild(hidden)

	want := Stats{Nodes: 2, Geometries: 1, Materials: 1, DrawCalls: 1, Triangles: 12}
	if diff := cmp.Diff(want, Count(root)); diff != "" {
		t.Errorf("Count() mismatch (-want +got):\n%s", diff)
	}
}
