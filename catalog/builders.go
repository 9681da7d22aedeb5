package catalog

import (
	"image/color"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/vizctx/scene"
)

// Node names and components shared by the builders.
const (
	housingName = "housing"

	ComponentChamber     = "chamber"
	ComponentAnode       = "anode"
	ComponentCathode     = "cathode"
	ComponentMembrane    = "membrane"
	ComponentElectrolyte = "electrolyte"
	ComponentInlet       = "inlet"
	ComponentOutlet      = "outlet"
)

var (
	anodeColor    = color.RGBA{R: 40, G: 40, B: 44, A: 255}
	cathodeColor  = color.RGBA{R: 184, G: 115, B: 51, A: 255}
	membraneColor = color.RGBA{R: 230, G: 210, B: 120, A: 255}
	bubbleColor   = color.RGBA{R: 220, G: 240, B: 255, A: 255}
	pipeColor     = color.RGBA{R: 150, G: 155, B: 160, A: 255}
)

func builtins() []Descriptor {
	return []Descriptor{
		{
			ID:               SingleChamber,
			DisplayName:      "Single-chamber cell",
			Build:            buildSingleChamber,
			Material:         MaterialConfig{Color: color.RGBA{R: 120, G: 180, B: 230, A: 255}, Opacity: 0.35},
			InitialTransform: scene.IdentityTransform(),
			Animation:        scene.Rotate{Speed: 0.2},
		},
		{
			ID:               DualChamber,
			DisplayName:      "Dual-chamber cell",
			Build:            buildDualChamber,
			Material:         MaterialConfig{Color: color.RGBA{R: 110, G: 200, B: 190, A: 255}, Opacity: 0.35},
			InitialTransform: scene.IdentityTransform(),
		},
		{
			ID:               Stacked,
			DisplayName:      "Stacked cell",
			Build:            buildStacked,
			Material:         MaterialConfig{Color: color.RGBA{R: 170, G: 150, B: 220, A: 255}, Opacity: 0.4},
			InitialTransform: scene.IdentityTransform(),
			Animation:        scene.Float{Speed: 1, Amplitude: 0.05},
		},
		{
			ID:               Tubular,
			DisplayName:      "Tubular cell",
			Build:            buildTubular,
			Material:         MaterialConfig{Color: color.RGBA{R: 140, G: 200, B: 140, A: 255}, Opacity: 0.3},
			InitialTransform: scene.IdentityTransform(),
			Animation:        scene.Rotate{Speed: 0.3},
		},
		{
			ID:               FlowCell,
			DisplayName:      "Flow cell",
			Build:            buildFlowCell,
			Material:         MaterialConfig{Color: color.RGBA{R: 230, G: 170, B: 110, A: 255}, Opacity: 0.35},
			InitialTransform: scene.IdentityTransform(),
			Animation:        scene.Pulse{Speed: 2, Amplitude: 0.02},
		},
	}
}

func meshNode(name, component string, g *scene.Geometry, c color.RGBA, opacity float32) *scene.Node {
	n := scene.NewMeshNode(name, &scene.Mesh{
		Geometry: g,
		Material: &scene.Material{Name: name, Color: c, Opacity: opacity},
	})
	n.Component = component
	return n
}

func at(n *scene.Node, x, y, z float32) *scene.Node {
	t := scene.IdentityTransform()
	t.Position = mgl32.Vec3{x, y, z}
	n.SetTransform(t)
	return n
}

func housing(g *scene.Geometry) *scene.Node {
	// Material is replaced by the descriptor material after the build.
	return meshNode(housingName, ComponentChamber, g, color.RGBA{A: 255}, 1)
}

// bubbles adds a live particle cloud filling the box [lo, hi].
func bubbles(parent *scene.Node, count int, lo, hi mgl32.Vec3, seed uint64) {
	if count <= 0 {
		return
	}
	p := scene.NewParticles(count, lo, hi, seed)
	n := scene.NewMeshNode("bubbles", &scene.Mesh{
		Geometry: p.Geometry,
		Material: &scene.Material{Name: "bubbles", Color: bubbleColor, Opacity: 0.8, Emissive: true},
	})
	n.Component = ComponentElectrolyte
	n.Live = p
	parent.AddChild(n)
}

func electrode(name, component string, c color.RGBA, h, d float32) *scene.Node {
	return meshNode(name, component, scene.NewBox(0.08, h, d), c, 1)
}

func buildSingleChamber(root *scene.Node, p Params, d Detail) error {
	s := p.ChamberSize()
	root.AddChild(housing(scene.NewBox(s, s, s)))
	root.AddChild(at(electrode("anode", ComponentAnode, anodeColor, s*0.8, s*0.6), -s*0.3, 0, 0))
	root.AddChild(at(electrode("cathode", ComponentCathode, cathodeColor, s*0.8, s*0.6), s*0.3, 0, 0))
	h := s / 2 * 0.9
	bubbles(root, d.Particles, mgl32.Vec3{-h, -h, -h}, mgl32.Vec3{h, h, h}, 1)
	return nil
}

func buildDualChamber(root *scene.Node, p Params, d Detail) error {
	s := p.ChamberSize()
	for i, side := range []float32{-1, 1} {
		chamber := at(scene.NewNode("chamber"), side*s/2, 0, 0)
		chamber.AddChild(housing(scene.NewBox(s, s, s)))
		name, comp, c := "anode", ComponentAnode, anodeColor
		if side > 0 {
			name, comp, c = "cathode", ComponentCathode, cathodeColor
		}
		chamber.AddChild(electrode(name, comp, c, s*0.8, s*0.6))
		h := s / 2 * 0.9
		bubbles(chamber, d.Particles/2, mgl32.Vec3{-h, -h, -h}, mgl32.Vec3{h, h, h}, uint64(10+i))
		root.AddChild(chamber)
	}
	membrane := meshNode("membrane", ComponentMembrane, scene.NewBox(0.02, s*0.95, s*0.95), membraneColor, 0.7)
	root.AddChild(membrane)
	return nil
}

// stackedCells is the number of cells in a stack.
const stackedCells = 3

func buildStacked(root *scene.Node, p Params, d Detail) error {
	s := p.ChamberSize()
	h := s / stackedCells
	for i := 0; i < stackedCells; i++ {
		y := -s/2 + h/2 + float32(i)*h
		cell := at(scene.NewNode("cell"), 0, y, 0)
		cell.AddChild(housing(scene.NewBox(s, h*0.9, s)))
		anode := at(meshNode("anode", ComponentAnode, scene.NewBox(s*0.8, 0.04, s*0.8), anodeColor, 1), 0, -h*0.3, 0)
		cathode := at(meshNode("cathode", ComponentCathode, scene.NewBox(s*0.8, 0.04, s*0.8), cathodeColor, 1), 0, h*0.3, 0)
		cell.AddChild(anode)
		cell.AddChild(cathode)
		b := s / 2 * 0.85
		bubbles(cell, d.Particles/stackedCells, mgl32.Vec3{-b, -h * 0.25, -b}, mgl32.Vec3{b, h * 0.25, b}, uint64(20+i))
		root.AddChild(cell)
	}
	return nil
}

func buildTubular(root *scene.Node, p Params, d Detail) error {
	s := p.ChamberSize()
	// Same volume as a cube of side s: r = s / sqrt(pi) for height s.
	r := s / 1.7724539
	root.AddChild(housing(scene.NewCylinder(r, s, d.Segments)))
	root.AddChild(meshNode("anode", ComponentAnode, scene.NewCylinder(r*0.15, s*0.9, d.Segments/2), anodeColor, 1))
	cathode := meshNode("cathode", ComponentCathode, scene.NewCylinder(r*1.02, s*0.8, d.Segments), cathodeColor, 1)
	cathode.Mesh.Material.Wireframe = true
	root.AddChild(cathode)
	b := r * 0.6
	bubbles(root, d.Particles, mgl32.Vec3{-b, -s * 0.45, -b}, mgl32.Vec3{b, s * 0.45, b}, 30)
	return nil
}

func buildFlowCell(root *scene.Node, p Params, d Detail) error {
	s := p.ChamberSize()
	// A flat channel with the volume of the cube: 2s x s/4 x 2s.
	w, h := s*2, s/4
	root.AddChild(housing(scene.NewBox(w, h, w)))
	root.AddChild(at(meshNode("anode", ComponentAnode, scene.NewBox(w*0.9, 0.03, w*0.9), anodeColor, 1), 0, -h*0.35, 0))
	root.AddChild(at(meshNode("cathode", ComponentCathode, scene.NewBox(w*0.9, 0.03, w*0.9), cathodeColor, 1), 0, h*0.35, 0))

	pipe := func(name, component string, x float32) *scene.Node {
		n := meshNode(name, component, scene.NewCylinder(h*0.3, s*0.5, max(6, d.Segments/3)), pipeColor, 1)
		t := scene.IdentityTransform()
		t.Position = mgl32.Vec3{x, 0, 0}
		t.Rotation = mgl32.Vec3{0, 0, mgl32.DegToRad(90)}
		n.SetTransform(t)
		return n
	}
	root.AddChild(pipe("inlet", ComponentInlet, -w/2-s*0.25))
	root.AddChild(pipe("outlet", ComponentOutlet, w/2+s*0.25))

	b := w / 2 * 0.9
	bubbles(root, d.Particles, mgl32.Vec3{-b, -h * 0.3, -b}, mgl32.Vec3{b, h * 0.3, b}, 40)
	return nil
}
