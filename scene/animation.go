package scene

import (
	"math"
)

// Animation is a per-node animation. The set of variants is closed:
// Rotate, Float and Pulse.
type Animation interface {
	animation()
}

// Rotate spins the node about its Y axis at Speed radians per second.
type Rotate struct {
	Speed float64
}

// Float bobs the node along Y by Amplitude at Speed radians per second.
type Float struct {
	Speed     float64
	Amplitude float64
}

// Pulse scales the node by 1 ± Amplitude at Speed radians per second.
type Pulse struct {
	Speed     float64
	Amplitude float64
}

func (Rotate) animation() {}
func (Float) animation() {}
func (Pulse) animation() {}

// Apply returns the transform of a node with rest transform base after
// elapsed seconds. It is a pure function of its arguments.
func Apply(a Animation, base Transform, elapsed float64) Transform {
	t := base
	switch a := a.(type) {
	case Rotate:
		t.Rotation[1] = base.Rotation[1] + float32(a.Speed*elapsed)
	case Float:
		t.Position[1] = base.Position[1] + float32(math.Sin(elapsed*a.Speed)*a.Amplitude)
	case Pulse:
		s := float32(1 + math.Sin(elapsed*a.Speed)*a.Amplitude)
		t.Scale = base.Scale.Mul(s)
	case nil:
	}
	return t
}

// Animate recomputes the transform of every animated node under root.
// It returns the number of animated nodes.
func Animate(root *Node, elapsed float64) int {
	n := 0
	root.Walk(func(node *Node) bool {
		if node.Animation != nil {
			node.Transform = Apply(node.Animation, node.Base, elapsed)
			n++
		}
		return true
	})
	return n
}

// LiveUpdater recomputes per-frame attributes in place.
type LiveUpdater interface {
	Step(dt float64)
}

// StepLive advances every live updater under root by dt seconds.
func StepLive(root *Node, dt float64) int {
	n := 0
	root.Walk(func(node *Node) bool {
		if node.Live != nil && node.Visible {
			node.Live.Step(dt)
			n++
		}
		return true
	})
	return n
}
