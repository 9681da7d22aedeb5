// Package scene is the scene graph consumed by the render loop: nodes with
// transforms, meshes, per-node animations, a camera with orbit controls and
// ray picking.
//
// All scene state is mutated from the frame thread only.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a node's local translation, Euler rotation (radians, applied
// X then Y then Z) and scale.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
}

// IdentityTransform returns a transform with unit scale.
func IdentityTransform() Transform {
	return Transform{Scale: mgl32.Vec3{1, 1, 1}}
}

// Matrix returns T * Rz * Ry * Rx * S.
func (t Transform) Matrix() mgl32.Mat4 {
	m := mgl32.Translate3D(t.Position[0], t.Position[1], t.Position[2])
	m = m.Mul4(mgl32.HomogRotate3DZ(t.Rotation[2]))
	m = m.Mul4(mgl32.HomogRotate3DY(t.Rotation[1]))
	m = m.Mul4(mgl32.HomogRotate3DX(t.Rotation[0]))
	return m.Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// Node is an element of the scene graph.
type Node struct {
	Name string

	// Component is the name reported to click handlers when this node, or a
	// descendant without its own Component, is picked.
	Component string

	// Transform is the current local transform. When Animation is set it is
	// recomputed every frame from Base.
	Transform Transform

	// Base is the rest transform animations are computed from.
	Base Transform

	Animation Animation
	Mesh      *Mesh
	Live      LiveUpdater
	Visible   bool

	parent   *Node
	children []*Node
}

// NewNode creates a visible node with an identity transform.
func NewNode(name string) *Node {
	return &Node{
		Name:      name,
		Transform: IdentityTransform(),
		Base:      IdentityTransform(),
		Visible:   true,
	}
}

// NewMeshNode creates a node drawing mesh.
func NewMeshNode(name string, mesh *Mesh) *Node {
	n := NewNode(name)
	n.Mesh = mesh
	return n
}

// SetTransform sets both the current and rest transform.
func (n *Node) SetTransform(t Transform) {
	n.Transform = t
	n.Base = t
}

// AddChild attaches child, detaching it from any previous parent.
func (n *Node) AddChild(child *Node) {
	if child == nil || child == n {
		return
	}
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

// RemoveChild detaches child. It reports whether child was attached to n.
func (n *Node) RemoveChild(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// ReplaceChild swaps old for replacement at the same position.
// It reports whether old was found.
func (n *Node) ReplaceChild(old, replacement *Node) bool {
	for i, c := range n.children {
		if c == old {
			if replacement.parent != nil {
				replacement.parent.RemoveChild(replacement)
			}
			n.children[i] = replacement
			replacement.parent = n
			old.parent = nil
			return true
		}
	}
	return false
}

// Parent returns the parent node or nil.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the child slice. Callers must not modify it.
func (n *Node) Children() []*Node {
	return n.children
}

// WorldMatrix returns the product of all ancestor transforms and n's own.
func (n *Node) WorldMatrix() mgl32.Mat4 {
	m := n.Transform.Matrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.Transform.Matrix().Mul4(m)
	}
	return m
}

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Find returns the first node named name in depth-first order.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.Name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

// Stats are coarse counts over a subtree.
type Stats struct {
	Nodes      int
	Geometries int
	Materials  int
	DrawCalls  int
	Triangles  int
}

// Count returns statistics for the visible part of the subtree rooted at n.
func Count(n *Node) Stats {
	var s Stats
	n.Walk(func(c *Node) bool {
		if !c.Visible {
			return false
		}
		s.Nodes++
		if c.Mesh != nil {
			s.DrawCalls++
			if c.Mesh.Geometry != nil {
				s.Geometries++
				s.Triangles += c.Mesh.Geometry.TriangleCount()
			}
			if c.Mesh.Material != nil {
				s.Materials++
			}
		}
		return true
	})
	return s
}
