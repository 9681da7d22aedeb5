package catalog

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/vizctx/scene"
)

// Overrides is the YAML form of descriptor metadata overrides:
//
//	designs:
//	  single-chamber:
//	    display_name: Lab cell A
//	    color: "#7fb4e6"
//	    opacity: 0.4
//	    position: [0, 0.5, 0]
//	    animation: {type: rotate, speed: 0.5}
type Overrides struct {
	Designs map[string]Override `yaml:"designs"`
}

// Override replaces the non-empty fields of one descriptor.
type Override struct {
	DisplayName string             `yaml:"display_name,omitempty"`
	Color       string             `yaml:"color,omitempty"`
	Opacity     *float32           `yaml:"opacity,omitempty"`
	Wireframe   *bool              `yaml:"wireframe,omitempty"`
	Position    []float32          `yaml:"position,omitempty"`
	Rotation    []float32          `yaml:"rotation,omitempty"`
	Scale       []float32          `yaml:"scale,omitempty"`
	Animation   *AnimationOverride `yaml:"animation,omitempty"`
}

// AnimationOverride selects an animation variant. Type "none" removes the
// animation.
type AnimationOverride struct {
	Type      string  `yaml:"type"`
	Speed     float64 `yaml:"speed,omitempty"`
	Amplitude float64 `yaml:"amplitude,omitempty"`
}

// LoadOverrides reads and parses an overrides file.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read overrides: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides parses YAML overrides.
func ParseOverrides(data []byte) (*Overrides, error) {
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("catalog: parse overrides: %w", err)
	}
	return &o, nil
}

// Apply merges o into the registry. Every override is validated before any
// descriptor changes.
func (r *Registry) Apply(o *Overrides) error {
	if o == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := make(map[Design]Descriptor, len(o.Designs))
	for name, ov := range o.Designs {
		id, err := ParseDesign(name)
		if err != nil {
			return err
		}
		desc, ok := r.descriptors[id]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownDesign, name)
		}
		if desc, err = ov.apply(desc); err != nil {
			return fmt.Errorf("catalog: override %q: %w", name, err)
		}
		updated[id] = desc
	}
	for id, desc := range updated {
		r.descriptors[id] = desc
	}
	return nil
}

func (ov Override) apply(d Descriptor) (Descriptor, error) {
	if ov.DisplayName != "" {
		d.DisplayName = ov.DisplayName
	}
	if ov.Color != "" {
		c, err := ParseColor(ov.Color)
		if err != nil {
			return d, err
		}
		d.Material.Color = c
	}
	if ov.Opacity != nil {
		if *ov.Opacity < 0 || *ov.Opacity > 1 {
			return d, fmt.Errorf("opacity %v out of [0, 1]", *ov.Opacity)
		}
		d.Material.Opacity = *ov.Opacity
	}
	if ov.Wireframe != nil {
		d.Material.Wireframe = *ov.Wireframe
	}

	var err error
	if d.InitialTransform.Position, err = vec3(ov.Position, d.InitialTransform.Position); err != nil {
		return d, fmt.Errorf("position: %w", err)
	}
	if d.InitialTransform.Rotation, err = vec3(ov.Rotation, d.InitialTransform.Rotation); err != nil {
		return d, fmt.Errorf("rotation: %w", err)
	}
	if d.InitialTransform.Scale, err = vec3(ov.Scale, d.InitialTransform.Scale); err != nil {
		return d, fmt.Errorf("scale: %w", err)
	}

	if a := ov.Animation; a != nil {
		switch strings.ToLower(a.Type) {
		case "none", "":
			d.Animation = nil
		case "rotate":
			d.Animation = scene.Rotate{Speed: a.Speed}
		case "float":
			d.Animation = scene.Float{Speed: a.Speed, Amplitude: a.Amplitude}
		case "pulse":
			d.Animation = scene.Pulse{Speed: a.Speed, Amplitude: a.Amplitude}
		default:
			return d, fmt.Errorf("unknown animation type %q", a.Type)
		}
	}
	return d, nil
}

func vec3(v []float32, def mgl32.Vec3) (mgl32.Vec3, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 3:
		return mgl32.Vec3{v[0], v[1], v[2]}, nil
	default:
		return def, fmt.Errorf("want 3 components, got %d", len(v))
	}
}

// ParseColor parses "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.RGBA, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "#"))
	if err != nil || (len(b) != 3 && len(b) != 4) {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	c := color.RGBA{R: b[0], G: b[1], B: b[2], A: 255}
	if len(b) == 4 {
		c.A = b[3]
	}
	return c, nil
}
