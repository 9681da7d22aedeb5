// Package quality chooses a rendering quality tier from measured frame rate.
//
// The controller is hysteretic: after every transition it waits a cooldown
// of frames before considering another one, and it only ever moves one tier
// at a time.
package quality

import "fmt"

// Tier is a named bundle of rendering-fidelity settings.
type Tier uint8

const (
	// Low disables shadows and post-processing.
	Low Tier = iota

	// Medium enables shadows at reduced resolution.
	Medium

	// High enables every effect.
	High
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Tier(%d)", t)
	}
}

// ParseTier parses a tier name as produced by String.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	}
	return Low, fmt.Errorf("quality: unknown tier %q", s)
}

// down returns the adjacent lower tier.
func (t Tier) down() Tier {
	if t == Low {
		return Low
	}
	return t - 1
}

// up returns the adjacent higher tier.
func (t Tier) up() Tier {
	if t >= High {
		return High
	}
	return t + 1
}

// Settings is the fidelity record bound to a tier.
//
// Fields fall into three groups:
//   - live: ResolutionScale, MaxLights. Applied directly to a running context.
//   - structural: ShadowResolution, Shadows, PostProcessing. Applied by
//     rebuilding the shadow or post-processing sub-resources only.
//   - creation-time: Antialias. Only honoured when a context is created.
type Settings struct {
	ResolutionScale  float64
	ShadowResolution int
	Antialias        bool
	Shadows          bool
	PostProcessing   bool
	MaxLights        int
}

var tierSettings = [...]Settings{
	Low: {
		ResolutionScale:  0.5,
		ShadowResolution: 512,
		Antialias:        false,
		Shadows:          false,
		PostProcessing:   false,
		MaxLights:        2,
	},
	Medium: {
		ResolutionScale:  0.75,
		ShadowResolution: 1024,
		Antialias:        true,
		Shadows:          true,
		PostProcessing:   false,
		MaxLights:        4,
	},
	High: {
		ResolutionScale:  1.0,
		ShadowResolution: 2048,
		Antialias:        true,
		Shadows:          true,
		PostProcessing:   true,
		MaxLights:        8,
	},
}

// SettingsFor returns the settings record of t. Unknown tiers map to Low.
func SettingsFor(t Tier) Settings {
	if int(t) >= len(tierSettings) {
		return tierSettings[Low]
	}
	return tierSettings[t]
}

// Change describes which groups of settings differ between two records.
type Change struct {
	Live         bool
	Shadows      bool
	PostProcess  bool
	CreationOnly bool
}

// None reports whether nothing changed.
func (c Change) None() bool {
	return !c.Live && !c.Shadows && !c.PostProcess && !c.CreationOnly
}

// Diff classifies the differences between prev and s.
func (s Settings) Diff(prev Settings) Change {
	return Change{
		Live:         s.ResolutionScale != prev.ResolutionScale || s.MaxLights != prev.MaxLights,
		Shadows:      s.Shadows != prev.Shadows || (s.Shadows && s.ShadowResolution != prev.ShadowResolution),
		PostProcess:  s.PostProcessing != prev.PostProcessing,
		CreationOnly: s.Antialias != prev.Antialias,
	}
}
