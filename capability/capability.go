// Package capability detects graphics capability and hardware tier once per
// process and caches the result.
//
// Probing never fails loudly: a probe that errors or panics yields
// Capabilities{Supported: false} with zero-valued fields. Hardware capability
// does not change at runtime, so the result is never recomputed.
package capability

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/vizctx/internal/xlog"
)

// ErrUnsupportedPlatform is returned when no usable graphics capability exists.
var ErrUnsupportedPlatform = errors.New("capability: unsupported platform")

// Tier is a coarse classification of the graphics hardware.
type Tier uint8

const (
	// TierLow is software rasterizers and small GPUs.
	TierLow Tier = iota

	// TierMedium is integrated GPUs.
	TierMedium

	// TierHigh is discrete GPUs.
	TierHigh
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return fmt.Sprintf("Tier(%d)", t)
	}
}

// Capabilities is the cached result of a probe.
type Capabilities struct {
	// Supported reports whether a drawing context can be created at all.
	Supported bool

	// Version is the API generation of the runtime (1 or 2).
	Version int

	// MaxTextureSize is the maximum 2D texture dimension.
	MaxTextureSize int

	// MaxRenderbufferSize is the maximum render target dimension.
	MaxRenderbufferSize int

	// RendererName identifies the adapter, e.g. "llvmpipe" or "NVIDIA GeForce".
	RendererName string

	// Tier is derived from the fields above by Classify.
	Tier Tier
}

// Constrained reports whether the hardware should be treated conservatively
// (no antialiasing, pixel ratio 1).
func (c Capabilities) Constrained() bool {
	return !c.Supported || c.Tier == TierLow
}

// softwareRenderers are substrings of renderer names that identify CPU
// rasterizers.
var softwareRenderers = []string{"swiftshader", "llvmpipe", "softpipe", "software", "basic render", "noop"}

// Classify derives the hardware tier from the renderer name and limits.
func Classify(c Capabilities) Tier {
	if !c.Supported {
		return TierLow
	}
	name := strings.ToLower(c.RendererName)
	for _, s := range softwareRenderers {
		if strings.Contains(name, s) {
			return TierLow
		}
	}
	switch {
	case c.MaxTextureSize >= 16384 && c.Version >= 2:
		return TierHigh
	case c.MaxTextureSize >= 8192:
		return TierMedium
	default:
		return TierLow
	}
}

// ProbeFunc performs the actual detection. Implementations are provided by
// graphics backends.
type ProbeFunc func() (Capabilities, error)

// Prober runs a ProbeFunc at most once and caches its result.
// Prober is safe for concurrent use.
type Prober struct {
	probe ProbeFunc
	once  sync.Once
	caps  Capabilities
}

// NewProber creates a prober around probe. A nil probe always reports an
// unsupported platform.
func NewProber(probe ProbeFunc) *Prober {
	return &Prober{probe: probe}
}

// Static returns a prober that reports caps without probing anything.
func Static(caps Capabilities) *Prober {
	return NewProber(func() (Capabilities, error) { return caps, nil })
}

// Probe returns the cached capabilities, running the probe on first use.
func (p *Prober) Probe() Capabilities {
	p.once.Do(func() {
		p.caps = p.run()
		xlog.L().Info("capability: probed",
			"supported", p.caps.Supported,
			"version", p.caps.Version,
			"renderer", p.caps.RendererName,
			"tier", p.caps.Tier.String())
	})
	return p.caps
}

func (p *Prober) run() (caps Capabilities) {
	if p.probe == nil {
		return Capabilities{}
	}
	defer func() {
		if r := recover(); r != nil {
			xlog.L().Warn("capability: probe panicked", "panic", r)
			caps = Capabilities{}
		}
	}()

	c, err := p.probe()
	if err != nil || !c.Supported {
		if err != nil {
			xlog.L().Warn("capability: probe failed", "err", err)
		}
		return Capabilities{}
	}
	c.Tier = Classify(c)
	return c
}
