package pool

import (
	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/capability"
)

// DefaultMaxPixelRatio caps the device pixel ratio of new contexts.
const DefaultMaxPixelRatio = 2.0

// Tune adjusts requested creation options to the probed hardware.
//
// The pixel ratio is clamped to [1, maxRatio]. Constrained hardware gets a
// pixel ratio of 1, no antialiasing and the low-power preference.
func Tune(caps capability.Capabilities, opts backend.Options, maxRatio float64) backend.Options {
	if maxRatio < 1 {
		maxRatio = 1
	}
	switch {
	case !(opts.PixelRatio >= 1): // also catches NaN
		opts.PixelRatio = 1
	case opts.PixelRatio > maxRatio:
		opts.PixelRatio = maxRatio
	}
	if opts.PowerPreference == "" {
		opts.PowerPreference = backend.PowerHigh
	}
	if caps.Constrained() {
		opts.PixelRatio = 1
		opts.Antialias = false
		opts.PowerPreference = backend.PowerLow
	}
	return opts
}
