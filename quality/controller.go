package quality

import "github.com/gogpu/vizctx/internal/xlog"

// Default controller thresholds.
const (
	DefaultDowngradeFPS   = 25
	DefaultUpgradeFPS     = 55
	DefaultCooldownFrames = 120
)

// FPSSource supplies the measured frame rate. *perf.Monitor implements it.
type FPSSource interface {
	FPS() int
}

// Option configures a Controller.
type Option func(*Controller)

// WithThresholds sets the downgrade and upgrade FPS thresholds.
// Non-positive values keep the defaults.
func WithThresholds(downgrade, upgrade int) Option {
	return func(c *Controller) {
		if downgrade > 0 {
			c.downgradeFPS = downgrade
		}
		if upgrade > 0 {
			c.upgradeFPS = upgrade
		}
	}
}

// WithCooldown sets the number of frames to wait after a transition.
func WithCooldown(frames int) Option {
	return func(c *Controller) {
		if frames >= 0 {
			c.cooldown = frames
		}
	}
}

// WithAutoAdjust sets the initial auto-adjust state (default true).
func WithAutoAdjust(on bool) Option {
	return func(c *Controller) {
		c.autoAdjust = on
	}
}

// Controller is the adaptive quality state machine.
// It is not safe for concurrent use; it lives on the frame thread.
type Controller struct {
	source         FPSSource
	tier           Tier
	autoAdjust     bool
	cooldownFrames int

	downgradeFPS int
	upgradeFPS   int
	cooldown     int
}

// NewController creates a controller starting at initial and reading frame
// rates from source.
func NewController(source FPSSource, initial Tier, opts ...Option) *Controller {
	if initial > High {
		initial = High
	}
	c := &Controller{
		source:       source,
		tier:         initial,
		autoAdjust:   true,
		downgradeFPS: DefaultDowngradeFPS,
		upgradeFPS:   DefaultUpgradeFPS,
		cooldown:     DefaultCooldownFrames,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Update runs once per frame and reports the current tier and whether it
// changed on this frame.
func (c *Controller) Update() (Tier, bool) {
	if c.cooldownFrames > 0 {
		c.cooldownFrames--
		return c.tier, false
	}
	if !c.autoAdjust || c.source == nil {
		return c.tier, false
	}

	fps := c.source.FPS()
	next := c.tier
	switch {
	case fps < c.downgradeFPS && c.tier != Low:
		next = c.tier.down()
	case fps > c.upgradeFPS && c.tier != High:
		next = c.tier.up()
	}
	if next == c.tier {
		return c.tier, false
	}

	xlog.L().Debug("quality: tier transition", "from", c.tier.String(), "to", next.String(), "fps", fps)
	c.tier = next
	c.cooldownFrames = c.cooldown
	return c.tier, true
}

// Tier returns the current tier.
func (c *Controller) Tier() Tier {
	return c.tier
}

// SetTier forces the tier. Callers usually disable auto-adjust first so the
// forced tier sticks. The cooldown is reset.
func (c *Controller) SetTier(t Tier) {
	if t > High {
		t = High
	}
	c.tier = t
	c.cooldownFrames = 0
}

// AutoAdjust reports whether automatic transitions are enabled.
func (c *Controller) AutoAdjust() bool {
	return c.autoAdjust
}

// SetAutoAdjust enables or freezes automatic transitions.
func (c *Controller) SetAutoAdjust(on bool) {
	c.autoAdjust = on
}

// Cooldown returns the remaining cooldown frames.
func (c *Controller) Cooldown() int {
	return c.cooldownFrames
}

// Settings returns the settings record of the current tier.
func (c *Controller) Settings() Settings {
	return SettingsFor(c.tier)
}
